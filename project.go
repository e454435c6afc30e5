// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sprout

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var errProjectNotFound = errors.Errorf("could not find project %s, use sprout concretize to create one", ManifestName)

// findProjectRoot searches upwards from "from" for a manifest file until it
// gets to the root of the filesystem.
func findProjectRoot(from string) (string, error) {
	for {
		mp := filepath.Join(from, ManifestName)

		_, err := os.Stat(mp)
		if err == nil {
			return from, nil
		}
		if !os.IsNotExist(err) {
			// Some err other than non-existence - return that out
			return "", err
		}

		parent := filepath.Dir(from)
		if parent == from {
			return "", errProjectNotFound
		}
		from = parent
	}
}

// A Project is an environment directory: a manifest of root specs and,
// once concretized, their lock.
type Project struct {
	// AbsRoot is the absolute path to the root directory of the project.
	AbsRoot  string
	Manifest *Manifest
	Lock     *Lock
}

// IsProjectNotFound reports whether err says no project was found.
func IsProjectNotFound(err error) bool {
	return errors.Cause(err) == errProjectNotFound
}

func loadProject(root string) (*Project, error) {
	p := &Project{AbsRoot: root}

	mp := filepath.Join(root, ManifestName)
	mf, err := os.Open(mp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("no %s found in project root %s", ManifestName, root)
		}
		// Unable to read the manifest file
		return nil, err
	}
	defer mf.Close()

	p.Manifest, err = readManifest(mf)
	if err != nil {
		return nil, errors.Wrapf(err, "error while parsing %s", mp)
	}

	lp := filepath.Join(root, LockName)
	lf, err := os.Open(lp)
	if err != nil {
		if os.IsNotExist(err) {
			// It's fine for the lock not to exist
			return p, nil
		}
		// But if a lock does exist and we can't open it, that's a problem
		return nil, errors.Wrapf(err, "could not open %s", lp)
	}
	defer lf.Close()

	p.Lock, err = readLock(lf)
	if err != nil {
		return nil, errors.Wrapf(err, "error while parsing %s", lp)
	}
	return p, nil
}
