// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sprout

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sprout-pm/sprout/internal/fs"
)

// SafeWriter transactionalizes writes of an environment's manifest and lock,
// individually or together, into a pseudo-atomic action with rollback.
//
// It is not impervious to errors (writing to disk is hard), but it should
// guard against non-arcane failure conditions.
type SafeWriter struct {
	Manifest *Manifest
	Lock     *Lock
}

// NewSafeWriter sets up a writer for manifest and newLock. The lock is only
// written when it differs from oldLock. Either of manifest or newLock may be
// nil, to leave that file alone.
func NewSafeWriter(manifest *Manifest, oldLock, newLock *Lock) *SafeWriter {
	sw := &SafeWriter{Manifest: manifest}
	if newLock != nil && !locksAreEquivalent(oldLock, newLock) {
		sw.Lock = newLock
	}
	return sw
}

// HasManifest reports whether the manifest will be written.
func (sw *SafeWriter) HasManifest() bool {
	return sw.Manifest != nil
}

// HasLock reports whether the lock will be written.
func (sw *SafeWriter) HasLock() bool {
	return sw.Lock != nil
}

type tomlMarshaller interface {
	MarshalTOML() ([]byte, error)
}

type jsonMarshaller interface {
	MarshalJSON() ([]byte, error)
}

func writeFile(path string, in interface{}) error {
	var (
		b   []byte
		err error
	)
	switch m := in.(type) {
	case tomlMarshaller:
		b, err = m.MarshalTOML()
	case jsonMarshaller:
		b, err = m.MarshalJSON()
	default:
		return errors.Errorf("cannot serialize %T", in)
	}
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, b, 0644)
}

// Write saves the manifest and lock into dir, restoring the previous files
// if any step fails.
func (sw *SafeWriter) Write(dir string) error {
	if !sw.HasManifest() && !sw.HasLock() {
		// nothing to do
		return nil
	}

	mpath := filepath.Join(dir, ManifestName)
	lpath := filepath.Join(dir, LockName)

	td, err := ioutil.TempDir(dir, ".sprout")
	if err != nil {
		return errors.Wrap(err, "error while creating temp dir for writing manifest/lock")
	}
	defer os.RemoveAll(td)

	if sw.HasManifest() {
		if err := writeFile(filepath.Join(td, ManifestName), sw.Manifest); err != nil {
			return errors.Wrap(err, "failed to write manifest file to temp dir")
		}
	}
	if sw.HasLock() {
		if err := writeFile(filepath.Join(td, LockName), sw.Lock); err != nil {
			return errors.Wrap(err, "failed to write lock file to temp dir")
		}
	}

	// Move the existing files to the temp dir while we put the new ones in,
	// so they can be put back until the very last rename.
	type pathpair struct {
		from, to string
	}
	var restore []pathpair
	var placed []string
	var failerr error

	if sw.HasManifest() {
		if _, err := os.Stat(mpath); err == nil {
			// Move out the old one.
			tmploc := filepath.Join(td, ManifestName+".orig")
			failerr = fs.RenameWithFallback(mpath, tmploc)
			if failerr != nil {
				goto fail
			}
			restore = append(restore, pathpair{from: tmploc, to: mpath})
		}

		// Move in the new one.
		failerr = fs.RenameWithFallback(filepath.Join(td, ManifestName), mpath)
		if failerr != nil {
			goto fail
		}
		placed = append(placed, mpath)
	}

	if sw.HasLock() {
		if _, err := os.Stat(lpath); err == nil {
			// Move out the old one.
			tmploc := filepath.Join(td, LockName+".orig")
			failerr = fs.RenameWithFallback(lpath, tmploc)
			if failerr != nil {
				goto fail
			}
			restore = append(restore, pathpair{from: tmploc, to: lpath})
		}

		// Move in the new one.
		failerr = fs.RenameWithFallback(filepath.Join(td, LockName), lpath)
		if failerr != nil {
			goto fail
		}
		placed = append(placed, lpath)
	}

	return nil

fail:
	// Take out what was moved in and put back what was moved out, then bail.
	for _, p := range placed {
		os.Remove(p)
	}
	for _, pair := range restore {
		// Nothing we can do on err here, as we're already in recovery mode.
		fs.RenameWithFallback(pair.from, pair.to)
	}
	return failerr
}

// PrintPreparedActions writes what Write would do to w.
func (sw *SafeWriter) PrintPreparedActions(w io.Writer) error {
	if sw.HasManifest() {
		fmt.Fprintf(w, "Would have written the following %s:\n", ManifestName)
		m, err := sw.Manifest.MarshalTOML()
		if err != nil {
			return errors.Wrap(err, "cannot serialize manifest")
		}
		fmt.Fprintln(w, string(m))
	}
	if sw.HasLock() {
		fmt.Fprintf(w, "Would have written the following %s:\n", LockName)
		l, err := sw.Lock.MarshalJSON()
		if err != nil {
			return errors.Wrap(err, "cannot serialize lock")
		}
		fmt.Fprintln(w, string(l))
	}
	return nil
}
