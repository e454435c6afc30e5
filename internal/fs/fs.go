// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fs holds the file moves sprout needs to replace environment files
// in place.
package fs

import (
	"os"

	"github.com/pkg/errors"
	shutil "github.com/termie/go-shutil"
)

// RenameWithFallback attempts to rename a file or directory, but falls back to
// copying in the event of a cross-device link error. If the fallback copy
// succeeds, src is still removed, emulating normal rename behavior.
//
// A directory is never renamed onto an existing directory.
func RenameWithFallback(src, dst string) error {
	fi, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "cannot stat %s", src)
	}
	if dstfi, err := os.Stat(dst); fi.IsDir() && err == nil && dstfi.IsDir() {
		return errors.Errorf("cannot rename directory %s to existing dst %s", src, dst)
	}

	err = os.Rename(src, dst)
	if err == nil {
		return nil
	}
	terr, ok := err.(*os.LinkError)
	if !ok {
		return err
	}
	if !isCrossDevice(terr.Err) {
		return errors.Wrapf(terr, "link error: cannot rename %s to %s", src, dst)
	}
	return renameByCopy(src, dst, fi.IsDir())
}

// renameByCopy copies src to dst and then removes src.
func renameByCopy(src, dst string, dir bool) error {
	var cerr error
	if dir {
		cerr = shutil.CopyTree(src, dst, &shutil.CopyTreeOptions{
			Symlinks:     true,
			CopyFunction: shutil.Copy,
		})
	} else {
		_, cerr = shutil.Copy(src, dst, false)
	}
	if cerr != nil {
		return errors.Wrapf(cerr, "rename fallback failed: cannot rename %s to %s", src, dst)
	}
	return errors.Wrapf(os.RemoveAll(src), "cannot delete %s", src)
}
