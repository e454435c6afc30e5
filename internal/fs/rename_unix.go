// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !windows

package fs

import "syscall"

// isCrossDevice reports whether err is the error of a rename across devices.
func isCrossDevice(err error) bool {
	return err == syscall.EXDEV
}
