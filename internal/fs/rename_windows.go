// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package fs

import "syscall"

// isCrossDevice reports whether err is the error of a rename across devices.
// Windows may report ERROR_NOT_SAME_DEVICE (0x11) instead of EXDEV.
func isCrossDevice(err error) bool {
	if err == syscall.EXDEV {
		return true
	}
	errno, ok := err.(syscall.Errno)
	return ok && errno == 0x11
}
