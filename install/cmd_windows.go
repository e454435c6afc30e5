// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// +build windows

package install

import "os/exec"

// interruptProcess kills the process; Windows has no interrupt to send.
func interruptProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
