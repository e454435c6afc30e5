// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package test

import (
	"log"
	"strings"
	"testing"
	"unicode"
)

// Writer routes everything written to it into a test log, one call per
// non-empty line.
type Writer struct {
	testing.TB
}

func (t Writer) Write(b []byte) (n int, err error) {
	for _, part := range strings.Split(string(b), "\n") {
		if line := strings.TrimRightFunc(part, unicode.IsSpace); line != "" {
			t.Log(line)
		}
	}
	return len(b), nil
}

// Logger returns a logger writing into the test log, for trace output.
func Logger(tb testing.TB) *log.Logger {
	return log.New(Writer{TB: tb}, "", 0)
}
