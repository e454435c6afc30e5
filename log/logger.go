// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package log writes the line oriented output of sprout commands.
package log

import (
	"fmt"
	"io"
	"strings"
)

// Logger is a minimal wrapper around an io.Writer.
type Logger struct {
	io.Writer
	// Indent prefixes every line.
	Indent string
}

// New returns a new logger which writes to w.
func New(w io.Writer) *Logger {
	return &Logger{Writer: w}
}

// Nested returns a logger writing to the same writer, indented two more
// spaces.
func (l *Logger) Nested() *Logger {
	return &Logger{Writer: l.Writer, Indent: l.Indent + "  "}
}

// Logln logs a line.
func (l *Logger) Logln(args ...interface{}) {
	fmt.Fprint(l, l.Indent)
	fmt.Fprintln(l, args...)
}

// Logf logs a formatted string.
func (l *Logger) Logf(f string, args ...interface{}) {
	fmt.Fprintf(l, l.Indent+f, args...)
}

// LogSproutfln logs a formatted line, prefixed with `==> `.
func (l *Logger) LogSproutfln(format string, args ...interface{}) {
	fmt.Fprintf(l, l.Indent+"==> "+format+"\n", args...)
}

// LogBlock logs a multi-line block, indenting each line.
func (l *Logger) LogBlock(block string) {
	for _, line := range strings.Split(strings.TrimRight(block, "\n"), "\n") {
		fmt.Fprintln(l, l.Indent+line)
	}
}
