// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spec

import (
	"bytes"
	"fmt"
)

// A Conflict is one constraint taking part in an unsatisfiable combination.
type Conflict struct {
	// Package is the name of the constrained package.
	Package string
	// Constraint is the clashing part of the spec, e.g. "@:1.0" or "+mpi".
	Constraint string
	// Source names whoever imposed the constraint; empty for user input.
	Source string
}

func (c Conflict) String() string {
	if c.Source == "" {
		return c.Package + c.Constraint
	}
	return fmt.Sprintf("%s%s (from %s)", c.Package, c.Constraint, c.Source)
}

// UnsatisfiableSpecError indicates that no concrete assignment satisfies a
// set of constraints. Conflicts lists the specific clashing constraints.
type UnsatisfiableSpecError struct {
	Reason    string
	Conflicts []Conflict
}

func (e *UnsatisfiableSpecError) Error() string {
	var buf bytes.Buffer
	if e.Reason != "" {
		buf.WriteString(e.Reason)
	} else {
		buf.WriteString("unsatisfiable constraints")
	}

	switch len(e.Conflicts) {
	case 0:
	case 1:
		fmt.Fprintf(&buf, ": %s", e.Conflicts[0])
	default:
		buf.WriteString(":")
		for _, c := range e.Conflicts {
			fmt.Fprintf(&buf, "\n\t%s", c)
		}
	}
	return buf.String()
}

func unsatisfiable(name, field string, a, b string) *UnsatisfiableSpecError {
	return &UnsatisfiableSpecError{
		Reason: fmt.Sprintf("%s of %s cannot be satisfied", field, displayName(name)),
		Conflicts: []Conflict{
			{Package: name, Constraint: a},
			{Package: name, Constraint: b},
		},
	}
}

func displayName(name string) string {
	if name == "" {
		return "anonymous spec"
	}
	return name
}

// SpecNotConcreteError is returned by operations that require a concrete spec
// when they are handed an abstract one.
type SpecNotConcreteError struct {
	Spec string
	Op   string
}

func (e *SpecNotConcreteError) Error() string {
	return fmt.Sprintf("%s requires a concrete spec, but %q is abstract", e.Op, e.Spec)
}

// ParseError reports malformed spec text.
type ParseError struct {
	Text string
	Pos  int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Pos > 0 {
		return fmt.Sprintf("invalid spec %q at offset %d: %s", e.Text, e.Pos, e.Msg)
	}
	return fmt.Sprintf("invalid spec %q: %s", e.Text, e.Msg)
}
