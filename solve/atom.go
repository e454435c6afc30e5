// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"strings"

	"github.com/sprout-pm/sprout/spec"
	"github.com/sprout-pm/sprout/version"
)

// atom is one candidate concretization of a single name. Atoms for virtual
// packages carry only the chosen provider.
type atom struct {
	name string
	v    version.Version

	// n is a detached node holding every field the atom decides.
	n *spec.Spec

	// reused is the installed node the atom was taken from, and hash its
	// dag hash.
	reused *spec.Spec
	hash   string

	provider string
}

var nilAtom = atom{}

func (a atom) isVirtual() bool {
	return a.provider != ""
}

// satisfies reports whether the atom meets the node constraint c. Hash pins
// are only met by reused atoms, whose installed hash is known.
func (a atom) satisfies(c *spec.Spec) bool {
	if c.Hash != "" {
		if a.reused == nil || !strings.HasPrefix(a.hash, c.Hash) {
			return false
		}
		c = cloneNode(c)
		c.Hash = ""
	}
	return a.n.SatisfiesNode(c)
}

// label names the atom in error sources: "zlib@1.3".
func (a atom) label() string {
	if a.isVirtual() || a.n == nil {
		return a.name
	}
	return a.name + "@" + a.v.String()
}

func (a atom) String() string {
	switch {
	case a.isVirtual():
		return a.name + " (" + a.provider + ")"
	case a.n == nil:
		return a.name
	case a.reused != nil:
		return a.n.NodeString() + " /" + a.hash[:7]
	}
	return a.n.NodeString()
}

// dependency is a constraint that a selected atom, or the user, places on a
// name.
type dependency struct {
	// depender is nilAtom for constraints given by the user.
	depender atom
	name     string
	c        *spec.Spec
	types    spec.DepType
	// virtuals is set on edges copied from a reused installed spec.
	virtuals []string
}

func (d dependency) fromUser() bool {
	return d.depender.name == ""
}

func (d dependency) source() string {
	if d.fromUser() {
		return ""
	}
	return d.depender.label()
}

func (d dependency) conflict() spec.Conflict {
	return spec.Conflict{
		Package:    d.name,
		Constraint: constraintText(d.c),
		Source:     d.source(),
	}
}

func (d dependency) String() string {
	if d.fromUser() {
		return d.c.NodeString() + " from user input"
	}
	return d.c.NodeString() + " from " + d.depender.label()
}

type atomWithDeps struct {
	a    atom
	deps []dependency
}

// cloneNode returns a detached copy of the node fields of c.
func cloneNode(c *spec.Spec) *spec.Spec {
	n := spec.New(c.Name)
	// A fresh, unconstrained node intersects with anything.
	_ = n.ConstrainNode(c)
	return n
}

// constraintText renders c without its name, the way it reads after the
// package name in spec text.
func constraintText(c *spec.Spec) string {
	return strings.TrimPrefix(c.NodeString(), c.Name)
}

func copyVariants(m spec.VariantMap) spec.VariantMap {
	out := make(spec.VariantMap, len(m))
	for _, n := range m.Names() {
		v := m[n]
		out.Set(spec.VariantValue{Name: v.Name, Values: append([]string(nil), v.Values...), Multi: v.Multi})
	}
	return out
}
