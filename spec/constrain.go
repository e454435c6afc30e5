// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spec

import (
	"fmt"
	"strings"
)

// Constrain returns a new spec holding the intersection of s and o. Nodes of
// the two DAGs are matched by package name; nodes only present in o are
// added. The receiver is not modified.
//
// It fails with *UnsatisfiableSpecError if any field has an empty
// intersection.
func (s *Spec) Constrain(o *Spec) (*Spec, error) {
	r := s.Copy()
	if err := r.ConstrainNode(o); err != nil {
		return nil, err
	}

	g := r.g
	onodes := o.Traverse(PreOrder, Children)
	mapped := map[*Spec]*Spec{o: r}
	for _, on := range onodes[1:] {
		rn, has := g.byName(on.Name)
		if !has {
			rn = g.NewNode(on.Name)
		}
		if err := rn.ConstrainNode(on); err != nil {
			return nil, err
		}
		mapped[on] = rn
	}

	for _, on := range onodes {
		for _, d := range on.Dependencies() {
			parent, child := mapped[on], mapped[d.Spec]
			if parent == child {
				continue
			}
			if err := g.Link(parent, child, d.Types, d.Virtuals...); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (g *Graph) byName(name string) (*Spec, bool) {
	for _, n := range g.nodes {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

// ConstrainNode intersects the node fields of s, in place, with those of o.
// Dependencies are not considered.
func (s *Spec) ConstrainNode(o *Spec) error {
	if s.graph().frozen {
		return ErrFrozen
	}

	name := s.Name
	if name == "" {
		name = o.Name
	}
	if s.Name != "" && o.Name != "" && s.Name != o.Name {
		return &UnsatisfiableSpecError{
			Reason:    "package names differ",
			Conflicts: []Conflict{{Package: s.Name}, {Package: o.Name}},
		}
	}

	vs := s.Versions.Intersect(o.Versions)
	if vs.IsNone() {
		return unsatisfiable(name, "version", "@"+s.Versions.String(), "@"+o.Versions.String())
	}

	variants := s.Variants.copy()
	for _, n := range o.Variants.Names() {
		ov := o.Variants[n]
		sv, has := variants[n]
		switch {
		case !has:
			if variants == nil {
				variants = make(VariantMap)
			}
			variants[n] = NewVariant(n, ov.Multi, ov.Values...)
		case sv.Multi || ov.Multi:
			variants[n] = NewVariant(n, true, append(sv.Values, ov.Values...)...)
		case !sv.equal(ov):
			return unsatisfiable(name, "variant "+n, variantConstraint(sv), variantConstraint(ov))
		}
	}

	compiler := s.Compiler
	if o.Compiler.Name != "" {
		if compiler.Name != "" && compiler.Name != o.Compiler.Name {
			return unsatisfiable(name, "compiler", s.Compiler.String(), o.Compiler.String())
		}
		compiler.Name = o.Compiler.Name
	}
	compiler.Versions = s.Compiler.Versions.Intersect(o.Compiler.Versions)
	if compiler.Versions.IsNone() {
		return unsatisfiable(name, "compiler", s.Compiler.String(), o.Compiler.String())
	}

	arch := s.Arch
	for _, f := range []struct {
		key      string
		dst      *string
		mine, in string
	}{
		{"platform", &arch.Platform, s.Arch.Platform, o.Arch.Platform},
		{"os", &arch.OS, s.Arch.OS, o.Arch.OS},
		{"target", &arch.Target, s.Arch.Target, o.Arch.Target},
	} {
		if f.in == "" {
			continue
		}
		if f.mine != "" && f.mine != f.in {
			return unsatisfiable(name, f.key, " "+f.key+"="+f.mine, " "+f.key+"="+f.in)
		}
		*f.dst = f.in
	}

	hash := s.Hash
	if o.Hash != "" {
		switch {
		case hash == "" || strings.HasPrefix(o.Hash, hash):
			hash = o.Hash
		case !strings.HasPrefix(hash, o.Hash):
			return unsatisfiable(name, "hash", " /"+s.Hash, " /"+o.Hash)
		}
	}

	s.Name = name
	s.Versions = vs
	s.Variants = variants
	s.Compiler = compiler
	s.Arch = arch
	s.Hash = hash
	if s.PackageHash == "" {
		s.PackageHash = o.PackageHash
	}
	return nil
}

// variantConstraint renders a variant as it appears right after a package
// name in spec text.
func variantConstraint(v VariantValue) string {
	if v.IsBool() {
		return v.String()
	}
	return " " + v.String()
}

// Intersects reports whether s and o could describe the same build: every
// field constrained by both has a non-empty intersection, for every node name
// the two DAGs share.
func (s *Spec) Intersects(o *Spec) bool {
	if !s.IntersectsNode(o) {
		return false
	}
	for _, on := range o.Traverse(PreOrder, Children)[1:] {
		if sn, has := s.Find(on.Name); has && !sn.IntersectsNode(on) {
			return false
		}
	}
	return true
}

// IntersectsNode is like Intersects, but ignores dependencies.
func (s *Spec) IntersectsNode(o *Spec) bool {
	if s.Name != "" && o.Name != "" && s.Name != o.Name {
		return false
	}
	if !s.Versions.MatchesAny(o.Versions) {
		return false
	}
	for n, ov := range o.Variants {
		sv, has := s.Variants[n]
		if has && !sv.Multi && !ov.Multi && !sv.equal(ov) {
			return false
		}
	}
	if s.Compiler.Name != "" && o.Compiler.Name != "" && s.Compiler.Name != o.Compiler.Name {
		return false
	}
	if !s.Compiler.Versions.MatchesAny(o.Compiler.Versions) {
		return false
	}
	for _, f := range [][2]string{
		{s.Arch.Platform, o.Arch.Platform},
		{s.Arch.OS, o.Arch.OS},
		{s.Arch.Target, o.Arch.Target},
	} {
		if f[0] != "" && f[1] != "" && f[0] != f[1] {
			return false
		}
	}
	if s.Hash != "" && o.Hash != "" && !strings.HasPrefix(s.Hash, o.Hash) && !strings.HasPrefix(o.Hash, s.Hash) {
		return false
	}
	return true
}

// Satisfies reports whether s meets every constraint expressed by c: each
// field c constrains must hold a value (or set of values) within c's. The
// "^" dependencies of c are searched for anywhere in the DAG of s; a
// dependency naming a virtual package matches the node that provides it.
func (s *Spec) Satisfies(c *Spec) bool {
	if !s.SatisfiesNode(c) {
		return false
	}
	for _, cn := range c.Traverse(PreOrder, Children)[1:] {
		if sn, has := s.Find(cn.Name); has {
			if !sn.SatisfiesNode(cn) {
				return false
			}
			continue
		}
		pn, has := s.FindProvider(cn.Name)
		if !has {
			return false
		}
		// The provider's own name and version are unrelated to the virtual's.
		vc := cn.copyNode()
		vc.Name, vc.Versions = "", pn.Versions
		if !pn.SatisfiesNode(vc) {
			return false
		}
	}
	return true
}

// SatisfiesNode is like Satisfies, but ignores dependencies.
func (s *Spec) SatisfiesNode(c *Spec) bool {
	if c.Name != "" && s.Name != c.Name {
		return false
	}
	if !s.Versions.Satisfies(c.Versions) {
		return false
	}
	for n, cv := range c.Variants {
		sv, has := s.Variants[n]
		if !has {
			return false
		}
		for _, val := range cv.Values {
			if !sv.Has(val) {
				return false
			}
		}
		if !sv.Multi && !cv.Multi && len(sv.Values) != len(cv.Values) {
			return false
		}
	}
	if c.Compiler.Name != "" && s.Compiler.Name != c.Compiler.Name {
		return false
	}
	if !s.Compiler.Versions.Satisfies(c.Compiler.Versions) {
		return false
	}
	if (c.Arch.Platform != "" && s.Arch.Platform != c.Arch.Platform) ||
		(c.Arch.OS != "" && s.Arch.OS != c.Arch.OS) ||
		(c.Arch.Target != "" && s.Arch.Target != c.Arch.Target) {
		return false
	}
	if c.Hash != "" {
		h := s.Hash
		if s.Concrete() {
			h, _ = s.DAGHash()
		}
		if !strings.HasPrefix(h, c.Hash) {
			return false
		}
	}
	return true
}

// DescribeMismatch explains the first field of s that fails to satisfy c, for
// use in error messages. It returns "" if s satisfies c node-wise.
func (s *Spec) DescribeMismatch(c *Spec) string {
	switch {
	case c.Name != "" && s.Name != c.Name:
		return fmt.Sprintf("name %s is not %s", s.Name, c.Name)
	case !s.Versions.Satisfies(c.Versions):
		return fmt.Sprintf("version @%s is not within @%s", s.Versions, c.Versions)
	}
	for _, n := range c.Variants.Names() {
		sv, has := s.Variants[n]
		if !has {
			return fmt.Sprintf("variant %s is not set", n)
		}
		if cv := c.Variants[n]; !s.SatisfiesNode(&Spec{Variants: VariantMap{n: cv}}) {
			return fmt.Sprintf("variant %s does not match %s", variantConstraint(sv), variantConstraint(cv))
		}
	}
	if !s.SatisfiesNode(&Spec{Compiler: c.Compiler}) {
		return fmt.Sprintf("compiler %s does not match %s", s.Compiler, c.Compiler)
	}
	if !s.SatisfiesNode(&Spec{Arch: c.Arch}) {
		return fmt.Sprintf("architecture %s does not match %s", s.Arch, c.Arch)
	}
	if !s.SatisfiesNode(&Spec{Hash: c.Hash}) {
		return fmt.Sprintf("hash does not start with %s", c.Hash)
	}
	return ""
}
