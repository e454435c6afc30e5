// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sprout-pm/sprout/repo"
	"github.com/sprout-pm/sprout/spec"
	"github.com/sprout-pm/sprout/version"
)

// createVersionQueue builds the choice point for name and moves it to its
// first acceptable candidate.
func (s *solver) createVersionQueue(name string) (*candidateQueue, error) {
	if s.params.Repo.IsVirtual(name) {
		return s.createProviderQueue(name)
	}

	def, err := s.params.Repo.Get(name)
	if err != nil {
		// Expansion checked every name that can be reached.
		panic("canary - queue for unknown package " + name)
	}
	c := s.sel.mustConstraint(name)

	pi, err := s.reuseCandidates(def, c)
	if err != nil {
		return nil, err
	}
	if c.Hash == "" {
		built, err := s.buildCandidates(def, c)
		if err != nil {
			return nil, err
		}
		pi = append(pi, built...)
	}

	if len(pi) == 0 {
		deps := s.sel.constraintsOn(name)
		for _, d := range deps {
			s.fail(d.depender.name)
		}
		return nil, &noVersionError{name: name, deps: deps}
	}

	q := newCandidateQueue(name, pi)
	s.traceCheckQueue(q, false, 1)
	return q, s.findValidVersion(q)
}

// createProviderQueue builds the choice point for a virtual package, whose
// candidates are its providers.
func (s *solver) createProviderQueue(virtual string) (*candidateQueue, error) {
	var order []string
	seen := make(map[string]bool)
	add := func(name string) {
		if seen[name] {
			return
		}
		if def, err := s.params.Repo.Get(name); err == nil && def.ProvidesVirtual(virtual) {
			seen[name] = true
			order = append(order, name)
		}
	}

	for _, name := range sortedKeys(s.sel.req) {
		add(name)
	}
	for _, awd := range s.sel.atoms {
		if !awd.a.isVirtual() {
			add(awd.a.name)
		}
	}
	for _, name := range s.pendingDeps() {
		add(name)
	}
	for _, name := range s.params.Packages[virtual].Providers {
		add(name)
	}
	for _, def := range s.params.Repo.ProvidersOf(virtual) {
		add(def.Name)
	}

	pi := make([]atom, len(order))
	for k, p := range order {
		pi[k] = atom{name: virtual, provider: p}
	}

	q := newCandidateQueue(virtual, pi)
	s.traceCheckQueue(q, false, 1)
	return q, s.findValidVersion(q)
}

// pendingDeps returns the names that selected atoms depend on but that are
// not selected yet, in the order they entered the selection.
func (s *solver) pendingDeps() []string {
	var out []string
	for name, deps := range s.sel.deps {
		if len(deps) == 0 {
			continue
		}
		if _, has := s.sel.selected(name); !has {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.seq[out[i]] < s.seq[out[j]]
	})
	return out
}

// reuseCandidates returns the installed specs that satisfy c, when reuse is
// enabled or c pins a hash.
func (s *solver) reuseCandidates(def *repo.Definition, c *spec.Spec) ([]atom, error) {
	if s.params.Installed == nil || (!s.params.Reuse && c.Hash == "") {
		return nil, nil
	}

	key := c.NodeString()
	found, has := s.installed[key]
	if !has {
		var err error
		found, err = s.params.Installed.FindCompatible(c)
		if err != nil {
			return nil, errors.Wrapf(err, "could not query installed specs for %s", def.Name)
		}
		s.installed[key] = found
	}

	var out []atom
	for _, inst := range found {
		a, ok := reusedAtom(s.params.Repo, def, inst)
		if !ok {
			if s.l.Level >= logrus.DebugLevel {
				s.l.WithField("name", def.Name).Debug("Skipping installed spec that no longer matches its definition")
			}
			continue
		}
		if a.satisfies(c) {
			out = append(out, a)
		}
	}
	return out, nil
}

// reusedAtom turns an installed spec into a candidate, unless it no longer
// fits the current definitions of r.
func reusedAtom(r *repo.Repository, def *repo.Definition, inst *spec.Spec) (atom, bool) {
	h, err := inst.DAGHash()
	if err != nil {
		return nilAtom, false
	}
	v, ok := inst.Version()
	if !ok {
		return nilAtom, false
	}
	for _, n := range inst.Variants.Names() {
		decl, has := def.Variants[n]
		if !has || !decl.Allows(inst.Variants[n]) {
			return nilAtom, false
		}
	}
	for _, n := range def.VariantNames() {
		if _, has := inst.Variants[n]; !has {
			return nilAtom, false
		}
	}
	for _, d := range inst.Traverse(spec.PreOrder, spec.Children)[1:] {
		if _, err := r.Get(d.Name); err != nil {
			return nilAtom, false
		}
	}

	n := cloneNode(inst)
	n.Hash = ""
	return atom{name: inst.Name, v: v, n: n, reused: inst, hash: h}, true
}

// buildCandidates enumerates the atoms for building def from source: versions
// in order of preference, then compilers, then variant assignments.
func (s *solver) buildCandidates(def *repo.Definition, c *spec.Spec) ([]atom, error) {
	variants, err := s.candidateVariants(def, c)
	if err != nil {
		return nil, err
	}

	arch := s.params.Platform.Arch
	if c.Arch.Platform != "" {
		arch.Platform = c.Arch.Platform
	}
	if c.Arch.OS != "" {
		arch.OS = c.Arch.OS
	}
	if c.Arch.Target != "" {
		arch.Target = c.Arch.Target
	}

	compilers := s.candidateCompilers(def.Name, c)
	var out []atom
	for _, v := range s.candidateVersions(def, c) {
		for _, comp := range compilers {
			for _, vm := range variants {
				n := spec.New(def.Name)
				n.Versions = version.ExactSet(v)
				n.Variants = vm
				n.Compiler = comp
				n.Arch = arch
				n.PackageHash = def.Hash()
				out = append(out, atom{name: def.Name, v: v, n: n})
			}
		}
	}
	return out, nil
}

// candidateVersions orders the versions of def admitted by c: configured
// preferences, preferred versions, then numeric releases newest first,
// infinity versions, deprecated versions and finally exact versions the
// package does not declare.
func (s *solver) candidateVersions(def *repo.Definition, c *spec.Spec) []version.Version {
	var out []version.Version
	add := func(v version.Version) {
		if !c.Versions.Matches(v) {
			return
		}
		for _, o := range out {
			if o.Equal(v) {
				return
			}
		}
		out = append(out, v)
	}

	declared := def.DeclaredVersions()
	deprecated := func(v version.Version) bool {
		decl, _ := def.VersionDecl(v)
		return decl.Deprecated
	}

	for _, pref := range s.params.Packages[def.Name].Versions {
		for _, v := range declared {
			if pref.Matches(v) && !deprecated(v) {
				add(v)
			}
		}
	}
	for _, v := range declared {
		if decl, _ := def.VersionDecl(v); decl.Preferred && !decl.Deprecated {
			add(v)
		}
	}
	for _, v := range declared {
		if !v.IsInfinity() && !deprecated(v) {
			add(v)
		}
	}
	for _, v := range declared {
		if v.IsInfinity() && !deprecated(v) {
			add(v)
		}
	}
	for _, v := range declared {
		add(v)
	}
	for _, r := range c.Versions.Ranges() {
		if r.IsExact() {
			add(r.Lo())
		}
	}
	return out
}

// candidateCompilers orders the platform compilers admitted by c: the
// compiler of the first depender, the configured preference, then platform
// order.
func (s *solver) candidateCompilers(name string, c *spec.Spec) []spec.CompilerSpec {
	var out []spec.CompilerSpec
	add := func(comp Compiler) {
		if c.Compiler.Name != "" && c.Compiler.Name != comp.Name {
			return
		}
		if !c.Compiler.Versions.Matches(comp.Version) {
			return
		}
		for _, o := range out {
			if o.Name == comp.Name && o.Versions.Matches(comp.Version) {
				return
			}
		}
		out = append(out, comp.spec())
	}

	if dc, has := s.dependerCompiler(name); has {
		for _, comp := range s.params.Platform.Compilers {
			if dc.Name == comp.Name && dc.Versions.Matches(comp.Version) {
				add(comp)
			}
		}
	}
	if pref := s.params.Packages[name].Compiler; pref.Name != "" {
		for _, comp := range s.params.Platform.Compilers {
			if pref.Name == comp.Name && pref.Versions.Matches(comp.Version) {
				add(comp)
			}
		}
	}
	for _, comp := range s.params.Platform.Compilers {
		add(comp)
	}
	return out
}

// dependerCompiler returns the compiler of the oldest package depending on
// name, looking through virtual packages.
func (s *solver) dependerCompiler(name string) (spec.CompilerSpec, bool) {
	for _, d := range s.sel.getDependenciesOn(name) {
		switch {
		case d.fromUser():
		case d.depender.isVirtual():
			if c, has := s.dependerCompiler(d.depender.name); has {
				return c, true
			}
		default:
			return d.depender.n.Compiler, true
		}
	}
	return spec.CompilerSpec{}, false
}

// candidateVariants returns the variant assignments to try: constrained
// variants take their constrained value, the rest their default, and then
// each unconstrained finite variant in turn takes each of its alternatives.
func (s *solver) candidateVariants(def *repo.Definition, c *spec.Spec) ([]spec.VariantMap, error) {
	for _, n := range c.Variants.Names() {
		v := c.Variants[n]
		decl, has := def.Variants[n]
		if !has {
			return nil, s.variantFailure(def.Name, v, true)
		}
		if !decl.Allows(spec.NewVariant(n, decl.Multi, v.Values...)) {
			return nil, s.variantFailure(def.Name, v, false)
		}
	}

	var prefs spec.VariantMap
	if p := s.params.Packages[def.Name].Variants; p != nil {
		prefs = p.Variants
	}

	base := make(spec.VariantMap)
	var free []string
	for _, n := range def.VariantNames() {
		decl := def.Variants[n]
		if v, has := c.Variants[n]; has {
			if decl.Bool {
				base.Set(spec.BoolVariant(n, v.Value() == "true"))
			} else {
				base.Set(spec.NewVariant(n, decl.Multi, v.Values...))
			}
			continue
		}

		val := decl.DefaultValue()
		if pv, has := prefs[n]; has {
			if cand := spec.NewVariant(n, decl.Multi, pv.Values...); decl.Allows(cand) {
				val = cand
				if decl.Bool {
					val = spec.BoolVariant(n, pv.Value() == "true")
				}
			}
		}
		base.Set(val)
		if len(decl.Alternatives()) > 1 {
			free = append(free, n)
		}
	}

	out := []spec.VariantMap{base}
	for _, n := range free {
		for _, alt := range def.Variants[n].Alternatives() {
			if alt.Value() == base[n].Value() {
				continue
			}
			vm := copyVariants(base)
			vm.Set(alt)
			out = append(out, vm)
		}
	}
	return out, nil
}

func (s *solver) variantFailure(name string, v spec.VariantValue, undecl bool) error {
	var deps []dependency
	for _, d := range s.sel.constraintsOn(name) {
		if _, has := d.c.Variants[v.Name]; has {
			deps = append(deps, d)
			s.fail(d.depender.name)
		}
	}
	return &variantFailure{name: name, variant: v, undecl: undecl, deps: deps}
}
