// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"sort"

	"github.com/sprout-pm/sprout/repo"
	"github.com/sprout-pm/sprout/spec"
)

// check performs all constraint checks on a candidate we want to select. It
// determines if selecting the atom would result in a state where all solver
// requirements are still satisfied, and returns the atom's dependencies.
func (s *solver) check(a atom) ([]dependency, error) {
	if a.name == "" {
		// This shouldn't be able to happen, but if it does, it unequivocally
		// indicates a logical bug somewhere, so blowing up is preferable.
		panic("canary - checking empty atom")
	}

	if a.isVirtual() {
		if err := s.checkProviderAllowable(a); err != nil {
			return nil, err
		}
	} else {
		if err := s.checkConflicts(a); err != nil {
			return nil, err
		}
		if err := s.checkProvides(a); err != nil {
			return nil, err
		}
		if err := s.checkSingleProvider(a); err != nil {
			return nil, err
		}
	}

	deps, err := s.getDependenciesOf(a)
	if err != nil {
		return nil, err
	}
	for _, dep := range deps {
		if err := s.checkDepsConstraintsAllowable(dep); err != nil {
			return nil, err
		}
		if err := s.checkDepsDisallowsSelected(dep); err != nil {
			return nil, err
		}
		if err := s.checkCycle(a, dep); err != nil {
			return nil, err
		}
	}
	return deps, nil
}

// getDependenciesOf returns the dependencies a candidate would add: the
// link, run and test dependencies of the installed spec for reused atoms, the
// applicable directives otherwise.
// Several directives on one name are merged.
func (s *solver) getDependenciesOf(a atom) ([]dependency, error) {
	if a.isVirtual() {
		return []dependency{{depender: a, name: a.provider, c: spec.New(a.provider)}}, nil
	}

	if a.reused != nil {
		var deps []dependency
		for _, d := range a.reused.Dependencies() {
			if d.Types&^spec.Build == 0 {
				// Build-only dependencies are not part of the installation.
				continue
			}
			h, err := d.Spec.DAGHash()
			if err != nil {
				panic("canary - installed spec with an abstract dependency")
			}
			c := cloneNode(d.Spec)
			c.Hash = h
			deps = append(deps, dependency{depender: a, name: d.Spec.Name, c: c, types: d.Types, virtuals: d.Virtuals})
		}
		return deps, nil
	}

	def, _ := s.params.Repo.Get(a.name)
	byName := make(map[string]*dependency)
	var names []string
	for _, dd := range def.Dependencies {
		if !dd.Applies(a.n) {
			continue
		}
		types := s.effectiveTypes(a.name, dd.Types)
		if types == 0 {
			continue
		}

		name := dd.Spec.Name
		if existing, has := byName[name]; has {
			if err := existing.c.ConstrainNode(dd.Spec); err != nil {
				serr, _ := err.(*spec.UnsatisfiableSpecError)
				return nil, &selfConflictFailure{goal: a, name: name, err: serr}
			}
			existing.types |= types
			continue
		}
		byName[name] = &dependency{depender: a, name: name, c: cloneNode(dd.Spec), types: types}
		names = append(names, name)
	}

	sort.Strings(names)
	deps := make([]dependency, len(names))
	for k, name := range names {
		deps[k] = *byName[name]
	}
	return deps, nil
}

// effectiveTypes drops test dependencies unless they belong to a root and
// tests were requested.
func (s *solver) effectiveTypes(depender string, types spec.DepType) spec.DepType {
	if !s.params.Tests || !s.isRoot(depender) {
		types &^= spec.Test
	}
	return types
}

// checkConflicts rejects candidates ruled out by a conflicts directive.
func (s *solver) checkConflicts(a atom) error {
	def, _ := s.params.Repo.Get(a.name)
	for _, c := range def.Conflicts {
		if c.Applies(a.n) {
			return &conflictFailure{goal: a, c: c, deps: s.conflictDeps(a.name, c)}
		}
	}
	return nil
}

// conflictDeps returns the constraints on name that asked for part of the
// combination c rules out.
func (s *solver) conflictDeps(name string, c repo.Conflict) []dependency {
	comb := cloneNode(c.Spec)
	comb.Name = name
	if c.When != nil {
		if err := comb.ConstrainNode(c.When); err != nil {
			return nil
		}
	}

	var out []dependency
	for _, d := range s.sel.constraintsOn(name) {
		if requests(d.c, comb) {
			out = append(out, d)
		}
	}
	return out
}

// requests reports whether c narrows one of the fields comb constrains to a
// value comb allows.
func requests(c, comb *spec.Spec) bool {
	if !c.Versions.IsAny() && !comb.Versions.IsAny() && c.Versions.MatchesAny(comb.Versions) {
		return true
	}
	for n, cv := range comb.Variants {
		dv, has := c.Variants[n]
		if !has {
			continue
		}
		for _, val := range dv.Values {
			if cv.Has(val) {
				return true
			}
		}
	}
	return comb.Compiler.Name != "" && c.Compiler.Name == comb.Compiler.Name
}

// checkProvides ensures that a candidate chosen as the provider of a virtual
// package provides it, at the versions asked of the virtual.
func (s *solver) checkProvides(a atom) error {
	def, _ := s.params.Repo.Get(a.name)
	for _, dep := range s.sel.getDependenciesOn(a.name) {
		if !dep.depender.isVirtual() {
			continue
		}
		virtual := dep.depender.name
		vc := s.sel.mustConstraint(virtual)
		if !provides(def, virtual, vc, a.n, false) {
			s.fail(virtual)
			return &providesFailure{virtual: virtual, provider: a, c: vc}
		}
	}
	return nil
}

// checkProviderAllowable ensures the provider picked for a virtual package
// could provide it.
func (s *solver) checkProviderAllowable(a atom) error {
	def, err := s.params.Repo.Get(a.provider)
	if err != nil {
		panic("canary - unknown provider " + a.provider)
	}
	vc := s.sel.mustConstraint(a.name)

	if sel, has := s.sel.selected(a.provider); has {
		if !provides(def, a.name, vc, sel.a.n, false) {
			s.fail(a.provider)
			return &providesFailure{virtual: a.name, provider: sel.a, c: vc}
		}
	} else if !provides(def, a.name, vc, s.sel.mustConstraint(a.provider), true) {
		return &providesFailure{virtual: a.name, provider: atom{name: a.provider}, c: vc}
	}

	// A selected package that already provides the virtual is the only
	// provider the DAG can hold.
	for _, awd := range s.sel.atoms {
		other := awd.a
		if other.isVirtual() || other.name == a.provider {
			continue
		}
		if odef, _ := s.params.Repo.Get(other.name); providesNode(odef, a.name, other.n) {
			return &providerClashFailure{virtual: a.name, goal: a.provider, other: other.name}
		}
	}

	// Every depender of the virtual gains an edge to the provider.
	for _, dep := range s.sel.getDependenciesOn(a.name) {
		if dep.fromUser() {
			continue
		}
		if path := s.pathTo(a.provider, dep.depender.name); path != nil {
			return &cycleFailure{goal: a, path: append([]string{dep.depender.name}, path...)}
		}
	}
	return nil
}

// checkSingleProvider rejects a candidate that would provide a virtual whose
// selected provider is another package.
func (s *solver) checkSingleProvider(a atom) error {
	def, _ := s.params.Repo.Get(a.name)
	for _, awd := range s.sel.atoms {
		v := awd.a
		if !v.isVirtual() || v.provider == a.name || !providesNode(def, v.name, a.n) {
			continue
		}
		s.fail(v.name)
		return &providerClashFailure{virtual: v.name, goal: a.name, other: v.provider}
	}
	return nil
}

// providesNode reports whether the node n of def provides virtual at all.
func providesNode(def *repo.Definition, virtual string, n *spec.Spec) bool {
	for _, p := range def.Provides {
		if p.Virtual.Name == virtual && p.Applies(n) {
			return true
		}
	}
	return false
}

// provides reports whether def provides virtual within the versions of vc,
// for the node n. With may set, n is a constraint and the provide only has to
// be possible.
func provides(def *repo.Definition, virtual string, vc, n *spec.Spec, may bool) bool {
	for _, p := range def.Provides {
		if p.Virtual.Name != virtual || !p.Virtual.Versions.MatchesAny(vc.Versions) {
			continue
		}
		if (may && p.MayApply(n)) || (!may && p.Applies(n)) {
			return true
		}
	}
	return false
}

// checkDepsConstraintsAllowable checks that the constraint of a dependency
// overlaps the constraints already placed on its target.
func (s *solver) checkDepsConstraintsAllowable(dep dependency) error {
	sibs := s.sel.constraintsOn(dep.name)
	if len(sibs) == 0 {
		return nil
	}

	c := s.sel.mustConstraint(dep.name)
	if c.IntersectsNode(dep.c) {
		return nil
	}

	var failsib, nofailsib []dependency
	for _, sib := range sibs {
		if !sib.c.IntersectsNode(dep.c) {
			failsib = append(failsib, sib)
		} else {
			nofailsib = append(nofailsib, sib)
		}
	}

	blame := failsib
	if len(blame) == 0 {
		blame = nofailsib
	}
	for _, sib := range blame {
		s.fail(sib.depender.name)
	}

	return &disjointConstraintFailure{
		goal:      dep,
		failsib:   failsib,
		nofailsib: nofailsib,
		c:         c,
	}
}

// checkDepsDisallowsSelected checks that the constraint of a dependency
// admits the atom already selected for its target.
func (s *solver) checkDepsDisallowsSelected(dep dependency) error {
	sel, has := s.sel.selected(dep.name)
	if !has {
		return nil
	}

	if !sel.a.isVirtual() {
		if sel.a.satisfies(dep.c) {
			return nil
		}
		s.fail(dep.name)
		return &constraintNotAllowedFailure{goal: dep, sel: sel.a}
	}

	// The provider must still provide the narrowed virtual.
	vc := s.sel.mustConstraint(dep.name)
	if err := vc.ConstrainNode(dep.c); err != nil {
		panic("canary - disjoint virtual constraint passed the overlap check")
	}
	def, _ := s.params.Repo.Get(sel.a.provider)
	var ok bool
	if p, has := s.sel.selected(sel.a.provider); has {
		ok = provides(def, dep.name, vc, p.a.n, false)
		if !ok {
			s.fail(sel.a.provider)
		}
	} else {
		ok = provides(def, dep.name, vc, s.sel.mustConstraint(sel.a.provider), true)
	}
	if ok {
		return nil
	}
	s.fail(dep.name)
	return &constraintNotAllowedFailure{goal: dep, sel: sel.a}
}

// checkCycle rejects a dependency whose target already depends on the
// candidate through the selected atoms.
func (s *solver) checkCycle(a atom, dep dependency) error {
	if a.isVirtual() {
		return nil
	}
	target := dep.name
	if s.params.Repo.IsVirtual(target) {
		p, has := s.sel.providerOf(target)
		if !has {
			return nil
		}
		target = p
	}
	if target == a.name {
		return &cycleFailure{goal: a, path: []string{a.name, a.name}}
	}
	if path := s.pathTo(target, a.name); path != nil {
		return &cycleFailure{goal: a, path: append([]string{a.name}, path...)}
	}
	return nil
}

// pathTo returns a path of package names from one selected package to
// another, following the dependencies of selected atoms, or nil if there is
// none.
func (s *solver) pathTo(from, to string) []string {
	seen := make(map[string]bool)
	var walk func(name string) []string
	walk = func(name string) []string {
		if name == to {
			return []string{name}
		}
		if seen[name] {
			return nil
		}
		seen[name] = true

		awd, has := s.sel.selected(name)
		if !has {
			return nil
		}
		for _, dep := range awd.deps {
			next := dep.name
			if p, has := s.sel.providerOf(next); has {
				next = p
			}
			if path := walk(next); path != nil {
				return append([]string{name}, path...)
			}
		}
		return nil
	}
	return walk(from)
}
