// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"container/heap"

	"github.com/sprout-pm/sprout/spec"
)

type selection struct {
	atoms []atomWithDeps
	deps  map[string][]dependency
	// req holds the "^" requirements of the roots, merged per name.
	req map[string]*spec.Spec
}

func (s *selection) getDependenciesOn(name string) []dependency {
	return s.deps[name]
}

// constraintsOn returns every constraint on name: the dependencies of
// selected atoms, the user's root constraints and any requirement.
func (s *selection) constraintsOn(name string) []dependency {
	deps := s.deps[name]
	r, has := s.req[name]
	if !has {
		return deps
	}
	return append(append([]dependency(nil), deps...), dependency{name: name, c: r})
}

// getConstraint intersects every constraint on name.
func (s *selection) getConstraint(name string) (*spec.Spec, error) {
	c := spec.New(name)
	for _, d := range s.constraintsOn(name) {
		if err := c.ConstrainNode(d.c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// mustConstraint is getConstraint for states where the constraints are
// known to agree.
func (s *selection) mustConstraint(name string) *spec.Spec {
	c, err := s.getConstraint(name)
	if err != nil {
		panic("canary - constraints on " + name + " disagree: " + err.Error())
	}
	return c
}

func (s *selection) selected(name string) (atomWithDeps, bool) {
	for _, awd := range s.atoms {
		if awd.a.name == name {
			return awd, true
		}
	}
	return atomWithDeps{}, false
}

// providerOf returns the package chosen to provide a selected virtual.
func (s *selection) providerOf(virtual string) (string, bool) {
	if awd, has := s.selected(virtual); has && awd.a.isVirtual() {
		return awd.a.provider, true
	}
	return "", false
}

func (s *selection) pushSelection(awd atomWithDeps) {
	s.atoms = append(s.atoms, awd)
}

func (s *selection) popSelection() atomWithDeps {
	var awd atomWithDeps
	awd, s.atoms = s.atoms[len(s.atoms)-1], s.atoms[:len(s.atoms)-1]
	return awd
}

// unselected is a heap of the names still waiting for a choice.
type unselected struct {
	sl  []string
	cmp func(i, j int) bool
}

func (u unselected) Len() int {
	return len(u.sl)
}

func (u unselected) Less(i, j int) bool {
	return u.cmp(i, j)
}

func (u unselected) Swap(i, j int) {
	u.sl[i], u.sl[j] = u.sl[j], u.sl[i]
}

func (u *unselected) Push(x interface{}) {
	u.sl = append(u.sl, x.(string))
}

func (u *unselected) Pop() (v interface{}) {
	v, u.sl = u.sl[len(u.sl)-1], u.sl[:len(u.sl)-1]
	return v
}

// remove takes name out of the heap, if present.
func (u *unselected) remove(name string) {
	for k, n := range u.sl {
		if n == name {
			heap.Remove(u, k)
			return
		}
	}
}
