// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package solve turns abstract specs into a concrete spec DAG.
//
// The concretizer is a backtracking search over a stack of candidate queues,
// one for every package (or virtual package) name that has been reached.
// Each queue orders the ways the name could be concretized; the current
// candidate of each queue is the chosen one. When a candidate fails a check,
// the queues responsible for the failure are marked, and backtracking pops
// queues until it can advance a marked one.
package solve

import (
	"container/heap"
	"context"
	"log"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sprout-pm/sprout/repo"
	"github.com/sprout-pm/sprout/spec"
)

// A Solver concretizes the roots it was prepared with.
type Solver interface {
	Solve(ctx context.Context) (*Solution, error)
}

// Prepare validates params and returns a Solver ready to run. In Separate
// mode the returned Solver concretizes each root independently.
func Prepare(params Parameters) (Solver, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if params.Unify == Separate && len(params.Roots) > 1 {
		return newSeparateSolver(params), nil
	}
	return newSolver(params), nil
}

// Solve prepares and runs a concretization.
func Solve(ctx context.Context, params Parameters) (*Solution, error) {
	s, err := Prepare(params)
	if err != nil {
		return nil, err
	}
	return s.Solve(ctx)
}

// solver is a backtracking-style concretizer.
type solver struct {
	params Parameters
	l      *logrus.Logger
	tl     *log.Logger

	sel   *selection
	unsel *unselected
	vqs   []*candidateQueue

	// rootIndex orders the roots ahead of everything else; seq orders the
	// other names by when they were first reached.
	rootIndex map[string]int
	seq       map[string]int

	// installed memoizes queries of the installed index for this run.
	installed map[string][]*spec.Spec

	attempts int
}

func newSolver(params Parameters) *solver {
	return &solver{
		params:    params,
		l:         params.logger(),
		tl:        params.TraceLogger,
		rootIndex: make(map[string]int),
		seq:       make(map[string]int),
		installed: make(map[string][]*spec.Spec),
	}
}

func (s *solver) Solve(ctx context.Context) (*Solution, error) {
	start := time.Now()
	sol, err := s.run(ctx)
	s.params.Metrics.observe(start, s.attempts, err)
	s.traceFinish(sol, err)
	return sol, err
}

func (s *solver) run(ctx context.Context) (*Solution, error) {
	s.sel = &selection{
		deps: make(map[string][]dependency),
		req:  make(map[string]*spec.Spec),
	}
	s.unsel = &unselected{
		sl:  make([]string, 0),
		cmp: s.unselectedComparator,
	}
	heap.Init(s.unsel)

	if err := s.prime(); err != nil {
		return nil, err
	}
	if err := s.expand(); err != nil {
		return nil, err
	}
	s.traceStart()

	if err := s.solve(ctx); err != nil {
		if f, ok := err.(failure); ok {
			return nil, unsatisfiable(f)
		}
		return nil, err
	}
	return s.buildSolution()
}

// prime records the roots as constraints from the user, and their "^"
// dependencies as requirements on the DAG.
func (s *solver) prime() error {
	for k, r := range s.params.Roots {
		if _, has := s.rootIndex[r.Name]; !has {
			s.rootIndex[r.Name] = k
		}
		s.addDependency(dependency{name: r.Name, c: s.userConstraint(r)})

		for _, n := range r.Traverse(spec.PreOrder, spec.Children)[1:] {
			if n.Name == "" {
				continue
			}
			c := s.userConstraint(n)
			if existing, has := s.sel.req[n.Name]; has {
				if err := existing.ConstrainNode(c); err != nil {
					return err
				}
			} else {
				s.sel.req[n.Name] = c
			}
		}
	}

	for _, r := range s.params.Roots {
		if _, err := s.sel.getConstraint(r.Name); err != nil {
			return err
		}
	}
	return nil
}

// userConstraint detaches the node n of a user spec, reading its variants
// the way the package declares them.
func (s *solver) userConstraint(n *spec.Spec) *spec.Spec {
	c := cloneNode(n)
	if def, err := s.params.Repo.Get(n.Name); err == nil {
		def.MarkMulti(c)
	}
	return c
}

func (s *solver) solve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		name, has := s.nextUnselected()
		if !has {
			// no more names to select - we're done.
			return nil
		}

		if s.l.Level >= logrus.DebugLevel {
			s.l.WithFields(logrus.Fields{
				"attempts": s.attempts,
				"name":     name,
				"selcount": len(s.sel.atoms),
			}).Debug("Beginning step in solve loop")
		}

		queue, err := s.createVersionQueue(name)
		if err != nil {
			if _, ok := err.(failure); !ok {
				// Not a constraint failure: nothing backtracking could fix.
				return err
			}

			s.traceInfo(err)
			s.traceStartBacktrack(name)
			if s.backtrack() {
				if s.attempts > s.params.maxAttempts() {
					return &SolveTimeoutError{Attempts: s.attempts}
				}
				continue
			}
			return err
		}

		if queue.current().name == "" {
			panic("canary - queue is empty, but flow indicates success")
		}

		if s.l.Level >= logrus.InfoLevel {
			s.l.WithFields(logrus.Fields{
				"name":    queue.name,
				"version": queue.current().String(),
			}).Info("Accepted atom")
		}

		s.selectAtom(queue.current(), queue.deps)
		s.vqs = append(s.vqs, queue)
		s.traceSelect(queue.current())
	}
}

// findValidVersion walks through a candidateQueue until it finds a candidate
// that satisfies the constraints held in the current state of the solver.
func (s *solver) findValidVersion(q *candidateQueue) error {
	if q.current().name == "" {
		panic("canary - candidate queue is empty")
	}

	faillen := len(q.fails)

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"name":       q.name,
			"candidates": len(q.pi),
		}).Debug("Beginning search through candidate queue for a valid candidate")
	}
	for {
		cur := q.current()
		s.traceInfo("try %s", cur)
		deps, err := s.check(cur)
		if err == nil {
			if s.l.Level >= logrus.DebugLevel {
				s.l.WithFields(logrus.Fields{
					"name":    q.name,
					"version": cur.String(),
				}).Debug("Found acceptable candidate, returning out")
			}
			q.deps = deps
			return nil
		}

		s.traceInfo(err)
		q.advance(err)
		if q.isExhausted() {
			if s.l.Level >= logrus.InfoLevel {
				s.l.WithField("name", q.name).Info("Candidate queue was completely exhausted, marking dependers as failed")
			}
			break
		}
	}

	deps := s.sel.constraintsOn(q.name)
	for _, d := range deps {
		s.fail(d.depender.name)
	}

	return &noVersionError{
		name:  q.name,
		fails: q.fails[faillen:],
		deps:  deps,
	}
}

// backtrack works backwards from the current failed state to find the next
// state to try.
func (s *solver) backtrack() bool {
	if len(s.vqs) == 0 {
		// nothing to backtrack to
		return false
	}

	if s.l.Level >= logrus.DebugLevel {
		s.l.WithFields(logrus.Fields{
			"selcount":   len(s.sel.atoms),
			"queuecount": len(s.vqs),
			"attempts":   s.attempts,
		}).Debug("Beginning backtracking")
	}

	for {
		for {
			if len(s.vqs) == 0 {
				// no more queues, nowhere further to backtrack
				return false
			}
			if s.vqs[len(s.vqs)-1].failed {
				break
			}

			q := s.vqs[len(s.vqs)-1]
			if s.l.Level >= logrus.InfoLevel {
				s.l.WithFields(logrus.Fields{
					"name":      q.name,
					"wasfailed": false,
				}).Info("Backtracking popped off queue")
			}
			s.vqs, s.vqs[len(s.vqs)-1] = s.vqs[:len(s.vqs)-1], nil
			s.unselectLast()
			s.traceBacktrack(q.name, false)
		}

		// Grab the last candidateQueue off the list of queues
		q := s.vqs[len(s.vqs)-1]

		if s.l.Level >= logrus.DebugLevel {
			s.l.WithFields(logrus.Fields{
				"name":    q.name,
				"failver": q.current().String(),
			}).Debug("Trying failed queue with next candidate")
		}

		s.unselectLast()

		// Advance the queue past the current candidate, which we know is bad
		q.advance(nil)
		if !q.isExhausted() {
			s.traceCheckQueue(q, true, 0)
			if s.findValidVersion(q) == nil {
				if s.l.Level >= logrus.InfoLevel {
					s.l.WithFields(logrus.Fields{
						"name":    q.name,
						"version": q.current().String(),
					}).Info("Backtracking found valid candidate, attempting next solution")
				}

				// Found one! Put it back on the selected queue and stop
				// backtracking
				s.selectAtom(q.current(), q.deps)
				s.traceSelect(q.current())
				break
			}
		} else {
			// Nothing is left to try, so whatever put q.name in the
			// selection has to change.
			for _, d := range s.sel.constraintsOn(q.name) {
				s.fail(d.depender.name)
			}
		}

		if s.l.Level >= logrus.DebugLevel {
			s.l.WithField("name", q.name).Debug("Failed to find a valid candidate in queue, continuing backtrack")
		}

		// No solution found; continue backtracking after popping the queue
		// we just inspected off the list
		s.traceBacktrack(q.name, true)
		s.vqs, s.vqs[len(s.vqs)-1] = s.vqs[:len(s.vqs)-1], nil
	}

	// Backtracking was successful if loop ended before running out of queues
	if len(s.vqs) == 0 {
		return false
	}
	s.attempts++
	return true
}

func (s *solver) nextUnselected() (string, bool) {
	if len(s.unsel.sl) > 0 {
		return s.unsel.sl[0], true
	}
	return "", false
}

func (s *solver) unselectedComparator(i, j int) bool {
	iname, jname := s.unsel.sl[i], s.unsel.sl[j]
	if iname == jname {
		return false
	}

	// Roots always come first, in the order they were given.
	iroot, iok := s.rootIndex[iname]
	jroot, jok := s.rootIndex[jname]
	switch {
	case iok && jok:
		return iroot < jroot
	case iok:
		return true
	case jok:
		return false
	}

	return s.seq[iname] < s.seq[jname]
}

func (s *solver) isRoot(name string) bool {
	_, has := s.rootIndex[name]
	return has
}

// fail marks the queue of name as failed, so that backtracking advances it.
func (s *solver) fail(name string) {
	// constraints given by the user cannot be backtracked
	if name == "" {
		return
	}

	for _, vq := range s.vqs {
		if vq.name == name {
			vq.failed = true
			return
		}
	}
}

func (s *solver) addDependency(dep dependency) {
	siblingsAndSelf := append(s.sel.getDependenciesOn(dep.name), dep)
	s.sel.deps[dep.name] = siblingsAndSelf

	// add the name to the unselected queue if this is the first dependency on
	// it - otherwise it's already in there, or been selected
	if len(siblingsAndSelf) == 1 {
		if _, has := s.seq[dep.name]; !has {
			s.seq[dep.name] = len(s.seq)
		}
		heap.Push(s.unsel, dep.name)
	}
}

func (s *solver) selectAtom(a atom, deps []dependency) {
	s.unsel.remove(a.name)
	s.sel.pushSelection(atomWithDeps{a: a, deps: deps})

	for _, dep := range deps {
		s.addDependency(dep)
	}
}

func (s *solver) unselectLast() {
	awd := s.sel.popSelection()
	heap.Push(s.unsel, awd.a.name)

	for _, dep := range awd.deps {
		siblings := s.sel.getDependenciesOn(dep.name)
		siblings = siblings[:len(siblings)-1]
		s.sel.deps[dep.name] = siblings

		// if no siblings, remove from unselected queue
		if len(siblings) == 0 {
			if s.l.Level >= logrus.DebugLevel {
				s.l.WithFields(logrus.Fields{
					"name":  dep.name,
					"pname": awd.a.name,
				}).Debug("Removing name from unselected queue; last depender was unselected")
			}
			s.unsel.remove(dep.name)
		}
	}
}

func sortedKeys(m map[string]*spec.Spec) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// expand walks the definitions reachable from the roots through every
// dependency that could apply. It checks that each name is known, then that
// the unconditional dependencies of the reached packages form no cycle.
func (s *solver) expand() error {
	reached := make(map[string]bool)
	var order []string
	queue := make([]string, 0, len(s.params.Roots))
	for _, r := range s.params.Roots {
		queue = append(queue, r.Name)
	}
	queue = append(queue, sortedKeys(s.sel.req)...)

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if reached[name] {
			continue
		}
		if !s.params.Repo.Exists(name) {
			return &repo.UnknownPackageError{Name: name}
		}
		reached[name] = true

		if s.params.Repo.IsVirtual(name) {
			for _, p := range s.params.Repo.ProvidersOf(name) {
				queue = append(queue, p.Name)
			}
			continue
		}

		order = append(order, name)
		edges, err := s.expansionEdges(name)
		if err != nil {
			return err
		}
		for _, dd := range edges {
			queue = append(queue, dd.Spec.Name)
		}
	}

	return s.checkUnconditionalCycles(order)
}

// expansionEdges returns the dependency directives of name that could apply
// given what the user said about it.
func (s *solver) expansionEdges(name string) ([]repo.Dependency, error) {
	def, err := s.params.Repo.Get(name)
	if err != nil {
		return nil, err
	}

	c := spec.New(name)
	for _, r := range s.params.Roots {
		if r.Name == name {
			// Disjoint roots are reported by prime.
			_ = c.ConstrainNode(r)
		}
	}
	if r, has := s.sel.req[name]; has {
		_ = c.ConstrainNode(r)
	}

	var out []repo.Dependency
	for _, dd := range def.Dependencies {
		if s.effectiveTypes(name, dd.Types) == 0 || !dd.MayApply(c) {
			continue
		}
		out = append(out, dd)
	}
	return out, nil
}

func (s *solver) checkUnconditionalCycles(names []string) error {
	const (
		visiting = iota + 1
		done
	)
	state := make(map[string]int, len(names))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			for k, n := range path {
				if n == name {
					return &CyclicDependencyError{Path: append(append([]string(nil), path[k:]...), name)}
				}
			}
			panic("canary - visiting package missing from path")
		}

		state[name] = visiting
		path = append(path, name)
		edges, err := s.expansionEdges(name)
		if err != nil {
			return err
		}
		for _, dd := range edges {
			if dd.When != nil || s.params.Repo.IsVirtual(dd.Spec.Name) {
				continue
			}
			if err := visit(dd.Spec.Name); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
