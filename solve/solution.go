// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"context"
	"fmt"
	"sync"

	"github.com/sprout-pm/sprout/repo"
	"github.com/sprout-pm/sprout/spec"
)

// A Solution is a concretized, verified and frozen spec DAG.
type Solution struct {
	Graph *spec.Graph
	// Roots are the concrete roots, in the order the abstract roots were
	// given.
	Roots []*spec.Spec
	// Attempts counts the backtracks the search needed.
	Attempts int
	// Reused holds the dag hashes of the nodes taken from installed specs.
	Reused map[string]bool
}

// InstallOrder returns every node reachable from the roots, dependencies
// before their dependents.
func (sol *Solution) InstallOrder() []*spec.Spec {
	seen := make(map[*spec.Spec]bool)
	var out []*spec.Spec
	for _, r := range sol.Roots {
		for _, n := range r.Traverse(spec.PostOrder, spec.Children) {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

// IsReused reports whether n was taken from an installed spec.
func (sol *Solution) IsReused(n *spec.Spec) bool {
	h, err := n.DAGHash()
	return err == nil && sol.Reused[h]
}

func (s *solver) buildSolution() (*Solution, error) {
	g := spec.NewGraph()
	nodes := make(map[string]*spec.Spec)
	for _, awd := range s.sel.atoms {
		a := awd.a
		if a.isVirtual() {
			continue
		}
		n := g.NewNode(a.name)
		n.Versions = a.n.Versions
		n.Variants = copyVariants(a.n.Variants)
		n.Compiler = a.n.Compiler
		n.Arch = a.n.Arch
		n.PackageHash = a.n.PackageHash
		nodes[a.name] = n
	}

	for _, awd := range s.sel.atoms {
		if awd.a.isVirtual() {
			continue
		}
		parent := nodes[awd.a.name]
		for _, dep := range awd.deps {
			target, virtuals := dep.name, dep.virtuals
			if p, has := s.sel.providerOf(dep.name); has {
				target = p
				virtuals = append(append([]string(nil), virtuals...), dep.name)
			}
			child, has := nodes[target]
			if !has {
				return nil, inconsistent("%s depends on %s, which was never selected", awd.a.name, target)
			}
			if err := g.Link(parent, child, dep.types, virtuals...); err != nil {
				return nil, inconsistent("linking %s to %s: %s", awd.a.name, target, err)
			}
		}
	}

	sol := &Solution{
		Graph:    g,
		Attempts: s.attempts,
		Reused:   make(map[string]bool),
	}
	for _, r := range s.params.Roots {
		sol.Roots = append(sol.Roots, nodes[r.Name])
	}

	if err := s.checkRequirements(sol); err != nil {
		return nil, err
	}

	g.Freeze()
	if err := s.verify(sol); err != nil {
		return nil, err
	}
	return sol, nil
}

// checkRequirements reports "^" constraints of a root that nothing reachable
// from the root ever depended on.
func (s *solver) checkRequirements(sol *Solution) error {
	for k, r := range s.params.Roots {
		root := sol.Roots[k]
		for _, n := range r.Traverse(spec.PreOrder, spec.Children)[1:] {
			if n.Name == "" {
				continue
			}
			if _, has := root.Find(n.Name); has {
				continue
			}
			if _, has := root.FindProvider(n.Name); has {
				continue
			}
			return &spec.UnsatisfiableSpecError{
				Reason:    fmt.Sprintf("%s does not depend on %s", r.Name, n.Name),
				Conflicts: []spec.Conflict{{Package: n.Name, Constraint: constraintText(n), Source: r.Name}},
			}
		}
	}
	return nil
}

// verify re-checks the invariants of concrete specs on a built solution.
func (s *solver) verify(sol *Solution) error {
	byName := make(map[string]*spec.Spec)
	for _, n := range sol.Graph.Nodes() {
		if _, has := byName[n.Name]; has {
			return inconsistent("two nodes named %s", n.Name)
		}
		byName[n.Name] = n
	}
	if err := checkAcyclic(sol.Graph); err != nil {
		return err
	}

	for _, n := range sol.Graph.Nodes() {
		if !n.Concrete() {
			return inconsistent("%s is not concrete", n.NodeString())
		}
		def, err := s.params.Repo.Get(n.Name)
		if err != nil {
			return inconsistent("%s is not a known package", n.Name)
		}
		if err := verifyNode(def, n); err != nil {
			return err
		}
	}

	for _, awd := range s.sel.atoms {
		a := awd.a
		if a.isVirtual() {
			p := byName[a.provider]
			def, _ := s.params.Repo.Get(a.provider)
			vc := s.sel.mustConstraint(a.name)
			if !provides(def, a.name, vc, p, false) {
				return inconsistent("%s does not provide %s", p.NodeString(), vc.NodeString())
			}
			continue
		}

		n := byName[a.name]
		h, _ := n.DAGHash()
		if a.reused != nil {
			if h != a.hash {
				return inconsistent("reused %s changed hash from %s to %s", a.name, a.hash, h)
			}
			sol.Reused[h] = true
		}
		for _, dep := range awd.deps {
			if s.params.Repo.IsVirtual(dep.name) {
				// Checked against the provider above.
				continue
			}
			if t := byName[dep.name]; t == nil || !t.SatisfiesNode(dep.c) {
				return inconsistent("%s was selected, which does not satisfy %s", dep.name, dep)
			}
		}
	}

	for k, r := range s.params.Roots {
		if !sol.Roots[k].Satisfies(r) {
			return inconsistent("%s does not satisfy the root %s: %s", sol.Roots[k].NodeString(), r, sol.Roots[k].DescribeMismatch(r))
		}
	}
	return nil
}

// verifyNode checks a concrete node against its definition.
func verifyNode(def *repo.Definition, n *spec.Spec) error {
	for _, name := range def.VariantNames() {
		v, has := n.Variants[name]
		if !has {
			return inconsistent("%s does not set variant %s", n.NodeString(), name)
		}
		if !def.Variants[name].Allows(v) {
			return inconsistent("%s sets %s, which %s does not allow", n.NodeString(), v, def.Name)
		}
	}
	for _, name := range n.Variants.Names() {
		if _, has := def.Variants[name]; !has {
			return inconsistent("%s sets undeclared variant %s", n.NodeString(), name)
		}
	}
	for _, c := range def.Conflicts {
		if c.Applies(n) {
			return inconsistent("%s matches the conflict %s", n.NodeString(), c.Spec.NodeString())
		}
	}
	return nil
}

func checkAcyclic(g *spec.Graph) error {
	const (
		visiting = iota + 1
		done
	)
	state := make(map[*spec.Spec]int)
	var visit func(n *spec.Spec) error
	visit = func(n *spec.Spec) error {
		switch state[n] {
		case visiting:
			return inconsistent("dependency cycle through %s", n.Name)
		case done:
			return nil
		}
		state[n] = visiting
		for _, d := range n.Dependencies() {
			if err := visit(d.Spec); err != nil {
				return err
			}
		}
		state[n] = done
		return nil
	}
	for _, n := range g.Nodes() {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

// separateSolver concretizes each root on its own and merges the results.
type separateSolver struct {
	params Parameters
}

func newSeparateSolver(params Parameters) *separateSolver {
	return &separateSolver{params: params}
}

func (s *separateSolver) Solve(ctx context.Context) (*Solution, error) {
	sols, err := solveAll(ctx, s.params)
	if err != nil {
		return nil, err
	}

	merged := &Solution{
		Graph:  spec.NewGraph(),
		Reused: make(map[string]bool),
	}
	for _, sol := range sols {
		// Import shares the nodes the roots agree on, by dag hash.
		r, err := merged.Graph.Import(sol.Roots[0])
		if err != nil {
			return nil, inconsistent("merging %s: %s", sol.Roots[0].Name, err)
		}
		merged.Roots = append(merged.Roots, r)
		merged.Attempts += sol.Attempts
		for h := range sol.Reused {
			merged.Reused[h] = true
		}
	}
	merged.Graph.Freeze()
	return merged, nil
}

// SolveAll concretizes every root independently and in parallel. The
// solutions are returned in root order. The first failing root, in root
// order, decides the error.
func SolveAll(ctx context.Context, params Parameters) ([]*Solution, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return solveAll(ctx, params)
}

func solveAll(ctx context.Context, params Parameters) ([]*Solution, error) {
	sols := make([]*Solution, len(params.Roots))
	errs := make([]error, len(params.Roots))

	var wg sync.WaitGroup
	for k, r := range params.Roots {
		p := params
		p.Roots = []*spec.Spec{r}
		wg.Add(1)
		go func(k int, p Parameters) {
			defer wg.Done()
			sols[k], errs[k] = newSolver(p).Solve(ctx)
		}(k, p)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return sols, nil
}
