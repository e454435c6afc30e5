// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spec

import "sort"

// Order selects whether a node is visited before or after its neighbours.
type Order uint8

// Traversal orders.
const (
	PreOrder Order = iota
	PostOrder
)

// Direction selects which edges a traversal follows.
type Direction uint8

// Traversal directions.
const (
	Children Direction = iota
	Parents
)

// Traverse visits every node reachable from s exactly once. Neighbours are
// visited in name order, so the sequence is the same for any two logically
// identical DAGs.
func (s *Spec) Traverse(order Order, dir Direction) []*Spec {
	return s.TraverseTypes(order, dir, AllDepTypes)
}

// TraverseTypes is like Traverse, but only follows edges carrying at least one
// of the given types. Untyped edges, the "^" constraints of abstract specs, are
// always followed.
func (s *Spec) TraverseTypes(order Order, dir Direction, types DepType) []*Spec {
	g := s.graph()
	seen := make(map[int]bool, len(g.nodes))
	var out []*Spec

	var visit func(n *Spec)
	visit = func(n *Spec) {
		if seen[n.id] {
			return
		}
		seen[n.id] = true
		if order == PreOrder {
			out = append(out, n)
		}
		for _, next := range g.neighbours(n, dir, types) {
			visit(next)
		}
		if order == PostOrder {
			out = append(out, n)
		}
	}
	visit(s)
	return out
}

func (g *Graph) neighbours(n *Spec, dir Direction, types DepType) []*Spec {
	var out []*Spec
	follow := func(t DepType) bool {
		return t == 0 || t&types != 0
	}

	switch dir {
	case Children:
		for _, e := range g.edges[n.id] {
			if follow(e.types) {
				out = append(out, g.nodes[e.child])
			}
		}
	case Parents:
		for pid, edges := range g.edges {
			for _, e := range edges {
				if e.child == n.id && follow(e.types) {
					out = append(out, g.nodes[pid])
				}
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
