// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spec

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrFrozen is returned when mutating a frozen graph.
var ErrFrozen = errors.New("spec graph is frozen")

type edge struct {
	child    int
	types    DepType
	virtuals []string
}

// A Graph owns a set of spec nodes and the edges between them. Nodes refer to
// each other only through indices held by the graph.
type Graph struct {
	nodes  []*Spec
	edges  [][]edge
	frozen bool
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// NewNode creates a new, unconstrained node named name in the graph.
func (g *Graph) NewNode(name string) *Spec {
	s := &Spec{Name: name}
	g.adopt(s)
	return s
}

func (g *Graph) adopt(s *Spec) {
	s.g = g
	s.id = len(g.nodes)
	g.nodes = append(g.nodes, s)
	g.edges = append(g.edges, nil)
}

// Add adopts a detached node, one not yet owned by any graph, into g.
func (g *Graph) Add(s *Spec) (*Spec, error) {
	if g.frozen {
		return nil, ErrFrozen
	}
	if s.g != nil {
		return nil, errors.Errorf("%s already belongs to a graph", s.Name)
	}
	g.adopt(s)
	return s, nil
}

// Nodes returns every node of the graph in insertion order.
func (g *Graph) Nodes() []*Spec {
	return append([]*Spec(nil), g.nodes...)
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Roots returns the nodes that nothing in the graph depends on, by name.
func (g *Graph) Roots() []*Spec {
	hasParent := make([]bool, len(g.nodes))
	for _, edges := range g.edges {
		for _, e := range edges {
			hasParent[e.child] = true
		}
	}

	var roots []*Spec
	for id, n := range g.nodes {
		if !hasParent[id] {
			roots = append(roots, n)
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		return roots[i].Name < roots[j].Name
	})
	return roots
}

// Link adds an edge from parent to child. Linking an existing edge merges the
// types and virtuals into it.
func (g *Graph) Link(parent, child *Spec, types DepType, virtuals ...string) error {
	if g.frozen {
		return ErrFrozen
	}
	if parent.g != g || child.g != g {
		return errors.Errorf("cannot link %s to %s: nodes belong to different graphs", parent.Name, child.Name)
	}
	if parent.id == child.id {
		return errors.Errorf("cannot link %s to itself", parent.Name)
	}

	for k, e := range g.edges[parent.id] {
		if e.child == child.id {
			g.edges[parent.id][k].types |= types
			g.edges[parent.id][k].virtuals = normalizeValues(append(e.virtuals, virtuals...))
			return nil
		}
	}
	g.edges[parent.id] = append(g.edges[parent.id], edge{
		child:    child.id,
		types:    types,
		virtuals: normalizeValues(virtuals),
	})
	return nil
}

// Import copies the DAG reachable from s into g and returns the copy of s.
// Concrete nodes already present in g with the same dag hash are reused
// rather than duplicated.
func (g *Graph) Import(s *Spec) (*Spec, error) {
	if g.frozen {
		return nil, ErrFrozen
	}
	return g.copyFrom(s, true)
}

func (g *Graph) copyFrom(s *Spec, dedup bool) (*Spec, error) {
	var byHash map[string]*Spec
	if dedup {
		byHash = make(map[string]*Spec)
		for _, n := range g.nodes {
			if n.Concrete() {
				if h, err := n.DAGHash(); err == nil {
					byHash[h] = n
				}
			}
		}
	}

	src := s.graph()
	mapped := make(map[int]*Spec)
	order := s.Traverse(PostOrder, Children)
	for _, n := range order {
		if dedup && n.Concrete() {
			if h, err := n.DAGHash(); err == nil {
				if existing, has := byHash[h]; has {
					mapped[n.id] = existing
					continue
				}
			}
		}

		c := n.copyNode()
		g.adopt(c)
		mapped[n.id] = c
		for _, e := range src.edges[n.id] {
			g.edges[c.id] = append(g.edges[c.id], edge{
				child:    mapped[e.child].id,
				types:    e.types,
				virtuals: append([]string(nil), e.virtuals...),
			})
		}
		if dedup && c.Concrete() {
			if h, err := c.DAGHash(); err == nil {
				byHash[h] = c
			}
		}
	}
	return mapped[s.id], nil
}

// Freeze marks the graph immutable and caches the hashes of every concrete
// node. Frozen graphs are safe for concurrent readers.
//
// The methods that mutate a node return ErrFrozen afterwards, but nothing
// guards the exported fields. Writing Versions, Variants or any other field
// of a frozen node leaves its cached hashes stale; change a Copy instead.
func (g *Graph) Freeze() {
	if g.frozen {
		return
	}
	for _, n := range g.nodes {
		if !n.Concrete() {
			continue
		}
		n.dagHash, _ = n.computeHash(false, nil)
		n.fullHash, _ = n.computeHash(true, nil)
	}
	g.frozen = true
}

// Frozen reports whether the graph has been frozen.
func (g *Graph) Frozen() bool {
	return g.frozen
}
