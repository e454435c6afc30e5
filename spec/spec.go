// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spec implements the spec data model: a possibly partial description
// of a package build (name, version constraint, variants, compiler,
// architecture) together with its dependency DAG.
//
// Every Spec belongs to a Graph. Edges between nodes are stored in the graph
// as indices, so a Spec never holds pointers to its parents; dependents are
// answered by scanning the graph that owns the node.
//
// An abstract spec is what a user writes: "mpileaks@1.0:2.0+debug%gcc@10
// ^mpich@3:". Its "^" dependencies are untyped edges meaning "somewhere in the
// DAG". A concrete spec has a single value for every field of every node and
// only typed edges; once a concrete graph is frozen it is hashed and treated
// as immutable.
package spec

import (
	"sort"
	"strings"

	"github.com/sprout-pm/sprout/version"
)

// DepType is a bit set describing why a dependency is needed.
type DepType uint8

// Dependency types.
const (
	Build DepType = 1 << iota
	Link
	Run
	Test
)

// DefaultDepTypes is the type set used for dependencies declared without an
// explicit type.
const DefaultDepTypes = Build | Link

// AllDepTypes covers every dependency type.
const AllDepTypes = Build | Link | Run | Test

// hashDepTypes are the dependency types that contribute to the DAG hash.
const hashDepTypes = Link | Run | Test

var depTypeNames = []struct {
	t    DepType
	name string
}{
	{Build, "build"},
	{Link, "link"},
	{Run, "run"},
	{Test, "test"},
}

// Names returns the names of the types in t, in canonical order.
func (t DepType) Names() []string {
	var names []string
	for _, dt := range depTypeNames {
		if t&dt.t != 0 {
			names = append(names, dt.name)
		}
	}
	return names
}

func (t DepType) String() string {
	if t == 0 {
		return "none"
	}
	return strings.Join(t.Names(), ",")
}

// ParseDepTypes converts a list of type names into a DepType.
func ParseDepTypes(names []string) (DepType, error) {
	var t DepType
	for _, n := range names {
		found := false
		for _, dt := range depTypeNames {
			if dt.name == n {
				t |= dt.t
				found = true
				break
			}
		}
		if !found {
			return 0, &ParseError{Text: n, Msg: "unknown dependency type"}
		}
	}
	return t, nil
}

// A VariantValue holds the allowed or chosen values of one variant. Boolean
// variants hold "true" or "false". Values are kept sorted and unique.
type VariantValue struct {
	Name   string
	Values []string
	Multi  bool
}

// NewVariant returns a VariantValue with normalized values.
func NewVariant(name string, multi bool, values ...string) VariantValue {
	return VariantValue{Name: name, Values: normalizeValues(values), Multi: multi}
}

// BoolVariant returns a boolean VariantValue.
func BoolVariant(name string, on bool) VariantValue {
	if on {
		return VariantValue{Name: name, Values: []string{"true"}}
	}
	return VariantValue{Name: name, Values: []string{"false"}}
}

// IsBool reports whether the variant holds a single boolean value.
func (v VariantValue) IsBool() bool {
	return !v.Multi && len(v.Values) == 1 && (v.Values[0] == "true" || v.Values[0] == "false")
}

// Value returns the single value of the variant, or the comma-joined values
// of a multi-valued one.
func (v VariantValue) Value() string {
	return strings.Join(v.Values, ",")
}

// Has reports whether val is among the variant's values.
func (v VariantValue) Has(val string) bool {
	k := sort.SearchStrings(v.Values, val)
	return k < len(v.Values) && v.Values[k] == val
}

func (v VariantValue) String() string {
	if v.IsBool() {
		if v.Values[0] == "true" {
			return "+" + v.Name
		}
		return "~" + v.Name
	}
	return v.Name + "=" + v.Value()
}

func (v VariantValue) equal(o VariantValue) bool {
	if v.Multi != o.Multi || len(v.Values) != len(o.Values) {
		return false
	}
	for k := range v.Values {
		if v.Values[k] != o.Values[k] {
			return false
		}
	}
	return true
}

func normalizeValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := append([]string(nil), values...)
	sort.Strings(out)
	j := 0
	for i := 1; i < len(out); i++ {
		if out[i] != out[j] {
			j++
			out[j] = out[i]
		}
	}
	return out[:j+1]
}

// VariantMap maps variant names to their values.
type VariantMap map[string]VariantValue

// Names returns the variant names in sorted order.
func (m VariantMap) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Set stores v under its name.
func (m VariantMap) Set(v VariantValue) {
	m[v.Name] = v
}

func (m VariantMap) copy() VariantMap {
	if m == nil {
		return nil
	}
	out := make(VariantMap, len(m))
	for n, v := range m {
		v.Values = append([]string(nil), v.Values...)
		out[n] = v
	}
	return out
}

// CompilerSpec names a compiler and constrains its version. An empty Name
// leaves the compiler unconstrained.
type CompilerSpec struct {
	Name     string
	Versions version.Set
}

// IsZero reports whether the compiler is unconstrained.
func (c CompilerSpec) IsZero() bool {
	return c.Name == "" && c.Versions.IsAny()
}

// Concrete reports whether the compiler is a single named version.
func (c CompilerSpec) Concrete() bool {
	_, ok := c.Versions.Concrete()
	return c.Name != "" && ok
}

func (c CompilerSpec) String() string {
	if c.Name == "" {
		return ""
	}
	if c.Versions.IsAny() {
		return "%" + c.Name
	}
	return "%" + c.Name + "@" + c.Versions.String()
}

// ArchSpec is a platform/os/target triple. Empty fields are unconstrained.
type ArchSpec struct {
	Platform string
	OS       string
	Target   string
}

// IsZero reports whether no field of the architecture is constrained.
func (a ArchSpec) IsZero() bool {
	return a == ArchSpec{}
}

// Concrete reports whether every field of the architecture is set.
func (a ArchSpec) Concrete() bool {
	return a.Platform != "" && a.OS != "" && a.Target != ""
}

// String renders the triple as "platform-os-target" when concrete.
func (a ArchSpec) String() string {
	if a.Concrete() {
		return a.Platform + "-" + a.OS + "-" + a.Target
	}
	var parts []string
	if a.Platform != "" {
		parts = append(parts, "platform="+a.Platform)
	}
	if a.OS != "" {
		parts = append(parts, "os="+a.OS)
	}
	if a.Target != "" {
		parts = append(parts, "target="+a.Target)
	}
	return strings.Join(parts, " ")
}

// ParseArch parses "platform-os-target". The os may itself contain dashes.
func ParseArch(body string) (ArchSpec, error) {
	parts := strings.Split(body, "-")
	if len(parts) < 3 {
		return ArchSpec{}, &ParseError{Text: body, Msg: "architecture must be platform-os-target"}
	}
	return ArchSpec{
		Platform: parts[0],
		OS:       strings.Join(parts[1:len(parts)-1], "-"),
		Target:   parts[len(parts)-1],
	}, nil
}

// Spec is one node of a spec DAG.
//
// The exported fields describe the node itself. Edges are owned by the Graph
// the node belongs to; use AddDependency, Dependencies and Dependents to work
// with them. The fields of a node in a frozen graph are read-only.
type Spec struct {
	// Name is the package name; it is empty for anonymous specs, which appear
	// as conditions ("+debug@1.0:").
	Name     string
	Versions version.Set
	Variants VariantMap
	Compiler CompilerSpec
	Arch     ArchSpec

	// Hash is a dag hash prefix pin ("/abc12") on an abstract spec.
	Hash string

	// PackageHash is the content hash of the package definition the node was
	// concretized from. It contributes to FullHash only.
	PackageHash string

	g  *Graph
	id int

	dagHash, fullHash string
}

// New returns an unconstrained spec for name in a graph of its own.
func New(name string) *Spec {
	return NewGraph().NewNode(name)
}

// graph returns the graph owning s, adopting s into a new graph if it was
// built as a bare literal.
func (s *Spec) graph() *Graph {
	if s.g == nil {
		g := NewGraph()
		g.adopt(s)
	}
	return s.g
}

// Graph returns the graph owning s.
func (s *Spec) Graph() *Graph {
	return s.graph()
}

// Anonymous reports whether the spec has no package name.
func (s *Spec) Anonymous() bool {
	return s.Name == ""
}

// Version returns the concrete version of the node, if it has one.
func (s *Spec) Version() (version.Version, bool) {
	return s.Versions.Concrete()
}

// Variant returns the named variant value.
func (s *Spec) Variant(name string) (VariantValue, bool) {
	v, has := s.Variants[name]
	return v, has
}

// SetVariant sets a variant value on the node.
func (s *Spec) SetVariant(v VariantValue) error {
	if s.graph().frozen {
		return ErrFrozen
	}
	if s.Variants == nil {
		s.Variants = make(VariantMap)
	}
	s.Variants.Set(v)
	return nil
}

// MarkMulti flags the named variant of s as multi-valued, if s sets it.
// Constraints on a multi-valued variant accumulate values instead of
// excluding each other.
func (s *Spec) MarkMulti(name string) error {
	v, has := s.Variants[name]
	if !has || v.Multi {
		return nil
	}
	if s.graph().frozen {
		return ErrFrozen
	}
	v.Multi = true
	s.Variants[name] = v
	return nil
}

// Dependency describes one outgoing edge of a node.
type Dependency struct {
	Spec     *Spec
	Types    DepType
	Virtuals []string
}

// Dependencies returns the direct dependencies of s ordered by name.
func (s *Spec) Dependencies() []Dependency {
	g := s.graph()
	out := make([]Dependency, 0, len(g.edges[s.id]))
	for _, e := range g.edges[s.id] {
		out = append(out, Dependency{
			Spec:     g.nodes[e.child],
			Types:    e.types,
			Virtuals: append([]string(nil), e.virtuals...),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Spec.Name < out[j].Spec.Name
	})
	return out
}

// DependenciesOfType returns the direct dependencies of s reached through an
// edge with at least one of the given types.
func (s *Spec) DependenciesOfType(types DepType) []*Spec {
	var out []*Spec
	for _, d := range s.Dependencies() {
		if d.Types&types != 0 {
			out = append(out, d.Spec)
		}
	}
	return out
}

// Dependency returns the direct dependency named name.
func (s *Spec) Dependency(name string) (*Spec, bool) {
	g := s.graph()
	for _, e := range g.edges[s.id] {
		if c := g.nodes[e.child]; c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Dependents returns the nodes in the owning graph with an edge to s, ordered
// by name.
func (s *Spec) Dependents() []Dependency {
	g := s.graph()
	var out []Dependency
	for pid, edges := range g.edges {
		for _, e := range edges {
			if e.child == s.id {
				out = append(out, Dependency{
					Spec:     g.nodes[pid],
					Types:    e.types,
					Virtuals: append([]string(nil), e.virtuals...),
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Spec.Name < out[j].Spec.Name
	})
	return out
}

// AddDependency adds an edge from s to dep. If dep belongs to another graph,
// its reachable DAG is imported into the graph of s first; the returned spec
// is the node that now lives in s's graph.
func (s *Spec) AddDependency(dep *Spec, types DepType, virtuals ...string) (*Spec, error) {
	g := s.graph()
	if g.frozen {
		return nil, ErrFrozen
	}
	if dep.graph() != g {
		var err error
		if dep, err = g.Import(dep); err != nil {
			return nil, err
		}
	}
	return dep, g.Link(s, dep, types, virtuals...)
}

// Find searches the DAG reachable from s for a node named name.
func (s *Spec) Find(name string) (*Spec, bool) {
	for _, n := range s.Traverse(PreOrder, Children) {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

// FindProvider searches the DAG reachable from s for a node that was linked
// as the provider of virtual.
func (s *Spec) FindProvider(virtual string) (*Spec, bool) {
	g := s.graph()
	for _, n := range s.Traverse(PreOrder, Children) {
		for _, e := range g.edges[n.id] {
			for _, v := range e.virtuals {
				if v == virtual {
					return g.nodes[e.child], true
				}
			}
		}
	}
	return nil, false
}

// nodeConcrete reports whether every field of the node itself holds a single
// value.
func (s *Spec) nodeConcrete() bool {
	if s.Name == "" || s.Hash != "" {
		return false
	}
	if _, ok := s.Versions.Concrete(); !ok {
		return false
	}
	if !s.Compiler.Concrete() || !s.Arch.Concrete() {
		return false
	}
	for _, v := range s.Variants {
		if len(v.Values) == 0 || (!v.Multi && len(v.Values) != 1) {
			return false
		}
	}
	for _, e := range s.graph().edges[s.id] {
		if e.types == 0 {
			return false
		}
	}
	return true
}

// Concrete reports whether every node reachable from s is concrete.
func (s *Spec) Concrete() bool {
	for _, n := range s.Traverse(PreOrder, Children) {
		if !n.nodeConcrete() {
			return false
		}
	}
	return true
}

// Copy returns a deep, unfrozen copy of the DAG reachable from s, in a new
// graph.
func (s *Spec) Copy() *Spec {
	g := NewGraph()
	// Import only fails on a frozen destination.
	c, _ := g.copyFrom(s, false)
	return c
}

func (s *Spec) copyNode() *Spec {
	return &Spec{
		Name:        s.Name,
		Versions:    s.Versions,
		Variants:    s.Variants.copy(),
		Compiler:    s.Compiler,
		Arch:        s.Arch,
		Hash:        s.Hash,
		PackageHash: s.PackageHash,
	}
}

// NodeString renders the node alone, without dependencies.
func (s *Spec) NodeString() string {
	var buf strings.Builder
	buf.WriteString(s.Name)
	if !s.Versions.IsAny() {
		buf.WriteString("@")
		buf.WriteString(s.Versions.String())
	}

	var kv []string
	for _, n := range s.Variants.Names() {
		v := s.Variants[n]
		if v.IsBool() {
			buf.WriteString(v.String())
		} else {
			kv = append(kv, v.String())
		}
	}
	buf.WriteString(s.Compiler.String())
	for _, p := range kv {
		buf.WriteString(" ")
		buf.WriteString(p)
	}
	if !s.Arch.IsZero() {
		if s.Arch.Concrete() {
			buf.WriteString(" arch=")
		} else {
			buf.WriteString(" ")
		}
		buf.WriteString(s.Arch.String())
	}
	if s.Hash != "" {
		buf.WriteString(" /")
		buf.WriteString(s.Hash)
	}
	return strings.TrimPrefix(buf.String(), " ")
}

// String renders s and every other node of its DAG as "^" dependencies in
// name order. The result parses back into an equivalent abstract spec.
func (s *Spec) String() string {
	nodes := s.Traverse(PreOrder, Children)
	rest := append([]*Spec(nil), nodes[1:]...)
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].Name < rest[j].Name
	})

	parts := []string{s.NodeString()}
	for _, n := range rest {
		parts = append(parts, "^"+n.NodeString())
	}
	return strings.Join(parts, " ")
}

// Tree renders the DAG reachable from s as an indented tree, each node once.
func (s *Spec) Tree() string {
	var buf strings.Builder
	seen := make(map[int]bool)

	var walk func(n *Spec, depth int)
	walk = func(n *Spec, depth int) {
		buf.WriteString(strings.Repeat("    ", depth))
		if depth > 0 {
			buf.WriteString("^")
		}
		buf.WriteString(n.NodeString())
		buf.WriteString("\n")
		if seen[n.id] {
			return
		}
		seen[n.id] = true
		for _, d := range n.Dependencies() {
			if !seen[d.Spec.id] {
				walk(d.Spec, depth+1)
			}
		}
	}
	walk(s, 0)
	return buf.String()
}

// Equal reports whether s and o describe the same DAG: equal node fields and
// equal edges, compared by package name.
func (s *Spec) Equal(o *Spec) bool {
	return s.canonical() == o.canonical()
}

func (s *Spec) canonical() string {
	nodes := s.Traverse(PreOrder, Children)
	lines := make([]string, 0, len(nodes))
	for _, n := range nodes {
		line := n.NodeString() + " #" + n.PackageHash
		for _, d := range n.Dependencies() {
			line += " ->" + d.Spec.Name + ":" + d.Types.String() + ":" + strings.Join(d.Virtuals, ",")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
