// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spec

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/sprout-pm/sprout/version"
	yaml "gopkg.in/yaml.v2"
)

// FormatVersion is the version of the serialized spec document.
const FormatVersion = 1

type document struct {
	Spec specDoc `yaml:"spec" json:"spec"`
}

type specDoc struct {
	Meta  metaDoc   `yaml:"_meta" json:"_meta"`
	Nodes []nodeDoc `yaml:"nodes" json:"nodes"`
}

type metaDoc struct {
	Version int `yaml:"version" json:"version"`
}

// nodeDoc is the canonical form of one node. Field order is fixed by the
// struct and maps are emitted with sorted keys by both encoders.
type nodeDoc struct {
	Name         string                 `yaml:"name" json:"name"`
	Version      string                 `yaml:"version" json:"version"`
	Arch         archDoc                `yaml:"arch" json:"arch"`
	Compiler     compilerDoc            `yaml:"compiler" json:"compiler"`
	Parameters   map[string]interface{} `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	PackageHash  string                 `yaml:"package_hash,omitempty" json:"package_hash,omitempty"`
	Dependencies []depDoc               `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Hash         string                 `yaml:"hash,omitempty" json:"hash,omitempty"`
	FullHash     string                 `yaml:"full_hash,omitempty" json:"full_hash,omitempty"`
}

type archDoc struct {
	Platform string `yaml:"platform" json:"platform"`
	OS       string `yaml:"platform_os" json:"platform_os"`
	Target   string `yaml:"target" json:"target"`
}

type compilerDoc struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
}

type depDoc struct {
	Name     string   `yaml:"name" json:"name"`
	Hash     string   `yaml:"hash" json:"hash"`
	Type     []string `yaml:"type" json:"type"`
	Virtuals []string `yaml:"virtuals,omitempty" json:"virtuals,omitempty"`
}

// nodeDoc returns the document of the node alone, without dependencies or
// hashes. The node must be concrete.
func (s *Spec) nodeDoc() nodeDoc {
	v, _ := s.Versions.Concrete()
	cv, _ := s.Compiler.Versions.Concrete()
	doc := nodeDoc{
		Name:    s.Name,
		Version: v.String(),
		Arch: archDoc{
			Platform: s.Arch.Platform,
			OS:       s.Arch.OS,
			Target:   s.Arch.Target,
		},
		Compiler: compilerDoc{
			Name:    s.Compiler.Name,
			Version: cv.String(),
		},
	}
	if len(s.Variants) > 0 {
		doc.Parameters = make(map[string]interface{}, len(s.Variants))
		for n, vv := range s.Variants {
			if vv.Multi {
				doc.Parameters[n] = append([]string(nil), vv.Values...)
			} else {
				doc.Parameters[n] = vv.Value()
			}
		}
	}
	return doc
}

// encode builds the document for the DAGs reachable from roots. Nodes shared
// between roots are emitted once.
func encode(roots []*Spec) (document, error) {
	doc := document{Spec: specDoc{Meta: metaDoc{Version: FormatVersion}}}
	seen := make(map[string]bool)
	for _, r := range roots {
		if !r.Concrete() {
			return document{}, &SpecNotConcreteError{Spec: r.String(), Op: "serialize"}
		}
		for _, n := range r.Traverse(PreOrder, Children) {
			h, err := n.DAGHash()
			if err != nil {
				return document{}, err
			}
			if seen[h] {
				continue
			}
			seen[h] = true

			fh, err := n.FullHash()
			if err != nil {
				return document{}, err
			}
			nd := n.nodeDoc()
			nd.PackageHash = n.PackageHash
			nd.Hash, nd.FullHash = h, fh
			for _, d := range n.Dependencies() {
				ch, err := d.Spec.DAGHash()
				if err != nil {
					return document{}, err
				}
				nd.Dependencies = append(nd.Dependencies, depDoc{
					Name:     d.Spec.Name,
					Hash:     ch,
					Type:     d.Types.Names(),
					Virtuals: d.Virtuals,
				})
			}
			doc.Spec.Nodes = append(doc.Spec.Nodes, nd)
		}
	}
	return doc, nil
}

// ToYAML serializes the concrete DAG rooted at s.
func (s *Spec) ToYAML() ([]byte, error) {
	return EncodeYAML(s)
}

// ToJSON serializes the concrete DAG rooted at s.
func (s *Spec) ToJSON() ([]byte, error) {
	return EncodeJSON(s)
}

// EncodeYAML serializes the concrete DAGs rooted at roots into one document.
func EncodeYAML(roots ...*Spec) ([]byte, error) {
	doc, err := encode(roots)
	if err != nil {
		return nil, err
	}
	b, err := yaml.Marshal(doc)
	return b, errors.Wrap(err, "failed to encode spec as yaml")
}

// EncodeJSON serializes the concrete DAGs rooted at roots into one document.
func EncodeJSON(roots ...*Spec) ([]byte, error) {
	doc, err := encode(roots)
	if err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	return b, errors.Wrap(err, "failed to encode spec as json")
}

// FromYAML decodes a document written by ToYAML and returns its first node.
func FromYAML(b []byte) (*Spec, error) {
	g, err := DecodeYAML(b)
	if err != nil {
		return nil, err
	}
	return g.nodes[0], nil
}

// FromJSON decodes a document written by ToJSON and returns its first node.
func FromJSON(b []byte) (*Spec, error) {
	g, err := DecodeJSON(b)
	if err != nil {
		return nil, err
	}
	return g.nodes[0], nil
}

// DecodeYAML decodes a serialized document into a frozen graph. Use ByHash to
// find nodes in it.
func DecodeYAML(b []byte) (*Graph, error) {
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse spec yaml")
	}
	return decode(doc)
}

// DecodeJSON decodes a serialized document into a frozen graph.
func DecodeJSON(b []byte) (*Graph, error) {
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse spec json")
	}
	return decode(doc)
}

func decode(doc document) (*Graph, error) {
	if doc.Spec.Meta.Version != FormatVersion {
		return nil, errors.Errorf("unsupported spec document version %d", doc.Spec.Meta.Version)
	}
	if len(doc.Spec.Nodes) == 0 {
		return nil, errors.New("spec document has no nodes")
	}

	g := NewGraph()
	byHash := make(map[string]*Spec, len(doc.Spec.Nodes))
	for _, nd := range doc.Spec.Nodes {
		n, err := nodeFromDoc(g, nd)
		if err != nil {
			return nil, err
		}
		if nd.Hash == "" {
			return nil, errors.Errorf("node %s has no hash", nd.Name)
		}
		byHash[nd.Hash] = n
	}

	for _, nd := range doc.Spec.Nodes {
		parent := byHash[nd.Hash]
		for _, dd := range nd.Dependencies {
			child, has := byHash[dd.Hash]
			if !has {
				return nil, errors.Errorf("%s depends on %s/%s, which is not in the document", nd.Name, dd.Name, dd.Hash)
			}
			types, err := ParseDepTypes(dd.Type)
			if err != nil {
				return nil, err
			}
			if err := g.Link(parent, child, types, dd.Virtuals...); err != nil {
				return nil, err
			}
		}
	}

	g.Freeze()
	for _, nd := range doc.Spec.Nodes {
		n := byHash[nd.Hash]
		if h, _ := n.DAGHash(); h != nd.Hash {
			return nil, errors.Errorf("hash mismatch for %s: document says %s, content hashes to %s", nd.Name, nd.Hash, h)
		}
		if nd.FullHash != "" {
			if fh, _ := n.FullHash(); fh != nd.FullHash {
				return nil, errors.Errorf("full hash mismatch for %s: document says %s, content hashes to %s", nd.Name, nd.FullHash, fh)
			}
		}
	}
	return g, nil
}

func nodeFromDoc(g *Graph, nd nodeDoc) (*Spec, error) {
	v, err := version.NewVersion(nd.Version)
	if err != nil {
		return nil, errors.Wrapf(err, "bad version for %s", nd.Name)
	}
	cv, err := version.NewVersion(nd.Compiler.Version)
	if err != nil {
		return nil, errors.Wrapf(err, "bad compiler version for %s", nd.Name)
	}

	n := g.NewNode(nd.Name)
	n.Versions = version.ExactSet(v)
	n.Compiler = CompilerSpec{Name: nd.Compiler.Name, Versions: version.ExactSet(cv)}
	n.Arch = ArchSpec{Platform: nd.Arch.Platform, OS: nd.Arch.OS, Target: nd.Arch.Target}
	n.PackageHash = nd.PackageHash

	names := make([]string, 0, len(nd.Parameters))
	for name := range nd.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		n.Variants = make(VariantMap, len(names))
	}
	for _, name := range names {
		switch val := nd.Parameters[name].(type) {
		case []interface{}:
			values := make([]string, len(val))
			for k, x := range val {
				values[k] = fmt.Sprint(x)
			}
			n.Variants.Set(NewVariant(name, true, values...))
		case nil:
			return nil, errors.Errorf("variant %s of %s has no value", name, nd.Name)
		default:
			n.Variants.Set(NewVariant(name, false, fmt.Sprint(val)))
		}
	}
	return n, nil
}
