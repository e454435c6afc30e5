// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spec

import (
	"crypto/sha256"
	"encoding/base32"
	"strings"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// HashLen is the length of dag and full hashes.
const HashLen = 32

var hashEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// DAGHash returns the installation identity of a concrete spec: a digest of
// the canonical document of the node and, recursively, its link, run and
// test dependencies.
func (s *Spec) DAGHash() (string, error) {
	if s.dagHash != "" {
		return s.dagHash, nil
	}
	if !s.Concrete() {
		return "", &SpecNotConcreteError{Spec: s.String(), Op: "dag_hash"}
	}
	return s.computeHash(false, nil)
}

// FullHash is like DAGHash, but also covers build-only dependencies and the
// content hash of each node's package definition.
func (s *Spec) FullHash() (string, error) {
	if s.fullHash != "" {
		return s.fullHash, nil
	}
	if !s.Concrete() {
		return "", &SpecNotConcreteError{Spec: s.String(), Op: "full_hash"}
	}
	return s.computeHash(true, nil)
}

// ShortHash returns the first seven characters of the dag hash.
func (s *Spec) ShortHash() string {
	h, err := s.DAGHash()
	if err != nil {
		return ""
	}
	return h[:7]
}

func (s *Spec) computeHash(full bool, memo map[int]string) (string, error) {
	if full && s.fullHash != "" {
		return s.fullHash, nil
	}
	if !full && s.dagHash != "" {
		return s.dagHash, nil
	}
	if memo == nil {
		memo = make(map[int]string)
	}
	if h, has := memo[s.id]; has {
		return h, nil
	}
	if !s.nodeConcrete() {
		return "", &SpecNotConcreteError{Spec: s.NodeString(), Op: "hash"}
	}

	doc := s.nodeDoc()
	if full {
		doc.PackageHash = s.PackageHash
	}
	for _, d := range s.Dependencies() {
		if !full && d.Types&hashDepTypes == 0 {
			continue
		}
		h, err := d.Spec.computeHash(full, memo)
		if err != nil {
			return "", err
		}
		doc.Dependencies = append(doc.Dependencies, depDoc{
			Name:     d.Spec.Name,
			Hash:     h,
			Type:     d.Types.Names(),
			Virtuals: d.Virtuals,
		})
	}

	b, err := yaml.Marshal(doc)
	if err != nil {
		return "", errors.Wrapf(err, "failed to encode %s for hashing", s.Name)
	}
	h := digest(b)
	memo[s.id] = h
	return h, nil
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return strings.ToLower(hashEncoding.EncodeToString(sum[:]))[:HashLen]
}

// ByHash returns the concrete node of g whose dag hash is h.
func (g *Graph) ByHash(h string) (*Spec, bool) {
	for _, n := range g.nodes {
		if !n.Concrete() {
			continue
		}
		if nh, err := n.DAGHash(); err == nil && nh == h {
			return n, true
		}
	}
	return nil, false
}
