// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sprout

import (
	"bytes"
	"io"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/sprout-pm/sprout/solve"
	"github.com/sprout-pm/sprout/spec"
)

// ManifestName is the environment manifest file name.
const ManifestName = "sprout.toml"

// A Manifest lists the root specs of an environment.
type Manifest struct {
	Roots []*spec.Spec
	// Unify overrides the configured unify mode when set.
	Unify *solve.Unify
	// Tests includes test dependencies of the roots.
	Tests bool
}

type rawManifest struct {
	Specs []string `toml:"specs"`
	Unify string   `toml:"unify,omitempty"`
	Tests bool     `toml:"tests,omitempty"`
}

func readManifest(r io.Reader) (*Manifest, error) {
	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.Wrap(err, "Unable to read byte stream")
	}

	raw := rawManifest{}
	if err := toml.Unmarshal(buf.Bytes(), &raw); err != nil {
		return nil, errors.Wrap(err, "Unable to parse the manifest as TOML")
	}

	m := &Manifest{Tests: raw.Tests}
	for _, text := range raw.Specs {
		s, err := spec.Parse(text)
		if err != nil {
			return nil, err
		}
		if s.Anonymous() {
			return nil, errors.Errorf("manifest spec %q names no package", text)
		}
		m.Roots = append(m.Roots, s)
	}
	if raw.Unify != "" {
		u, err := solve.ParseUnify(raw.Unify)
		if err != nil {
			return nil, err
		}
		m.Unify = &u
	}
	return m, nil
}

// AddRoots appends the roots not already listed, and reports how many it
// added.
func (m *Manifest) AddRoots(roots ...*spec.Spec) int {
	have := make(map[string]bool, len(m.Roots))
	for _, r := range m.Roots {
		have[r.String()] = true
	}
	var n int
	for _, r := range roots {
		if have[r.String()] {
			continue
		}
		have[r.String()] = true
		m.Roots = append(m.Roots, r)
		n++
	}
	return n
}

// MarshalTOML serializes this manifest into TOML.
func (m *Manifest) MarshalTOML() ([]byte, error) {
	raw := rawManifest{Specs: []string{}, Tests: m.Tests}
	for _, r := range m.Roots {
		raw.Specs = append(raw.Specs, r.String())
	}
	if m.Unify != nil {
		raw.Unify = m.Unify.String()
	}
	return toml.Marshal(raw)
}
