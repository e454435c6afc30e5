// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sprout

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"github.com/sprout-pm/sprout/solve"
	"github.com/sprout-pm/sprout/spec"
)

// LockName is the environment lock file name.
const LockName = "sprout.lock"

// LockVersion is the lock format written by this package. Readers accept any
// lock of the same major version.
const LockVersion = "1.0.0"

var lockCompat = mustConstraint(">= 1.0.0, < 2.0.0")

func mustConstraint(body string) *semver.Constraints {
	c, err := semver.NewConstraint(body)
	if err != nil {
		panic(err)
	}
	return c
}

// A Lock records the concretization of an environment's roots, with the
// digest of the inputs that produced it.
type Lock struct {
	Memo  []byte
	Roots []LockedRoot
}

// A LockedRoot pairs an abstract root with its concretization.
type LockedRoot struct {
	Abstract *spec.Spec
	Concrete *spec.Spec
}

type rawLock struct {
	Version  string          `json:"version"`
	Memo     string          `json:"memo"`
	Roots    []lockedRoot    `json:"roots"`
	Concrete json.RawMessage `json:"concrete_specs"`
}

type lockedRoot struct {
	Spec string `json:"spec"`
	Hash string `json:"hash"`
}

// NewLock builds the lock of sol, whose roots are the concretizations of
// abstract in order.
func NewLock(memo []byte, abstract []*spec.Spec, sol *solve.Solution) (*Lock, error) {
	if len(abstract) != len(sol.Roots) {
		return nil, errors.Errorf("solution has %d roots for %d abstract specs", len(sol.Roots), len(abstract))
	}
	l := &Lock{Memo: make([]byte, len(memo))}
	copy(l.Memo, memo)
	for i, a := range abstract {
		l.Roots = append(l.Roots, LockedRoot{Abstract: a, Concrete: sol.Roots[i]})
	}
	return l, nil
}

func readLock(r io.Reader) (*Lock, error) {
	rl := rawLock{}
	if err := json.NewDecoder(r).Decode(&rl); err != nil {
		return nil, errors.Wrap(err, "Unable to parse the lock as JSON")
	}

	if rl.Version == "" {
		return nil, errors.New("lock file has no format version")
	}
	v, err := semver.NewVersion(rl.Version)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid lock format version %q", rl.Version)
	}
	if !lockCompat.Check(v) {
		return nil, errors.Errorf("lock format version %s is not supported, this sprout reads %s", v, lockCompat)
	}

	b, err := hex.DecodeString(rl.Memo)
	if err != nil {
		return nil, errors.New("invalid hash digest in lock's memo field")
	}
	l := &Lock{Memo: b}
	if len(rl.Roots) == 0 {
		return l, nil
	}

	g, err := spec.DecodeJSON(rl.Concrete)
	if err != nil {
		return nil, errors.Wrap(err, "invalid concrete specs in lock")
	}
	for _, lr := range rl.Roots {
		a, err := spec.Parse(lr.Spec)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid root in lock")
		}
		c, has := g.ByHash(lr.Hash)
		if !has {
			return nil, errors.Errorf("lock root %s refers to /%s, which is not in the lock", lr.Spec, lr.Hash)
		}
		if c.Name != a.Name {
			return nil, errors.Errorf("lock root %s is concretized as %s", lr.Spec, c.Name)
		}
		l.Roots = append(l.Roots, LockedRoot{Abstract: a, Concrete: c})
	}
	return l, nil
}

// InputHash returns the digest of the inputs the lock was solved from.
func (l *Lock) InputHash() []byte {
	return l.Memo
}

// AbstractRoots returns the abstract roots, in order.
func (l *Lock) AbstractRoots() []*spec.Spec {
	out := make([]*spec.Spec, 0, len(l.Roots))
	for _, r := range l.Roots {
		out = append(out, r.Abstract)
	}
	return out
}

// Solution returns the locked DAG as a solution ready to install.
func (l *Lock) Solution() *solve.Solution {
	sol := &solve.Solution{}
	for _, r := range l.Roots {
		sol.Roots = append(sol.Roots, r.Concrete)
		if sol.Graph == nil {
			sol.Graph = r.Concrete.Graph()
		}
	}
	return sol
}

// MarshalJSON serializes this lock into JSON. Nodes shared between roots are
// written once.
func (l *Lock) MarshalJSON() ([]byte, error) {
	raw := rawLock{
		Version: LockVersion,
		Memo:    hex.EncodeToString(l.Memo),
		Roots:   make([]lockedRoot, 0, len(l.Roots)),
	}

	concrete := make([]*spec.Spec, 0, len(l.Roots))
	for _, r := range l.Roots {
		h, err := r.Concrete.DAGHash()
		if err != nil {
			return nil, err
		}
		raw.Roots = append(raw.Roots, lockedRoot{Spec: r.Abstract.String(), Hash: h})
		concrete = append(concrete, r.Concrete)
	}
	if len(concrete) > 0 {
		b, err := spec.EncodeJSON(concrete...)
		if err != nil {
			return nil, err
		}
		raw.Concrete = b
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	err := enc.Encode(raw)

	return buf.Bytes(), err
}

// locksAreEquivalent compares two locks to see if they differ. If EITHER lock
// is nil, or their memos do not match, or any roots differ, then false is
// returned.
func locksAreEquivalent(l, r *Lock) bool {
	if l == nil || r == nil {
		return false
	}
	if !bytes.Equal(l.Memo, r.Memo) {
		return false
	}
	if len(l.Roots) != len(r.Roots) {
		return false
	}
	for k, lr := range l.Roots {
		rr := r.Roots[k]
		if lr.Abstract.String() != rr.Abstract.String() {
			return false
		}
		lh, lerr := lr.Concrete.DAGHash()
		rh, rerr := rr.Concrete.DAGHash()
		if lerr != nil || rerr != nil || lh != rh {
			return false
		}
	}
	return true
}
