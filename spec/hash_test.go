// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spec

import (
	"strings"
	"testing"
)

func mustHashes(t *testing.T, s *Spec) (string, string) {
	t.Helper()
	h, err := s.DAGHash()
	if err != nil {
		t.Fatal(err)
	}
	fh, err := s.FullHash()
	if err != nil {
		t.Fatal(err)
	}
	return h, fh
}

func TestDAGHashDeterministic(t *testing.T) {
	h1, fh1 := mustHashes(t, mkDiamond(t, "1.0", "1.0", false))
	h2, fh2 := mustHashes(t, mkDiamond(t, "1.0", "1.0", true))

	if h1 != h2 {
		t.Errorf("dag hash depends on insertion order:\n\t%s\n\t%s", h1, h2)
	}
	if fh1 != fh2 {
		t.Errorf("full hash depends on insertion order:\n\t%s\n\t%s", fh1, fh2)
	}
	if len(h1) != HashLen {
		t.Errorf("expected a %d character hash, got %q", HashLen, h1)
	}
	if strings.Trim(h1, "abcdefghijklmnopqrstuvwxyz234567") != "" {
		t.Errorf("expected a lower case base32 hash, got %q", h1)
	}
	if h1 == fh1 {
		t.Error("expected the full hash to differ from the dag hash when build deps exist")
	}
}

func TestDAGHashIgnoresBuildOnlyDeps(t *testing.T) {
	h1, fh1 := mustHashes(t, mkDiamond(t, "1.0", "1.0", false))
	h2, fh2 := mustHashes(t, mkDiamond(t, "1.0", "2.0", false))

	if h1 != h2 {
		t.Error("changing a build-only dependency changed the dag hash")
	}
	if fh1 == fh2 {
		t.Error("changing a build-only dependency did not change the full hash")
	}
}

func TestDAGHashCoversLinkDeps(t *testing.T) {
	a1 := mkDiamond(t, "1.0", "1.0", false)
	a2 := mkDiamond(t, "1.1", "1.0", false)
	h1, _ := mustHashes(t, a1)
	h2, _ := mustHashes(t, a2)
	if h1 == h2 {
		t.Error("changing a transitive link dependency did not change the root dag hash")
	}

	e1, _ := a1.Find("e")
	e2, _ := a2.Find("e")
	if e1.ShortHash() != e2.ShortHash() {
		t.Error("identical leaves hashed differently")
	}
	if len(e1.ShortHash()) != 7 {
		t.Errorf("expected a 7 character short hash, got %q", e1.ShortHash())
	}
}

func TestPackageHashOnlyAffectsFullHash(t *testing.T) {
	a1 := mkDiamond(t, "1.0", "1.0", false)
	a2 := mkDiamond(t, "1.0", "1.0", false)
	d, _ := a2.Find("d")
	d.PackageHash = "pkghash"

	h1, fh1 := mustHashes(t, a1)
	h2, fh2 := mustHashes(t, a2)
	if h1 != h2 {
		t.Error("package hash changed the dag hash")
	}
	if fh1 == fh2 {
		t.Error("package hash did not change the full hash")
	}
}

func TestHashRequiresConcrete(t *testing.T) {
	for _, s := range []*Spec{
		MustParse("a@1.0"),
		MustParse("a@=1.0%gcc@=12" + testArch + " ^b"),
	} {
		if _, err := s.DAGHash(); err == nil {
			t.Errorf("expected an error hashing %s", s)
		} else if _, ok := err.(*SpecNotConcreteError); !ok {
			t.Errorf("expected *SpecNotConcreteError hashing %s, got %T", s, err)
		}
		if _, err := s.FullHash(); err == nil {
			t.Errorf("expected an error full-hashing %s", s)
		}
		if s.ShortHash() != "" {
			t.Errorf("expected no short hash for %s", s)
		}
	}
}

func TestByHash(t *testing.T) {
	a := mkDiamond(t, "1.0", "1.0", false)
	c, _ := a.Find("c")
	h, _ := mustHashes(t, c)

	got, has := a.Graph().ByHash(h)
	if !has || got != c {
		t.Errorf("expected ByHash to find c, got %v", got)
	}
	if _, has := a.Graph().ByHash("nope"); has {
		t.Error("expected no node for an unknown hash")
	}
}
