// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sprout

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/sprout-pm/sprout/solve"
	"github.com/sprout-pm/sprout/spec"
)

func rootStrings(m *Manifest) []string {
	var out []string
	for _, r := range m.Roots {
		out = append(out, r.String())
	}
	return out
}

func TestReadManifest(t *testing.T) {
	m, err := readManifest(strings.NewReader(`
specs = ["app@1.0 ^zlib@1.3", "tool+debug"]
unify = "separate"
tests = true
`))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if want := []string{"app@1.0 ^zlib@1.3", "tool+debug"}; !reflect.DeepEqual(rootStrings(m), want) {
		t.Errorf("unexpected roots:\n\t(GOT): %v\n\t(WNT): %v", rootStrings(m), want)
	}
	if m.Unify == nil || *m.Unify != solve.Separate || !m.Tests {
		t.Errorf("unexpected settings %+v", m)
	}

	m, err = readManifest(strings.NewReader(`specs = []`))
	if err != nil {
		t.Fatal(err)
	}
	if m.Unify != nil || len(m.Roots) != 0 {
		t.Errorf("expected an empty manifest, got %+v", m)
	}
}

func TestReadManifestErrors(t *testing.T) {
	for _, body := range []string{
		`specs = ["app@2:1"]`,
		`specs = ["+debug"]`,
		`unify = "loose"`,
		`specs = "app"`,
	} {
		if _, err := readManifest(strings.NewReader(body)); err == nil {
			t.Errorf("expected an error for %s", body)
		}
	}
}

func TestManifestAddRoots(t *testing.T) {
	m := &Manifest{Roots: []*spec.Spec{spec.MustParse("app@1.0")}}
	n := m.AddRoots(spec.MustParse("app@1.0"), spec.MustParse("tool"), spec.MustParse("tool"))
	if n != 1 {
		t.Errorf("expected one new root, got %d", n)
	}
	if want := []string{"app@1.0", "tool"}; !reflect.DeepEqual(rootStrings(m), want) {
		t.Errorf("unexpected roots:\n\t(GOT): %v\n\t(WNT): %v", rootStrings(m), want)
	}
}

func TestManifestMarshalRoundTrip(t *testing.T) {
	u := solve.Separate
	m := &Manifest{
		Roots: []*spec.Spec{spec.MustParse("app@1: ^zlib@1.2"), spec.MustParse("tool %clang")},
		Unify: &u,
	}
	b, err := m.MarshalTOML()
	if err != nil {
		t.Fatal(err)
	}
	m2, err := readManifest(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("reading back %s: %s", b, err)
	}
	if !reflect.DeepEqual(rootStrings(m), rootStrings(m2)) {
		t.Errorf("roots changed through a round trip:\n\t(GOT): %v\n\t(WNT): %v", rootStrings(m2), rootStrings(m))
	}
	if m2.Unify == nil || *m2.Unify != solve.Separate {
		t.Error("unify setting lost through a round trip")
	}
}
