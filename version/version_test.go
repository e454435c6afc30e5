// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package version

import (
	"math/rand"
	"reflect"
	"testing"
)

func TestNewVersionErrors(t *testing.T) {
	for _, body := range []string{"", "1.0+x", "...", "1 2", "1.0/2"} {
		if _, err := NewVersion(body); err == nil {
			t.Errorf("expected error parsing %q", body)
		}
	}
}

func TestVersionOrdering(t *testing.T) {
	// Every entry sorts strictly before the following one.
	ordered := []string{
		"0.9",
		"1.0.dev1",
		"1.0alpha",
		"1.0alpha2",
		"1.0beta2",
		"1.0pre",
		"1.0rc1",
		"1.0rc2",
		"1.0",
		"1.0a",
		"1.0.1",
		"1.1",
		"1.1.1",
		"1.1.1k",
		"1.2",
		"1.10",
		"2",
		"10.0",
		"20231001",
		"stable",
		"trunk",
		"head",
		"master",
		"main",
		"develop",
	}

	for i := 0; i < len(ordered); i++ {
		for j := 0; j < len(ordered); j++ {
			a, b := MustVersion(ordered[i]), MustVersion(ordered[j])
			want := compareInt(i, j)
			if got := Compare(a, b); got != want {
				t.Errorf("Compare(%s, %s) = %d, want %d", a, b, got, want)
			}
		}
	}
}

func TestVersionEquivalence(t *testing.T) {
	for _, pair := range [][2]string{
		{"1.0", "1-0"},
		{"1.0", "1_0"},
		{"1.02", "1.2"},
		{"2.0RC1", "2.0rc1"},
	} {
		a, b := MustVersion(pair[0]), MustVersion(pair[1])
		if !a.Equal(b) {
			t.Errorf("expected %s to equal %s", a, b)
		}
		if a.String() != pair[0] {
			t.Errorf("expected String() to keep original text %q, got %q", pair[0], a.String())
		}
	}
}

func TestVersionPredicates(t *testing.T) {
	if !MustVersion("develop").IsInfinity() {
		t.Error("develop should be an infinity version")
	}
	if MustVersion("1.0").IsInfinity() {
		t.Error("1.0 should not be an infinity version")
	}
	if !MustVersion("2.0rc1").IsPrerelease() {
		t.Error("2.0rc1 should be a pre-release")
	}
	if MustVersion("2.0").IsPrerelease() {
		t.Error("2.0 should not be a pre-release")
	}
	if !MustVersion("1.4").IsPrefixOf(MustVersion("1.4.2")) {
		t.Error("1.4 should be a prefix of 1.4.2")
	}
	if MustVersion("1.4.2").IsPrefixOf(MustVersion("1.4")) {
		t.Error("1.4.2 should not be a prefix of 1.4")
	}
	if MustVersion("1.4").IsPrefixOf(MustVersion("1.40")) {
		t.Error("1.4 should not be a prefix of 1.40")
	}
	if !(Version{}).IsZero() {
		t.Error("zero Version should report IsZero")
	}
}

func TestSortVersions(t *testing.T) {
	want := []string{"develop", "2.0", "1.10", "1.2", "1.2rc1", "1.0"}

	vl := make([]Version, len(want))
	for k, body := range want {
		vl[k] = MustVersion(body)
	}
	rand.New(rand.NewSource(7)).Shuffle(len(vl), func(i, j int) {
		vl[i], vl[j] = vl[j], vl[i]
	})

	SortNewestFirst(vl)
	got := make([]string, len(vl))
	for k, v := range vl {
		got[k] = v.String()
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortNewestFirst:\n\t(GOT): %v\n\t(WNT): %v", got, want)
	}

	SortOldestFirst(vl)
	if vl[0].String() != "1.0" || vl[len(vl)-1].String() != "develop" {
		t.Errorf("SortOldestFirst produced unexpected order: %v", vl)
	}
}
