// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package spec

import (
	"reflect"
	"sort"
	"testing"
)

func TestConstrain(t *testing.T) {
	cases := []struct {
		a, b, want string
	}{
		{"a@1.0:2.0+debug", "a@1.5:3.0%gcc", "a@1.5:2.0+debug%gcc"},
		{"a", "@1.0:~shared", "a@1.0:~shared"},
		{"a flavor=x", "a flavor=x,y", "a flavor=x,y"},
		{"a ^b@1:", "a ^b@:2 ^c", "a ^b@1:2 ^c"},
		{"a%gcc", "a%gcc@12:", "a%gcc@12:"},
		{"a platform=linux", "a os=ubuntu22.04 target=x86_64", "a arch=linux-ubuntu22.04-x86_64"},
		{"a /abc", "a /abcdef", "a /abcdef"},
	}

	for _, c := range cases {
		a, b := MustParse(c.a), MustParse(c.b)
		got, err := a.Constrain(b)
		if err != nil {
			t.Errorf("%s ∩ %s: unexpected error: %s", c.a, c.b, err)
			continue
		}
		if got.String() != c.want {
			t.Errorf("%s ∩ %s:\n\t(GOT): %s\n\t(WNT): %s", c.a, c.b, got, c.want)
		}
		if a.String() != MustParse(c.a).String() {
			t.Errorf("%s ∩ %s modified the receiver: %s", c.a, c.b, a)
		}
	}
}

func TestConstrainIdempotent(t *testing.T) {
	for _, s := range []*Spec{
		MustParse("mpileaks@1.0:2.0+debug%gcc@10 flavor=a,b ^mpich@3:"),
		mkDiamond(t, "1.0", "1.0", false),
	} {
		got, err := s.Constrain(s)
		if err != nil {
			t.Errorf("%s ∩ itself: unexpected error: %s", s, err)
			continue
		}
		if !got.Equal(s) {
			t.Errorf("constraining with itself changed the spec:\n\t(GOT): %s\n\t(WNT): %s", got, s)
		}
	}
}

func TestConstrainUnsatisfiable(t *testing.T) {
	cases := []struct {
		a, b      string
		conflicts []string
	}{
		{"a@:1.0", "a@2.0:", []string{"a@2.0:", "a@:1.0"}},
		{"a+debug", "a~debug", []string{"a+debug", "a~debug"}},
		{"a flavor=x", "a flavor=y", []string{"a flavor=x", "a flavor=y"}},
		{"a%gcc", "a%clang", []string{"a%clang", "a%gcc"}},
		{"a target=x86_64", "a target=aarch64", []string{"a target=aarch64", "a target=x86_64"}},
		{"a", "b", []string{"a", "b"}},
		{"a ^b@1", "a ^b@2", []string{"b@1", "b@2"}},
		{"a /abc", "a /abd", []string{"a /abc", "a /abd"}},
	}

	for _, c := range cases {
		_, err := MustParse(c.a).Constrain(MustParse(c.b))
		if err == nil {
			t.Errorf("%s ∩ %s: expected an error", c.a, c.b)
			continue
		}
		uerr, ok := err.(*UnsatisfiableSpecError)
		if !ok {
			t.Errorf("%s ∩ %s: expected *UnsatisfiableSpecError, got %T: %s", c.a, c.b, err, err)
			continue
		}

		var got []string
		for _, cf := range uerr.Conflicts {
			got = append(got, cf.String())
		}
		sort.Strings(got)
		if !reflect.DeepEqual(got, c.conflicts) {
			t.Errorf("%s ∩ %s conflicts:\n\t(GOT): %v\n\t(WNT): %v", c.a, c.b, got, c.conflicts)
		}
	}
}

func TestUnsatisfiableErrorMessage(t *testing.T) {
	_, err := MustParse("a@:1.0").Constrain(MustParse("a@2.0:"))
	want := "version of a cannot be satisfied:\n\ta@:1.0\n\ta@2.0:"
	if err == nil || err.Error() != want {
		t.Errorf("Error mismatch:\n\t(GOT): %v\n\t(WNT): %s", err, want)
	}

	one := &UnsatisfiableSpecError{
		Reason:    "conflict declared by hdf5",
		Conflicts: []Conflict{{Package: "hdf5", Constraint: "+mpi", Source: "hdf5"}},
	}
	if want := "conflict declared by hdf5: hdf5+mpi (from hdf5)"; one.Error() != want {
		t.Errorf("Error mismatch:\n\t(GOT): %s\n\t(WNT): %s", one.Error(), want)
	}
}

func TestIntersects(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"a@1:2", "a@3:", false},
		{"a@1:2", "a@2:", true},
		{"a+debug", "a~debug", false},
		{"a+debug", "a flavor=x", true},
		{"a ^b@1", "a ^b@2", false},
		{"a ^b@1", "a ^c", true},
		{"a%gcc", "%clang", false},
		{"a", "b", false},
		{"a flavor=x,y", "a flavor=z", true},
	}
	for _, c := range cases {
		if got := MustParse(c.a).Intersects(MustParse(c.b)); got != c.want {
			t.Errorf("%s intersects %s: expected %v, got %v", c.a, c.b, c.want, got)
		}
	}
}

func TestSatisfies(t *testing.T) {
	a := mkDiamond(t, "1.0", "1.0", false)
	h, err := a.DAGHash()
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]bool{
		"a":                  true,
		"a@1:":               true,
		"a@2:":               false,
		"a+debug":            true,
		"a~debug":            false,
		"+debug":             true,
		"a ^b@2:":            true,
		"a ^b@:2.0":          false,
		"a ^mpi":             true,
		"a ^zlib":            false,
		"a%gcc@12:":          true,
		"a%clang":            false,
		"a target=x86_64":    true,
		"a target=aarch64":   false,
		"a ^c langs=c":       true,
		"a ^c langs=c,cuda":  false,
		"a ^b flavor=fast":   true,
		"a ^b flavor=slow":   false,
		"a /" + h[:5]:        true,
		"a /zzzzz":           false,
		"b":                  false,
		"a ^d@1.0%gcc@12.2.0": true,
	}
	for text, want := range cases {
		if got := a.Satisfies(MustParse(text)); got != want {
			t.Errorf("%s satisfies %q: expected %v, got %v", a, text, want, got)
		}
	}
}

func TestSatisfiesAbstract(t *testing.T) {
	cases := []struct {
		s, c string
		want bool
	}{
		{"a@1.2:1.3", "a@1:2", true},
		{"a@1:2", "a@1.2:1.3", false},
		{"a flavor=x", "a flavor=x,y", false},
		{"a flavor=x,y", "a flavor=x", true},
		{"a", "a+debug", false},
		{"a%gcc@12", "a%gcc", true},
		{"a%gcc", "a%gcc@12", false},
	}
	for _, c := range cases {
		if got := MustParse(c.s).Satisfies(MustParse(c.c)); got != c.want {
			t.Errorf("%s satisfies %s: expected %v, got %v", c.s, c.c, c.want, got)
		}
	}
}

func TestDescribeMismatch(t *testing.T) {
	a := mkDiamond(t, "1.0", "1.0", false)
	cases := map[string]string{
		"a@2:":    "version @=1.0 is not within @2:",
		"a%clang": "compiler %gcc@=12.2.0 does not match %clang",
		"a~debug": "variant +debug does not match ~debug",
		"a+mpi":   "variant mpi is not set",
		"a@1:":    "",
	}
	for text, want := range cases {
		if got := a.DescribeMismatch(MustParse(text)); got != want {
			t.Errorf("DescribeMismatch(%q):\n\t(GOT): %s\n\t(WNT): %s", text, got, want)
		}
	}
}
