// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package feedback

import (
	"strings"
	"testing"
)

func TestStringDiff_NoChange(t *testing.T) {
	diff := StringDiff{Previous: "foo", Current: "foo"}
	want := "foo"
	got := diff.String()
	if got != want {
		t.Fatalf("Expected '%s', got '%s'", want, got)
	}
}

func TestStringDiff_Add(t *testing.T) {
	diff := StringDiff{Current: "foo"}
	got := diff.String()
	if got != "+ foo" {
		t.Fatalf("Expected '+ foo', got '%s'", got)
	}
}

func TestStringDiff_Remove(t *testing.T) {
	diff := StringDiff{Previous: "foo"}
	want := "- foo"
	got := diff.String()
	if got != want {
		t.Fatalf("Expected '%s', got '%s'", want, got)
	}
}

func TestStringDiff_Modify(t *testing.T) {
	diff := StringDiff{Previous: "foo", Current: "bar"}
	want := "foo -> bar"
	got := diff.String()
	if got != want {
		t.Fatalf("Expected '%s', got '%s'", want, got)
	}
}

func TestDiffNodes_NoChange(t *testing.T) {
	a := mustSolve(t, "app").InstallOrder()
	b := mustSolve(t, "app").InstallOrder()
	if diff := DiffNodes(a, b); diff != nil {
		t.Fatalf("Expected the diff to be nil, got %s", diff.Format())
	}
}

func TestDiffNodes_Modify(t *testing.T) {
	before := mustSolve(t, "app").InstallOrder()
	after := mustSolve(t, "app ^zlib@1.2").InstallOrder()

	diff := DiffNodes(before, after)
	if diff == nil {
		t.Fatal("Expected the diff to be populated")
	}
	if len(diff.Add) != 0 || len(diff.Remove) != 0 || len(diff.Modify) != 2 {
		t.Fatalf("Expected app and zlib to be modified, got %+v", diff)
	}

	// app changes hash only, through its dependency.
	if diff.Modify[0].Name != "app" || diff.Modify[0].Spec != nil {
		t.Errorf("Expected app to change hash alone, got %+v", diff.Modify[0])
	}
	z := diff.Modify[1]
	if z.Name != "zlib" || z.Spec == nil || !strings.Contains(z.Spec.String(), "zlib@=1.3") || !strings.Contains(z.Spec.String(), "-> zlib@=1.2") {
		t.Errorf("Expected zlib 1.3 -> 1.2, got %s", z.Spec)
	}
}

func TestDiffNodes_AddRemove(t *testing.T) {
	app := mustSolve(t, "app").InstallOrder()
	zlib := mustSolve(t, "zlib").InstallOrder()

	diff := DiffNodes(zlib, app)
	if diff == nil || len(diff.Add) != 1 || diff.Add[0].Name != "app" {
		t.Fatalf("Expected app to be added, got %+v", diff)
	}
	if !strings.HasPrefix(diff.Add[0].Hash.String(), "+ ") {
		t.Errorf("Expected an added hash, got %s", diff.Add[0].Hash)
	}

	diff = DiffNodes(app, nil)
	if diff == nil || len(diff.Remove) != 2 {
		t.Fatalf("Expected two removals, got %+v", diff)
	}

	out := diff.Format()
	if !strings.HasPrefix(out, "Remove:\n  app [- app@=1.0") {
		t.Errorf("Unexpected format:\n%s", out)
	}
	if strings.Count(out, "\n") != 3 {
		t.Errorf("Expected a title and one line per node:\n%s", out)
	}
}
