// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package feedback

import (
	"bytes"
	"context"
	log2 "log"
	"strings"
	"testing"

	"github.com/sprout-pm/sprout/repo"
	"github.com/sprout-pm/sprout/solve"
	"github.com/sprout-pm/sprout/spec"
	"github.com/sprout-pm/sprout/version"
)

func mustSolve(t *testing.T, root string) *solve.Solution {
	t.Helper()
	p := solve.Parameters{
		Roots: []*spec.Spec{spec.MustParse(root)},
		Repo: repo.MustNew(
			repo.Package("app").Version("1.0").DependsOn("zlib"),
			repo.Package("zlib").Version("1.2").Version("1.3"),
		),
		Platform: solve.Platform{
			Arch:      spec.ArchSpec{Platform: "linux", OS: "ubuntu22.04", Target: "x86_64"},
			Compilers: []solve.Compiler{{Name: "gcc", Version: version.MustVersion("12.2.0")}},
		},
	}
	sol, err := solve.Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return sol
}

func TestFeedback_Node(t *testing.T) {
	cases := []struct {
		feedback NodeFeedback
		want     string
	}{
		{
			feedback: NodeFeedback{Spec: "app@1.0", Hash: "abcdefg", DependencyType: DepTypeRoot},
			want:     "Using app@1.0 (abcdefg) for root",
		},
		{
			feedback: NodeFeedback{Spec: "zlib@1.3", Hash: "hijklmn", DependencyType: DepTypeTransitive},
			want:     "Using zlib@1.3 (hijklmn) for transitive dep",
		},
		{
			feedback: NodeFeedback{Spec: "zlib@1.3", Hash: "hijklmn", DependencyType: DepTypeTransitive, Reused: true},
			want:     "Reusing installed zlib@1.3 (hijklmn) for transitive dep",
		},
	}

	for _, c := range cases {
		buf := &bytes.Buffer{}
		log := log2.New(buf, "", 0)
		c.feedback.LogFeedback(log)
		got := strings.TrimSpace(buf.String())
		if c.want != got {
			t.Errorf("Feedbacks are not expected: \n\t(GOT) %v\n\t(WNT) %v", got, c.want)
		}
	}
}

func TestFeedback_FromSolution(t *testing.T) {
	sol := mustSolve(t, "app")
	fb := FromSolution(sol)
	if len(fb) != 2 {
		t.Fatalf("expected feedback for two nodes, got %d", len(fb))
	}
	if fb[0].DependencyType != DepTypeTransitive || !strings.HasPrefix(fb[0].Spec, "zlib@=1.3") {
		t.Errorf("expected zlib first, as a transitive dep: %+v", fb[0])
	}
	if fb[1].DependencyType != DepTypeRoot || fb[1].Hash != sol.Roots[0].ShortHash() {
		t.Errorf("expected app last, as the root: %+v", fb[1])
	}
}
