// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package install

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/sprout-pm/sprout/internal/test"
	"github.com/sprout-pm/sprout/repo"
	"github.com/sprout-pm/sprout/spec"
)

func mkNode(t *testing.T, text string) *spec.Spec {
	t.Helper()
	g := spec.NewGraph()
	p, err := spec.Parse(text + "%gcc@=12.2.0" + testArch)
	if err != nil {
		t.Fatal(err)
	}
	n := g.NewNode(p.Name)
	if err := n.ConstrainNode(p); err != nil {
		t.Fatal(err)
	}
	g.Freeze()
	return n
}

func TestFetcherFor(t *testing.T) {
	cases := []struct {
		def  *repo.Definition
		want string
	}{
		{repo.Package("a").From(repo.Source{Git: "https://example.org/a.git"}), "*install.VCSFetcher"},
		{repo.Package("b").From(repo.Source{Path: "/src/b"}), "*install.LocalFetcher"},
		{repo.Package("c"), "install.emptyFetcher"},
		{repo.Package("d").From(repo.Source{URL: "https://example.org/d.tar.gz"}), ""},
		{repo.Package("e").Builds(repo.CMake), ""},
	}
	for _, c := range cases {
		f, err := FetcherFor(c.def, "/stage", nil)
		if c.want == "" {
			if err == nil {
				t.Errorf("%s: expected an error, got %T", c.def.Name, f)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %s", c.def.Name, err)
			continue
		}
		if got := fmt.Sprintf("%T", f); got != c.want {
			t.Errorf("%s: unexpected fetcher:\n\t(GOT): %s\n\t(WNT): %s", c.def.Name, got, c.want)
		}
	}
}

func TestRevision(t *testing.T) {
	def := repo.Package("a").
		Version("1.0", repo.Tag("v1.0")).
		Version("1.1", repo.Tag("v1.1"), repo.Commit("abc123")).
		Version("main")
	cases := map[string]string{
		"a@=1.0":  "v1.0",
		"a@=1.1":  "abc123",
		"a@=main": "main",
		"a@=2.0":  "2.0",
	}
	for text, want := range cases {
		if got := revision(def, mkNode(t, text)); got != want {
			t.Errorf("%s: unexpected revision:\n\t(GOT): %s\n\t(WNT): %s", text, got, want)
		}
	}
}

func TestLocalFetcher(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()
	h.TempFile("src/configure", "#!/bin/sh\n")
	h.TempFile("src/lib/zlib.c", "int main() {}\n")
	h.TempFile("src/.git/HEAD", "ref: refs/heads/main\n")

	def := repo.Package("zlib").From(repo.Source{Path: h.Path("src")})
	f := &LocalFetcher{Def: def, Stage: h.Path("stage")}
	n := mkNode(t, "zlib@=1.3")

	for k := 0; k < 2; k++ {
		dir, err := f.Fetch(context.Background(), n)
		h.Must(err)
		if !strings.HasPrefix(dir, h.Path("stage")) {
			t.Errorf("staged outside the stage: %s", dir)
		}
		rel, _ := filepath.Rel(h.Path("."), dir)
		if !h.Exists(filepath.Join(rel, "lib/zlib.c")) {
			t.Error("sources were not copied")
		}
		if h.Exists(filepath.Join(rel, ".git")) {
			t.Error("vcs metadata should be left behind")
		}
	}
}

func TestVCSFetcher(t *testing.T) {
	test.NeedsGit(t)
	h := test.NewHelper(t)
	defer h.Cleanup()

	remote := h.GitRepo("remote", map[string]string{"Makefile": "all:\n"}, "v1.0")
	h.TempFile("remote/NEWS", "1.1\n")
	h.RunGit(remote, "add", ".")
	h.RunGit(remote, "commit", "-q", "-m", "second")
	h.RunGit(remote, "tag", "v1.1")

	def := repo.Package("pkg").
		Version("1.0", repo.Tag("v1.0")).
		Version("1.1", repo.Tag("v1.1")).
		From(repo.Source{Git: remote})
	f := &VCSFetcher{Def: def, Stage: h.Path("stage"), Runner: ExecRunner{Timeout: time.Minute}}

	dir, err := f.Fetch(context.Background(), mkNode(t, "pkg@=1.0"))
	h.Must(err)
	rel, _ := filepath.Rel(h.Path("."), dir)
	if !h.Exists(filepath.Join(rel, "Makefile")) || h.Exists(filepath.Join(rel, "NEWS")) {
		t.Error("expected the v1.0 checkout")
	}

	// A second fetch reuses the clone.
	dir, err = f.Fetch(context.Background(), mkNode(t, "pkg@=1.1"))
	h.Must(err)
	rel, _ = filepath.Rel(h.Path("."), dir)
	if !h.Exists(filepath.Join(rel, "NEWS")) {
		t.Error("expected the v1.1 checkout")
	}

	if _, err := f.Fetch(context.Background(), mkNode(t, "pkg@=9.9")); err == nil {
		t.Error("expected a missing tag to fail")
	}
}

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a posix shell")
	}
	r := ExecRunner{Timeout: time.Minute}

	out, err := r.Run(context.Background(), "", []string{"SPROUT_TEST=hello"}, "sh", "-c", "echo $SPROUT_TEST")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(out)) != "hello" {
		t.Errorf("unexpected output %q", out)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	if _, err := r.Run(ctx, "", nil, "sleep", "30"); err != context.Canceled {
		t.Errorf("expected the command to be cancelled, got %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Error("cancellation took too long")
	}

	r.Timeout = 200 * time.Millisecond
	if _, err := r.Run(context.Background(), "", nil, "sleep", "30"); err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected an inactivity timeout, got %v", err)
	}
}
