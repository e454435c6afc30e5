// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package install

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/sprout-pm/sprout/internal/test"
	"github.com/sprout-pm/sprout/repo"
	"github.com/sprout-pm/sprout/spec"
	"github.com/sprout-pm/sprout/store"
)

const testArch = " arch=linux-ubuntu22.04-x86_64"

// fakeRunner records commands instead of running them. fail makes the
// command whose name and first argument match it fail.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	envs  [][]string
	fail  string
}

func (r *fakeRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	argv := append([]string{name}, args...)
	r.calls = append(r.calls, argv)
	r.envs = append(r.envs, env)
	if r.fail != "" && strings.HasPrefix(strings.Join(argv, " "), r.fail) {
		return []byte("error: it broke"), errors.New("exit status 2")
	}
	return nil, nil
}

// mkLinked builds the concrete pair top -> zlib.
func mkLinked(t *testing.T, top string) (*spec.Spec, *spec.Spec) {
	t.Helper()
	g := spec.NewGraph()
	mk := func(text string) *spec.Spec {
		p, err := spec.Parse(text + "%gcc@=12.2.0" + testArch)
		if err != nil {
			t.Fatalf("bad fixture %q: %s", text, err)
		}
		n := g.NewNode(p.Name)
		if err := n.ConstrainNode(p); err != nil {
			t.Fatalf("bad fixture %q: %s", text, err)
		}
		return n
	}
	s, z := mk(top), mk("zlib@=1.3")
	if err := g.Link(s, z, spec.Build|spec.Link); err != nil {
		t.Fatal(err)
	}
	g.Freeze()
	return s, z
}

func buildRepo(bs repo.BuildSystem) *repo.Repository {
	return repo.MustNew(
		repo.Package("pkg").Version("1.0").
			BoolVariant("shared", true).
			BoolVariant("debug", false).
			Variant("langs", "c", repo.Values("c", "fortran"), repo.Multi()).
			DependsOn("zlib").
			Builds(bs),
		repo.Package("zlib").Version("1.3"),
	)
}

func TestCommandBuilderPhases(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()

	s, z := mkLinked(t, "pkg@=1.0+shared~debug langs=c,fortran")
	const src = "/stage/pkg"
	prefix := h.Path("opt/pkg")
	build := filepath.Join(src, "sprout-build")

	cases := map[repo.BuildSystem][][]string{
		repo.CMake: {
			{"cmake", "-S", src, "-B", build, "-DCMAKE_INSTALL_PREFIX=" + prefix, "-DDEBUG=OFF", "-DLANGS=c;fortran", "-DSHARED=ON"},
			{"cmake", "--build", build, "-j", "3"},
			{"cmake", "--install", build},
		},
		repo.Autotools: {
			{"./configure", "--prefix=" + prefix, "--disable-debug", "--with-langs=c,fortran", "--enable-shared"},
			{"make", "-j3"},
			{"make", "install"},
		},
		repo.Makefile: {
			{"make", "-j3", "PREFIX=" + prefix},
			{"make", "install", "PREFIX=" + prefix},
		},
		repo.Bundle: nil,
	}

	layout := store.HashLayout{Root: h.Path("opt")}
	for bs, want := range cases {
		r := &fakeRunner{}
		b := &CommandBuilder{
			Repo:   buildRepo(bs),
			Layout: layout,
			Runner: r,
			Jobs:   3,
		}
		if err := b.BuildAndInstall(context.Background(), s, src, prefix); err != nil {
			t.Errorf("%s: %s", bs, err)
			continue
		}
		if !reflect.DeepEqual(r.calls, want) {
			t.Errorf("%s: unexpected commands:\n\t(GOT): %v\n\t(WNT): %v", bs, r.calls, want)
		}
	}

	zp, _ := layout.PathFor(z)
	b := &CommandBuilder{Repo: buildRepo(repo.Makefile), Layout: layout}
	env, err := b.env(s, prefix)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"SPROUT_PREFIX=" + prefix, "SPROUT_ZLIB_PREFIX=" + zp, "CMAKE_PREFIX_PATH=" + zp, "SPROUT_COMPILER=gcc@12.2.0"} {
		if !contains(env, want) {
			t.Errorf("build environment lacks %s: %v", want, env)
		}
	}
}

func TestCommandBuilderFailure(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()
	h.TempDir("src")

	s, _ := mkLinked(t, "pkg@=1.0+shared~debug langs=c")
	r := &fakeRunner{fail: "make -j"}
	b := &CommandBuilder{
		Repo:   buildRepo(repo.Autotools),
		Layout: store.HashLayout{Root: h.Path("opt")},
		Runner: r,
	}

	err := b.BuildAndInstall(context.Background(), s, h.Path("src"), h.Path("opt/pkg"))
	be, ok := err.(*BuildError)
	if !ok {
		t.Fatalf("expected a BuildError, got %v", err)
	}
	if be.Phase != "build" || !strings.Contains(be.Output, "it broke") {
		t.Errorf("unexpected build error %+v", be)
	}
	if len(r.calls) != 2 {
		t.Errorf("expected the install phase to be skipped, ran %v", r.calls)
	}
	if !h.Exists("opt/pkg") {
		t.Error("expected the prefix to be created")
	}
}

func contains(l []string, s string) bool {
	for _, e := range l {
		if e == s {
			return true
		}
	}
	return false
}
