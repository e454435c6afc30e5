// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sprout

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sprout-pm/sprout/internal/test"
	"github.com/sprout-pm/sprout/spec"
)

func TestSafeWriterNothingToDo(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()
	h.TempDir("env")

	sw := NewSafeWriter(nil, nil, nil)
	h.Must(sw.Write(h.Path("env")))
	if h.Exists(filepath.Join("env", ManifestName)) || h.Exists(filepath.Join("env", LockName)) {
		t.Error("nothing should have been written")
	}
}

func TestSafeWriterManifestAndLock(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()
	h.TempDir("env")
	env := h.Path("env")

	m := &Manifest{Roots: []*spec.Spec{spec.MustParse("app")}}
	l := fixtureLock(t, "app")
	sw := NewSafeWriter(m, nil, l)
	if !sw.HasManifest() || !sw.HasLock() {
		t.Fatal("expected both files to be written")
	}
	h.Must(sw.Write(env))

	p, err := loadProject(env)
	h.Must(err)
	if len(p.Manifest.Roots) != 1 || p.Lock == nil {
		t.Fatalf("unexpected project %+v", p)
	}
	if !locksAreEquivalent(l, p.Lock) {
		t.Error("written lock does not read back the same")
	}

	// No temp dirs are left behind.
	entries, err := os.ReadDir(env)
	h.Must(err)
	if len(entries) != 2 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only the manifest and lock, found %v", names)
	}
}

func TestSafeWriterSkipsEquivalentLock(t *testing.T) {
	old := fixtureLock(t, "app")
	sw := NewSafeWriter(nil, old, fixtureLock(t, "app"))
	if sw.HasLock() {
		t.Error("an equivalent lock should not be rewritten")
	}
	sw = NewSafeWriter(nil, old, fixtureLock(t, "app ^zlib@1.2"))
	if !sw.HasLock() {
		t.Error("a changed lock should be written")
	}
}

func TestSafeWriterRollback(t *testing.T) {
	if runtime.GOOS == "windows" || os.Getuid() == 0 {
		t.Skip("needs permission checks")
	}
	h := test.NewHelper(t)
	defer h.Cleanup()
	h.TempDir("env")
	env := h.Path("env")

	h.TempFile(filepath.Join("env", ManifestName), "specs = [\"old\"]\n")
	// Moving a directory to another parent needs write permission on it, so
	// a read-only directory in place of the lock fails after the manifest
	// was swapped.
	h.TempDir(filepath.Join("env", LockName))
	h.Must(os.Chmod(filepath.Join(env, LockName), 0500))
	defer os.Chmod(filepath.Join(env, LockName), 0755)

	m := &Manifest{Roots: []*spec.Spec{spec.MustParse("new")}}
	sw := &SafeWriter{Manifest: m, Lock: fixtureLock(t, "app")}
	if err := sw.Write(env); err == nil {
		t.Fatal("expected the write to fail")
	}

	if got := h.ReadFile(filepath.Join("env", ManifestName)); !strings.Contains(got, "old") {
		t.Errorf("the old manifest should be restored, found:\n%s", got)
	}
}

func TestSafeWriterPrintPreparedActions(t *testing.T) {
	m := &Manifest{Roots: []*spec.Spec{spec.MustParse("app")}}
	sw := NewSafeWriter(m, nil, fixtureLock(t, "app"))

	var buf bytes.Buffer
	if err := sw.PrintPreparedActions(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"following " + ManifestName, "following " + LockName, `"concrete_specs"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q:\n%s", want, out)
		}
	}
}
