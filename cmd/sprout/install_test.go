// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sprout-pm/sprout/internal/test"
)

func TestInstallFindUninstall(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()
	sproutRoot(h)
	wd := h.Path(".")

	r := runSprout(h, wd, "install", "-j", "2", "app")
	if r.code != 0 {
		t.Fatalf("install failed:\n%s", r)
	}
	if !strings.Contains(r.stdout, "2 installed, 0 already present") {
		t.Errorf("unexpected install report:\n%s", r.stdout)
	}
	matches, err := filepath.Glob(filepath.Join(h.Path("root/opt"), "*", "*", "app-1.0-*"))
	h.Must(err)
	// The install lock sits next to the prefix and matches the pattern too.
	var prefixes []string
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.IsDir() {
			prefixes = append(prefixes, m)
		}
	}
	if len(prefixes) != 1 {
		t.Errorf("expected one app prefix, found %v", prefixes)
	}

	r = runSprout(h, wd, "install", "app")
	if r.code != 0 || !strings.Contains(r.stdout, "0 installed, 2 already present") {
		t.Errorf("a second install should find everything present:\n%s", r)
	}

	r = runSprout(h, wd, "spec", "-l", "app")
	if r.code != 0 || strings.Count(r.stdout, "[+] ")+strings.Count(r.stdout, "[^] ") != 2 {
		t.Errorf("expected both nodes shown as installed:\n%s", r)
	}

	r = runSprout(h, wd, "find")
	if r.code != 0 || !strings.Contains(r.stdout, "==> 2 installed packages") {
		t.Errorf("unexpected find output:\n%s", r)
	}
	r = runSprout(h, wd, "find", "-explicit", "-p")
	if !strings.Contains(r.stdout, "==> 1 installed packages") || !strings.Contains(r.stdout, h.Path("root/opt")) {
		t.Errorf("unexpected find -explicit -p output:\n%s", r)
	}
	r = runSprout(h, wd, "find", "-d", "app")
	if !strings.Contains(r.stdout, "^zlib@=1.3") {
		t.Errorf("expected the dependency tree:\n%s", r)
	}
	r = runSprout(h, wd, "find", "zlib@1.2")
	if !strings.Contains(r.stdout, "No installed packages match") {
		t.Errorf("unexpected find output for a spec nothing satisfies:\n%s", r)
	}

	r = runSprout(h, wd, "uninstall", "zlib")
	if r.code != 1 || !strings.Contains(r.stderr, "needed by") {
		t.Errorf("removing a needed spec should fail:\n%s", r)
	}
	r = runSprout(h, wd, "uninstall", "-n", "app")
	if r.code != 0 || !strings.Contains(r.stdout, "Would remove app@=1.0") {
		t.Errorf("unexpected dry run output:\n%s", r)
	}
	r = runSprout(h, wd, "uninstall", "app")
	if r.code != 0 || !strings.Contains(r.stdout, "Removed app@=1.0") {
		t.Errorf("unexpected uninstall output:\n%s", r)
	}
	for _, p := range prefixes {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("prefix %s should be removed", p)
		}
		if _, err := os.Stat(p + ".lock"); !os.IsNotExist(err) {
			t.Errorf("lock of %s should be removed", p)
		}
	}
	r = runSprout(h, wd, "uninstall", "zlib")
	if r.code != 0 {
		t.Errorf("zlib has no dependents left:\n%s", r)
	}
	r = runSprout(h, wd, "find")
	if !strings.Contains(r.stdout, "No installed packages match") {
		t.Errorf("expected nothing installed:\n%s", r)
	}
}

func TestInstallReusesInstalled(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()
	sproutRoot(h)
	wd := h.Path(".")

	if r := runSprout(h, wd, "install", "zlib@1.2"); r.code != 0 {
		t.Fatalf("install failed:\n%s", r)
	}
	// tool needs zlib@1.2, which is installed already.
	r := runSprout(h, wd, "install", "tool")
	if r.code != 0 || !strings.Contains(r.stdout, "1 installed, 1 already present") {
		t.Errorf("expected the installed zlib to be reused:\n%s", r)
	}
}

func TestUninstallErrors(t *testing.T) {
	h := test.NewHelper(t)
	defer h.Cleanup()
	sproutRoot(h)
	wd := h.Path(".")

	for name, args := range map[string][]string{
		"no args":     {"uninstall"},
		"missing":     {"uninstall", "zlib"},
		"bad hash":    {"uninstall", "/zzzzzzz"},
		"bad jobs":    {"install", "-j", "0", "zlib"},
		"not project": {"install"},
	} {
		if r := runSprout(h, wd, args...); r.code != 1 {
			t.Errorf("%s: expected a failure, got:\n%s", name, r)
		}
	}

	// Two zlibs make a bare name ambiguous.
	for _, s := range []string{"zlib@1.2", "zlib@1.3"} {
		if r := runSprout(h, wd, "install", s); r.code != 0 {
			t.Fatalf("install %s failed:\n%s", s, r)
		}
	}
	r := runSprout(h, wd, "uninstall", "zlib")
	if r.code != 1 || !strings.Contains(r.stderr, "matches 2 installed specs") {
		t.Errorf("expected an ambiguity error:\n%s", r)
	}
	r = runSprout(h, wd, "uninstall", "zlib@1.2")
	if r.code != 0 {
		t.Errorf("a version narrows the match:\n%s", r)
	}
}
