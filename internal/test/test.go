// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package test holds helpers shared by the package tests: scratch directory
// trees, recipe fixtures and git repositories to fetch from.
package test

import (
	"bytes"
	"flag"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

// PrintLogs controls logging of commands run by helpers.
var PrintLogs = flag.Bool("logs", false, "log stdout/stderr of helper commands")

// Helper with utilities for testing.
type Helper struct {
	t              *testing.T
	tempdir        string
	stdout, stderr bytes.Buffer
}

// NewHelper initializes a new helper for testing. Call Cleanup when done.
func NewHelper(t *testing.T) *Helper {
	return &Helper{t: t}
}

// Must gives a fatal error if err is not nil.
func (h *Helper) Must(err error) {
	if err != nil {
		h.t.Fatalf("%+v", err)
	}
}

// check gives a test non-fatal error if err is not nil.
func (h *Helper) check(err error) {
	if err != nil {
		h.t.Errorf("%+v", err)
	}
}

func (h *Helper) makeTempdir() {
	if h.tempdir == "" {
		var err error
		h.tempdir, err = ioutil.TempDir("", "sprouttest")
		h.Must(err)
	}
}

// TempDir creates a directory under the scratch tree.
func (h *Helper) TempDir(path string) {
	h.makeTempdir()
	fullPath := filepath.Join(h.tempdir, path)
	if err := os.MkdirAll(fullPath, 0755); err != nil && !os.IsExist(err) {
		h.t.Fatalf("%+v", errors.Errorf("Unable to create temp directory: %s", fullPath))
	}
}

// TempFile writes a file under the scratch tree, creating parents.
func (h *Helper) TempFile(path, contents string) {
	h.makeTempdir()
	h.Must(os.MkdirAll(filepath.Join(h.tempdir, filepath.Dir(path)), 0755))
	h.Must(ioutil.WriteFile(filepath.Join(h.tempdir, path), []byte(contents), 0644))
}

// Recipe writes a package.toml for name under dir in the scratch tree.
func (h *Helper) Recipe(dir, name, body string) {
	h.TempFile(filepath.Join(dir, name, "package.toml"), "name = \""+name+"\"\n"+body)
}

// Path returns the absolute, symlink-free path of name in the scratch tree.
func (h *Helper) Path(name string) string {
	h.makeTempdir()

	var joined string
	if name == "." {
		joined = h.tempdir
	} else {
		joined = filepath.Join(h.tempdir, name)
	}

	abs, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if os.IsNotExist(err) {
			// Not created yet; resolve the parent instead.
			root, rerr := filepath.EvalSymlinks(h.tempdir)
			h.Must(rerr)
			return filepath.Join(root, name)
		}
		h.t.Fatalf("%+v", errors.Wrapf(err, "internal testsuite error: could not get absolute path for dir(%q)", joined))
	}
	return abs
}

// ReadFile returns the contents of a file in the scratch tree.
func (h *Helper) ReadFile(path string) string {
	b, err := ioutil.ReadFile(h.Path(path))
	h.Must(err)
	return string(b)
}

// Exists reports whether path exists in the scratch tree.
func (h *Helper) Exists(path string) bool {
	_, err := os.Stat(h.Path(path))
	return err == nil
}

// NeedsGit will make sure the tests that require git will be skipped if the
// git binary is not available.
func NeedsGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("skipping because git binary not found")
	}
}

// RunGit runs a git command in dir, and expects it to succeed.
func (h *Helper) RunGit(dir string, args ...string) {
	cmd := exec.Command("git", args...)
	h.stdout.Reset()
	h.stderr.Reset()
	cmd.Stdout = &h.stdout
	cmd.Stderr = &h.stderr
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=sprout", "GIT_AUTHOR_EMAIL=sprout@example.org",
		"GIT_COMMITTER_NAME=sprout", "GIT_COMMITTER_EMAIL=sprout@example.org",
	)
	status := cmd.Run()
	if *PrintLogs {
		if h.stdout.Len() > 0 {
			h.t.Logf("git %v standard output:", args)
			h.t.Log(h.stdout.String())
		}
		if h.stderr.Len() > 0 {
			h.t.Logf("git %v standard error:", args)
			h.t.Log(h.stderr.String())
		}
	}
	if status != nil {
		h.t.Logf("git %v failed unexpectedly: %v\n%s", args, status, h.stderr.String())
		h.t.FailNow()
	}
}

// GitRepo creates a git repository at dir in the scratch tree holding files,
// commits them and tags the commit with each of tags.
func (h *Helper) GitRepo(dir string, files map[string]string, tags ...string) string {
	for name, body := range files {
		h.TempFile(filepath.Join(dir, name), body)
	}
	path := h.Path(dir)
	h.RunGit(path, "init", "-q")
	h.RunGit(path, "add", ".")
	h.RunGit(path, "commit", "-q", "-m", "initial")
	for _, tag := range tags {
		h.RunGit(path, "tag", tag)
	}
	return path
}

// Cleanup removes the scratch tree.
func (h *Helper) Cleanup() {
	if h.tempdir != "" {
		h.check(os.RemoveAll(h.tempdir))
	}
}
