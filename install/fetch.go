// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package install

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Masterminds/vcs"
	"github.com/pkg/errors"
	"github.com/sprout-pm/sprout/repo"
	"github.com/sprout-pm/sprout/spec"
	shutil "github.com/termie/go-shutil"
)

// A Fetcher makes the source code of a concrete spec available in a local
// directory, and returns that directory.
type Fetcher interface {
	Fetch(ctx context.Context, s *spec.Spec) (string, error)
}

// FetcherFor returns the fetcher matching the source of def, staging under
// stage.
func FetcherFor(def *repo.Definition, stage string, r Runner) (Fetcher, error) {
	switch {
	case def.Source.Git != "":
		return &VCSFetcher{Def: def, Stage: stage, Runner: r}, nil
	case def.Source.Path != "":
		return &LocalFetcher{Def: def, Stage: stage}, nil
	case def.Source.URL != "":
		return nil, errors.Errorf("%s: fetching archives from %s is not supported", def.Name, def.Source.URL)
	case def.BuildSystem == repo.Bundle:
		return emptyFetcher{stage: stage}, nil
	}
	return nil, errors.Errorf("%s has no source to build from", def.Name)
}

// stageDir returns the directory sources of s are staged in.
func stageDir(stage string, s *spec.Spec) string {
	v, _ := s.Version()
	return filepath.Join(stage, s.Name+"-"+v.String()+"-"+s.ShortHash())
}

// revision picks what to check out for the version of s: its commit, its tag,
// or else a tag named after the version.
func revision(def *repo.Definition, s *spec.Spec) string {
	v, _ := s.Version()
	if decl, has := def.VersionDecl(v); has {
		if decl.Commit != "" {
			return decl.Commit
		}
		if decl.Tag != "" {
			return decl.Tag
		}
	}
	return v.String()
}

// VCSFetcher checks out sources from a git repository.
type VCSFetcher struct {
	Def    *repo.Definition
	Stage  string
	Runner Runner
}

// Fetch clones the repository, or updates an existing clone, and checks out
// the revision of the version of s.
func (f *VCSFetcher) Fetch(ctx context.Context, s *spec.Spec) (string, error) {
	dir := stageDir(f.Stage, s)
	r, err := newGitRepo(f.Def.Source.Git, dir, f.runner())
	if err != nil {
		return "", errors.Wrapf(err, "%s: bad git source", f.Def.Name)
	}

	if r.CheckLocal() {
		err = r.fetch(ctx)
	} else {
		err = r.get(ctx)
	}
	if err != nil {
		return "", err
	}
	if err := r.updateVersion(ctx, revision(f.Def, s)); err != nil {
		return "", err
	}
	return dir, nil
}

func (f *VCSFetcher) runner() Runner {
	if f.Runner == nil {
		return ExecRunner{}
	}
	return f.Runner
}

// gitRepo drives git through a Runner so that every step honours the context.
type gitRepo struct {
	*vcs.GitRepo
	run Runner
}

func newGitRepo(remote, local string, r Runner) (*gitRepo, error) {
	gr, err := vcs.NewGitRepo(remote, local)
	if err != nil {
		// A local clone in a bad state; remove it and start over.
		os.RemoveAll(local)
		gr, err = vcs.NewGitRepo(remote, local)
	}
	if err != nil {
		return nil, err
	}
	return &gitRepo{GitRepo: gr, run: r}, nil
}

func newVcsRemoteErrorOr(msg string, err error, out string) error {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	return vcs.NewRemoteError(msg, err, out)
}

func newVcsLocalErrorOr(msg string, err error, out string) error {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	return vcs.NewLocalError(msg, err, out)
}

func (r *gitRepo) get(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(r.LocalPath()), 0755); err != nil {
		return errors.Wrap(err, "unable to create stage directory")
	}
	out, err := r.run.Run(ctx, "", nil, "git", "clone", "--recursive", "-q", r.Remote(), r.LocalPath())
	if err != nil {
		return newVcsRemoteErrorOr("unable to get repository", err, string(out))
	}
	return nil
}

func (r *gitRepo) fetch(ctx context.Context) error {
	out, err := r.run.Run(ctx, r.LocalPath(), nil, "git", "fetch", "--tags", "--prune", r.RemoteLocation)
	if err != nil {
		return newVcsRemoteErrorOr("unable to update repository", err, string(out))
	}
	return nil
}

func (r *gitRepo) updateVersion(ctx context.Context, v string) error {
	out, err := r.run.Run(ctx, r.LocalPath(), nil, "git", "checkout", "-q", v)
	if err != nil {
		return newVcsLocalErrorOr("unable to check out "+v, err, string(out))
	}

	// Changing versions can leave derelict files behind.
	out, err = r.run.Run(ctx, r.LocalPath(), nil, "git", "clean", "-x", "-d", "-f", "-f")
	if err != nil {
		return newVcsLocalErrorOr("unable to clean up the checkout", err, string(out))
	}
	return nil
}

// LocalFetcher copies sources from a directory on disk.
type LocalFetcher struct {
	Def   *repo.Definition
	Stage string
}

// Fetch copies the source tree, leaving VCS metadata behind.
func (f *LocalFetcher) Fetch(ctx context.Context, s *spec.Spec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := stageDir(f.Stage, s)
	if err := os.RemoveAll(dir); err != nil {
		return "", errors.Wrapf(err, "unable to clear stage directory %s", dir)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return "", errors.Wrap(err, "unable to create stage directory")
	}

	cfg := &shutil.CopyTreeOptions{
		Symlinks:     true,
		CopyFunction: shutil.Copy,
		Ignore: func(src string, contents []os.FileInfo) (ignore []string) {
			for _, fi := range contents {
				if !fi.IsDir() {
					continue
				}
				n := fi.Name()
				switch n {
				case ".git", ".bzr", ".svn", ".hg":
					ignore = append(ignore, n)
				}
			}

			return
		},
	}
	if err := shutil.CopyTree(f.Def.Source.Path, dir, cfg); err != nil {
		return "", errors.Wrapf(err, "unable to copy sources of %s from %s", f.Def.Name, f.Def.Source.Path)
	}
	return dir, nil
}

// emptyFetcher stages an empty directory, for bundles without sources.
type emptyFetcher struct {
	stage string
}

func (f emptyFetcher) Fetch(ctx context.Context, s *spec.Spec) (string, error) {
	dir := stageDir(f.stage, s)
	return dir, errors.Wrap(os.MkdirAll(dir, 0755), "unable to create stage directory")
}
