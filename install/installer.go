// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package install fetches, builds and installs concretized specs, and records
// them in the installed database.
package install

import (
	"context"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sdboyer/constext"
	"github.com/sprout-pm/sprout/internal/fs"
	"github.com/sprout-pm/sprout/repo"
	"github.com/sprout-pm/sprout/solve"
	"github.com/sprout-pm/sprout/spec"
	"github.com/sprout-pm/sprout/store"
	flock "github.com/theckman/go-flock"
)

// Database is the part of the installed database the installer needs.
type Database interface {
	IsInstalled(hash string) bool
	Add(s *spec.Spec, prefix string, explicit bool) error
}

// MetadataDir is the directory under each prefix holding what sprout knows
// about the installation.
const MetadataDir = ".sprout"

// Config holds the collaborators of an Installer.
type Config struct {
	Repo    *repo.Repository
	DB      Database
	Layout  store.Layout
	Builder Builder
	// Stage is the directory sources are fetched into.
	Stage string
	// Fetcher returns the fetcher of a package; nil means FetcherFor.
	Fetcher func(def *repo.Definition) (Fetcher, error)
	// Jobs bounds the builds running at once; zero means one.
	Jobs    int
	Logger  *log.Logger
	Metrics *Metrics
}

// An Installer builds solutions. Its lifetime context is cancelled by
// Release, which stops every running Install.
type Installer struct {
	Config

	ctx    context.Context
	cancel context.CancelFunc
}

// New returns an installer for c.
func New(c Config) (*Installer, error) {
	if c.Repo == nil || c.DB == nil || c.Layout == nil || c.Builder == nil {
		return nil, errors.New("installer needs a repository, a database, a layout and a builder")
	}
	if c.Logger == nil {
		c.Logger = log.New(ioutil.Discard, "", 0)
	}
	if c.Fetcher == nil {
		stage := c.Stage
		c.Fetcher = func(def *repo.Definition) (Fetcher, error) {
			return FetcherFor(def, stage, nil)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Installer{Config: c, ctx: ctx, cancel: cancel}, nil
}

// Release cancels every running install.
func (in *Installer) Release() {
	in.cancel()
}

// A Report says what an Install did, in install order.
type Report struct {
	Installed []*spec.Spec
	// Present were installed already and left alone.
	Present []*spec.Spec
}

type nodeState struct {
	done      chan struct{}
	ok        bool
	installed bool
}

// Install builds every node of sol that is not installed yet, dependencies
// first. Independent branches build in parallel up to Jobs at once. The
// first failure, a *BuildError, stops scheduling. Roots are recorded as
// explicitly installed.
func (in *Installer) Install(ctx context.Context, sol *solve.Solution) (*Report, error) {
	cctx, cancelFunc := constext.Cons(ctx, in.ctx)
	defer cancelFunc()
	wctx, stop := context.WithCancel(cctx)
	defer stop()

	order := sol.InstallOrder()
	roots := make(map[*spec.Spec]bool, len(sol.Roots))
	for _, r := range sol.Roots {
		roots[r] = true
	}
	states := make(map[*spec.Spec]*nodeState, len(order))
	for _, n := range order {
		states[n] = &nodeState{done: make(chan struct{})}
	}

	jobs := in.Jobs
	if jobs < 1 {
		jobs = 1
	}
	sem := make(chan struct{}, jobs)

	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		stop()
	}

	for _, n := range order {
		wg.Add(1)
		go func(n *spec.Spec) {
			defer wg.Done()
			st := states[n]
			defer close(st.done)

			for _, d := range n.Dependencies() {
				ds := states[d.Spec]
				select {
				case <-ds.done:
				case <-wctx.Done():
					return
				}
				if !ds.ok {
					return
				}
			}

			select {
			case sem <- struct{}{}:
			case <-wctx.Done():
				return
			}
			defer func() { <-sem }()

			installed, err := in.installOne(wctx, n, roots[n])
			if err != nil {
				in.Metrics.observe(resultFailed, 0)
				fail(err)
				return
			}
			st.ok, st.installed = true, installed
		}(n)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := cctx.Err(); err != nil {
		return nil, err
	}

	r := &Report{}
	for _, n := range order {
		if states[n].installed {
			r.Installed = append(r.Installed, n)
		} else {
			r.Present = append(r.Present, n)
		}
	}
	return r, nil
}

// installOne installs n unless it is installed already, and reports whether
// it did.
func (in *Installer) installOne(ctx context.Context, n *spec.Spec, explicit bool) (bool, error) {
	h, err := n.DAGHash()
	if err != nil {
		return false, err
	}
	if in.DB.IsInstalled(h) {
		return false, in.markExplicit(n, explicit)
	}

	prefix, err := in.Layout.PathFor(n)
	if err != nil {
		return false, err
	}
	unlock, err := lockPrefix(ctx, prefix)
	if err != nil {
		return false, &BuildError{Spec: n.NodeString(), Phase: "lock", Err: err}
	}
	defer unlock()

	// Another process may have installed it while we waited for the lock.
	if in.DB.IsInstalled(h) {
		return false, in.markExplicit(n, explicit)
	}

	start := time.Now()
	in.Logger.Printf("Installing %s in %s", n.NodeString(), prefix)

	def, err := in.Repo.Get(n.Name)
	if err != nil {
		return false, &BuildError{Spec: n.NodeString(), Phase: "fetch", Err: err}
	}
	f, err := in.Fetcher(def)
	if err != nil {
		return false, &BuildError{Spec: n.NodeString(), Phase: "fetch", Err: err}
	}
	src, err := f.Fetch(ctx, n)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, &BuildError{Spec: n.NodeString(), Phase: "fetch", Err: err}
	}

	if err := in.Builder.BuildAndInstall(ctx, n, src, prefix); err != nil {
		return false, err
	}
	if err := writeMetadata(prefix, n); err != nil {
		return false, &BuildError{Spec: n.NodeString(), Phase: "register", Err: err}
	}
	if err := in.DB.Add(n, prefix, explicit); err != nil {
		return false, &BuildError{Spec: n.NodeString(), Phase: "register", Err: err}
	}

	in.Metrics.observe(resultInstalled, time.Since(start))
	in.Logger.Printf("Installed %s /%s", n.Name, n.ShortHash())
	return true, nil
}

func (in *Installer) markExplicit(n *spec.Spec, explicit bool) error {
	in.Metrics.observe(resultPresent, 0)
	if !explicit {
		return nil
	}
	// Adding an installed spec only upgrades it to explicit.
	prefix, err := in.Layout.PathFor(n)
	if err != nil {
		return err
	}
	return in.DB.Add(n, prefix, true)
}

// lockPrefix takes a file lock next to prefix, waiting for other holders
// until ctx is done.
func lockPrefix(ctx context.Context, prefix string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(prefix), 0755); err != nil {
		return nil, errors.Wrap(err, "unable to create install tree")
	}
	lock := flock.NewFlock(prefix + ".lock")

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		locked, err := lock.TryLock()
		if err != nil {
			return nil, errors.Wrapf(err, "unable to lock %s", lock.Path())
		}
		if locked {
			return func() { lock.Unlock() }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// writeMetadata records the installed spec under the prefix.
func writeMetadata(prefix string, n *spec.Spec) error {
	b, err := n.ToYAML()
	if err != nil {
		return err
	}
	dir := filepath.Join(prefix, MetadataDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "unable to create metadata directory")
	}
	tmp, err := ioutil.TempFile(dir, "spec")
	if err != nil {
		return errors.Wrap(err, "unable to write spec metadata")
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "unable to write spec metadata")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "unable to write spec metadata")
	}
	return fs.RenameWithFallback(tmp.Name(), filepath.Join(dir, "spec.yaml"))
}
