// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sprout ties the concretizer and the installer to a sprout root:
// its configuration, its installed database and its environment projects.
package sprout

import (
	"io/ioutil"
	"log"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sprout-pm/sprout/install"
	"github.com/sprout-pm/sprout/repo"
	"github.com/sprout-pm/sprout/solve"
	"github.com/sprout-pm/sprout/spec"
	"github.com/sprout-pm/sprout/store"
)

// Ctx defines the supporting context of a sprout command.
type Ctx struct {
	WorkingDir string      // Where to execute.
	Env        []string    // Environment the command runs with.
	Out, Err   *log.Logger // Required loggers.
	Verbose    bool        // Enables more verbose logging.

	Config *Config
	// Registry collects the solver and installer metrics.
	Registry *prometheus.Registry

	solveMetrics   *solve.Metrics
	installMetrics *install.Metrics
}

// NewContext loads the configuration of the sprout root named by env and
// returns a context for commands run in wd.
func NewContext(wd string, env []string, out, errLog *log.Logger) (*Ctx, error) {
	root, err := DefaultRoot(env)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(root, env)
	if err != nil {
		return nil, err
	}
	c := &Ctx{
		WorkingDir:     wd,
		Env:            env,
		Out:            out,
		Err:            errLog,
		Config:         cfg,
		Registry:       prometheus.NewRegistry(),
		solveMetrics:   solve.NewMetrics(),
		installMetrics: install.NewMetrics(),
	}
	c.solveMetrics.MustRegister(c.Registry)
	c.installMetrics.MustRegister(c.Registry)
	return c, nil
}

// LoadRepository loads the configured recipe directories.
func (c *Ctx) LoadRepository() (*repo.Repository, error) {
	if len(c.Config.Repos) == 0 {
		return nil, errors.New("no package repositories are configured")
	}
	r, err := repo.Load(c.Config.Repos...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load package repository")
	}
	return r, nil
}

// OpenDB opens the installed database. The caller must Close it.
func (c *Ctx) OpenDB() (*store.DB, error) {
	return store.Open(c.Config.Database, c.verboseLogger())
}

// Layout returns the install tree layout.
func (c *Ctx) Layout() store.HashLayout {
	return store.HashLayout{Root: c.Config.InstallTree}
}

func (c *Ctx) verboseLogger() *log.Logger {
	if c.Verbose && c.Err != nil {
		return c.Err
	}
	return log.New(ioutil.Discard, "", 0)
}

// Parameters builds the solve parameters for roots from the configuration.
// installed may be nil when no database is available.
func (c *Ctx) Parameters(roots []*spec.Spec, r *repo.Repository, installed solve.InstalledIndex) solve.Parameters {
	params := solve.Parameters{
		Roots:       roots,
		Repo:        r,
		Platform:    c.Config.Platform,
		Packages:    c.Config.Packages,
		Installed:   installed,
		Reuse:       c.Config.Reuse && installed != nil,
		Unify:       c.Config.Unify,
		MaxAttempts: c.Config.MaxAttempts,
		Metrics:     c.solveMetrics,
	}
	if c.Verbose {
		params.TraceLogger = c.Err
		lg := logrus.New()
		lg.Out = c.Err.Writer()
		lg.Level = logrus.DebugLevel
		params.Logger = lg
	}
	return params
}

// ProjectParameters builds the solve parameters of a project's manifest.
func (c *Ctx) ProjectParameters(p *Project, r *repo.Repository, installed solve.InstalledIndex) solve.Parameters {
	params := c.Parameters(p.Manifest.Roots, r, installed)
	if p.Manifest.Unify != nil {
		params.Unify = *p.Manifest.Unify
	}
	params.Tests = p.Manifest.Tests
	return params
}

// Installer returns an installer for the configured install tree, recording
// into db.
func (c *Ctx) Installer(r *repo.Repository, db install.Database, jobs int) (*install.Installer, error) {
	layout := c.Layout()
	return install.New(install.Config{
		Repo:    r,
		DB:      db,
		Layout:  layout,
		Builder: &install.CommandBuilder{Repo: r, Layout: layout, Jobs: jobs},
		Stage:   c.Config.Stage,
		Jobs:    jobs,
		Logger:  c.verboseLogger(),
		Metrics: c.installMetrics,
	})
}

// LoadProject searches upwards from the working directory for a project, and
// loads its manifest and lock.
func (c *Ctx) LoadProject() (*Project, error) {
	wd, err := filepath.Abs(c.WorkingDir)
	if err != nil {
		return nil, errors.Wrap(err, "could not resolve working directory")
	}
	root, err := findProjectRoot(wd)
	if err != nil {
		return nil, err
	}
	return loadProject(root)
}

// WriteMetrics saves the collected metrics in the text exposition format.
func (c *Ctx) WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, c.Registry)
}
