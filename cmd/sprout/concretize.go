// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"flag"

	"github.com/pkg/errors"
	"github.com/sprout-pm/sprout"
	"github.com/sprout-pm/sprout/internal/feedback"
	"github.com/sprout-pm/sprout/solve"
	"github.com/sprout-pm/sprout/spec"
)

const concretizeShortHelp = `Concretize an environment and write its lock`
const concretizeLongHelp = `
Concretize the root specs of the environment found in the working directory or
one of its parents, and write the result to sprout.lock.

Specs given as arguments are added to the environment's sprout.toml first; a
new environment is created in the working directory when none is found.

The lock records a digest of every input to the concretization. When the
inputs have not changed the lock is left alone, unless -force is given.
`

func (cmd *concretizeCommand) Name() string      { return "concretize" }
func (cmd *concretizeCommand) Args() string      { return "[<spec>...]" }
func (cmd *concretizeCommand) ShortHelp() string { return concretizeShortHelp }
func (cmd *concretizeCommand) LongHelp() string  { return concretizeLongHelp }
func (cmd *concretizeCommand) Hidden() bool      { return false }

func (cmd *concretizeCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.dryRun, "n", false, "dry run, print what would be written")
	fs.BoolVar(&cmd.force, "force", false, "concretize even if the lock is up to date")
}

type concretizeCommand struct {
	dryRun bool
	force  bool
}

func (cmd *concretizeCommand) Run(ctx *sprout.Ctx, args []string) error {
	p, err := ctx.LoadProject()
	switch {
	case sprout.IsProjectNotFound(err) && len(args) > 0:
		p = &sprout.Project{AbsRoot: ctx.WorkingDir, Manifest: &sprout.Manifest{}}
	case err != nil:
		return err
	}

	var added int
	if len(args) > 0 {
		roots, err := parseSpecs(args)
		if err != nil {
			return err
		}
		added = p.Manifest.AddRoots(roots...)
	}
	if len(p.Manifest.Roots) == 0 {
		return errors.Errorf("%s lists no specs, name some to add", sprout.ManifestName)
	}

	r, db, err := openRepoAndDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	params := ctx.ProjectParameters(p, r, db)
	memo := sprout.HashInputs(params)
	if !cmd.force && added == 0 && p.Lock != nil && bytes.Equal(p.Lock.InputHash(), memo) {
		ctx.Out.Printf("%s is up to date\n", sprout.LockName)
		return nil
	}

	sol, err := solve.Solve(context.Background(), params)
	if err != nil {
		return errors.Wrap(err, "concretization failed")
	}
	if ctx.Verbose {
		for _, nf := range feedback.FromSolution(sol) {
			nf.LogFeedback(ctx.Err)
		}
	}

	l, err := sprout.NewLock(memo, p.Manifest.Roots, sol)
	if err != nil {
		return err
	}
	if p.Lock != nil {
		var before []*spec.Spec
		if len(p.Lock.Roots) > 0 {
			before = p.Lock.Solution().InstallOrder()
		}
		if diff := feedback.DiffNodes(before, sol.InstallOrder()); diff != nil {
			ctx.Out.Print(diff.Format())
		}
	}

	var m *sprout.Manifest
	if added > 0 {
		m = p.Manifest
	}
	sw := sprout.NewSafeWriter(m, p.Lock, l)
	if cmd.dryRun {
		return sw.PrintPreparedActions(ctx.Out.Writer())
	}
	if err := sw.Write(p.AbsRoot); err != nil {
		return errors.Wrap(err, "grouped write of manifest and lock")
	}
	ctx.Out.Printf("Concretized %d roots into %d nodes after %d backtracks\n", len(sol.Roots), len(sol.InstallOrder()), sol.Attempts)
	return nil
}
