// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/sprout-pm/sprout"
	"github.com/sprout-pm/sprout/install"
	"github.com/sprout-pm/sprout/internal/feedback"
	"github.com/sprout-pm/sprout/solve"
)

const installShortHelp = `Build and install specs`
const installLongHelp = `
Concretize the given specs and build every node of the result that is not
installed yet, dependencies first. Independent branches of the DAG build in
parallel, up to -j at once.

Without arguments, install the lock of the environment found in the working
directory or one of its parents. The lock must be in sync with its inputs;
run sprout concretize to update it.
`

func (cmd *installCommand) Name() string      { return "install" }
func (cmd *installCommand) Args() string      { return "[<spec>...]" }
func (cmd *installCommand) ShortHelp() string { return installShortHelp }
func (cmd *installCommand) LongHelp() string  { return installLongHelp }
func (cmd *installCommand) Hidden() bool      { return false }

func (cmd *installCommand) Register(fs *flag.FlagSet) {
	fs.IntVar(&cmd.jobs, "j", 1, "number of packages to build at once")
	fs.BoolVar(&cmd.dryRun, "n", false, "dry run, print what would be installed")
}

type installCommand struct {
	jobs   int
	dryRun bool
}

func (cmd *installCommand) Run(ctx *sprout.Ctx, args []string) error {
	if cmd.jobs < 1 {
		return errors.Errorf("-j must be at least 1, got %d", cmd.jobs)
	}

	r, db, err := openRepoAndDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	var sol *solve.Solution
	if len(args) > 0 {
		roots, err := parseSpecs(args)
		if err != nil {
			return err
		}
		sol, err = solve.Solve(context.Background(), ctx.Parameters(roots, r, db))
		if err != nil {
			return errors.Wrap(err, "concretization failed")
		}
	} else {
		p, err := ctx.LoadProject()
		if err != nil {
			return err
		}
		if p.Lock == nil || len(p.Lock.Roots) == 0 {
			return errors.Errorf("%s has no lock, run sprout concretize first", p.AbsRoot)
		}
		if !bytes.Equal(sprout.HashInputs(ctx.ProjectParameters(p, r, db)), p.Lock.InputHash()) {
			return errors.Errorf("%s is out of sync with its inputs, run sprout concretize first", sprout.LockName)
		}
		sol = p.Lock.Solution()
	}

	if cmd.dryRun {
		for _, nf := range feedback.FromSolution(sol) {
			nf.LogFeedback(ctx.Out)
		}
		return nil
	}

	in, err := ctx.Installer(r, db, cmd.jobs)
	if err != nil {
		return err
	}
	defer in.Release()

	// Stop the builds on interrupt.
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt)
	defer signal.Stop(sigch)
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigch:
			ctx.Err.Println("Interrupted, stopping builds...")
			in.Release()
		case <-done:
		}
	}()

	report, err := in.Install(context.Background(), sol)
	if err != nil {
		if be, ok := errors.Cause(err).(*install.BuildError); ok && be.Output != "" {
			ctx.Err.Println(be.Output)
		}
		return err
	}
	for _, n := range report.Present {
		if ctx.Verbose {
			ctx.Out.Printf("%s /%s is already installed\n", n.Name, n.ShortHash())
		}
	}
	for _, n := range report.Installed {
		prefix, _ := ctx.Layout().PathFor(n)
		ctx.Out.Printf("Installed %s /%s in %s\n", n.Name, n.ShortHash(), prefix)
	}
	ctx.Out.Printf("%d installed, %d already present\n", len(report.Installed), len(report.Present))
	return nil
}
