// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sprout-pm/sprout"
	"github.com/sprout-pm/sprout/spec"
	"github.com/sprout-pm/sprout/store"
)

const uninstallShortHelp = `Remove an installed spec`
const uninstallLongHelp = `
Remove one installed spec and its prefix. The spec is named either by a dag
hash prefix, as in "sprout uninstall /abc1234", or by an abstract spec that
must match exactly one installation.

Specs that other installed specs depend on are never removed; uninstall the
dependents first.
`

func (cmd *uninstallCommand) Name() string      { return "uninstall" }
func (cmd *uninstallCommand) Args() string      { return "<spec>|/<hash>" }
func (cmd *uninstallCommand) ShortHelp() string { return uninstallShortHelp }
func (cmd *uninstallCommand) LongHelp() string  { return uninstallLongHelp }
func (cmd *uninstallCommand) Hidden() bool      { return false }

func (cmd *uninstallCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.dryRun, "n", false, "dry run, print what would be removed")
}

type uninstallCommand struct {
	dryRun bool
}

func (cmd *uninstallCommand) Run(ctx *sprout.Ctx, args []string) error {
	if len(args) == 0 {
		return errors.New("name a spec or a /hash to uninstall")
	}

	db, err := ctx.OpenDB()
	if err != nil {
		return err
	}
	defer db.Close()

	r, err := lookupOne(db, strings.Join(args, " "))
	if err != nil {
		return err
	}

	if cmd.dryRun {
		deps, err := db.Dependents(r.Hash)
		if err != nil {
			return err
		}
		if len(deps) > 0 {
			return &store.HasDependentsError{Hash: r.Hash, Dependents: deps}
		}
		ctx.Out.Printf("Would remove %s /%s from %s\n", r.Spec.NodeString(), r.Spec.ShortHash(), r.Prefix)
		return nil
	}

	if err := db.Remove(r.Hash); err != nil {
		return err
	}
	if err := os.RemoveAll(r.Prefix); err != nil {
		return errors.Wrapf(err, "removing %s", r.Prefix)
	}
	if err := os.Remove(r.Prefix + ".lock"); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing the lock of %s", r.Prefix)
	}
	ctx.Out.Printf("Removed %s /%s\n", r.Spec.NodeString(), r.Spec.ShortHash())
	return nil
}

// lookupOne returns the single installed record arg names.
func lookupOne(db *store.DB, arg string) (*store.Record, error) {
	if strings.HasPrefix(arg, "/") {
		return db.Lookup(strings.TrimPrefix(arg, "/"))
	}

	c, err := spec.Parse(arg)
	if err != nil {
		return nil, err
	}
	rs, err := db.Find(c)
	if err != nil {
		return nil, err
	}
	switch len(rs) {
	case 0:
		return nil, errors.Wrap(store.ErrNotInstalled, arg)
	case 1:
		return rs[0], nil
	}
	matches := make([]string, len(rs))
	for i, r := range rs {
		matches[i] = r.Spec.NodeString() + " /" + r.Spec.ShortHash()
	}
	return nil, errors.Errorf("%s matches %d installed specs, use a /hash:\n\t%s", arg, len(rs), strings.Join(matches, "\n\t"))
}
