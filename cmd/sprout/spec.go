// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"strings"

	"github.com/pkg/errors"
	"github.com/sprout-pm/sprout"
	"github.com/sprout-pm/sprout/repo"
	"github.com/sprout-pm/sprout/solve"
	"github.com/sprout-pm/sprout/spec"
	"github.com/sprout-pm/sprout/store"
)

const specShortHelp = `Show how specs would be concretized`
const specLongHelp = `
Concretize the given specs against the configured repositories, platform and
installed database, and print the resulting DAGs without installing anything.

Several roots may be given; with the concretizer in strict mode they share
one node per package.
`

func (cmd *specCommand) Name() string      { return "spec" }
func (cmd *specCommand) Args() string      { return "<spec>..." }
func (cmd *specCommand) ShortHelp() string { return specShortHelp }
func (cmd *specCommand) LongHelp() string  { return specLongHelp }
func (cmd *specCommand) Hidden() bool      { return false }

func (cmd *specCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.yaml, "yaml", false, "print the concrete specs as YAML")
	fs.BoolVar(&cmd.json, "json", false, "print the concrete specs as JSON")
	fs.BoolVar(&cmd.long, "l", false, "show dag hashes and install status")
}

type specCommand struct {
	yaml, json, long bool
}

func (cmd *specCommand) Run(ctx *sprout.Ctx, args []string) error {
	if cmd.yaml && cmd.json {
		return errors.New("cannot pass both -yaml and -json")
	}
	roots, err := parseSpecs(args)
	if err != nil {
		return err
	}

	r, db, err := openRepoAndDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	sol, err := solve.Solve(context.Background(), ctx.Parameters(roots, r, db))
	if err != nil {
		return err
	}

	switch {
	case cmd.yaml:
		b, err := spec.EncodeYAML(sol.Roots...)
		if err != nil {
			return err
		}
		ctx.Out.Print(string(b))
	case cmd.json:
		b, err := spec.EncodeJSON(sol.Roots...)
		if err != nil {
			return err
		}
		ctx.Out.Println(string(b))
	default:
		for _, root := range sol.Roots {
			ctx.Out.Print(renderTree(root, sol, db, cmd.long))
		}
	}
	return nil
}

// renderTree renders the DAG of root like Tree. When long is set, each line
// starts with the node's install status and short hash: [+] installed, [^]
// reused from the database.
func renderTree(root *spec.Spec, sol *solve.Solution, db *store.DB, long bool) string {
	if !long {
		return root.Tree()
	}
	var buf strings.Builder
	seen := make(map[*spec.Spec]bool)

	var walk func(n *spec.Spec, depth int)
	walk = func(n *spec.Spec, depth int) {
		status := " -  "
		switch h, _ := n.DAGHash(); {
		case sol.IsReused(n):
			status = "[^] "
		case db.IsInstalled(h):
			status = "[+] "
		}
		buf.WriteString(status + n.ShortHash() + "  " + strings.Repeat("    ", depth))
		if depth > 0 {
			buf.WriteString("^")
		}
		buf.WriteString(n.NodeString() + "\n")
		if seen[n] {
			return
		}
		seen[n] = true
		for _, d := range n.Dependencies() {
			if !seen[d.Spec] {
				walk(d.Spec, depth+1)
			}
		}
	}
	walk(root, 0)
	return buf.String()
}

func parseSpecs(args []string) ([]*spec.Spec, error) {
	if len(args) == 0 {
		return nil, errors.New("no specs given")
	}
	roots, err := spec.ParseMany(strings.Join(args, " "))
	if err != nil {
		return nil, err
	}
	for _, r := range roots {
		if r.Anonymous() {
			return nil, errors.Errorf("spec %q names no package", r)
		}
	}
	return roots, nil
}

// openRepoAndDB loads the repository and opens the installed database. The
// caller must close the database.
func openRepoAndDB(ctx *sprout.Ctx) (*repo.Repository, *store.DB, error) {
	r, err := ctx.LoadRepository()
	if err != nil {
		return nil, nil, err
	}
	db, err := ctx.OpenDB()
	if err != nil {
		return nil, nil, err
	}
	return r, db, nil
}
