// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/sprout-pm/sprout"
	"github.com/sprout-pm/sprout/log"
	"github.com/sprout-pm/sprout/spec"
	"github.com/sprout-pm/sprout/store"
)

const findShortHelp = `List installed specs`
const findLongHelp = `
List the installed specs, or those satisfying the given spec. Constraints on
dependencies ("^") are checked against the installed DAGs.
`

func (cmd *findCommand) Name() string      { return "find" }
func (cmd *findCommand) Args() string      { return "[<spec>]" }
func (cmd *findCommand) ShortHelp() string { return findShortHelp }
func (cmd *findCommand) LongHelp() string  { return findLongHelp }
func (cmd *findCommand) Hidden() bool      { return false }

func (cmd *findCommand) Register(fs *flag.FlagSet) {
	fs.BoolVar(&cmd.long, "l", false, "show dag hashes")
	fs.BoolVar(&cmd.paths, "p", false, "show install prefixes")
	fs.BoolVar(&cmd.deps, "d", false, "show the dependency tree of each spec")
	fs.BoolVar(&cmd.explicit, "explicit", false, "only list explicitly installed specs")
}

type findCommand struct {
	long     bool
	paths    bool
	deps     bool
	explicit bool
}

func (cmd *findCommand) Run(ctx *sprout.Ctx, args []string) error {
	db, err := ctx.OpenDB()
	if err != nil {
		return err
	}
	defer db.Close()

	var records []*store.Record
	if len(args) > 0 {
		c, err := spec.Parse(strings.Join(args, " "))
		if err != nil {
			return err
		}
		records, err = db.Find(c)
		if err != nil {
			return err
		}
	} else {
		records, err = db.All()
		if err != nil {
			return err
		}
	}

	var shown []*store.Record
	for _, r := range records {
		if cmd.explicit && !r.Explicit {
			continue
		}
		shown = append(shown, r)
	}

	lg := log.New(ctx.Out.Writer())
	if len(shown) == 0 {
		lg.LogSproutfln("No installed packages match")
		return nil
	}
	lg.LogSproutfln("%d installed packages", len(shown))

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	for _, r := range shown {
		var cols []string
		if cmd.long {
			cols = append(cols, r.Spec.ShortHash())
		}
		cols = append(cols, r.Spec.NodeString())
		if cmd.paths {
			cols = append(cols, r.Prefix)
		}
		fmt.Fprintln(w, strings.Join(cols, "\t"))
		if cmd.deps {
			// The first line of the tree is the spec itself.
			lines := strings.Split(strings.TrimRight(r.Spec.Tree(), "\n"), "\n")
			for _, line := range lines[1:] {
				fmt.Fprintln(w, "  "+line)
			}
		}
	}
	w.Flush()
	lg.LogBlock(buf.String())
	return nil
}
