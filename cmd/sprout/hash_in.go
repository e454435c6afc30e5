// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"

	"github.com/sprout-pm/sprout"
)

func (cmd *hashinCommand) Name() string      { return "hash-inputs" }
func (cmd *hashinCommand) Args() string      { return "" }
func (cmd *hashinCommand) ShortHelp() string { return "" }
func (cmd *hashinCommand) LongHelp() string  { return "" }
func (cmd *hashinCommand) Hidden() bool      { return true }

func (cmd *hashinCommand) Register(fs *flag.FlagSet) {}

type hashinCommand struct{}

func (hashinCommand) Run(ctx *sprout.Ctx, args []string) error {
	p, err := ctx.LoadProject()
	if err != nil {
		return err
	}

	r, err := ctx.LoadRepository()
	if err != nil {
		return err
	}

	// The installed database is not an input, so it is left closed.
	params := ctx.ProjectParameters(p, r, nil)
	params.Reuse = ctx.Config.Reuse
	ctx.Out.Print(sprout.HashingInputsAsString(params))
	return nil
}
