// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"

	"github.com/sprout-pm/sprout"
)

const versionShortHelp = `Display version`
const versionLongHelp = `
Display version of this application, and the lock format it writes.
`

// Version is the version of the sprout command.
const Version = "0.1.0"

func (cmd *versionCommand) Name() string      { return "version" }
func (cmd *versionCommand) Args() string      { return "" }
func (cmd *versionCommand) ShortHelp() string { return versionShortHelp }
func (cmd *versionCommand) LongHelp() string  { return versionLongHelp }
func (cmd *versionCommand) Hidden() bool      { return false }

func (cmd *versionCommand) Register(fs *flag.FlagSet) {
}

type versionCommand struct {
}

func (cmd *versionCommand) Run(ctx *sprout.Ctx, args []string) error {
	ctx.Out.Printf("sprout %s (lock format %s)\n", Version, sprout.LockVersion)
	return nil
}
