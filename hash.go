// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sprout

import (
	"bytes"
	"crypto/sha256"
	"sort"
	"strconv"
	"strings"

	"github.com/sprout-pm/sprout/solve"
)

// HashInputs computes a digest of all inputs to a solve run.
//
// The digest is recorded in the lock. If the digest of the current inputs
// matches the lock's, the lock is in sync and there's no need to solve again.
// The installed database is not an input: with reuse enabled, a lock stays
// valid as specs are installed or removed.
func HashInputs(p solve.Parameters) []byte {
	h := sha256.New()
	for _, line := range hashingInputs(p) {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return h.Sum(nil)
}

// HashingInputsAsString returns the inputs HashInputs digests, one per line.
func HashingInputsAsString(p solve.Parameters) string {
	var buf bytes.Buffer
	for _, line := range hashingInputs(p) {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.String()
}

func hashingInputs(p solve.Parameters) []string {
	var lines []string
	add := func(section string, fields ...string) {
		lines = append(lines, section+" "+strings.Join(fields, " "))
	}

	for _, r := range p.Roots {
		add("-ROOT-", r.String())
	}

	if p.Repo != nil {
		for _, name := range p.Repo.Names() {
			def, err := p.Repo.Get(name)
			if err != nil {
				continue
			}
			add("-PKG-", name, def.Hash())
		}
	}

	add("-ARCH-", p.Platform.Arch.String())
	for _, c := range p.Platform.Compilers {
		add("-COMPILER-", c.String())
	}

	names := make([]string, 0, len(p.Packages))
	for name := range p.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pp := p.Packages[name]
		for _, vs := range pp.Versions {
			add("-PREFER-", name, "@"+vs.String())
		}
		if pp.Variants != nil {
			add("-PREFER-", name, strings.TrimSpace(pp.Variants.NodeString()))
		}
		if !pp.Compiler.IsZero() {
			add("-PREFER-", name, pp.Compiler.String())
		}
		if len(pp.Providers) > 0 {
			add("-PROVIDERS-", name, strings.Join(pp.Providers, ","))
		}
	}

	add("-REUSE-", strconv.FormatBool(p.Reuse))
	add("-UNIFY-", p.Unify.String())
	add("-TESTS-", strconv.FormatBool(p.Tests))
	return lines
}
