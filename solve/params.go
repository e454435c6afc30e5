// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"io/ioutil"
	"log"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sprout-pm/sprout/repo"
	"github.com/sprout-pm/sprout/spec"
	"github.com/sprout-pm/sprout/version"
)

// DefaultMaxAttempts bounds the number of backtracks when Parameters leaves
// MaxAttempts unset.
const DefaultMaxAttempts = 10000

// Unify selects how several roots share packages.
type Unify uint8

const (
	// Strict concretizes every root into one DAG holding a single node per
	// package name.
	Strict Unify = iota
	// Separate concretizes each root on its own. Nodes the roots happen to
	// agree on are shared; the rest may differ.
	Separate
)

func (u Unify) String() string {
	if u == Separate {
		return "separate"
	}
	return "strict"
}

// ParseUnify parses "strict" or "separate". The empty string is Strict.
func ParseUnify(s string) (Unify, error) {
	switch s {
	case "", "strict":
		return Strict, nil
	case "separate":
		return Separate, nil
	}
	return Strict, errors.Errorf("unknown unify mode %q, expected strict or separate", s)
}

// Compiler is one compiler available on the platform.
type Compiler struct {
	Name    string
	Version version.Version
}

func (c Compiler) String() string {
	return c.Name + "@" + c.Version.String()
}

func (c Compiler) spec() spec.CompilerSpec {
	return spec.CompilerSpec{Name: c.Name, Versions: version.ExactSet(c.Version)}
}

// Platform describes the machine packages are built for. Compilers are listed
// in order of preference.
type Platform struct {
	Arch      spec.ArchSpec
	Compilers []Compiler
}

// PackagePrefs are the configured preferences for one package name. For a
// virtual package only Providers is meaningful.
type PackagePrefs struct {
	// Versions are tried in order, before the repository's own preferences.
	Versions []version.Set
	// Variants is an anonymous spec whose variants replace the declared
	// defaults.
	Variants *spec.Spec
	Compiler spec.CompilerSpec
	// Providers orders the providers of a virtual package.
	Providers []string
}

// An InstalledIndex answers which installed specs could be reused.
type InstalledIndex interface {
	// FindCompatible returns the installed concrete specs whose node
	// satisfies c, best candidate first.
	FindCompatible(c *spec.Spec) ([]*spec.Spec, error)
}

// Parameters hold all the inputs of a concretization.
type Parameters struct {
	// Roots are the abstract specs to concretize. Their "^" dependencies are
	// requirements on the whole DAG.
	Roots []*spec.Spec

	Repo     *repo.Repository
	Platform Platform
	Packages map[string]PackagePrefs

	// Installed is consulted for reusable specs when Reuse is set, and for
	// every "/hash" pin.
	Installed InstalledIndex
	Reuse     bool

	Unify Unify

	// Tests includes the test dependencies of the roots.
	Tests bool

	// MaxAttempts bounds backtracking; zero means DefaultMaxAttempts.
	MaxAttempts int

	// TraceLogger receives a rendering of the search when set.
	TraceLogger *log.Logger
	// Logger receives structured solver events; nil discards them.
	Logger *logrus.Logger

	Metrics *Metrics
}

func (p Parameters) validate() error {
	if len(p.Roots) == 0 {
		return errors.New("no root specs to concretize")
	}
	if p.Repo == nil {
		return errors.New("no package repository to concretize against")
	}
	if !p.Platform.Arch.Concrete() {
		return errors.Errorf("platform architecture %q is incomplete", p.Platform.Arch)
	}
	if len(p.Platform.Compilers) == 0 {
		return errors.New("no compilers are configured for the platform")
	}
	if p.MaxAttempts < 0 {
		return errors.Errorf("max attempts must not be negative, got %d", p.MaxAttempts)
	}

	for _, r := range p.Roots {
		if r.Anonymous() {
			return errors.Errorf("cannot concretize anonymous spec %q", r)
		}
		if p.Repo.IsVirtual(r.Name) {
			return errors.Errorf("cannot concretize virtual package %s; name one of its providers", r.Name)
		}
		if _, err := p.Repo.Get(r.Name); err != nil {
			return err
		}
	}
	return nil
}

func (p Parameters) logger() *logrus.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	l := logrus.New()
	l.Out = ioutil.Discard
	return l
}

func (p Parameters) maxAttempts() int {
	if p.MaxAttempts == 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}
