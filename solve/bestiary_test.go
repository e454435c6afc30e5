// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"github.com/sprout-pm/sprout/repo"
	"github.com/sprout-pm/sprout/spec"
	"github.com/sprout-pm/sprout/version"
)

// Error kinds a fixture may expect.
const (
	errUnsat   = "unsatisfiable"
	errCycle   = "cycle"
	errUnknown = "unknown"
	errTimeout = "timeout"
)

type fixture struct {
	// name of this fixture datum
	n string
	// package definitions making up the repository. Repositories freeze
	// their definitions, so each run builds fresh ones.
	defs func() []*repo.Definition
	// abstract root specs
	roots []string
	// expected versions of every node, by package name
	r map[string]string
	// expected node strings, for the nodes a fixture cares about
	nodes map[string]string
	// kind of error expected, if any
	errk string
	// for unsatisfiable errors, packages that must be named as conflicting
	errp []string
	// for unsatisfiable errors, dependers that must be named as the source
	// of a conflict
	errsrc []string
	// a substring of the error reason
	reason string
	// max number of backtracks the solve may take
	maxAttempts int
	// bound handed to the solver
	limit int
	// include test dependencies of the roots
	tests bool
	prefs map[string]PackagePrefs
}

func mkc(body string) version.Set {
	return version.MustParseSet(body)
}

const arch = " arch=linux-ubuntu22.04-x86_64"

var fixtures = []fixture{
	{
		n: "no dependencies",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("zlib").Version("1.2.13").Version("1.3"),
			}
		},
		roots: []string{"zlib"},
		r:     map[string]string{"zlib": "1.3"},
		nodes: map[string]string{"zlib": "zlib@=1.3%gcc@=12.2.0" + arch},
	},
	{
		n: "simple dependency tree",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").DependsOn("b").DependsOn("c"),
				repo.Package("b").Version("1.0").Version("2.0").DependsOn("d@:1"),
				repo.Package("c").Version("1.0").DependsOn("d"),
				repo.Package("d").Version("1.0").Version("1.1").Version("2.0"),
			}
		},
		roots: []string{"a"},
		r: map[string]string{
			"a": "1.0",
			"b": "2.0",
			"c": "1.0",
			"d": "1.1",
		},
	},
	{
		n: "shared dependency resolves to newest in intersection",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").DependsOn("b@1.0:1.5"),
				repo.Package("c").Version("1.0").DependsOn("b@1.2:2.0"),
				repo.Package("b").Version("1.0").Version("1.2").Version("1.5").Version("2.0"),
			}
		},
		roots: []string{"a", "c"},
		r: map[string]string{
			"a": "1.0",
			"b": "1.5",
			"c": "1.0",
		},
	},
	{
		n: "root version constraint",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").Version("1.1").Version("2.0").DependsOn("b"),
				repo.Package("b").Version("1.0"),
			}
		},
		roots: []string{"a@1"},
		r: map[string]string{
			"a": "1.1",
			"b": "1.0",
		},
	},
	{
		n: "requirement narrows a dependency",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").DependsOn("b"),
				repo.Package("b").Version("1.0").Version("2.0").Version("3.0"),
			}
		},
		roots: []string{"a ^b@:2"},
		r: map[string]string{
			"a": "1.0",
			"b": "2.0",
		},
	},
	{
		n: "preferred version wins over newer",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("b").Version("1.0", repo.Preferred()).Version("2.0"),
			}
		},
		roots: []string{"b"},
		r:     map[string]string{"b": "1.0"},
	},
	{
		n: "deprecated version is offered last",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("b").Version("1.0").Version("2.0", repo.Deprecated()),
			}
		},
		roots: []string{"b"},
		r:     map[string]string{"b": "1.0"},
	},
	{
		n: "deprecated version when asked for",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("b").Version("1.0").Version("2.0", repo.Deprecated()),
			}
		},
		roots: []string{"b@2"},
		r:     map[string]string{"b": "2.0"},
	},
	{
		n: "infinity version after releases",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("b").Version("develop").Version("1.0"),
			}
		},
		roots: []string{"b"},
		r:     map[string]string{"b": "1.0"},
	},
	{
		n: "infinity version on request",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("b").Version("develop").Version("1.0"),
			}
		},
		roots: []string{"b@develop"},
		r:     map[string]string{"b": "develop"},
	},
	{
		n: "exact undeclared version",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("b").Version("1.0").Version("2.0"),
			}
		},
		roots: []string{"b@=1.9"},
		r:     map[string]string{"b": "1.9"},
	},
	{
		n: "configured version preference",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("b").Version("1.0").Version("1.1").Version("2.0"),
			}
		},
		roots: []string{"b"},
		prefs: map[string]PackagePrefs{
			"b": {Versions: []version.Set{mkc("1")}},
		},
		r: map[string]string{"b": "1.1"},
	},
	{
		n: "variant defaults",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").
					BoolVariant("debug", false).
					Variant("flavor", "fast", repo.Values("fast", "small")),
			}
		},
		roots: []string{"a"},
		r:     map[string]string{"a": "1.0"},
		nodes: map[string]string{"a": "a@=1.0~debug%gcc@=12.2.0 flavor=fast" + arch},
	},
	{
		n: "variant from root",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").
					BoolVariant("debug", false).
					Variant("flavor", "fast", repo.Values("fast", "small")),
			}
		},
		roots: []string{"a+debug flavor=small"},
		r:     map[string]string{"a": "1.0"},
		nodes: map[string]string{"a": "a@=1.0+debug%gcc@=12.2.0 flavor=small" + arch},
	},
	{
		n: "configured variant preference",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").BoolVariant("debug", false),
			}
		},
		roots: []string{"a"},
		prefs: map[string]PackagePrefs{
			"a": {Variants: spec.MustParse("+debug")},
		},
		r:     map[string]string{"a": "1.0"},
		nodes: map[string]string{"a": "a@=1.0+debug%gcc@=12.2.0" + arch},
	},
	{
		n: "disallowed variant value",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").Variant("flavor", "fast", repo.Values("fast", "small")),
			}
		},
		roots:  []string{"a flavor=huge"},
		errk:   errUnsat,
		errp:   []string{"a"},
		reason: "does not allow flavor=huge",
	},
	{
		n: "undeclared variant",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0"),
			}
		},
		roots:  []string{"a+shared"},
		errk:   errUnsat,
		errp:   []string{"a"},
		reason: "has no variant shared",
	},
	{
		n: "conditional dependency unset",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").BoolVariant("mpi", false).DependsOn("mpich", repo.When("+mpi")),
				repo.Package("mpich").Version("4.0"),
			}
		},
		roots: []string{"a"},
		r:     map[string]string{"a": "1.0"},
	},
	{
		n: "conditional dependency set",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").BoolVariant("mpi", false).DependsOn("mpich", repo.When("+mpi")),
				repo.Package("mpich").Version("4.0"),
			}
		},
		roots: []string{"a+mpi"},
		r: map[string]string{
			"a":     "1.0",
			"mpich": "4.0",
		},
	},
	{
		n: "conditional dependency on version",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").Version("2.0").DependsOn("b", repo.When("@2:")),
				repo.Package("b").Version("1.0"),
			}
		},
		roots: []string{"a"},
		r: map[string]string{
			"a": "2.0",
			"b": "1.0",
		},
	},
	{
		n: "conflicting root combination",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("pkg").Version("1.0").BoolVariant("feature", false).Conflict("+feature", "@1.0", ""),
			}
		},
		roots:  []string{"pkg@1.0+feature"},
		errk:   errUnsat,
		errp:   []string{"pkg"},
		reason: "pkg@1.0+feature is a conflicting combination",
	},
	{
		n: "conflict skips to another version",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("pkg").Version("1.0").Version("2.0").
					BoolVariant("feature", false).
					Conflict("+feature", "@2.0", "feature was dropped in 2.0"),
			}
		},
		roots: []string{"pkg+feature"},
		r:     map[string]string{"pkg": "1.0"},
	},
	{
		n: "disjoint roots on shared dependency",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").DependsOn("dep@:1.0"),
				repo.Package("b").Version("1.0").DependsOn("dep@2.0:"),
				repo.Package("dep").Version("1.0").Version("2.0"),
			}
		},
		roots:  []string{"a", "b"},
		errk:   errUnsat,
		errp:   []string{"dep"},
		reason: "constraints on dep cannot be satisfied together",
	},
	{
		n: "disjoint requirements",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").DependsOn("dep"),
				repo.Package("b").Version("1.0").DependsOn("dep"),
				repo.Package("dep").Version("1.0").Version("2.0"),
			}
		},
		roots: []string{"a ^dep@:1.0", "b ^dep@2.0:"},
		errk:  errUnsat,
		errp:  []string{"dep"},
	},
	{
		n: "disjoint root and dependency",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").DependsOn("b@2:"),
				repo.Package("b").Version("1.0").Version("2.0"),
			}
		},
		roots:  []string{"a ^b@1"},
		errk:   errUnsat,
		errp:   []string{"b"},
		reason: "no candidate of a satisfies every constraint",
	},
	{
		n: "backtrack to older depender",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").Version("2.0").
					DependsOn("b@2:", repo.When("@2:")).
					DependsOn("b@1", repo.When("@:1")),
				repo.Package("c").Version("1.0").DependsOn("b@1"),
				repo.Package("b").Version("1.0").Version("2.0"),
			}
		},
		roots: []string{"a", "c"},
		r: map[string]string{
			"a": "1.0",
			"b": "1.0",
			"c": "1.0",
		},
		maxAttempts: 2,
	},
	{
		n: "give up after too many attempts",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").Version("2.0").
					DependsOn("b@2:", repo.When("@2:")).
					DependsOn("b@1", repo.When("@:1")),
				repo.Package("c").Version("1.0").DependsOn("b@1"),
				repo.Package("b").Version("1.0").Version("2.0"),
			}
		},
		roots: []string{"a", "c"},
		limit: 1,
		errk:  errTimeout,
	},
	{
		n: "virtual resolved to first provider",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("mpileaks").Version("1.0").DependsOn("mpi").DependsOn("callpath"),
				repo.Package("callpath").Version("1.0").DependsOn("mpi"),
				repo.Package("mpich").Version("4.0").Provide("mpi@3:", ""),
				repo.Package("openmpi").Version("4.1").Provide("mpi@3:", ""),
			}
		},
		roots: []string{"mpileaks"},
		r: map[string]string{
			"mpileaks": "1.0",
			"callpath": "1.0",
			"mpich":    "4.0",
		},
	},
	{
		n: "virtual provider from requirement",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("mpileaks").Version("1.0").DependsOn("mpi").DependsOn("callpath"),
				repo.Package("callpath").Version("1.0").DependsOn("mpi"),
				repo.Package("mpich").Version("4.0").Provide("mpi@3:", ""),
				repo.Package("openmpi").Version("4.1").Provide("mpi@3:", ""),
			}
		},
		roots: []string{"mpileaks ^openmpi"},
		r: map[string]string{
			"mpileaks": "1.0",
			"callpath": "1.0",
			"openmpi":  "4.1",
		},
	},
	{
		n: "virtual provider from configuration",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("mpileaks").Version("1.0").DependsOn("mpi"),
				repo.Package("mpich").Version("4.0").Provide("mpi@3:", ""),
				repo.Package("openmpi").Version("4.1").Provide("mpi@3:", ""),
			}
		},
		roots: []string{"mpileaks"},
		prefs: map[string]PackagePrefs{
			"mpi": {Providers: []string{"openmpi", "mpich"}},
		},
		r: map[string]string{
			"mpileaks": "1.0",
			"openmpi":  "4.1",
		},
	},
	{
		n: "virtual version rules out provider",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("mpileaks").Version("1.0").DependsOn("mpi@3:"),
				repo.Package("mpich").Version("1.2").Provide("mpi@2", ""),
				repo.Package("openmpi").Version("4.1").Provide("mpi@3:", ""),
			}
		},
		roots: []string{"mpileaks"},
		r: map[string]string{
			"mpileaks": "1.0",
			"openmpi":  "4.1",
		},
	},
	{
		n: "conditional provide picks provider version",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("mpileaks").Version("1.0").DependsOn("mpi@2"),
				repo.Package("mpich").Version("4.0").Version("3.0").
					Provide("mpi@3:", "@4:").
					Provide("mpi@2", "@:3"),
			}
		},
		roots: []string{"mpileaks"},
		r: map[string]string{
			"mpileaks": "1.0",
			"mpich":    "3.0",
		},
	},
	{
		n: "no provider satisfies virtual",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("mpileaks").Version("1.0").DependsOn("mpi@4:"),
				repo.Package("mpich").Version("1.2").Provide("mpi@2", ""),
			}
		},
		roots: []string{"mpileaks"},
		errk:  errUnsat,
		errp:  []string{"mpi"},
	},
	{
		n: "compiler from root propagates",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").DependsOn("b"),
				repo.Package("b").Version("1.0"),
			}
		},
		roots: []string{"a%clang"},
		r: map[string]string{
			"a": "1.0",
			"b": "1.0",
		},
		nodes: map[string]string{
			"a": "a@=1.0%clang@=15.0.0" + arch,
			"b": "b@=1.0%clang@=15.0.0" + arch,
		},
	},
	{
		n: "configured compiler preference",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0"),
			}
		},
		roots: []string{"a"},
		prefs: map[string]PackagePrefs{
			"a": {Compiler: spec.CompilerSpec{Name: "clang"}},
		},
		r:     map[string]string{"a": "1.0"},
		nodes: map[string]string{"a": "a@=1.0%clang@=15.0.0" + arch},
	},
	{
		n: "unavailable compiler",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0"),
			}
		},
		roots: []string{"a%intel"},
		errk:  errUnsat,
		errp:  []string{"a"},
	},
	{
		n: "arch from root",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0"),
			}
		},
		roots: []string{"a target=aarch64"},
		r:     map[string]string{"a": "1.0"},
		nodes: map[string]string{"a": "a@=1.0%gcc@=12.2.0 arch=linux-ubuntu22.04-aarch64"},
	},
	{
		n: "test dependencies of roots",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").DependsOn("b").DependsOn("check", repo.Type(spec.Test)),
				repo.Package("b").Version("1.0").DependsOn("cunit", repo.Type(spec.Test)),
				repo.Package("check").Version("0.15"),
				repo.Package("cunit").Version("2.1"),
			}
		},
		roots: []string{"a"},
		tests: true,
		r: map[string]string{
			"a":     "1.0",
			"b":     "1.0",
			"check": "0.15",
		},
	},
	{
		n: "test dependencies skipped",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").DependsOn("check", repo.Type(spec.Test)),
				repo.Package("check").Version("0.15"),
			}
		},
		roots: []string{"a"},
		r:     map[string]string{"a": "1.0"},
	},
	{
		n: "unknown dependency",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").DependsOn("nope"),
			}
		},
		roots: []string{"a"},
		errk:  errUnknown,
	},
	{
		n: "unconditional cycle",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").DependsOn("b"),
				repo.Package("b").Version("1.0").DependsOn("a"),
			}
		},
		roots: []string{"a"},
		errk:  errCycle,
	},
	{
		n: "conditional cycle is not taken",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").DependsOn("b"),
				repo.Package("b").Version("1.0").BoolVariant("x", false).DependsOn("a", repo.When("+x")),
			}
		},
		roots: []string{"a"},
		r: map[string]string{
			"a": "1.0",
			"b": "1.0",
		},
	},
	{
		n: "conditional cycle forced",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").DependsOn("b"),
				repo.Package("b").Version("1.0").BoolVariant("x", false).DependsOn("a", repo.When("+x")),
			}
		},
		roots:  []string{"a ^b+x"},
		errk:   errUnsat,
		reason: "dependency cycle",
	},
	{
		n: "requirement nothing depends on",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0"),
				repo.Package("zlib").Version("1.3"),
			}
		},
		roots:  []string{"a ^zlib"},
		errk:   errUnsat,
		errp:   []string{"zlib"},
		reason: "a does not depend on zlib",
	},
	{
		n: "two roots share a package",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").DependsOn("zlib"),
				repo.Package("zlib").Version("1.2").Version("1.3"),
			}
		},
		roots: []string{"a", "zlib@1.2"},
		r: map[string]string{
			"a":    "1.0",
			"zlib": "1.2",
		},
	},
	{
		n: "exhausted dependency fails its dependers",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("r").Version("1.0").DependsOn("a").DependsOn("b"),
				repo.Package("a").Version("1.0").Version("2.0").DependsOn("m", repo.When("@2.0")),
				repo.Package("m").Version("1.0").DependsOn("x+v"),
				repo.Package("b").Version("1.0").DependsOn("x@1"),
				repo.Package("x").Version("1.0").Version("2.0").
					BoolVariant("v", false).
					Conflict("+v", "@1", ""),
			}
		},
		roots: []string{"r"},
		r: map[string]string{
			"r": "1.0",
			"a": "1.0",
			"b": "1.0",
			"x": "1.0",
		},
		nodes: map[string]string{"x": "x@=1.0~v%gcc@=12.2.0" + arch},
	},
	{
		n: "conflict names the dependers that forced it",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("r").Version("1.0").DependsOn("a").DependsOn("b"),
				repo.Package("a").Version("2.0").DependsOn("m"),
				repo.Package("m").Version("1.0").DependsOn("x+v"),
				repo.Package("b").Version("1.0").DependsOn("x@1"),
				repo.Package("x").Version("1.0").Version("2.0").
					BoolVariant("v", false).
					Conflict("+v", "@1", ""),
			}
		},
		roots:  []string{"r"},
		errk:   errUnsat,
		errp:   []string{"x"},
		errsrc: []string{"m", "b"},
		reason: "x@1+v is a conflicting combination",
	},
	{
		n: "multi-valued variant accumulates values",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("r").Version("1.0").DependsOn("a").DependsOn("b"),
				repo.Package("a").Version("1.0").DependsOn("llvm targets=arm"),
				repo.Package("b").Version("1.0").DependsOn("llvm targets=amdgpu"),
				repo.Package("llvm").Version("15.0").
					Variant("targets", "x86", repo.Values("amdgpu", "arm", "x86"), repo.Multi()),
			}
		},
		roots: []string{"r"},
		r: map[string]string{
			"r":    "1.0",
			"a":    "1.0",
			"b":    "1.0",
			"llvm": "15.0",
		},
		nodes: map[string]string{"llvm": "llvm@=15.0%gcc@=12.2.0 targets=amdgpu,arm" + arch},
	},
	{
		n: "multi-valued variant from user",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("a").Version("1.0").DependsOn("llvm targets=arm"),
				repo.Package("llvm").Version("15.0").
					Variant("targets", "x86", repo.Values("amdgpu", "arm", "x86"), repo.Multi()),
			}
		},
		roots: []string{"a ^llvm targets=x86"},
		r: map[string]string{
			"a":    "1.0",
			"llvm": "15.0",
		},
		nodes: map[string]string{"llvm": "llvm@=15.0%gcc@=12.2.0 targets=arm,x86" + arch},
	},
	{
		n: "direct dependency is the provider",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("app").Version("1.0").DependsOn("mpi").DependsOn("zmpi"),
				repo.Package("openmpi").Version("4.1").Provide("mpi@3:", ""),
				repo.Package("zmpi").Version("1.0").Provide("mpi@3:", ""),
			}
		},
		roots: []string{"app"},
		r: map[string]string{
			"app":  "1.0",
			"zmpi": "1.0",
		},
	},
	{
		n: "second provider of a virtual",
		defs: func() []*repo.Definition {
			return []*repo.Definition{
				repo.Package("app").Version("1.0").DependsOn("mpi@3:").DependsOn("zmpi"),
				repo.Package("openmpi").Version("4.1").Provide("mpi@3:", ""),
				repo.Package("zmpi").Version("1.0").Provide("mpi@2", ""),
			}
		},
		roots:  []string{"app"},
		errk:   errUnsat,
		errp:   []string{"mpi"},
		reason: "cannot both provide mpi",
	},
}
