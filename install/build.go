// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sprout-pm/sprout/repo"
	"github.com/sprout-pm/sprout/spec"
	"github.com/sprout-pm/sprout/store"
)

// A Builder turns fetched sources into an installation at prefix.
type Builder interface {
	BuildAndInstall(ctx context.Context, s *spec.Spec, srcDir, prefix string) error
}

// BuildError is returned when a phase of a build fails.
type BuildError struct {
	Spec   string
	Phase  string
	Output string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Phase == "" {
		return fmt.Sprintf("failed to install %s: %s", e.Spec, e.Err)
	}
	return fmt.Sprintf("%s phase of %s failed: %s", e.Phase, e.Spec, e.Err)
}

// A phase is one command of a build.
type phase struct {
	name string
	dir  string
	argv []string
}

// CommandBuilder builds packages by running the commands of their build
// system family.
type CommandBuilder struct {
	Repo   *repo.Repository
	Layout store.Layout
	Runner Runner
	// Jobs is the parallelism handed to the build tool; zero means one per
	// CPU.
	Jobs int
}

// BuildAndInstall runs the configure, build and install phases of s.
func (b *CommandBuilder) BuildAndInstall(ctx context.Context, s *spec.Spec, srcDir, prefix string) error {
	def, err := b.Repo.Get(s.Name)
	if err != nil {
		return err
	}
	env, err := b.env(s, prefix)
	if err != nil {
		return &BuildError{Spec: s.NodeString(), Err: err}
	}
	if err := os.MkdirAll(prefix, 0755); err != nil {
		return &BuildError{Spec: s.NodeString(), Err: errors.Wrap(err, "unable to create prefix")}
	}

	for _, p := range b.phases(def.BuildSystem, s, srcDir, prefix) {
		if p.dir != srcDir {
			if err := os.MkdirAll(p.dir, 0755); err != nil {
				return &BuildError{Spec: s.NodeString(), Phase: p.name, Err: err}
			}
		}
		out, err := b.runner().Run(ctx, p.dir, env, p.argv[0], p.argv[1:]...)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &BuildError{Spec: s.NodeString(), Phase: p.name, Output: string(out), Err: err}
		}
	}
	return nil
}

func (b *CommandBuilder) runner() Runner {
	if b.Runner == nil {
		return ExecRunner{}
	}
	return b.Runner
}

func (b *CommandBuilder) jobs() string {
	if b.Jobs > 0 {
		return strconv.Itoa(b.Jobs)
	}
	return strconv.Itoa(runtime.NumCPU())
}

// phases returns the commands of the build system family.
func (b *CommandBuilder) phases(bs repo.BuildSystem, s *spec.Spec, src, prefix string) []phase {
	switch bs {
	case repo.CMake:
		build := filepath.Join(src, "sprout-build")
		configure := []string{"cmake", "-S", src, "-B", build, "-DCMAKE_INSTALL_PREFIX=" + prefix}
		for _, name := range s.Variants.Names() {
			v := s.Variants[name]
			if v.IsBool() {
				configure = append(configure, "-D"+strings.ToUpper(name)+"="+onOff(v.Has("true")))
			} else {
				configure = append(configure, "-D"+strings.ToUpper(name)+"="+strings.Join(v.Values, ";"))
			}
		}
		return []phase{
			{name: "configure", dir: src, argv: configure},
			{name: "build", dir: src, argv: []string{"cmake", "--build", build, "-j", b.jobs()}},
			{name: "install", dir: src, argv: []string{"cmake", "--install", build}},
		}
	case repo.Autotools:
		configure := []string{"./configure", "--prefix=" + prefix}
		for _, name := range s.Variants.Names() {
			v := s.Variants[name]
			switch {
			case !v.IsBool():
				configure = append(configure, "--with-"+name+"="+strings.Join(v.Values, ","))
			case v.Has("true"):
				configure = append(configure, "--enable-"+name)
			default:
				configure = append(configure, "--disable-"+name)
			}
		}
		return []phase{
			{name: "configure", dir: src, argv: configure},
			{name: "build", dir: src, argv: []string{"make", "-j" + b.jobs()}},
			{name: "install", dir: src, argv: []string{"make", "install"}},
		}
	case repo.Makefile:
		return []phase{
			{name: "build", dir: src, argv: []string{"make", "-j" + b.jobs(), "PREFIX=" + prefix}},
			{name: "install", dir: src, argv: []string{"make", "install", "PREFIX=" + prefix}},
		}
	}
	// Bundles install nothing but their dependencies.
	return nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// env returns the build environment of s: its prefix, the compiler, and the
// prefixes of its dependencies.
func (b *CommandBuilder) env(s *spec.Spec, prefix string) ([]string, error) {
	cv, _ := s.Compiler.Versions.Concrete()
	env := []string{
		"SPROUT_PREFIX=" + prefix,
		"SPROUT_SPEC=" + s.NodeString(),
		"SPROUT_COMPILER=" + s.Compiler.Name + "@" + cv.String(),
	}

	var paths []string
	for _, d := range s.Dependencies() {
		if d.Types&(spec.Build|spec.Link) == 0 {
			continue
		}
		p, err := b.Layout.PathFor(d.Spec)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
		env = append(env, "SPROUT_"+envName(d.Spec.Name)+"_PREFIX="+p)
	}
	if len(paths) > 0 {
		env = append(env, "CMAKE_PREFIX_PATH="+strings.Join(paths, string(os.PathListSeparator)))
	}
	return env, nil
}

func envName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '.' {
			return '_'
		}
		return r
	}, strings.ToUpper(name))
}
