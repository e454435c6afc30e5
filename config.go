// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sprout

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/sprout-pm/sprout/solve"
	"github.com/sprout-pm/sprout/spec"
	"github.com/sprout-pm/sprout/version"
)

// ConfigName is the name of the configuration file under the sprout root.
const ConfigName = "config.toml"

// RootEnv names the environment variable overriding the sprout root.
const RootEnv = "SPROUT_ROOT"

// Config is the parsed configuration of a sprout installation.
type Config struct {
	// Root holds the configuration, the default install tree and database.
	Root        string
	Repos       []string
	InstallTree string
	Database    string
	Stage       string

	Platform solve.Platform
	Reuse    bool
	Unify    solve.Unify
	// MaxAttempts bounds solver backtracking; zero means the solver default.
	MaxAttempts int
	Packages    map[string]solve.PackagePrefs
}

type rawConfig struct {
	Repos       []string                  `toml:"repos"`
	InstallTree string                    `toml:"install_tree"`
	Database    string                    `toml:"database"`
	Stage       string                    `toml:"stage"`
	Platform    rawPlatform               `toml:"platform"`
	Compilers   []rawCompiler             `toml:"compilers,omitempty"`
	Concretizer rawConcretizer            `toml:"concretizer"`
	Packages    map[string]rawPackagePref `toml:"packages,omitempty"`
}

type rawPlatform struct {
	Platform string `toml:"platform"`
	OS       string `toml:"os"`
	Target   string `toml:"target"`
}

type rawCompiler struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

type rawConcretizer struct {
	Reuse       *bool  `toml:"reuse"`
	Unify       string `toml:"unify"`
	MaxAttempts int    `toml:"max_attempts"`
}

type rawPackagePref struct {
	Versions  []string `toml:"versions,omitempty"`
	Variants  string   `toml:"variants,omitempty"`
	Compiler  string   `toml:"compiler,omitempty"`
	Providers []string `toml:"providers,omitempty"`
}

// DefaultRoot returns the sprout root: $SPROUT_ROOT, or ~/.sprout.
func DefaultRoot(env []string) (string, error) {
	if root := getEnv(env, RootEnv); root != "" {
		return filepath.Abs(expandHome(env, root))
	}
	home := getEnv(env, "HOME")
	if home == "" {
		return "", errors.Errorf("neither %s nor HOME is set", RootEnv)
	}
	return filepath.Join(home, ".sprout"), nil
}

// DefaultConfig returns the configuration used when root has no config
// file: a repository at root/repo and a gcc compiler on linux x86_64.
func DefaultConfig(root string) *Config {
	return &Config{
		Root:        root,
		Repos:       []string{filepath.Join(root, "repo")},
		InstallTree: filepath.Join(root, "opt"),
		Database:    filepath.Join(root, "db", "installed.db"),
		Stage:       filepath.Join(root, "stage"),
		Platform: solve.Platform{
			Arch: spec.ArchSpec{Platform: "linux", OS: "unknown", Target: "x86_64"},
			Compilers: []solve.Compiler{
				{Name: "gcc", Version: version.MustVersion("12.2.0")},
			},
		},
		Reuse: true,
	}
}

// LoadConfig reads root/config.toml, falling back to DefaultConfig when the
// file does not exist. env is consulted for "~" expansion.
func LoadConfig(root string, env []string) (*Config, error) {
	path := filepath.Join(root, ConfigName)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return DefaultConfig(root), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}
	defer f.Close()

	c, err := readConfig(f, root, env)
	if err != nil {
		return nil, errors.Wrapf(err, "error while parsing %s", path)
	}
	return c, nil
}

func readConfig(r io.Reader, root string, env []string) (*Config, error) {
	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.Wrap(err, "Unable to read byte stream")
	}

	raw := rawConfig{}
	if err := toml.Unmarshal(buf.Bytes(), &raw); err != nil {
		return nil, errors.Wrap(err, "Unable to parse the config as TOML")
	}
	return fromRawConfig(raw, root, env)
}

func fromRawConfig(raw rawConfig, root string, env []string) (*Config, error) {
	c := DefaultConfig(root)
	resolve := func(p string) string {
		p = expandHome(env, p)
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		return filepath.Clean(p)
	}

	if raw.Repos != nil {
		c.Repos = nil
		for _, r := range raw.Repos {
			c.Repos = append(c.Repos, resolve(r))
		}
	}
	if raw.InstallTree != "" {
		c.InstallTree = resolve(raw.InstallTree)
	}
	if raw.Database != "" {
		c.Database = resolve(raw.Database)
	}
	if raw.Stage != "" {
		c.Stage = resolve(raw.Stage)
	}

	if raw.Platform != (rawPlatform{}) {
		c.Platform.Arch = spec.ArchSpec(raw.Platform)
		if !c.Platform.Arch.Concrete() {
			return nil, errors.Errorf("platform must set platform, os and target, got %q", c.Platform.Arch)
		}
	}
	if raw.Compilers != nil {
		c.Platform.Compilers = nil
		for _, rc := range raw.Compilers {
			if rc.Name == "" {
				return nil, errors.New("compiler entry has no name")
			}
			v, err := version.NewVersion(rc.Version)
			if err != nil {
				return nil, errors.Wrapf(err, "compiler %s", rc.Name)
			}
			c.Platform.Compilers = append(c.Platform.Compilers, solve.Compiler{Name: rc.Name, Version: v})
		}
	}

	if raw.Concretizer.Reuse != nil {
		c.Reuse = *raw.Concretizer.Reuse
	}
	u, err := solve.ParseUnify(raw.Concretizer.Unify)
	if err != nil {
		return nil, err
	}
	c.Unify = u
	if raw.Concretizer.MaxAttempts < 0 {
		return nil, errors.Errorf("max_attempts must not be negative, got %d", raw.Concretizer.MaxAttempts)
	}
	c.MaxAttempts = raw.Concretizer.MaxAttempts

	if len(raw.Packages) > 0 {
		c.Packages = make(map[string]solve.PackagePrefs, len(raw.Packages))
	}
	for name, rp := range raw.Packages {
		p, err := rp.prefs(name)
		if err != nil {
			return nil, err
		}
		c.Packages[name] = p
	}
	return c, nil
}

func (rp rawPackagePref) prefs(name string) (solve.PackagePrefs, error) {
	var p solve.PackagePrefs
	for _, body := range rp.Versions {
		vs, err := version.ParseSet(body)
		if err != nil {
			return p, errors.Wrapf(err, "packages.%s: bad version %q", name, body)
		}
		p.Versions = append(p.Versions, vs)
	}
	if rp.Variants != "" {
		s, err := spec.Parse(rp.Variants)
		if err != nil {
			return p, errors.Wrapf(err, "packages.%s: bad variants", name)
		}
		if !s.Anonymous() {
			return p, errors.Errorf("packages.%s: variants %q must not name a package", name, rp.Variants)
		}
		p.Variants = s
	}
	if rp.Compiler != "" {
		s, err := spec.Parse("%" + strings.TrimPrefix(rp.Compiler, "%"))
		if err != nil {
			return p, errors.Wrapf(err, "packages.%s: bad compiler", name)
		}
		p.Compiler = s.Compiler
	}
	p.Providers = rp.Providers
	return p, nil
}

// MarshalTOML serializes the configuration, with paths relative to Root
// where possible.
func (c *Config) MarshalTOML() ([]byte, error) {
	rel := func(p string) string {
		if r, err := filepath.Rel(c.Root, p); err == nil && !strings.HasPrefix(r, "..") {
			return filepath.ToSlash(r)
		}
		return p
	}

	raw := rawConfig{
		InstallTree: rel(c.InstallTree),
		Database:    rel(c.Database),
		Stage:       rel(c.Stage),
		Platform:    rawPlatform(c.Platform.Arch),
		Concretizer: rawConcretizer{
			Reuse:       &c.Reuse,
			Unify:       c.Unify.String(),
			MaxAttempts: c.MaxAttempts,
		},
	}
	for _, r := range c.Repos {
		raw.Repos = append(raw.Repos, rel(r))
	}
	for _, comp := range c.Platform.Compilers {
		raw.Compilers = append(raw.Compilers, rawCompiler{Name: comp.Name, Version: comp.Version.String()})
	}

	names := make([]string, 0, len(c.Packages))
	for name := range c.Packages {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		raw.Packages = make(map[string]rawPackagePref, len(names))
	}
	for _, name := range names {
		p := c.Packages[name]
		var rp rawPackagePref
		for _, vs := range p.Versions {
			rp.Versions = append(rp.Versions, vs.String())
		}
		if p.Variants != nil {
			rp.Variants = strings.TrimSpace(p.Variants.NodeString())
		}
		if p.Compiler.Name != "" {
			rp.Compiler = strings.TrimPrefix(p.Compiler.String(), "%")
		}
		rp.Providers = p.Providers
		raw.Packages[name] = rp
	}

	return toml.Marshal(raw)
}

func expandHome(env []string, p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home := getEnv(env, "HOME"); home != "" {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// getEnv returns the last instance of an environment variable.
func getEnv(env []string, key string) string {
	for i := len(env) - 1; i >= 0; i-- {
		v := env[i]
		kv := strings.SplitN(v, "=", 2)
		if kv[0] == key {
			if len(kv) > 1 {
				return kv[1]
			}
			return ""
		}
	}
	return ""
}
