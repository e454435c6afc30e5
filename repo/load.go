// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package repo

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/karrick/godirwalk"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/sprout-pm/sprout/spec"
)

// RecipeName is the file name of a package recipe.
const RecipeName = "package.toml"

type rawRecipe struct {
	Name        string          `toml:"name"`
	Homepage    string          `toml:"homepage"`
	BuildSystem string          `toml:"build_system"`
	Source      rawSource       `toml:"source"`
	Versions    []rawVersion    `toml:"versions"`
	Variants    []rawVariant    `toml:"variants"`
	DependsOn   []rawDependency `toml:"depends_on"`
	Conflicts   []rawConflict   `toml:"conflicts"`
	Provides    []rawProvide    `toml:"provides"`
}

type rawSource struct {
	Git  string `toml:"git"`
	URL  string `toml:"url"`
	Path string `toml:"path"`
}

type rawVersion struct {
	Version    string `toml:"version"`
	Preferred  bool   `toml:"preferred"`
	Deprecated bool   `toml:"deprecated"`
	Tag        string `toml:"tag"`
	Commit     string `toml:"commit"`
}

type rawVariant struct {
	Name        string   `toml:"name"`
	Default     string   `toml:"default"`
	Values      []string `toml:"values"`
	Multi       bool     `toml:"multi"`
	Description string   `toml:"description"`
}

type rawDependency struct {
	Spec string   `toml:"spec"`
	When string   `toml:"when"`
	Type []string `toml:"type"`
}

type rawConflict struct {
	Spec string `toml:"spec"`
	When string `toml:"when"`
	Msg  string `toml:"msg"`
}

type rawProvide struct {
	Spec string `toml:"spec"`
	When string `toml:"when"`
}

// ReadRecipe parses a package.toml recipe. dir is used to resolve a relative
// source path.
func ReadRecipe(r io.Reader, dir string) (*Definition, error) {
	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.Wrap(err, "Unable to read byte stream")
	}

	raw := rawRecipe{}
	if err := toml.Unmarshal(buf.Bytes(), &raw); err != nil {
		return nil, errors.Wrap(err, "Unable to parse the recipe as TOML")
	}
	return fromRaw(raw, dir)
}

func fromRaw(raw rawRecipe, dir string) (*Definition, error) {
	if raw.Name == "" {
		return nil, errors.New("recipe has no name")
	}
	d := Package(raw.Name)
	d.Homepage = raw.Homepage

	bs, err := ParseBuildSystem(raw.BuildSystem)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", raw.Name)
	}
	d.BuildSystem = bs

	d.Source = Source(raw.Source)
	if d.Source.Path != "" && !filepath.IsAbs(d.Source.Path) {
		d.Source.Path = filepath.Join(dir, d.Source.Path)
	}

	for _, v := range raw.Versions {
		v := v
		err := d.addVersion(v.Version, func(decl *VersionDecl) {
			decl.Preferred = v.Preferred
			decl.Deprecated = v.Deprecated
			decl.Tag = v.Tag
			decl.Commit = v.Commit
		})
		if err != nil {
			return nil, err
		}
	}

	for _, v := range raw.Variants {
		var opts []VariantOption
		if v.Values != nil {
			opts = append(opts, Values(v.Values...))
		}
		if v.Multi {
			opts = append(opts, Multi())
		}
		if v.Description != "" {
			opts = append(opts, Description(v.Description))
		}
		if err := d.addVariant(v.Name, v.Default, opts...); err != nil {
			return nil, err
		}
	}

	for _, dep := range raw.DependsOn {
		types, err := spec.ParseDepTypes(dep.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: dependency %s", raw.Name, dep.Spec)
		}
		if err := d.addDependency(dep.Spec, dep.When, types); err != nil {
			return nil, err
		}
	}

	for _, c := range raw.Conflicts {
		if err := d.addConflict(c.Spec, c.When, c.Msg); err != nil {
			return nil, err
		}
	}

	for _, p := range raw.Provides {
		if err := d.addProvide(p.Spec, p.When); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// LoadDir walks root for package.toml recipes and returns them sorted by
// name.
func LoadDir(root string) ([]*Definition, error) {
	var defs []*Definition
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				if path != root && de.Name()[0] == '.' {
					return godirwalk.SkipThis
				}
				return nil
			}
			if de.Name() != RecipeName {
				return nil
			}

			f, err := os.Open(path)
			if err != nil {
				return errors.Wrapf(err, "unable to open %s", path)
			}
			defer f.Close()

			d, err := ReadRecipe(f, filepath.Dir(path))
			if err != nil {
				return errors.Wrapf(err, "error while parsing %s", path)
			}
			defs = append(defs, d)
			return nil
		},
		Unsorted: true,
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	for k := 1; k < len(defs); k++ {
		if defs[k].Name == defs[k-1].Name {
			return nil, errors.Errorf("package %s is defined twice under %s", defs[k].Name, root)
		}
	}
	return defs, nil
}

// Load builds a repository from several recipe directories. A package found
// in an earlier directory shadows one of the same name in a later directory.
func Load(roots ...string) (*Repository, error) {
	var all []*Definition
	for _, root := range roots {
		defs, err := LoadDir(root)
		if err != nil {
			return nil, err
		}
		all = append(all, defs...)
	}
	return New(all...)
}
