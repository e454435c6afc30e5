// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package repo

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// UnknownPackageError is returned when a name is neither a package nor a
// virtual package of the repository.
type UnknownPackageError struct {
	Name string
}

func (e *UnknownPackageError) Error() string {
	return fmt.Sprintf("unknown package %q", e.Name)
}

// A Repository maps package names to frozen definitions. It is read-only once
// built and safe for concurrent use.
type Repository struct {
	defs      map[string]*Definition
	providers map[string][]*Definition
}

// New freezes defs and builds a repository from them. Earlier definitions win
// over later ones with the same name, which is how layered repositories
// shadow each other.
func New(defs ...*Definition) (*Repository, error) {
	r := &Repository{
		defs:      make(map[string]*Definition, len(defs)),
		providers: make(map[string][]*Definition),
	}
	for _, d := range defs {
		if _, has := r.defs[d.Name]; has {
			continue
		}
		if err := d.Freeze(); err != nil {
			return nil, err
		}
		r.defs[d.Name] = d
	}

	for _, d := range r.defs {
		for _, dep := range d.Dependencies {
			if t, has := r.defs[dep.Spec.Name]; has {
				t.MarkMulti(dep.Spec)
			}
		}

		seen := make(map[string]bool)
		for _, p := range d.Provides {
			v := p.Virtual.Name
			if _, has := r.defs[v]; has {
				return nil, errors.Errorf("%s provides %s, which is a concrete package", d.Name, v)
			}
			if !seen[v] {
				seen[v] = true
				r.providers[v] = append(r.providers[v], d)
			}
		}
	}
	for _, ps := range r.providers {
		sort.Slice(ps, func(i, j int) bool {
			return ps[i].Name < ps[j].Name
		})
	}
	return r, nil
}

// MustNew is like New, but panics on error.
func MustNew(defs ...*Definition) *Repository {
	r, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the definition of a concrete package.
func (r *Repository) Get(name string) (*Definition, error) {
	d, has := r.defs[name]
	if !has {
		return nil, &UnknownPackageError{Name: name}
	}
	return d, nil
}

// ProvidersOf returns the packages providing virtual, sorted by name.
func (r *Repository) ProvidersOf(virtual string) []*Definition {
	return append([]*Definition(nil), r.providers[virtual]...)
}

// IsVirtual reports whether name is provided by some package.
func (r *Repository) IsVirtual(name string) bool {
	return len(r.providers[name]) > 0
}

// Exists reports whether name is a package or a virtual package.
func (r *Repository) Exists(name string) bool {
	_, has := r.defs[name]
	return has || r.IsVirtual(name)
}

// Names returns the sorted names of every concrete package.
func (r *Repository) Names() []string {
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Virtuals returns the sorted names of every virtual package.
func (r *Repository) Virtuals() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
