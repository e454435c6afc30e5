// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store keeps track of installed specs: where each concrete spec is
// installed on disk, and a database of what has been installed.
package store

import (
	"path/filepath"

	"github.com/sprout-pm/sprout/spec"
)

// A Layout decides the install prefix of concrete specs.
type Layout interface {
	PathFor(s *spec.Spec) (string, error)
}

// HashLayout installs every spec in its own directory under Root:
//
//	{platform}-{os}-{target}/{compiler}-{compiler_version}/{name}-{version}-{hash7}
//
// Distinct dag hashes always get distinct prefixes.
type HashLayout struct {
	Root string
}

// PathFor returns the install prefix of s, which must be concrete.
func (l HashLayout) PathFor(s *spec.Spec) (string, error) {
	if !s.Concrete() {
		return "", &spec.SpecNotConcreteError{Spec: s.String(), Op: "install path"}
	}
	v, _ := s.Version()
	cv, _ := s.Compiler.Versions.Concrete()
	return filepath.Join(
		l.Root,
		s.Arch.String(),
		s.Compiler.Name+"-"+cv.String(),
		s.Name+"-"+v.String()+"-"+s.ShortHash(),
	), nil
}
