// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package version implements version identifiers and the set algebra used to
// constrain them.
//
// A version is a sequence of numeric and alphabetic components. Separators
// (".", "-", "_") split components but carry no meaning for ordering. The
// ordering policy for pre-release markers is fixed:
//
//	1.0.dev1 < 1.0alpha < 1.0beta2 < 1.0pre < 1.0rc1 < 1.0 < 1.0a < 1.0.1
//
// Alphabetic components that are not markers sort below numbers and above
// markers, except for the "infinity" names (develop, main, master, head,
// trunk, stable), which sort above every number.
package version

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var markerRank = map[string]int{
	"dev":   0,
	"alpha": 1,
	"beta":  2,
	"pre":   3,
	"rc":    4,
}

var infinityRank = map[string]int{
	"stable":  0,
	"trunk":   1,
	"head":    2,
	"master":  3,
	"main":    4,
	"develop": 5,
}

type component struct {
	// s holds digits with leading zeros trimmed for numeric components, and
	// the lowercased text for alphabetic ones.
	s     string
	isNum bool
}

func (c component) isMarker() bool {
	if c.isNum {
		return false
	}
	_, has := markerRank[c.s]
	return has
}

func (c component) isInfinity() bool {
	if c.isNum {
		return false
	}
	_, has := infinityRank[c.s]
	return has
}

// Version is a single, parsed version identifier. The zero Version is not a
// valid version; where a bound is expected it means "unbounded".
type Version struct {
	raw   string
	comps []component
}

// NewVersion parses a version string.
func NewVersion(body string) (Version, error) {
	if body == "" {
		return Version{}, errors.New("empty version string")
	}

	v := Version{raw: body}
	pos := 0
	for pos < len(body) {
		c := body[pos]
		switch {
		case isDigit(c):
			start := pos
			for pos < len(body) && isDigit(body[pos]) {
				pos++
			}
			num := strings.TrimLeft(body[start:pos], "0")
			if num == "" {
				num = "0"
			}
			v.comps = append(v.comps, component{s: num, isNum: true})
		case isAlpha(c):
			start := pos
			for pos < len(body) && isAlpha(body[pos]) {
				pos++
			}
			v.comps = append(v.comps, component{s: strings.ToLower(body[start:pos])})
		case c == '.' || c == '-' || c == '_':
			pos++
		default:
			return Version{}, errors.Errorf("invalid character %q in version %q", c, body)
		}
	}

	if len(v.comps) == 0 {
		return Version{}, errors.Errorf("version %q has no components", body)
	}
	return v, nil
}

// MustVersion is like NewVersion, but panics on a malformed version. It is
// intended for tests and package-level fixtures.
func MustVersion(body string) Version {
	v, err := NewVersion(body)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as it was originally written.
func (v Version) String() string {
	return v.raw
}

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool {
	return len(v.comps) == 0
}

// IsInfinity reports whether v is a development line such as "develop" or
// "main", which sorts above every numbered release.
func (v Version) IsInfinity() bool {
	return len(v.comps) > 0 && v.comps[0].isInfinity()
}

// IsPrerelease reports whether any component of v is a pre-release marker.
func (v Version) IsPrerelease() bool {
	for _, c := range v.comps {
		if c.isMarker() {
			return true
		}
	}
	return false
}

// Equal reports whether v and o are the same version under the version
// ordering; "1.0" and "1-0" are equal.
func (v Version) Equal(o Version) bool {
	return Compare(v, o) == 0
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool {
	return Compare(v, o) < 0
}

// IsPrefixOf reports whether the components of v are a prefix of (or equal
// to) the components of o. "1.4" is a prefix of "1.4.2".
func (v Version) IsPrefixOf(o Version) bool {
	if len(v.comps) > len(o.comps) {
		return false
	}
	for k, c := range v.comps {
		if compareComponent(c, o.comps[k]) != 0 {
			return false
		}
	}
	return true
}

// Compare returns -1, 0 or 1 as a sorts before, equal to, or after b.
func Compare(a, b Version) int {
	n := len(a.comps)
	if len(b.comps) < n {
		n = len(b.comps)
	}

	for i := 0; i < n; i++ {
		if c := compareComponent(a.comps[i], b.comps[i]); c != 0 {
			return c
		}
	}

	switch {
	case len(a.comps) == len(b.comps):
		return 0
	case len(a.comps) > len(b.comps):
		if a.comps[n].isMarker() {
			return -1
		}
		return 1
	default:
		if b.comps[n].isMarker() {
			return 1
		}
		return -1
	}
}

func compareComponent(a, b component) int {
	switch {
	case a.isNum && b.isNum:
		return compareNumeric(a.s, b.s)
	case a.isNum:
		if b.isInfinity() {
			return -1
		}
		return 1
	case b.isNum:
		if a.isInfinity() {
			return 1
		}
		return -1
	}

	ai, aInf := infinityRank[a.s]
	bi, bInf := infinityRank[b.s]
	switch {
	case aInf && bInf:
		return compareInt(ai, bi)
	case aInf:
		return 1
	case bInf:
		return -1
	}

	am, aMark := markerRank[a.s]
	bm, bMark := markerRank[b.s]
	switch {
	case aMark && bMark:
		return compareInt(am, bm)
	case aMark:
		return -1
	case bMark:
		return 1
	}

	return strings.Compare(a.s, b.s)
}

// compareNumeric compares two digit strings without leading zeros, so that
// arbitrarily long components (dates, build numbers) order correctly.
func compareNumeric(a, b string) int {
	if len(a) != len(b) {
		return compareInt(len(a), len(b))
	}
	return strings.Compare(a, b)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// SortNewestFirst sorts versions from newest to oldest. The sort is stable,
// so equal versions written differently keep their relative order.
func SortNewestFirst(vl []Version) {
	sort.SliceStable(vl, func(i, j int) bool {
		return Compare(vl[i], vl[j]) > 0
	})
}

// SortOldestFirst sorts versions from oldest to newest.
func SortOldestFirst(vl []Version) {
	sort.SliceStable(vl, func(i, j int) bool {
		return Compare(vl[i], vl[j]) < 0
	})
}
