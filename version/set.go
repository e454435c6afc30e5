// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package version

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// A Range is a contiguous span of versions. A zero bound is unbounded.
//
// The upper bound has prefix semantics: a version is under Hi if it sorts at
// or before Hi, or if Hi is a component prefix of it. A range written "1.2"
// therefore admits 1.2, 1.2.0 and 1.2.9, and ":1.4" admits 1.4.7.
//
// An exact range admits its single version and nothing else; it is written
// "=1.2".
type Range struct {
	lo, hi Version
	exact  bool
}

// NewRange returns the range lo:hi. Either bound may be the zero Version.
func NewRange(lo, hi Version) Range {
	return Range{lo: lo, hi: hi}
}

// Exact returns a range admitting only v.
func Exact(v Version) Range {
	return Range{lo: v, hi: v, exact: true}
}

// Lo returns the lower bound of the range.
func (r Range) Lo() Version { return r.lo }

// Hi returns the upper bound of the range.
func (r Range) Hi() Version { return r.hi }

// IsExact reports whether the range admits exactly one version.
func (r Range) IsExact() bool { return r.exact }

// Matches reports whether v is inside the range.
func (r Range) Matches(v Version) bool {
	if r.exact {
		return Compare(v, r.lo) == 0
	}
	if !r.lo.IsZero() && Compare(v, r.lo) < 0 {
		return false
	}
	return r.hi.IsZero() || underHi(v, r.hi)
}

func (r Range) isEmpty() bool {
	if r.exact || r.lo.IsZero() || r.hi.IsZero() {
		return false
	}
	return !underHi(r.lo, r.hi)
}

func (r Range) isFull() bool {
	return !r.exact && r.lo.IsZero() && r.hi.IsZero()
}

func (r Range) String() string {
	switch {
	case r.exact:
		return "=" + r.lo.String()
	case r.isFull():
		return ":"
	case r.lo.IsZero():
		return ":" + r.hi.String()
	case r.hi.IsZero():
		return r.lo.String() + ":"
	case Compare(r.lo, r.hi) == 0:
		return r.lo.String()
	}
	return r.lo.String() + ":" + r.hi.String()
}

// underHi reports whether v is admitted by the upper bound hi.
func underHi(v, hi Version) bool {
	return Compare(v, hi) <= 0 || hi.IsPrefixOf(v)
}

// hiWithin reports whether everything admitted by upper bound h1 is also
// admitted by upper bound h2.
func hiWithin(h1, h2 Version) bool {
	if h2.IsZero() {
		return true
	}
	if h1.IsZero() {
		return false
	}
	if h2.IsPrefixOf(h1) {
		return true
	}
	return Compare(h1, h2) < 0 && !h1.IsPrefixOf(h2)
}

func loWithin(l1, l2 Version) bool {
	if l2.IsZero() {
		return true
	}
	if l1.IsZero() {
		return false
	}
	return Compare(l1, l2) >= 0
}

func minHi(h1, h2 Version) Version {
	if hiWithin(h1, h2) {
		return h1
	}
	return h2
}

func maxHi(h1, h2 Version) Version {
	if hiWithin(h1, h2) {
		return h2
	}
	return h1
}

func maxLo(l1, l2 Version) Version {
	if loWithin(l1, l2) {
		return l1
	}
	return l2
}

func minLo(l1, l2 Version) Version {
	if loWithin(l1, l2) {
		return l2
	}
	return l1
}

func intersectRange(a, b Range) (Range, bool) {
	switch {
	case a.exact && b.exact:
		if Compare(a.lo, b.lo) == 0 {
			return a, true
		}
		return Range{}, false
	case a.exact:
		return a, b.Matches(a.lo)
	case b.exact:
		return b, a.Matches(b.lo)
	}

	r := Range{lo: maxLo(a.lo, b.lo), hi: minHi(a.hi, b.hi)}
	return r, !r.isEmpty()
}

// rangeWithin reports whether every version admitted by a is admitted by b.
func rangeWithin(a, b Range) bool {
	switch {
	case a.exact:
		return b.Matches(a.lo)
	case b.exact:
		return false
	}
	return loWithin(a.lo, b.lo) && hiWithin(a.hi, b.hi)
}

// mergeRange returns the union of a and b if that union is a single range.
func mergeRange(a, b Range) (Range, bool) {
	switch {
	case a.exact && b.exact:
		return a, Compare(a.lo, b.lo) == 0
	case a.exact:
		return b, b.Matches(a.lo)
	case b.exact:
		return a, a.Matches(b.lo)
	}

	if _, ok := intersectRange(a, b); !ok {
		return Range{}, false
	}
	return Range{lo: minLo(a.lo, b.lo), hi: maxHi(a.hi, b.hi)}, true
}

// A Set is a union of version ranges and exact versions.
//
// The zero value is the set of all versions. None returns the empty set,
// which is a regular, distinguishable value: intersecting disjoint sets
// yields None rather than failing.
type Set struct {
	rs   []Range
	none bool
}

// Any returns the set of all versions.
func Any() Set {
	return Set{}
}

// None returns the empty set.
func None() Set {
	return Set{none: true}
}

// NewSet builds a normalized set from the given ranges.
func NewSet(rs ...Range) Set {
	if len(rs) == 0 {
		return None()
	}
	return normalize(append([]Range(nil), rs...))
}

// ExactSet returns a set admitting only v.
func ExactSet(v Version) Set {
	return Set{rs: []Range{Exact(v)}}
}

// ParseSet parses a comma-separated list of ranges as found after "@" in a
// spec: "1.2:1.4,=2.0,3:".
func ParseSet(body string) (Set, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return Set{}, errors.New("empty version constraint")
	}

	var rs []Range
	for _, item := range strings.Split(body, ",") {
		item = strings.TrimSpace(item)
		r, err := parseRange(item)
		if err != nil {
			return Set{}, errors.Wrapf(err, "invalid version constraint %q", body)
		}
		rs = append(rs, r)
	}
	return NewSet(rs...), nil
}

// MustParseSet is like ParseSet, but panics on error.
func MustParseSet(body string) Set {
	s, err := ParseSet(body)
	if err != nil {
		panic(err)
	}
	return s
}

func parseRange(item string) (Range, error) {
	if item == "" {
		return Range{}, errors.New("empty range")
	}

	if strings.HasPrefix(item, "=") {
		v, err := NewVersion(item[1:])
		if err != nil {
			return Range{}, err
		}
		return Exact(v), nil
	}

	if k := strings.Index(item, ":"); k >= 0 {
		var r Range
		var err error
		if lo := item[:k]; lo != "" {
			if r.lo, err = NewVersion(lo); err != nil {
				return Range{}, err
			}
		}
		if hi := item[k+1:]; hi != "" {
			if r.hi, err = NewVersion(hi); err != nil {
				return Range{}, err
			}
		}
		if r.isEmpty() {
			return Range{}, errors.Errorf("lower bound %s is above upper bound %s", r.lo, r.hi)
		}
		return r, nil
	}

	v, err := NewVersion(item)
	if err != nil {
		return Range{}, err
	}
	return Range{lo: v, hi: v}, nil
}

func normalize(rs []Range) Set {
	live := rs[:0]
	for _, r := range rs {
		if r.isFull() {
			return Set{}
		}
		if !r.isEmpty() {
			live = append(live, r)
		}
	}
	if len(live) == 0 {
		return None()
	}

	for merged := true; merged; {
		merged = false
		for i := 0; i < len(live); i++ {
			for j := i + 1; j < len(live); j++ {
				if m, ok := mergeRange(live[i], live[j]); ok {
					live[i] = m
					live = append(live[:j], live[j+1:]...)
					merged = true
					j--
				}
			}
		}
	}

	if len(live) == 1 && live[0].isFull() {
		return Set{}
	}
	sort.Slice(live, func(i, j int) bool {
		return rangeLess(live[i], live[j])
	})
	return Set{rs: live}
}

func rangeLess(a, b Range) bool {
	if a.lo.IsZero() != b.lo.IsZero() {
		return a.lo.IsZero()
	}
	if c := Compare(a.lo, b.lo); c != 0 {
		return c < 0
	}
	if a.exact != b.exact {
		return !a.exact
	}
	return hiWithin(a.hi, b.hi) && !hiWithin(b.hi, a.hi)
}

// IsAny reports whether the set admits every version.
func (s Set) IsAny() bool {
	return !s.none && len(s.rs) == 0
}

// IsNone reports whether the set is empty.
func (s Set) IsNone() bool {
	return s.none
}

// Ranges returns the normalized ranges making up the set. It is nil for both
// the full and the empty set.
func (s Set) Ranges() []Range {
	return append([]Range(nil), s.rs...)
}

// Concrete returns the single version admitted by the set, if the set is
// exactly one exact version.
func (s Set) Concrete() (Version, bool) {
	if len(s.rs) == 1 && s.rs[0].exact {
		return s.rs[0].lo, true
	}
	return Version{}, false
}

// Matches indicates if the provided Version is in the set.
func (s Set) Matches(v Version) bool {
	if s.none {
		return false
	}
	if len(s.rs) == 0 {
		return true
	}
	for _, r := range s.rs {
		if r.Matches(v) {
			return true
		}
	}
	return false
}

// MatchesAny indicates if the intersection of the set with the provided set
// admits any version.
func (s Set) MatchesAny(o Set) bool {
	return !s.Intersect(o).IsNone()
}

// Intersect computes the intersection of the set with the provided set.
func (s Set) Intersect(o Set) Set {
	switch {
	case s.none || o.none:
		return None()
	case s.IsAny():
		return o
	case o.IsAny():
		return s
	}

	var out []Range
	for _, a := range s.rs {
		for _, b := range o.rs {
			if r, ok := intersectRange(a, b); ok {
				out = append(out, r)
			}
		}
	}
	if len(out) == 0 {
		return None()
	}
	return normalize(out)
}

// Union computes the union of the set with the provided set.
func (s Set) Union(o Set) Set {
	switch {
	case s.none:
		return o
	case o.none:
		return s
	case s.IsAny() || o.IsAny():
		return Set{}
	}

	out := make([]Range, 0, len(s.rs)+len(o.rs))
	out = append(out, s.rs...)
	out = append(out, o.rs...)
	return normalize(out)
}

// Satisfies reports whether every version in s is also in o.
func (s Set) Satisfies(o Set) bool {
	switch {
	case s.none || o.IsAny():
		return true
	case o.none:
		return false
	case s.IsAny():
		return false
	}

	for _, a := range s.rs {
		within := false
		for _, b := range o.rs {
			if rangeWithin(a, b) {
				within = true
				break
			}
		}
		if !within {
			return false
		}
	}
	return true
}

// Equal reports whether both sets are the same normalized union.
func (s Set) Equal(o Set) bool {
	return s.Satisfies(o) && o.Satisfies(s)
}

// String renders the set in the syntax ParseSet accepts. The full set is ":"
// and the empty set is "!".
func (s Set) String() string {
	switch {
	case s.none:
		return "!"
	case len(s.rs) == 0:
		return ":"
	}

	parts := make([]string, len(s.rs))
	for k, r := range s.rs {
		parts[k] = r.String()
	}
	return strings.Join(parts, ",")
}
