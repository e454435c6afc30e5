// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package feedback

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sprout-pm/sprout/spec"
)

// StringDiff represents a modified string value.
// * Added: Previous = "", Current != ""
// * Deleted: Previous != "", Current = ""
// * Modified: Previous != "", Current != ""
// * No Change: Previous = Current, or a nil pointer
type StringDiff struct {
	Previous string
	Current  string
}

func (diff *StringDiff) String() string {
	if diff == nil {
		return ""
	}

	if diff.Previous == "" && diff.Current != "" {
		return fmt.Sprintf("+ %s", diff.Current)
	}

	if diff.Previous != "" && diff.Current == "" {
		return fmt.Sprintf("- %s", diff.Previous)
	}

	if diff.Previous != diff.Current {
		return fmt.Sprintf("%s -> %s", diff.Previous, diff.Current)
	}

	return diff.Current
}

// LockDiff is the set of differences between the nodes of an existing lock
// and an updated one. Fields are only populated when there is a difference.
type LockDiff struct {
	Add    []NodeDiff
	Remove []NodeDiff
	Modify []NodeDiff
}

// NodeDiff contains the before and after snapshot of the nodes of one
// package name. A name may have several nodes when roots are concretized
// separately.
type NodeDiff struct {
	Name string
	Spec *StringDiff
	Hash *StringDiff
}

type nodeSummary struct {
	specs, hashes string
}

func summarize(nodes []*spec.Spec) map[string]nodeSummary {
	byName := make(map[string][]*spec.Spec)
	for _, n := range nodes {
		byName[n.Name] = append(byName[n.Name], n)
	}
	out := make(map[string]nodeSummary, len(byName))
	for name, ns := range byName {
		var specs, hashes []string
		for _, n := range ns {
			specs = append(specs, n.NodeString())
			hashes = append(hashes, n.ShortHash())
		}
		sort.Strings(specs)
		sort.Strings(hashes)
		out[name] = nodeSummary{specs: strings.Join(specs, ", "), hashes: strings.Join(hashes, ", ")}
	}
	return out
}

// DiffNodes compares the nodes of two locks. Returns nil if there are no
// differences.
func DiffNodes(before, after []*spec.Spec) *LockDiff {
	b, a := summarize(before), summarize(after)

	names := make([]string, 0, len(a)+len(b))
	for name := range a {
		names = append(names, name)
	}
	for name := range b {
		if _, has := a[name]; !has {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var diff LockDiff
	for _, name := range names {
		bs, inBefore := b[name]
		as, inAfter := a[name]
		switch {
		case !inBefore:
			diff.Add = append(diff.Add, NodeDiff{
				Name: name,
				Spec: &StringDiff{Current: as.specs},
				Hash: &StringDiff{Current: as.hashes},
			})
		case !inAfter:
			diff.Remove = append(diff.Remove, NodeDiff{
				Name: name,
				Spec: &StringDiff{Previous: bs.specs},
				Hash: &StringDiff{Previous: bs.hashes},
			})
		case bs.hashes != as.hashes:
			nd := NodeDiff{Name: name, Hash: &StringDiff{Previous: bs.hashes, Current: as.hashes}}
			if bs.specs != as.specs {
				nd.Spec = &StringDiff{Previous: bs.specs, Current: as.specs}
			}
			diff.Modify = append(diff.Modify, nd)
		}
	}

	if len(diff.Add) == 0 && len(diff.Remove) == 0 && len(diff.Modify) == 0 {
		return nil
	}
	return &diff
}

// Format renders the diff, one node per line.
func (diff *LockDiff) Format() string {
	if diff == nil {
		return ""
	}

	var buf bytes.Buffer
	section := func(title string, nds []NodeDiff) {
		if len(nds) == 0 {
			return
		}
		fmt.Fprintf(&buf, "%s:\n", title)
		for _, nd := range nds {
			fmt.Fprintf(&buf, "  %s", nd.Name)
			if nd.Spec != nil {
				fmt.Fprintf(&buf, " [%s]", nd.Spec)
			}
			fmt.Fprintf(&buf, " (%s)\n", nd.Hash)
		}
	}
	section("Add", diff.Add)
	section("Remove", diff.Remove)
	section("Modify", diff.Modify)
	return buf.String()
}
