// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package feedback

import (
	"fmt"
	"log"

	"github.com/sprout-pm/sprout/solve"
	"github.com/sprout-pm/sprout/spec"
)

// DepTypeRoot represents a spec the user asked for.
const DepTypeRoot = "root"

// DepTypeTransitive represents a dependency of a root, or a dependency of a
// dependency.
const DepTypeTransitive = "transitive dep"

// NodeFeedback holds what a solution chose for one node.
type NodeFeedback struct {
	Spec, Hash, DependencyType string
	Reused                     bool
}

// FromSolution returns the feedback for every node of sol, dependencies
// first.
func FromSolution(sol *solve.Solution) []NodeFeedback {
	roots := make(map[*spec.Spec]bool, len(sol.Roots))
	for _, r := range sol.Roots {
		roots[r] = true
	}
	var out []NodeFeedback
	for _, n := range sol.InstallOrder() {
		nf := NodeFeedback{
			Spec:           n.NodeString(),
			Hash:           n.ShortHash(),
			DependencyType: DepTypeTransitive,
			Reused:         sol.IsReused(n),
		}
		if roots[n] {
			nf.DependencyType = DepTypeRoot
		}
		out = append(out, nf)
	}
	return out
}

// LogFeedback logs the feedback
func (nf NodeFeedback) LogFeedback(logger *log.Logger) {
	if nf.Reused {
		logger.Printf("  %v", GetReusingFeedback(nf.Spec, nf.Hash, nf.DependencyType))
		return
	}
	logger.Printf("  %v", GetUsingFeedback(nf.Spec, nf.Hash, nf.DependencyType))
}

// GetUsingFeedback returns node using feedback string.
// Example:
// Using zlib@1.3%gcc@12.2.0 arch=linux-ubuntu22.04-x86_64 (7jyqb2m) for transitive dep
func GetUsingFeedback(node, hash, depType string) string {
	return fmt.Sprintf("Using %s (%s) for %s", node, hash, depType)
}

// GetReusingFeedback returns node reusing feedback string.
// Example:
// Reusing installed zlib@1.3%gcc@12.2.0 arch=linux-ubuntu22.04-x86_64 (7jyqb2m) for root
func GetReusingFeedback(node, hash, depType string) string {
	return fmt.Sprintf("Reusing installed %s (%s) for %s", node, hash, depType)
}
