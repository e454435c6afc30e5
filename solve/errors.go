// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sprout-pm/sprout/repo"
	"github.com/sprout-pm/sprout/spec"
)

type traceError interface {
	traceString() string
}

// failure is an error that rejects a candidate, as opposed to one that aborts
// the solve. Failures turn into *spec.UnsatisfiableSpecError when the search
// runs out of choices.
type failure interface {
	error
	traceError
	reason() string
	conflicts() []spec.Conflict
}

// unsatisfiable converts the failure that ended the search.
func unsatisfiable(f failure) *spec.UnsatisfiableSpecError {
	return &spec.UnsatisfiableSpecError{
		Reason:    f.reason(),
		Conflicts: dedupConflicts(f.conflicts()),
	}
}

func dedupConflicts(cs []spec.Conflict) []spec.Conflict {
	seen := make(map[spec.Conflict]bool, len(cs))
	var out []spec.Conflict
	for _, c := range cs {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

type noVersionError struct {
	name  string
	fails []failedCandidate
	// deps are the constraints on name when the search gave up on it.
	deps []dependency
}

func (e *noVersionError) Error() string {
	var buf bytes.Buffer
	if len(e.fails) == 0 {
		fmt.Fprintf(&buf, "No candidates for %s meet the constraints:", e.name)
		for _, d := range e.deps {
			fmt.Fprintf(&buf, "\n\t%s", d)
		}
		return buf.String()
	}

	fmt.Fprintf(&buf, "Could not find any candidate for %s that met constraints:", e.name)
	for _, f := range e.fails {
		fmt.Fprintf(&buf, "\n\t%s: %s", f.a, failText(f.f))
	}
	return buf.String()
}

func (e *noVersionError) traceString() string {
	if len(e.fails) == 0 {
		var parts []string
		for _, d := range e.deps {
			parts = append(parts, d.String())
		}
		return fmt.Sprintf("no candidates of %s for %s", e.name, strings.Join(parts, ", "))
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "No candidates of %s met constraints:", e.name)
	for _, f := range e.fails {
		if te, ok := f.f.(traceError); ok {
			fmt.Fprintf(&buf, "\n  %s: %s", f.a, te.traceString())
		} else {
			fmt.Fprintf(&buf, "\n  %s: %s", f.a, failText(f.f))
		}
	}
	return buf.String()
}

func (e *noVersionError) reason() string {
	for _, f := range e.fails {
		if ff, ok := f.f.(failure); ok {
			return fmt.Sprintf("no candidate of %s satisfies every constraint: %s", e.name, ff.reason())
		}
	}
	return fmt.Sprintf("no candidate of %s satisfies every constraint", e.name)
}

func (e *noVersionError) conflicts() []spec.Conflict {
	var out []spec.Conflict
	for _, f := range e.fails {
		if ff, ok := f.f.(failure); ok {
			out = append(out, ff.conflicts()...)
		}
	}
	if len(out) == 0 {
		for _, d := range e.deps {
			out = append(out, d.conflict())
		}
	}
	return out
}

func failText(err error) string {
	if err == nil {
		return "abandoned while backtracking"
	}
	return err.Error()
}

// Indicates that a dependency of a candidate has no overlap with the
// constraints already placed on the same name.
type disjointConstraintFailure struct {
	goal      dependency
	failsib   []dependency
	nofailsib []dependency
	c         *spec.Spec
}

func (e *disjointConstraintFailure) Error() string {
	if len(e.failsib) == 1 {
		str := "Could not introduce %s, as it has a dependency on %s, which has no overlap with existing constraint %s"
		return fmt.Sprintf(str, e.goal.depender, e.goal.c.NodeString(), e.failsib[0])
	}

	var buf bytes.Buffer
	var sibs []dependency
	if len(e.failsib) > 1 {
		sibs = e.failsib
		str := "Could not introduce %s, as it has a dependency on %s, which has no overlap with the following existing constraints:\n"
		fmt.Fprintf(&buf, str, e.goal.depender, e.goal.c.NodeString())
	} else {
		sibs = e.nofailsib
		str := "Could not introduce %s, as it has a dependency on %s, which does not overlap with the intersection of existing constraints %s:\n"
		fmt.Fprintf(&buf, str, e.goal.depender, e.goal.c.NodeString(), e.c.NodeString())
	}
	for _, sib := range sibs {
		fmt.Fprintf(&buf, "\t%s\n", sib)
	}
	return buf.String()
}

func (e *disjointConstraintFailure) traceString() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "constraint %s disjoint with other dependers:\n", e.goal.c.NodeString())
	for _, f := range e.failsib {
		fmt.Fprintf(&buf, "%s (no overlap)\n", f)
	}
	for _, f := range e.nofailsib {
		fmt.Fprintf(&buf, "%s (some overlap)\n", f)
	}
	return buf.String()
}

func (e *disjointConstraintFailure) reason() string {
	return fmt.Sprintf("constraints on %s cannot be satisfied together", e.goal.name)
}

func (e *disjointConstraintFailure) conflicts() []spec.Conflict {
	out := []spec.Conflict{e.goal.conflict()}
	sibs := e.failsib
	if len(sibs) == 0 {
		sibs = e.nofailsib
	}
	for _, sib := range sibs {
		out = append(out, sib.conflict())
	}
	return out
}

// Indicates that a candidate could not be introduced because one of its
// dependency constraints does not admit the atom already selected for the
// target.
type constraintNotAllowedFailure struct {
	goal dependency
	sel  atom
}

func (e *constraintNotAllowedFailure) Error() string {
	str := "Could not introduce %s, as it has a dependency on %s, which does not allow the currently selected %s"
	return fmt.Sprintf(str, e.goal.depender, e.goal.c.NodeString(), e.sel)
}

func (e *constraintNotAllowedFailure) traceString() string {
	str := "%s depends on %s, but %s is already selected"
	return fmt.Sprintf(str, e.goal.depender.label(), e.goal.c.NodeString(), e.sel)
}

func (e *constraintNotAllowedFailure) reason() string {
	return fmt.Sprintf("the selected %s does not satisfy %s", e.sel.label(), e.goal.c.NodeString())
}

func (e *constraintNotAllowedFailure) conflicts() []spec.Conflict {
	return []spec.Conflict{
		e.goal.conflict(),
		{Package: e.sel.name, Constraint: constraintText(selectedNode(e.sel)), Source: "selection"},
	}
}

func selectedNode(a atom) *spec.Spec {
	if a.n != nil {
		return a.n
	}
	return spec.New(a.name)
}

// Indicates that a conflicts directive of the package rules out a candidate.
type conflictFailure struct {
	goal atom
	c    repo.Conflict
	// the constraints that asked for the combination
	deps []dependency
}

func (e *conflictFailure) Error() string {
	msg := fmt.Sprintf("%s conflicts with %s", e.goal, e.c.Spec.NodeString())
	if e.c.When != nil {
		msg += " when " + e.c.When.NodeString()
	}
	if e.c.Msg != "" {
		msg += ": " + e.c.Msg
	}
	return msg
}

func (e *conflictFailure) traceString() string {
	return fmt.Sprintf("%s conflicts with %s", e.goal.label(), e.c.Spec.NodeString())
}

func (e *conflictFailure) reason() string {
	msg := fmt.Sprintf("%s is a conflicting combination", e.combination())
	if e.c.Msg != "" {
		msg += ": " + e.c.Msg
	}
	return msg
}

// combination renders the conflict and its condition as one spec, such as
// "pkg@1.0+feature".
func (e *conflictFailure) combination() string {
	c := cloneNode(e.c.Spec)
	c.Name = e.goal.name
	if e.c.When != nil {
		// A condition that held together with the conflict intersects it.
		_ = c.ConstrainNode(e.c.When)
	}
	return c.NodeString()
}

func (e *conflictFailure) conflicts() []spec.Conflict {
	out := []spec.Conflict{{Package: e.goal.name, Constraint: constraintText(e.c.Spec), Source: e.goal.name + " conflicts"}}
	if e.c.When != nil {
		out = append(out, spec.Conflict{Package: e.goal.name, Constraint: constraintText(e.c.When), Source: e.goal.name + " conflicts"})
	}
	for _, d := range e.deps {
		out = append(out, d.conflict())
	}
	return out
}

// Indicates that a chosen provider cannot provide the virtual package at the
// versions asked of it.
type providesFailure struct {
	virtual  string
	provider atom
	c        *spec.Spec
}

func (e *providesFailure) Error() string {
	if e.provider.n == nil {
		return fmt.Sprintf("No version of %s can provide %s", e.provider.name, e.c.NodeString())
	}
	return fmt.Sprintf("%s does not provide %s", e.provider, e.c.NodeString())
}

func (e *providesFailure) traceString() string {
	return fmt.Sprintf("%s cannot provide %s", e.provider.label(), e.c.NodeString())
}

func (e *providesFailure) reason() string {
	return fmt.Sprintf("%s cannot provide %s", e.provider.name, e.c.NodeString())
}

func (e *providesFailure) conflicts() []spec.Conflict {
	return []spec.Conflict{{Package: e.virtual, Constraint: constraintText(e.c), Source: e.provider.label()}}
}

// Indicates that a package would be a second provider of a virtual in the
// same DAG.
type providerClashFailure struct {
	virtual string
	goal    string
	other   string
}

func (e *providerClashFailure) Error() string {
	return fmt.Sprintf("%s and %s cannot both provide %s", e.goal, e.other, e.virtual)
}

func (e *providerClashFailure) traceString() string {
	return fmt.Sprintf("%s already provided by %s", e.virtual, e.other)
}

func (e *providerClashFailure) reason() string {
	return fmt.Sprintf("%s and %s cannot both provide %s", e.goal, e.other, e.virtual)
}

func (e *providerClashFailure) conflicts() []spec.Conflict {
	return []spec.Conflict{
		{Package: e.virtual, Source: e.goal},
		{Package: e.virtual, Source: e.other},
	}
}

// Indicates that constraints name a variant the package does not declare, or
// a value it does not allow.
type variantFailure struct {
	name    string
	variant spec.VariantValue
	undecl  bool
	deps    []dependency
}

func (e *variantFailure) Error() string {
	var srcs []string
	for _, d := range e.deps {
		srcs = append(srcs, d.String())
	}
	if e.undecl {
		return fmt.Sprintf("%s has no variant %s, required by %s", e.name, e.variant.Name, strings.Join(srcs, ", "))
	}
	return fmt.Sprintf("%s is not a valid value of %s, required by %s", e.variant, e.name, strings.Join(srcs, ", "))
}

func (e *variantFailure) traceString() string {
	if e.undecl {
		return fmt.Sprintf("%s has no variant %s", e.name, e.variant.Name)
	}
	return fmt.Sprintf("%s does not allow %s", e.name, e.variant)
}

func (e *variantFailure) reason() string {
	return e.traceString()
}

func (e *variantFailure) conflicts() []spec.Conflict {
	var out []spec.Conflict
	for _, d := range e.deps {
		out = append(out, d.conflict())
	}
	return out
}

// Indicates that selecting a candidate would close a dependency cycle.
type cycleFailure struct {
	goal atom
	path []string
}

func (e *cycleFailure) Error() string {
	return fmt.Sprintf("Could not introduce %s, as it would close the dependency cycle %s", e.goal, strings.Join(e.path, " -> "))
}

func (e *cycleFailure) traceString() string {
	return "cycle " + strings.Join(e.path, " -> ")
}

func (e *cycleFailure) reason() string {
	return "dependency cycle " + strings.Join(e.path, " -> ")
}

func (e *cycleFailure) conflicts() []spec.Conflict {
	return nil
}

// Indicates that the dependencies one candidate declares on a single name
// contradict each other.
type selfConflictFailure struct {
	goal atom
	name string
	err  *spec.UnsatisfiableSpecError
}

func (e *selfConflictFailure) Error() string {
	return fmt.Sprintf("%s has contradictory dependencies on %s: %s", e.goal, e.name, e.err)
}

func (e *selfConflictFailure) traceString() string {
	return fmt.Sprintf("contradictory dependencies on %s", e.name)
}

func (e *selfConflictFailure) reason() string {
	return e.err.Reason
}

func (e *selfConflictFailure) conflicts() []spec.Conflict {
	out := make([]spec.Conflict, len(e.err.Conflicts))
	for k, c := range e.err.Conflicts {
		c.Source = e.goal.label()
		out[k] = c
	}
	return out
}

// CyclicDependencyError is returned when package definitions depend on each
// other unconditionally.
type CyclicDependencyError struct {
	// Path lists the packages of the cycle, starting and ending with the
	// same name.
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic dependency: " + strings.Join(e.Path, " -> ")
}

// SolveTimeoutError is returned when the search backtracks more than the
// permitted number of times.
type SolveTimeoutError struct {
	Attempts int
}

func (e *SolveTimeoutError) Error() string {
	return fmt.Sprintf("gave up concretizing after %d attempts", e.Attempts)
}

// InternalConsistencyError reports a solution that breaks an invariant of
// concrete specs. It always indicates a solver bug.
type InternalConsistencyError struct {
	Msg string
}

func (e *InternalConsistencyError) Error() string {
	return "internal consistency error: " + e.Msg
}

func inconsistent(format string, args ...interface{}) error {
	return &InternalConsistencyError{Msg: fmt.Sprintf(format, args...)}
}
