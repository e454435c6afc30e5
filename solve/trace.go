// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"fmt"
	"strings"
)

const (
	successChar   = "✓"
	successCharSp = successChar + " "
	failChar      = "✗"
	failCharSp    = failChar + " "
	backChar      = "←"
)

func (s *solver) traceCheckQueue(q *candidateQueue, cont bool, offset int) {
	if s.tl == nil {
		return
	}

	prefix := strings.Repeat("| ", len(s.vqs)+offset)
	var verb, count string
	if cont {
		verb, count = "continue", fmt.Sprintf("%d more", len(q.pi))
	} else {
		verb, count = "attempt", fmt.Sprintf("%d", len(q.pi))
	}
	s.tl.Printf("%s\n", tracePrefix(fmt.Sprintf("? %s %s; %s candidates to try", verb, q.name, count), prefix, prefix))
}

// traceStartBacktrack is called with the name that first failed, thus
// initiating backtracking.
func (s *solver) traceStartBacktrack(name string) {
	if s.tl == nil {
		return
	}

	msg := fmt.Sprintf("%s no more candidates for %s to try; begin backtrack", backChar, name)
	prefix := strings.Repeat("| ", len(s.sel.atoms))
	s.tl.Printf("%s\n", tracePrefix(msg, prefix, prefix))
}

// traceBacktrack is called when a queue is popped off during backtracking.
func (s *solver) traceBacktrack(name string, failed bool) {
	if s.tl == nil {
		return
	}

	var msg string
	if failed {
		msg = fmt.Sprintf("%s backtrack: no more candidates for %s to try", backChar, name)
	} else {
		msg = fmt.Sprintf("%s backtrack: popped %s", backChar, name)
	}
	prefix := strings.Repeat("| ", len(s.sel.atoms))
	s.tl.Printf("%s\n", tracePrefix(msg, prefix, prefix))
}

// Called just once after solving has finished, whether success or not.
func (s *solver) traceFinish(sol *Solution, err error) {
	if s.tl == nil {
		return
	}

	if err == nil {
		s.tl.Printf("%s found solution with %d packages after %d attempts", successChar, sol.Graph.Len(), sol.Attempts)
	} else {
		s.tl.Printf("%s solving failed", failChar)
	}
}

// traceStart is called once, after the roots are primed.
func (s *solver) traceStart() {
	if s.tl == nil {
		return
	}

	for _, r := range s.params.Roots {
		s.tl.Printf("Root %s", r)
	}
	for _, name := range sortedKeys(s.sel.req) {
		s.tl.Printf(" requires %s", s.sel.req[name].NodeString())
	}
}

// traceSelect is called when an atom is successfully selected.
func (s *solver) traceSelect(a atom) {
	if s.tl == nil {
		return
	}

	msg := fmt.Sprintf("%s select %s", successChar, a)
	prefix := strings.Repeat("| ", len(s.sel.atoms)-1)
	s.tl.Printf("%s\n", tracePrefix(msg, prefix, prefix))
}

func (s *solver) traceInfo(args ...interface{}) {
	if s.tl == nil {
		return
	}

	if len(args) == 0 {
		panic("must pass at least one param to traceInfo")
	}

	preflen := len(s.sel.atoms)
	var msg string
	switch data := args[0].(type) {
	case string:
		msg = tracePrefix(fmt.Sprintf(data, args[1:]...), "| ", "| ")
	case traceError:
		preflen++
		msg = tracePrefix(data.traceString(), "| ", failCharSp)
	case error:
		msg = tracePrefix(data.Error(), "| ", failCharSp)
	default:
		panic(fmt.Sprintf("canary - unknown type passed as first param to traceInfo %T", data))
	}

	prefix := strings.Repeat("| ", preflen)
	s.tl.Printf("%s\n", tracePrefix(msg, prefix, prefix))
}

func tracePrefix(msg, sep, fsep string) string {
	parts := strings.Split(strings.TrimSuffix(msg, "\n"), "\n")
	for k, str := range parts {
		if k == 0 {
			parts[k] = fsep + str
		} else {
			parts[k] = sep + str
		}
	}
	return strings.Join(parts, "\n")
}
