// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solve

import (
	"fmt"
	"strings"
)

type failedCandidate struct {
	a atom
	f error
}

// candidateQueue is the choice point for one name: the ordered candidates
// still to try, and why the earlier ones were rejected.
type candidateQueue struct {
	name   string
	pi     []atom
	fails  []failedCandidate
	failed bool

	// deps of the current candidate, as computed when it passed its checks.
	deps []dependency
}

func newCandidateQueue(name string, pi []atom) *candidateQueue {
	return &candidateQueue{name: name, pi: pi}
}

func (q *candidateQueue) current() atom {
	if len(q.pi) > 0 {
		return q.pi[0]
	}
	return nilAtom
}

// advance moves the queue to the next candidate, recording the failure that
// eliminated the current one.
func (q *candidateQueue) advance(fail error) {
	if len(q.pi) == 0 {
		return
	}

	q.fails = append(q.fails, failedCandidate{
		a: q.pi[0],
		f: fail,
	})
	q.pi = q.pi[1:]
	q.deps = nil

	if len(q.pi) > 0 {
		// The current candidate may have failed, but the next one hasn't yet.
		q.failed = false
	}
}

// isExhausted reports whether no candidates are left.
func (q *candidateQueue) isExhausted() bool {
	return len(q.pi) == 0
}

func (q *candidateQueue) String() string {
	var vs []string
	for _, a := range q.pi {
		vs = append(vs, a.String())
	}
	return fmt.Sprintf("[%s]", strings.Join(vs, ", "))
}
