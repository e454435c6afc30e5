// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	radix "github.com/armon/go-radix"
)

// hashTrie is a typed wrapper around a radix tree of dag hashes, so hash
// prefixes can be resolved without scanning the database.
type hashTrie struct {
	t *radix.Tree
}

func newHashTrie() hashTrie {
	return hashTrie{
		t: radix.New(),
	}
}

// Insert adds h to the tree. Returns if it was already present.
func (t hashTrie) Insert(h string) bool {
	_, had := t.t.Insert(h, struct{}{})
	return had
}

// Get reports whether the full hash h is in the tree.
func (t hashTrie) Get(h string) (string, bool) {
	if _, has := t.t.Get(h); has {
		return h, true
	}
	return "", false
}

// Delete removes h from the tree, and returns if it was present.
func (t hashTrie) Delete(h string) bool {
	_, had := t.t.Delete(h)
	return had
}

// WithPrefix returns every hash starting with prefix, in order.
func (t hashTrie) WithPrefix(prefix string) []string {
	var out []string
	t.t.WalkPrefix(prefix, func(s string, _ interface{}) bool {
		out = append(out, s)
		return false
	})
	return out
}

// Len is used to return the number of hashes in the tree
func (t hashTrie) Len() int {
	return t.t.Len()
}
