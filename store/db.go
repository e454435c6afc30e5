// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/sprout-pm/sprout/spec"
	"github.com/sprout-pm/sprout/version"
)

// ErrNotInstalled is returned for hashes that match no installed spec.
var ErrNotInstalled = errors.New("no installed spec matches")

// AmbiguousHashError is returned when a hash prefix matches more than one
// installed spec.
type AmbiguousHashError struct {
	Prefix  string
	Matches []string
}

func (e *AmbiguousHashError) Error() string {
	return fmt.Sprintf("hash prefix %q is ambiguous, it matches %s", e.Prefix, strings.Join(e.Matches, ", "))
}

// HasDependentsError is returned when removing a spec that other installed
// specs depend on.
type HasDependentsError struct {
	Hash       string
	Dependents []string
}

func (e *HasDependentsError) Error() string {
	return fmt.Sprintf("cannot remove %s, it is needed by %s", e.Hash, strings.Join(e.Dependents, ", "))
}

// A Record is one installed spec.
type Record struct {
	Spec      *spec.Spec
	Hash      string
	Prefix    string
	Explicit  bool
	Installed time.Time
}

var (
	specsBucket      = []byte("specs")
	dependentsBucket = []byte("dependents")

	specKey      = []byte("spec")
	prefixKey    = []byte("prefix")
	explicitKey  = []byte("explicit")
	installedKey = []byte("installed")
)

// DB is the database of installed specs, backed by a BoltDB file.
//
// Implementation:
//
//	Bucket: "specs"
//	Sub-Bucket: "<dag hash>"
//	Keys: "spec" (yaml document of the installed DAG), "prefix",
//	      "explicit" ("1" or "0"), "installed" (big endian unix seconds)
//
//	Bucket: "dependents"
//	Sub-Bucket: "<dag hash>"
//	Keys: "<dag hash of an installed spec depending on it>"
//
// The hash-prefix index is held in memory and rebuilt on Open. Read methods
// are safe for concurrent use with each other and with Add and Remove;
// Close must not be called concurrently with any other method.
type DB struct {
	db     *bolt.DB
	logger *log.Logger

	mu  sync.RWMutex
	idx hashTrie
}

// Open opens or creates the database at path.
func Open(path string, logger *log.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if fi, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, os.ModeDir|os.ModePerm); err != nil {
			return nil, errors.Wrapf(err, "failed to create database directory: %s", dir)
		}
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to check database directory: %s", dir)
	} else if !fi.IsDir() {
		return nil, errors.Errorf("database path is not a directory: %s", dir)
	}

	bdb, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open installed database %s", path)
	}

	db := &DB{db: bdb, logger: logger, idx: newHashTrie()}
	err = bdb.Update(func(tx *bolt.Tx) error {
		specs, err := tx.CreateBucketIfNotExists(specsBucket)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(dependentsBucket); err != nil {
			return err
		}
		return specs.ForEach(func(k, v []byte) error {
			if v == nil {
				db.idx.Insert(string(k))
			}
			return nil
		})
	})
	if err != nil {
		bdb.Close()
		return nil, errors.Wrapf(err, "failed to initialize installed database %s", path)
	}
	return db, nil
}

// Close releases all database resources.
func (db *DB) Close() error {
	return errors.Wrapf(db.db.Close(), "error closing Bolt database %q", db.db.String())
}

// Add records s, which must be concrete, as installed at prefix. Adding a
// spec that is already installed only updates its explicit flag, and only
// from false to true.
func (db *DB) Add(s *spec.Spec, prefix string, explicit bool) error {
	if !s.Concrete() {
		return &spec.SpecNotConcreteError{Spec: s.String(), Op: "install"}
	}
	h, err := s.DAGHash()
	if err != nil {
		return err
	}
	doc, err := s.ToYAML()
	if err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	err = db.db.Update(func(tx *bolt.Tx) error {
		specs := tx.Bucket(specsBucket)
		if b := specs.Bucket([]byte(h)); b != nil {
			if explicit {
				return b.Put(explicitKey, cacheEncodeBool(true))
			}
			return nil
		}

		b, err := specs.CreateBucket([]byte(h))
		if err != nil {
			return err
		}
		if err := b.Put(specKey, doc); err != nil {
			return err
		}
		if err := b.Put(prefixKey, []byte(prefix)); err != nil {
			return err
		}
		if err := b.Put(explicitKey, cacheEncodeBool(explicit)); err != nil {
			return err
		}
		if err := b.Put(installedKey, cacheEncodeTime(time.Now())); err != nil {
			return err
		}

		deps := tx.Bucket(dependentsBucket)
		for _, d := range s.Dependencies() {
			ch, err := d.Spec.DAGHash()
			if err != nil {
				return err
			}
			cb, err := deps.CreateBucketIfNotExists([]byte(ch))
			if err != nil {
				return err
			}
			if err := cb.Put([]byte(h), []byte{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "failed to record %s as installed", s.NodeString())
	}
	db.idx.Insert(h)
	return nil
}

// Get returns the record of the spec with the full dag hash h.
func (db *DB) Get(h string) (*Record, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var r *Record
	err := db.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(specsBucket).Bucket([]byte(h))
		if b == nil {
			return errors.Wrap(ErrNotInstalled, h)
		}
		var err error
		r, err = cacheGetRecord(h, b)
		return err
	})
	return r, err
}

// IsInstalled reports whether the spec with dag hash h is installed.
func (db *DB) IsInstalled(h string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, has := db.idx.Get(h)
	return has
}

// Lookup returns the record of the only installed spec whose dag hash starts
// with prefix.
func (db *DB) Lookup(prefix string) (*Record, error) {
	db.mu.RLock()
	matches := db.idx.WithPrefix(prefix)
	db.mu.RUnlock()

	switch len(matches) {
	case 0:
		return nil, errors.Wrapf(ErrNotInstalled, "/%s", prefix)
	case 1:
		return db.Get(matches[0])
	}
	return nil, &AmbiguousHashError{Prefix: prefix, Matches: matches}
}

// All returns every installed record, ordered by name and then newest version
// first.
func (db *DB) All() ([]*Record, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []*Record
	err := db.db.View(func(tx *bolt.Tx) error {
		specs := tx.Bucket(specsBucket)
		return specs.ForEach(func(k, v []byte) error {
			if v != nil {
				return nil
			}
			r, err := cacheGetRecord(string(k), specs.Bucket(k))
			if err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortRecords(out)
	return out, nil
}

// Find returns the records whose spec satisfies the abstract spec c,
// including its "^" constraints.
func (db *DB) Find(c *spec.Spec) ([]*Record, error) {
	all, err := db.All()
	if err != nil {
		return nil, err
	}
	var out []*Record
	for _, r := range all {
		if r.Spec.Satisfies(c) {
			out = append(out, r)
		}
	}
	return out, nil
}

// FindCompatible returns the installed specs whose node satisfies c, newest
// version first, then most recently installed.
func (db *DB) FindCompatible(c *spec.Spec) ([]*spec.Spec, error) {
	all, err := db.All()
	if err != nil {
		return nil, err
	}
	var out []*spec.Spec
	for _, r := range all {
		if r.Spec.SatisfiesNode(c) {
			out = append(out, r.Spec)
		}
	}
	if db.logger != nil && c.Hash != "" && len(out) == 0 {
		db.logger.Printf("no installed spec matches /%s", c.Hash)
	}
	return out, nil
}

// Dependents returns the dag hashes of the installed specs that depend
// directly on h.
func (db *DB) Dependents(h string) ([]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out []string
	err := db.db.View(func(tx *bolt.Tx) error {
		out = dependentsOf(tx, h)
		return nil
	})
	return out, err
}

// Remove forgets the installed spec with dag hash h. It refuses while other
// installed specs depend on it.
func (db *DB) Remove(h string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	err := db.db.Update(func(tx *bolt.Tx) error {
		specs := tx.Bucket(specsBucket)
		b := specs.Bucket([]byte(h))
		if b == nil {
			return errors.Wrap(ErrNotInstalled, h)
		}
		if ds := dependentsOf(tx, h); len(ds) > 0 {
			return &HasDependentsError{Hash: h, Dependents: ds}
		}

		r, err := cacheGetRecord(h, b)
		if err != nil {
			return err
		}
		deps := tx.Bucket(dependentsBucket)
		for _, d := range r.Spec.Dependencies() {
			ch, _ := d.Spec.DAGHash()
			if cb := deps.Bucket([]byte(ch)); cb != nil {
				if err := cb.Delete([]byte(h)); err != nil {
					return err
				}
			}
		}
		if err := deps.DeleteBucket([]byte(h)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		return specs.DeleteBucket([]byte(h))
	})
	if err != nil {
		return err
	}
	db.idx.Delete(h)
	return nil
}

func dependentsOf(tx *bolt.Tx, h string) []string {
	b := tx.Bucket(dependentsBucket).Bucket([]byte(h))
	if b == nil {
		return nil
	}
	var out []string
	b.ForEach(func(k, _ []byte) error {
		out = append(out, string(k))
		return nil
	})
	return out
}

func sortRecords(rs []*Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.Spec.Name != b.Spec.Name {
			return a.Spec.Name < b.Spec.Name
		}
		av, _ := a.Spec.Version()
		bv, _ := b.Spec.Version()
		if c := version.Compare(av, bv); c != 0 {
			return c > 0
		}
		if !a.Installed.Equal(b.Installed) {
			return a.Installed.After(b.Installed)
		}
		return a.Hash < b.Hash
	})
}

// cacheGetRecord decodes the record stored in b.
func cacheGetRecord(h string, b *bolt.Bucket) (*Record, error) {
	g, err := spec.DecodeYAML(b.Get(specKey))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode installed spec %s", h)
	}
	s, has := g.ByHash(h)
	if !has {
		return nil, errors.Errorf("installed spec document for %s does not contain it", h)
	}
	r := &Record{
		Spec:     s,
		Hash:     h,
		Prefix:   string(b.Get(prefixKey)),
		Explicit: cacheDecodeBool(b.Get(explicitKey)),
	}
	if t := b.Get(installedKey); len(t) == 8 {
		r.Installed = time.Unix(int64(binary.BigEndian.Uint64(t)), 0)
	}
	return r, nil
}

func cacheEncodeBool(v bool) []byte {
	if v {
		return []byte("1")
	}
	return []byte("0")
}

func cacheDecodeBool(b []byte) bool {
	return string(b) == "1"
}

func cacheEncodeTime(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.Unix()))
	return b
}
