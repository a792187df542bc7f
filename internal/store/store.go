// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package store wraps a pebble database with the JSON document
// operations the platform registries need. Keys are slash-delimited
// paths such as project/<p>/service/<s> and iteration is always
// prefix-bounded.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned when a key has no value in the store.
var ErrNotFound = errors.New("not found")

// Store is a pebble-backed document store. All values are JSON.
type Store struct {
	db   *pebble.DB
	path string
}

// Open opens (creating if necessary) the store rooted at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("creating store parent: %w", err)
	}

	db, err := pebble.Open(dir, &pebble.Options{
		Logger: pebbleLogger{},
	})
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", dir, err)
	}

	log.Debugf("store open at %s", dir)

	return &Store{db: db, path: dir}, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the directory the store was opened at.
func (s *Store) Path() string {
	return s.path
}

// Get unmarshals the value at key into out. ErrNotFound is returned
// when the key does not exist.
func (s *Store) Get(key string, out interface{}) error {
	val, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return err
	}
	defer closer.Close()

	return json.Unmarshal(val, out)
}

// Set marshals in and writes it at key, synchronously.
func (s *Store) Set(key string, in interface{}) error {
	val, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", key, err)
	}

	return s.db.Set([]byte(key), val, pebble.Sync)
}

// Exists reports whether key has a value.
func (s *Store) Exists(key string) (bool, error) {
	_, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	_ = closer.Close()
	return true, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	return s.db.Delete([]byte(key), pebble.Sync)
}

// DeletePrefix removes every key starting with prefix.
func (s *Store) DeletePrefix(prefix string) error {
	return s.db.DeleteRange([]byte(prefix), upperBound(prefix), pebble.Sync)
}

// List returns the keys under prefix, in lexicographic order.
func (s *Store) List(prefix string) ([]string, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0)
	for valid := iter.First(); valid; valid = iter.Next() {
		keys = append(keys, string(iter.Key()))
	}

	if err := iter.Close(); err != nil {
		return nil, err
	}

	return keys, nil
}

// ListEach invokes fn with each key/value pair under prefix. Iteration
// stops at the first error.
func (s *Store) ListEach(prefix string, fn func(key string, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return err
	}

	for valid := iter.First(); valid; valid = iter.Next() {
		val, err := iter.ValueAndErr()
		if err != nil {
			_ = iter.Close()
			return err
		}
		if err := fn(string(iter.Key()), val); err != nil {
			_ = iter.Close()
			return err
		}
	}

	return iter.Close()
}

// Key joins path segments into a store key. Segments must not contain
// slashes themselves.
func Key(segments ...string) string {
	return strings.Join(segments, "/")
}

// upperBound returns the smallest key greater than every key with the
// given prefix.
func upperBound(prefix string) []byte {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return b[:i+1]
		}
	}
	return nil
}

// pebbleLogger routes pebble's internal chatter to debug level so it
// stays out of normal command output.
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

func (pebbleLogger) Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}
