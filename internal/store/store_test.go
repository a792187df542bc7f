// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGet(t *testing.T) {
	s := openTestStore(t)

	want := doc{Name: "grader", Count: 3}
	require.NoError(t, s.Set("project/demo/service/grader", want))

	var got doc
	require.NoError(t, s.Get("project/demo/service/grader", &got))
	assert.Equal(t, want, got)
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)

	var got doc
	err := s.Get("project/demo/service/nope", &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExists(t *testing.T) {
	s := openTestStore(t)

	ok, err := s.Exists("secret/token/version/1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("secret/token/version/1", doc{Name: "v1"}))

	ok, err = s.Exists("secret/token/version/1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("k", doc{}))
	require.NoError(t, s.Delete("k"))

	var got doc
	assert.ErrorIs(t, s.Get("k", &got), ErrNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, s.Delete("k"))
}

func TestListPrefixBounded(t *testing.T) {
	s := openTestStore(t)

	keys := []string{
		"project/demo/service/grader",
		"project/demo/service/tutor",
		"project/demo/service/tutor/revision/tutor-00001-abc",
		"project/other/service/grader",
	}
	for _, k := range keys {
		require.NoError(t, s.Set(k, doc{Name: k}))
	}

	got, err := s.List("project/demo/service/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"project/demo/service/grader",
		"project/demo/service/tutor",
		"project/demo/service/tutor/revision/tutor-00001-abc",
	}, got)

	got, err = s.List("project/zzz/")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListEach(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("secret/a/version/1", doc{Count: 1}))
	require.NoError(t, s.Set("secret/a/version/2", doc{Count: 2}))

	counts := make([]int, 0)
	err := s.ListEach("secret/a/", func(key string, value []byte) error {
		var d doc
		require.NoError(t, s.Get(key, &d))
		counts = append(counts, d.Count)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, counts)
}

func TestDeletePrefix(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Set("secret/a/version/1", doc{}))
	require.NoError(t, s.Set("secret/a/version/2", doc{}))
	require.NoError(t, s.Set("secret/ab/version/1", doc{}))

	require.NoError(t, s.DeletePrefix("secret/a/"))

	got, err := s.List("secret/")
	require.NoError(t, err)
	assert.Equal(t, []string{"secret/ab/version/1"}, got)
}

func TestKey(t *testing.T) {
	assert.Equal(t,
		"project/demo/service/grader",
		Key("project", "demo", "service", "grader"))
}

func TestUpperBound(t *testing.T) {
	assert.Equal(t, []byte("project/demo0"), upperBound("project/demo/"))
	assert.Equal(t, []byte("b"), upperBound("a"))
	assert.Nil(t, upperBound(""))
}
