// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package logbuf

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/runctlgo/internal/store"
)

func openTestBuffer(t *testing.T) *Buffer {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	b, err := New(st, "demo")
	require.NoError(t, err)
	return b
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input   string
		want    Severity
		wantErr bool
	}{
		{input: "WARNING", want: Warning},
		{input: "warning", want: Warning},
		{input: " Error ", want: Error},
		{input: "DEFAULT", want: Default},
		{input: "FATAL", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSeverity(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, Debug < Info)
	assert.True(t, Info < Notice)
	assert.True(t, Notice < Warning)
	assert.True(t, Warning < Error)
	assert.True(t, Error < Critical)
	assert.Equal(t, "WARNING", Warning.String())
}

func TestAppendAssignsSequence(t *testing.T) {
	b := openTestBuffer(t)

	first, err := b.Append(Entry{Message: "one"})
	require.NoError(t, err)
	second, err := b.Append(Entry{Message: "two"})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.False(t, first.Time.IsZero())
}

func TestSequenceResumesAfterReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	st, err := store.Open(dir)
	require.NoError(t, err)
	b, err := New(st, "demo")
	require.NoError(t, err)
	_, err = b.Append(Entry{Message: "one"})
	require.NoError(t, err)
	_, err = b.Append(Entry{Message: "two"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = store.Open(dir)
	require.NoError(t, err)
	defer st.Close()
	b, err = New(st, "demo")
	require.NoError(t, err)

	third, err := b.Append(Entry{Message: "three"})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), third.Seq)
}

func TestReadSeverityFloor(t *testing.T) {
	b := openTestBuffer(t)

	for _, e := range []Entry{
		{Severity: Debug, Message: "probe"},
		{Severity: Info, Message: "served request"},
		{Severity: Warning, Message: "slow handler"},
		{Severity: Error, Message: "secret resolution failed"},
	} {
		_, err := b.Append(e)
		require.NoError(t, err)
	}

	got, err := b.Read(ReadOptions{MinSeverity: Warning})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "slow handler", got[0].Message)
	assert.Equal(t, "secret resolution failed", got[1].Message)
}

func TestReadResourceFilters(t *testing.T) {
	b := openTestBuffer(t)

	for _, e := range []Entry{
		{Service: "grader", Revision: "grader-00001-abc", Message: "a"},
		{Service: "grader", Revision: "grader-00002-def", Message: "b"},
		{Service: "tutor", Revision: "tutor-00001-xyz", Message: "c"},
	} {
		_, err := b.Append(e)
		require.NoError(t, err)
	}

	got, err := b.Read(ReadOptions{Service: "grader"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = b.Read(ReadOptions{Revision: "grader-00002-def"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Message)
}

func TestReadLimitKeepsNewest(t *testing.T) {
	b := openTestBuffer(t)

	for i := 0; i < 5; i++ {
		_, err := b.Append(Entry{Message: "m"})
		require.NoError(t, err)
	}

	got, err := b.Read(ReadOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(4), got[0].Seq)
	assert.Equal(t, uint64(5), got[1].Seq)
}

func TestReadSinceDropsOldEntries(t *testing.T) {
	b := openTestBuffer(t)

	base := time.Now().UTC()
	for _, e := range []Entry{
		{Time: base.Add(-3 * time.Hour), Message: "stale"},
		{Time: base.Add(-time.Hour), Message: "recent"},
		{Time: base, Message: "fresh"},
	} {
		_, err := b.Append(e)
		require.NoError(t, err)
	}

	got, err := b.Read(ReadOptions{Since: base.Add(-2 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "recent", got[0].Message)
	assert.Equal(t, "fresh", got[1].Message)
}

func TestTailDeliversOnce(t *testing.T) {
	b := openTestBuffer(t)

	_, err := b.Append(Entry{Message: "before"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan Entry, 16)
	done := make(chan error, 1)
	go func() {
		done <- b.Tail(ctx, ReadOptions{}, 10*time.Millisecond, func(entries []Entry) error {
			for _, e := range entries {
				seen <- e
			}
			return nil
		})
	}()

	first := <-seen
	assert.Equal(t, "before", first.Message)

	_, err = b.Append(Entry{Message: "after"})
	require.NoError(t, err)

	second := <-seen
	assert.Equal(t, "after", second.Message)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// Nothing was delivered twice.
	select {
	case e := <-seen:
		t.Fatalf("unexpected extra entry: %+v", e)
	default:
	}
}
