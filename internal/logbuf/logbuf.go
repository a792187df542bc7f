// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package logbuf is the platform's log storage. Entries are appended
// with a monotonic sequence number and read back with severity and
// resource filters. Tail is a poll loop over the same read path.
package logbuf

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/staranto/runctlgo/internal/store"
)

// Severity levels, lowest to highest. The zero value renders as
// DEFAULT and sorts below DEBUG.
type Severity int

const (
	Default Severity = iota
	Debug
	Info
	Notice
	Warning
	Error
	Critical
)

var severityNames = []string{
	"DEFAULT", "DEBUG", "INFO", "NOTICE", "WARNING", "ERROR", "CRITICAL",
}

func (s Severity) String() string {
	if s < Default || s > Critical {
		return "DEFAULT"
	}
	return severityNames[s]
}

// MarshalJSON renders the severity by name so stored entries stay
// readable and stable across renumbering.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s.String())), nil
}

func (s *Severity) UnmarshalJSON(b []byte) error {
	name := strings.Trim(string(b), `"`)
	sev, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// ParseSeverity maps a name to its severity, case-insensitively.
func ParseSeverity(name string) (Severity, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range severityNames {
		if n == upper {
			return Severity(i), nil
		}
	}
	return Default, fmt.Errorf("unknown severity %q (want one of %s)",
		name, strings.Join(severityNames, ", "))
}

// Entry is one log line.
type Entry struct {
	Seq      uint64    `json:"seq"`
	Time     time.Time `json:"time"`
	Severity Severity  `json:"severity"`
	Service  string    `json:"service,omitempty"`
	Revision string    `json:"revision,omitempty"`
	Message  string    `json:"message"`
}

// Buffer appends to and reads from the log keyspace of one project.
type Buffer struct {
	store   *store.Store
	project string

	mu   sync.Mutex
	next uint64
}

// New opens the log buffer for project, resuming the sequence from
// whatever is already stored.
func New(st *store.Store, project string) (*Buffer, error) {
	b := &Buffer{store: st, project: project, next: 1}

	keys, err := st.List(b.prefix())
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		last := keys[len(keys)-1]
		var seq uint64
		if _, err := fmt.Sscanf(last[len(b.prefix()):], "%020d", &seq); err == nil {
			b.next = seq + 1
		}
	}

	return b, nil
}

func (b *Buffer) prefix() string {
	return fmt.Sprintf("project/%s/log/", b.project)
}

// Append writes an entry, assigning its sequence number and timestamp
// when unset.
func (b *Buffer) Append(e Entry) (Entry, error) {
	b.mu.Lock()
	e.Seq = b.next
	b.next++
	b.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	// Zero-padded so lexicographic store order is sequence order.
	key := fmt.Sprintf("%s%020d", b.prefix(), e.Seq)
	if err := b.store.Set(key, e); err != nil {
		return Entry{}, err
	}

	return e, nil
}

// ReadOptions filter a Read. The zero value reads everything.
type ReadOptions struct {
	// MinSeverity drops entries below the floor.
	MinSeverity Severity

	// Service and Revision narrow to one resource when set.
	Service  string
	Revision string

	// AfterSeq skips entries at or below the given sequence. Tail
	// uses it as its cursor.
	AfterSeq uint64

	// Since drops entries older than the given time when non-zero.
	Since time.Time

	// Limit caps the result when positive, keeping the newest
	// entries.
	Limit int
}

// Read returns matching entries in sequence order.
func (b *Buffer) Read(opts ReadOptions) ([]Entry, error) {
	entries := make([]Entry, 0)

	err := b.store.ListEach(b.prefix(), func(key string, value []byte) error {
		var e Entry
		if err := b.store.Get(key, &e); err != nil {
			return err
		}
		if e.Seq <= opts.AfterSeq {
			return nil
		}
		if e.Severity < opts.MinSeverity {
			return nil
		}
		if opts.Service != "" && e.Service != opts.Service {
			return nil
		}
		if opts.Revision != "" && e.Revision != opts.Revision {
			return nil
		}
		if !opts.Since.IsZero() && e.Time.Before(opts.Since) {
			return nil
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if opts.Limit > 0 && len(entries) > opts.Limit {
		entries = entries[len(entries)-opts.Limit:]
	}

	return entries, nil
}

// Tail polls for entries matching opts and hands each batch to fn
// until ctx is done. The AfterSeq cursor advances past every entry
// delivered, so nothing is delivered twice.
func (b *Buffer) Tail(ctx context.Context, opts ReadOptions, interval time.Duration, fn func([]Entry) error) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		entries, err := b.Read(opts)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := fn(entries); err != nil {
				return err
			}
			opts.AfterSeq = entries[len(entries)-1].Seq
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
