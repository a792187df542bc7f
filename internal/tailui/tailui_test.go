// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT
// no-cloc

package tailui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/staranto/runctlgo/internal/logbuf"
)

func TestFormatEntry(t *testing.T) {
	e := logbuf.Entry{
		Time:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Severity: logbuf.Warning,
		Service:  "grader",
		Revision: "grader-00002-abc",
		Message:  "slow handler",
	}

	got := FormatEntry(e)
	assert.Contains(t, got, "2025-06-01T12:00:00Z")
	assert.Contains(t, got, "WARNING")
	assert.Contains(t, got, "grader-00002-abc")
	assert.Contains(t, got, "slow handler")
}

func TestFormatEntryPlatformScope(t *testing.T) {
	got := FormatEntry(logbuf.Entry{Severity: logbuf.Notice, Message: "enabled api run"})
	assert.Contains(t, got, "platform")
}
