// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package scale

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  string
	}{
		{
			name:     "defaults",
			settings: Defaults(),
		},
		{
			name:     "scale to zero",
			settings: Settings{MinInstances: 0, MaxInstances: 4, Concurrency: 80},
		},
		{
			name:     "pinned floor",
			settings: Settings{MinInstances: 2, MaxInstances: 2, Concurrency: 1},
		},
		{
			name:     "negative min",
			settings: Settings{MinInstances: -1, MaxInstances: 1, Concurrency: 80},
			wantErr:  "min-instances must be >= 0",
		},
		{
			name:     "zero max",
			settings: Settings{MinInstances: 0, MaxInstances: 0, Concurrency: 80},
			wantErr:  "max-instances must be >= 1",
		},
		{
			name:     "min above max",
			settings: Settings{MinInstances: 5, MaxInstances: 2, Concurrency: 80},
			wantErr:  "min-instances 5 exceeds max-instances 2",
		},
		{
			name:     "zero concurrency",
			settings: Settings{MinInstances: 0, MaxInstances: 1, Concurrency: 0},
			wantErr:  "concurrency must be >= 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.settings.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestApply(t *testing.T) {
	ten := 10
	always := true
	base := Defaults()

	got := base.Apply(Patch{MaxInstances: &ten, CPUAlwaysAllocated: &always})
	assert.Equal(t, 0, got.MinInstances)
	assert.Equal(t, 10, got.MaxInstances)
	assert.Equal(t, DefaultConcurrency, got.Concurrency)
	assert.True(t, got.CPUAlwaysAllocated)

	// An empty patch changes nothing, booleans included.
	assert.True(t, Patch{}.IsZero())
	assert.Equal(t, got, got.Apply(Patch{}))

	// Set fields win even when the new value is the zero value, so
	// min-instances can go back to 0 and the CPU mode back off.
	zero := 0
	off := false
	got = got.Apply(Patch{MinInstances: &zero, CPUAlwaysAllocated: &off})
	assert.Equal(t, 0, got.MinInstances)
	assert.False(t, got.CPUAlwaysAllocated)
	assert.Equal(t, 10, got.MaxInstances)
}

func TestSettingsPatchPinsEverything(t *testing.T) {
	s := Settings{MinInstances: 2, MaxInstances: 4, Concurrency: 10, CPUAlwaysAllocated: true}
	assert.Equal(t, s, Defaults().Apply(s.Patch()))
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		inflight int
		want     int
	}{
		{
			name:     "idle scales to zero",
			settings: Settings{MinInstances: 0, MaxInstances: 4, Concurrency: 80},
			inflight: 0,
			want:     0,
		},
		{
			name:     "idle honors floor",
			settings: Settings{MinInstances: 1, MaxInstances: 4, Concurrency: 80},
			inflight: 0,
			want:     1,
		},
		{
			name:     "one request wakes one instance",
			settings: Settings{MinInstances: 0, MaxInstances: 4, Concurrency: 80},
			inflight: 1,
			want:     1,
		},
		{
			name:     "rounds up at the concurrency boundary",
			settings: Settings{MinInstances: 0, MaxInstances: 4, Concurrency: 80},
			inflight: 81,
			want:     2,
		},
		{
			name:     "clamped at max",
			settings: Settings{MinInstances: 0, MaxInstances: 4, Concurrency: 80},
			inflight: 10000,
			want:     4,
		},
		{
			name:     "negative load treated as idle",
			settings: Settings{MinInstances: 0, MaxInstances: 4, Concurrency: 80},
			inflight: -5,
			want:     0,
		},
		{
			name:     "concurrency one is one instance per request",
			settings: Settings{MinInstances: 0, MaxInstances: 10, Concurrency: 1},
			inflight: 7,
			want:     7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.settings.Plan(tt.inflight))
		})
	}
}
