// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package scale holds the autoscaling settings attached to a service
// revision and the planner that turns observed request load into a
// desired instance count.
package scale

import (
	"fmt"
	"math"
)

// DefaultConcurrency is the per-instance concurrent request limit
// applied when a deploy does not set one.
const DefaultConcurrency = 80

// Settings are the autoscaling knobs of a revision. They are immutable
// once the revision is created. A deploy that changes any of them
// produces a new revision.
type Settings struct {
	MinInstances       int  `json:"minInstances" yaml:"min-instances"`
	MaxInstances       int  `json:"maxInstances" yaml:"max-instances"`
	Concurrency        int  `json:"concurrency" yaml:"concurrency"`
	CPUAlwaysAllocated bool `json:"cpuAlwaysAllocated" yaml:"cpu-always-allocated"`
}

// Defaults returns the settings applied when a deploy specifies none.
func Defaults() Settings {
	return Settings{
		MinInstances: 0,
		MaxInstances: 1,
		Concurrency:  DefaultConcurrency,
	}
}

// Validate rejects settings the platform cannot honor.
func (s Settings) Validate() error {
	if s.MinInstances < 0 {
		return fmt.Errorf("min-instances must be >= 0, got %d", s.MinInstances)
	}
	if s.MaxInstances < 1 {
		return fmt.Errorf("max-instances must be >= 1, got %d", s.MaxInstances)
	}
	if s.MinInstances > s.MaxInstances {
		return fmt.Errorf("min-instances %d exceeds max-instances %d",
			s.MinInstances, s.MaxInstances)
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", s.Concurrency)
	}
	return nil
}

// Patch is a partial change to Settings. Nil fields keep the base
// value, so a caller can set min-instances back to 0 or switch the
// CPU allocation mode off without clobbering the other knobs.
type Patch struct {
	MinInstances       *int
	MaxInstances       *int
	Concurrency        *int
	CPUAlwaysAllocated *bool
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.MinInstances == nil && p.MaxInstances == nil &&
		p.Concurrency == nil && p.CPUAlwaysAllocated == nil
}

// Apply overlays the set fields of p onto s and returns the result.
func (s Settings) Apply(p Patch) Settings {
	out := s
	if p.MinInstances != nil {
		out.MinInstances = *p.MinInstances
	}
	if p.MaxInstances != nil {
		out.MaxInstances = *p.MaxInstances
	}
	if p.Concurrency != nil {
		out.Concurrency = *p.Concurrency
	}
	if p.CPUAlwaysAllocated != nil {
		out.CPUAlwaysAllocated = *p.CPUAlwaysAllocated
	}
	return out
}

// Patch expresses the settings as a fully specified patch, pinning
// every knob to its current value.
func (s Settings) Patch() Patch {
	return Patch{
		MinInstances:       &s.MinInstances,
		MaxInstances:       &s.MaxInstances,
		Concurrency:        &s.Concurrency,
		CPUAlwaysAllocated: &s.CPUAlwaysAllocated,
	}
}

// Plan returns the instance count needed to serve inflight concurrent
// requests, clamped to [MinInstances, MaxInstances]. Zero load with a
// zero floor plans zero instances, which is scale-to-zero.
func (s Settings) Plan(inflight int) int {
	if inflight < 0 {
		inflight = 0
	}

	need := 0
	if inflight > 0 {
		need = int(math.Ceil(float64(inflight) / float64(s.Concurrency)))
	}

	if need < s.MinInstances {
		need = s.MinInstances
	}
	if need > s.MaxInstances {
		need = s.MaxInstances
	}

	return need
}
