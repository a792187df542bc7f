// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package secret models named secrets and their numbered versions.
// Versions are immutable once added. The lifecycle is
// enabled -> disabled -> enabled (reversible) and
// any -> destroyed (terminal, payload discarded).
package secret

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// State is the lifecycle state of a secret version.
type State string

const (
	Enabled   State = "enabled"
	Disabled  State = "disabled"
	Destroyed State = "destroyed"
)

// Latest is the version alias that resolves to the highest-numbered
// version of a secret.
const Latest = "latest"

var (
	// ErrDisabled is returned when accessing a disabled version.
	ErrDisabled = errors.New("secret version is disabled")

	// ErrDestroyed is returned when accessing or transitioning a
	// destroyed version.
	ErrDestroyed = errors.New("secret version is destroyed")
)

var nameRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,255}$`)

// ValidateName rejects secret names the platform cannot address.
func ValidateName(name string) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("invalid secret name %q: must match %s", name, nameRE)
	}
	return nil
}

// Secret is the named container. Payloads live on its versions.
type Secret struct {
	Name       string            `json:"name"`
	Project    string            `json:"project"`
	Labels     map[string]string `json:"labels,omitempty"`
	CreateTime time.Time         `json:"createTime"`

	// NextVersion is the number the next AddVersion will be given.
	// Numbers are never reused, even after a destroy.
	NextVersion int `json:"nextVersion"`
}

// Version is one immutable payload of a secret. Payload holds the
// sealed bytes and is nil once the version is destroyed.
type Version struct {
	Secret      string    `json:"secret"`
	Number      int       `json:"number"`
	State       State     `json:"state"`
	Payload     []byte    `json:"payload,omitempty"`
	CreateTime  time.Time `json:"createTime"`
	DestroyTime time.Time `json:"destroyTime,omitempty"`
}

// Ref is the canonical resource name, secret/<name>/version/<n>.
func (v *Version) Ref() string {
	return fmt.Sprintf("secret/%s/version/%d", v.Secret, v.Number)
}

// Disable marks the version disabled. Disabling a destroyed version
// fails, disabling a disabled one is a no-op.
func (v *Version) Disable() error {
	if v.State == Destroyed {
		return fmt.Errorf("%s: %w", v.Ref(), ErrDestroyed)
	}
	v.State = Disabled
	return nil
}

// Enable marks the version enabled again.
func (v *Version) Enable() error {
	if v.State == Destroyed {
		return fmt.Errorf("%s: %w", v.Ref(), ErrDestroyed)
	}
	v.State = Enabled
	return nil
}

// Destroy discards the payload and marks the version destroyed. The
// transition is terminal and idempotent.
func (v *Version) Destroy(now time.Time) {
	if v.State == Destroyed {
		return
	}
	v.State = Destroyed
	v.Payload = nil
	v.DestroyTime = now
}

// Accessible returns nil when the version's payload may be read.
func (v *Version) Accessible() error {
	switch v.State {
	case Enabled:
		return nil
	case Disabled:
		return fmt.Errorf("%s: %w", v.Ref(), ErrDisabled)
	default:
		return fmt.Errorf("%s: %w", v.Ref(), ErrDestroyed)
	}
}
