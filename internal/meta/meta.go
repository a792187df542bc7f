// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package meta

import (
	"context"

	"github.com/staranto/runctlgo/internal/config"
)

// TargetSpec identifies the platform scope a command operates against.
type TargetSpec struct {
	Project string
	Region  string
}

// Meta are the meta-options that are available on all or most commands.
type Meta struct {
	Args    []string
	Config  config.Type
	Context context.Context
	TargetSpec
	Account     string
	StartingDir string
}
