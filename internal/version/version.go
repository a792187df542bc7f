// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package version carries the build version stamped in by the release
// workflow via -ldflags.
package version

// Version is the semver of this build. "dev" unless overridden at link time.
var Version = "dev"
