// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package driller resolves dotted attribute paths against JSON documents,
// drilling through single-element arrays so that callers can address nested
// values without caring about intermediate list wrappers.
package driller
