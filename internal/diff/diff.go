// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: Apache-2.0

// Package diff compares two revisions of a service and renders what
// changed. Revision specs accept either a full revision name or the
// relative form REV~N, where REV~0 is the newest revision.
package diff

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"

	"github.com/staranto/runctlgo/internal/service"
)

const relativePrefix = "REV~"

// ResolveSpec maps a revision spec to a concrete revision name.
// revisions must be ordered oldest first, as ListRevisions returns
// them.
func ResolveSpec(revisions []service.Revision, spec string) (string, error) {
	if !strings.HasPrefix(spec, relativePrefix) {
		for _, r := range revisions {
			if r.Name == spec {
				return spec, nil
			}
		}
		return "", fmt.Errorf("revision %s not found", spec)
	}

	n, err := strconv.Atoi(spec[len(relativePrefix):])
	if err != nil || n < 0 {
		return "", fmt.Errorf("invalid revision spec %q", spec)
	}
	if n >= len(revisions) {
		return "", fmt.Errorf("revision spec %s is out of range, service has %d revisions",
			spec, len(revisions))
	}

	return revisions[len(revisions)-1-n].Name, nil
}

// Revisions diffs two revisions as JSON documents. The second return
// is false when they are identical.
func Revisions(left *service.Revision, right *service.Revision) (string, bool, error) {
	leftJSON, err := json.Marshal(left)
	if err != nil {
		return "", false, err
	}
	rightJSON, err := json.Marshal(right)
	if err != nil {
		return "", false, err
	}
	return JSON(leftJSON, rightJSON)
}

// JSON diffs two JSON documents and renders an ascii unified-style
// report of the right side against the left.
func JSON(left []byte, right []byte) (string, bool, error) {
	d, err := gojsondiff.New().Compare(left, right)
	if err != nil {
		return "", false, fmt.Errorf("comparing documents: %w", err)
	}

	if !d.Modified() {
		return "", false, nil
	}

	var leftObj map[string]interface{}
	if err := json.Unmarshal(left, &leftObj); err != nil {
		return "", false, err
	}

	out, err := formatter.NewAsciiFormatter(leftObj, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
	}).Format(d)
	if err != nil {
		return "", false, fmt.Errorf("formatting diff: %w", err)
	}

	return out, true, nil
}
