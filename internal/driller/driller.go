// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package driller

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Driller resolves path against the JSON document, one segment at a time.
// Paths use . separators with optional [n] array indexing (eg.
// "teams[0].lead.name").  A segment that lands on a single-element array is
// drilled through transparently, which is what callers want when a dataset
// wraps each value in a list.  A terminal multi-element array is returned
// as-is.
func Driller(json string, path string) gjson.Result {
	result := gjson.Parse(json)

	for _, segment := range splitPath(path) {
		if !result.Exists() {
			return result
		}

		// Drill through a single-element array before applying a non-index
		// segment.
		if result.IsArray() && !isIndex(segment) {
			arr := result.Array()
			if len(arr) != 1 {
				return gjson.Result{}
			}
			result = arr[0]
		}

		result = result.Get(segment)
	}

	// A terminal single-element array unwraps to its only element.
	if result.IsArray() {
		if arr := result.Array(); len(arr) == 1 {
			return arr[0]
		}
	}

	return result
}

// splitPath breaks a path into segments, expanding [n] indexes into their own
// numeric segments.  "teams[0].name" becomes ["teams", "0", "name"].
func splitPath(path string) []string {
	var segments []string

	for _, part := range strings.Split(path, ".") {
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				if part != "" {
					segments = append(segments, part)
				}
				break
			}

			close := strings.IndexByte(part, ']')
			if close < open {
				// Malformed index spec, treat the remainder as a literal key.
				segments = append(segments, part)
				break
			}

			if open > 0 {
				segments = append(segments, part[:open])
			}
			segments = append(segments, part[open+1:close])
			part = part[close+1:]
		}
	}

	return segments
}

// isIndex reports whether the segment is a bare numeric array index.
func isIndex(segment string) bool {
	_, err := strconv.Atoi(segment)
	return err == nil
}
