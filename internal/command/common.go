// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"reflect"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/staranto/runctlgo/internal/attrs"
	"github.com/staranto/runctlgo/internal/meta"
	"github.com/staranto/runctlgo/internal/output"
	"github.com/staranto/runctlgo/internal/platform"
	"github.com/staranto/runctlgo/internal/scale"
	"github.com/staranto/runctlgo/internal/secret"
)

// ShortCircuitTLDR checks the --tldr flag and, if present and
// available, runs `tldr runctl <subcmd>` and returns true so the
// caller can exit early.
func ShortCircuitTLDR(ctx context.Context, cmd *cli.Command, subcmd string) bool {
	if cmd.Bool("tldr") {
		if _, err := exec.LookPath("tldr"); err == nil {
			c := exec.CommandContext(ctx, "tldr", "runctl", subcmd)
			c.Stdout = os.Stdout
			c.Stderr = os.Stderr
			_ = c.Run()
		}
		return true
	}
	return false
}

// DumpSchemaIfRequested prints the JSON schema for the provided type
// when --schema is set, and returns true if it handled the request.
func DumpSchemaIfRequested(cmd *cli.Command, t reflect.Type) bool {
	if cmd.Bool("schema") {
		output.DumpSchema("", t)
		return true
	}
	return false
}

// BuildAttrs constructs an AttrList with defaults and optional extras
// from --attrs, then applies the global transform spec.
func BuildAttrs(cmd *cli.Command, defaults ...string) (al attrs.AttrList) {
	//nolint:errcheck
	{
		for _, d := range defaults {
			al.Set(d)
		}
		if extras := cmd.String("attrs"); extras != "" {
			al.Set(extras)
		}
		al.SetGlobalTransformSpec()
	}
	return
}

// EmitSlice marshals a result slice under a "data" key and passes it
// to the common output routine.
func EmitSlice(results any, al attrs.AttrList, cmd *cli.Command) error {
	return EmitSliceWith(results, al, cmd, nil)
}

// EmitSliceWith is EmitSlice with a post-processing hook for computed
// columns.
func EmitSliceWith(results any, al attrs.AttrList, cmd *cli.Command, pp output.PostProcessor) error {
	var raw bytes.Buffer
	if err := json.NewEncoder(&raw).Encode(map[string]any{"data": results}); err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	output.SliceDiceSpit(raw, al, cmd, "data", os.Stdout, pp)
	return nil
}

// AgeColumn derives a relative "age" column from a timestamp column.
// Rows with a missing or unparsable source value are left alone.
func AgeColumn(from string) output.PostProcessor {
	return func(dataset []map[string]interface{}) error {
		for _, row := range dataset {
			s, ok := row[from].(string)
			if !ok {
				continue
			}
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				continue
			}
			row["age"] = humanize.Time(ts)
		}
		return nil
	}
}

// GetMeta returns the meta.Meta stored in the command's Metadata. If
// missing or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// OpenPlatform resolves the target flags and opens the platform
// handle. Callers own the Close.
func OpenPlatform(cmd *cli.Command) (*platform.Platform, error) {
	project := cmd.String("project")
	if project == "" {
		return nil, fmt.Errorf("project is not set (precedence: --project > RUNCTL_PROJECT > runctl.yaml)")
	}

	return platform.Open(platform.Options{
		Home:    cmd.String("home"),
		Project: project,
		Region:  cmd.String("region"),
		Account: cmd.String("account"),
	})
}

// ResolvePassphrase finds the sealing passphrase, --passphrase first,
// then RUNCTL_PASSPHRASE, then an interactive prompt.
func ResolvePassphrase(cmd *cli.Command) (string, error) {
	if pw := cmd.String("passphrase"); pw != "" {
		return pw, nil
	}
	if pw := os.Getenv("RUNCTL_PASSPHRASE"); pw != "" {
		return pw, nil
	}
	return secret.PromptPassphrase()
}

// ScalingPatch collects the scaling flags the caller actually set.
// Unset flags stay nil so the platform keeps the current values, and
// an explicit --min-instances 0 survives as a real change.
func ScalingPatch(cmd *cli.Command) scale.Patch {
	var p scale.Patch
	if cmd.IsSet("min-instances") {
		v := cmd.Int("min-instances")
		p.MinInstances = &v
	}
	if cmd.IsSet("max-instances") {
		v := cmd.Int("max-instances")
		p.MaxInstances = &v
	}
	if cmd.IsSet("concurrency") {
		v := cmd.Int("concurrency")
		p.Concurrency = &v
	}
	if cmd.IsSet("cpu-always-allocated") {
		v := cmd.Bool("cpu-always-allocated")
		p.CPUAlwaysAllocated = &v
	}
	return p
}

// ParseKVs splits repeated K=V flag values into a map.
func ParseKVs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid KEY=VALUE pair %q", pair)
		}
		out[k] = v
	}
	return out, nil
}
