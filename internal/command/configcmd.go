// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/staranto/runctlgo/internal/config"
	"github.com/staranto/runctlgo/internal/meta"
)

// ConfigGetCommandAction prints the value at a dotted path in runctl.yaml.
func ConfigGetCommandAction(ctx context.Context, cmd *cli.Command) error {
	key := cmd.Args().First()
	if key == "" {
		return fmt.Errorf("key argument is required, such as deploy.min-instances")
	}

	val, err := config.Get(key)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%v\n", val)
	return nil
}

// ConfigSetCommandAction writes a value at a dotted path back to runctl.yaml.
func ConfigSetCommandAction(ctx context.Context, cmd *cli.Command) error {
	key := cmd.Args().First()
	raw := cmd.Args().Get(1)
	if key == "" || raw == "" {
		return fmt.Errorf("key and value arguments are required")
	}

	if err := config.Set(key, coerceScalar(raw)); err != nil {
		return err
	}

	path, _ := config.Path()
	fmt.Fprintf(os.Stdout, "Set %s in %s\n", key, path)
	return nil
}

// ConfigListCommandAction prints every leaf of runctl.yaml by dotted path.
func ConfigListCommandAction(ctx context.Context, cmd *cli.Command) error {
	leaves := config.Flatten()

	keys := make([]string, 0, len(leaves))
	for k := range leaves {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(os.Stdout, "%s = %v\n", k, leaves[k])
	}
	return nil
}

// coerceScalar keeps ints and bools typed in the document rather than
// stringifying everything.
func coerceScalar(raw string) any {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

// ConfigCommandBuilder constructs the cli.Command for "config".
func ConfigCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "config",
		Usage:     "inspect and edit runctl.yaml",
		UsageText: `runctl config <get|set|list> [KEY] [VALUE]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "print the value at a dotted path",
				UsageText: `runctl config get KEY`,
				Metadata:  map[string]any{"meta": meta},
				Action:    ConfigGetCommandAction,
			},
			{
				Name:      "set",
				Usage:     "write a value at a dotted path",
				UsageText: `runctl config set KEY VALUE`,
				Metadata:  map[string]any{"meta": meta},
				Action:    ConfigSetCommandAction,
			},
			{
				Name:      "list",
				Usage:     "print every setting by dotted path",
				UsageText: `runctl config list`,
				Metadata:  map[string]any{"meta": meta},
				Action:    ConfigListCommandAction,
			},
		},
	}
}
