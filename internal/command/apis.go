// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"reflect"

	"github.com/urfave/cli/v3"

	"github.com/staranto/runctlgo/internal/meta"
)

// ApisEnableCommandAction turns an API on for the target project.
func ApisEnableCommandAction(ctx context.Context, cmd *cli.Command) error {
	api := cmd.Args().First()
	if api == "" {
		return fmt.Errorf("api argument is required, such as run")
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.EnableAPI(api); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Enabled %s on project %s\n", api, p.Project())
	return nil
}

// ApisDisableCommandAction turns an API off for the target project.
func ApisDisableCommandAction(ctx context.Context, cmd *cli.Command) error {
	api := cmd.Args().First()
	if api == "" {
		return fmt.Errorf("api argument is required, such as run")
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.DisableAPI(api); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Disabled %s on project %s\n", api, p.Project())
	return nil
}

type apiRow struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// ApisListCommandAction lists every known API and its state.
func ApisListCommandAction(ctx context.Context, cmd *cli.Command) error {
	if ShortCircuitTLDR(ctx, cmd, "apis") {
		return nil
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	states, err := p.ListAPIs()
	if err != nil {
		return err
	}

	if DumpSchemaIfRequested(cmd, reflect.TypeOf(apiRow{})) {
		return nil
	}

	attrs := BuildAttrs(cmd, "name", "enabled")

	rows := make([]apiRow, 0, len(states))
	for name, enabled := range states {
		rows = append(rows, apiRow{Name: name, Enabled: enabled})
	}

	return EmitSlice(rows, attrs, cmd)
}

// ApisCommandBuilder constructs the cli.Command for "apis".
func ApisCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	target := []cli.Flag{
		NewProjectFlag("apis"),
		NewRegionFlag("apis"),
		NewAccountFlag("apis"),
		NewHomeFlag("apis"),
	}

	return &cli.Command{
		Name:      "apis",
		Usage:     "enable, disable and list project APIs",
		UsageText: `runctl apis <enable|disable|list> [API] [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			{
				Name:      "enable",
				Usage:     "enable an API on the target project",
				UsageText: `runctl apis enable API [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append([]cli.Flag{}, target...),
				Action:    ApisEnableCommandAction,
			},
			{
				Name:      "disable",
				Usage:     "disable an API on the target project",
				UsageText: `runctl apis disable API [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append([]cli.Flag{}, target...),
				Action:    ApisDisableCommandAction,
			},
			{
				Name:      "list",
				Usage:     "list known APIs and their state",
				UsageText: `runctl apis list [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags: append(append([]cli.Flag{tldrFlag, schemaFlag},
					target...),
					NewGlobalFlags("apis")...),
				Action: ApisListCommandAction,
			},
		},
	}
}
