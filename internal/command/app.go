// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT
package command

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/staranto/runctlgo/internal/config"
	"github.com/staranto/runctlgo/internal/meta"
	"github.com/urfave/cli/v3"
)

func InitApp(ctx context.Context, args []string) (*cli.Command, error) {

	// Save the CWD at startup and then defer restoring it so we're tidy.
	sd, _ := os.Getwd()
	defer func() {
		if err := os.Chdir(sd); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to restore directory: %v\n", err)
		}
	}()

	// The arg[1] immediately following the binary (arg[0]) is the runctl
	// subcommand and also represents the namespace key to be used when
	// retrieving config values. arg[1] could be -h/--help, so ignore it if it
	// appears to be a flag.
	var ns string
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		ns = args[1]
	}

	cfg, _ := config.Load(ns)
	meta := meta.Meta{
		Args:        args,
		Config:      cfg,
		Context:     ctx,
		StartingDir: sd,
	}

	// Config-level target defaults. The per-command flags re-resolve these
	// with env and flag precedence, so best-effort here is fine.
	meta.Project, _ = config.GetString("project", os.Getenv("RUNCTL_PROJECT"))
	meta.Region, _ = config.GetString("region", os.Getenv("RUNCTL_REGION"))
	meta.Account, _ = config.GetString("account", os.Getenv("RUNCTL_ACCOUNT"))

	app := &cli.Command{
		Name:  "runctl",
		Usage: "Run Control",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "runctl version info",
				HideDefault: true,
			},
		},
	}

	app.Commands = append(app.Commands,
		DeployCommandBuilder(app, meta),
		ServicesCommandBuilder(app, meta),
		RevisionsCommandBuilder(app, meta),
		SecretsCommandBuilder(app, meta),
		IamCommandBuilder(app, meta),
		LogsCommandBuilder(app, meta),
		ApisCommandBuilder(app, meta),
		ConfigCommandBuilder(app, meta),
		AuthCommandBuilder(app, meta),
		CompletionCommandBuilder(app, meta),
	)

	// Make sure flags are sorted for the --help text.
	for _, cmd := range app.Commands {
		sort.Slice(cmd.Flags, func(i, j int) bool {
			return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
		})
	}

	return app, nil
}
