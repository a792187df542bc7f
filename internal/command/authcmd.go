// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/staranto/runctlgo/internal/meta"
)

// AuthLoginCommandAction stores a member as the default identity.
func AuthLoginCommandAction(ctx context.Context, cmd *cli.Command) error {
	member := cmd.Args().First()
	if member == "" {
		return fmt.Errorf("member argument is required, such as user:staff@example.edu")
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.SaveAccount(member); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Logged in as %s\n", member)
	return nil
}

// AuthWhoamiCommandAction prints the effective identity.
func AuthWhoamiCommandAction(ctx context.Context, cmd *cli.Command) error {
	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	account := p.CurrentAccount()
	if account == "" {
		return fmt.Errorf("not logged in, run: runctl auth login MEMBER")
	}

	fmt.Fprintf(os.Stdout, "%s\n", account)
	return nil
}

// AuthCommandBuilder constructs the cli.Command for "auth".
func AuthCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	target := []cli.Flag{
		NewProjectFlag("auth"),
		NewRegionFlag("auth"),
		NewAccountFlag("auth"),
		NewHomeFlag("auth"),
	}

	return &cli.Command{
		Name:      "auth",
		Usage:     "manage the caller identity",
		UsageText: `runctl auth <login|whoami> [MEMBER] [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			{
				Name:      "login",
				Usage:     "store a member as the default identity",
				UsageText: `runctl auth login MEMBER [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append([]cli.Flag{}, target...),
				Action:    AuthLoginCommandAction,
			},
			{
				Name:      "whoami",
				Usage:     "print the effective identity",
				UsageText: `runctl auth whoami [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append([]cli.Flag{}, target...),
				Action:    AuthWhoamiCommandAction,
			},
		},
	}
}
