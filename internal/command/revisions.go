// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"reflect"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/runctlgo/internal/diff"
	"github.com/staranto/runctlgo/internal/meta"
	"github.com/staranto/runctlgo/internal/service"
)

// RevisionsListCommandAction lists the revisions of a service, oldest
// first.
func RevisionsListCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "revisions") {
		return nil
	}
	if DumpSchemaIfRequested(cmd, reflect.TypeOf(service.Revision{})) {
		return nil
	}

	name, err := requireServiceArg(cmd)
	if err != nil {
		return err
	}

	attrs := BuildAttrs(cmd, "name", "image", "port", "active", "scaling.minInstances", "scaling.maxInstances", "createTime", "age")
	log.Debugf("attrs: %v", attrs)

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	revisions, err := p.ListRevisions(name)
	if err != nil {
		return err
	}

	return EmitSliceWith(revisions, attrs, cmd, AgeColumn("createTime"))
}

// RevisionsDiffCommandAction diffs two revisions of a service. With
// no specs the newest two are compared. Specs accept revision names
// or the relative REV~N form.
func RevisionsDiffCommandAction(ctx context.Context, cmd *cli.Command) error {
	name, err := requireServiceArg(cmd)
	if err != nil {
		return err
	}

	specs := []string{"REV~1", "REV~0"}
	args := cmd.Args().Slice()[1:]
	switch len(args) {
	case 0:
		// No specs, use the last two revisions.
	case 1:
		specs[0] = args[0]
	case 2:
		specs = args
	default:
		return fmt.Errorf("at most two revision specs")
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	revisions, err := p.ListRevisions(name)
	if err != nil {
		return err
	}
	if len(revisions) < 2 {
		return fmt.Errorf("service %s has %d revisions, nothing to diff", name, len(revisions))
	}

	left, err := diff.ResolveSpec(revisions, specs[0])
	if err != nil {
		return err
	}
	right, err := diff.ResolveSpec(revisions, specs[1])
	if err != nil {
		return err
	}

	leftRev, err := p.GetRevision(name, left)
	if err != nil {
		return err
	}
	rightRev, err := p.GetRevision(name, right)
	if err != nil {
		return err
	}

	out, modified, err := diff.Revisions(leftRev, rightRev)
	if err != nil {
		return err
	}
	if !modified {
		fmt.Fprintf(os.Stdout, "%s and %s are identical\n", left, right)
		return nil
	}

	fmt.Fprint(os.Stdout, out)
	return nil
}

// RevisionsCommandBuilder constructs the cli.Command for "revisions".
func RevisionsCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	target := []cli.Flag{
		NewProjectFlag("revisions"),
		NewRegionFlag("revisions"),
		NewAccountFlag("revisions"),
		NewHomeFlag("revisions"),
	}

	return &cli.Command{
		Name:      "revisions",
		Usage:     "inspect service revisions",
		UsageText: `runctl revisions <list|diff> SERVICE [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "list revisions of a service",
				UsageText: `runctl revisions list SERVICE [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags: append(append([]cli.Flag{
					tldrFlag,
					schemaFlag,
				}, target...), NewGlobalFlags("revisions")...),
				Action: RevisionsListCommandAction,
			},
			{
				Name:      "diff",
				Usage:     "diff two revisions of a service",
				UsageText: `runctl revisions diff SERVICE [SPEC [SPEC]] [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append([]cli.Flag{}, target...),
				Action:    RevisionsDiffCommandAction,
			},
		},
	}
}
