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

	"github.com/staranto/runctlgo/internal/meta"
	"github.com/staranto/runctlgo/internal/platform"
	"github.com/staranto/runctlgo/internal/service"
)

// ServicesListCommandAction lists the project's services.
func ServicesListCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "services") {
		return nil
	}
	if DumpSchemaIfRequested(cmd, reflect.TypeOf(service.Service{})) {
		return nil
	}

	attrs := BuildAttrs(cmd, "name", "status", "ingress", "url", "latestRevision", "createTime", "age")
	log.Debugf("attrs: %v", attrs)

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	services, err := p.ListServices()
	if err != nil {
		return err
	}

	return EmitSliceWith(services, attrs, cmd, AgeColumn("createTime"))
}

// ServicesDescribeCommandAction dumps one service.
func ServicesDescribeCommandAction(ctx context.Context, cmd *cli.Command) error {
	name, err := requireServiceArg(cmd)
	if err != nil {
		return err
	}

	attrs := BuildAttrs(cmd,
		"name", "status", "ingress", "url", "latestRevision", "serviceAccount", "region")

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	svc, err := p.GetService(name)
	if err != nil {
		return err
	}

	return EmitSlice([]*service.Service{svc}, attrs, cmd)
}

// ServicesUpdateCommandAction applies flag changes to a service,
// minting a new revision when the container contract changes.
func ServicesUpdateCommandAction(ctx context.Context, cmd *cli.Command) error {
	name, err := requireServiceArg(cmd)
	if err != nil {
		return err
	}

	env, err := ParseKVs(cmd.StringSlice("set-env"))
	if err != nil {
		return err
	}
	secretEnv, err := ParseKVs(cmd.StringSlice("set-secrets"))
	if err != nil {
		return err
	}

	spec := platform.UpdateSpec{
		Image:          cmd.String("image"),
		Port:           cmd.Int("port"),
		Env:            env,
		SecretEnv:      secretEnv,
		Ingress:        cmd.String("ingress"),
		ServiceAccount: cmd.String("service-account"),
		Scaling:        ScalingPatch(cmd),
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	svc, rev, err := p.Update(name, spec)
	if err != nil {
		return err
	}

	if rev != nil {
		fmt.Fprintf(os.Stdout, "Updated %s revision %s\n", svc.Name, rev.Name)
	} else {
		fmt.Fprintf(os.Stdout, "Updated %s\n", svc.Name)
	}
	return nil
}

// ServicesDeleteCommandAction removes a service and its revisions.
func ServicesDeleteCommandAction(ctx context.Context, cmd *cli.Command) error {
	name, err := requireServiceArg(cmd)
	if err != nil {
		return err
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.DeleteService(name); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Deleted %s\n", name)
	return nil
}

// ServicesStopCommandAction stops routing traffic to a service.
func ServicesStopCommandAction(ctx context.Context, cmd *cli.Command) error {
	return servicesToggleAction(cmd, (*platform.Platform).StopService)
}

// ServicesStartCommandAction resumes a stopped service.
func ServicesStartCommandAction(ctx context.Context, cmd *cli.Command) error {
	return servicesToggleAction(cmd, (*platform.Platform).StartService)
}

func servicesToggleAction(cmd *cli.Command, fn func(*platform.Platform, string) (*service.Service, error)) error {
	name, err := requireServiceArg(cmd)
	if err != nil {
		return err
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	svc, err := fn(p, name)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s is %s\n", svc.Name, svc.Status)
	return nil
}

func requireServiceArg(cmd *cli.Command) (string, error) {
	name := cmd.Args().First()
	if name == "" {
		return "", fmt.Errorf("service name is required")
	}
	return name, nil
}

// ServicesCommandBuilder constructs the cli.Command for "services"
// and its subcommands.
func ServicesCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	target := []cli.Flag{
		NewProjectFlag("services"),
		NewRegionFlag("services"),
		NewAccountFlag("services"),
		NewHomeFlag("services"),
	}

	return &cli.Command{
		Name:      "services",
		Usage:     "manage services",
		UsageText: `runctl services <list|describe|update|delete|stop|start> [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			{
				Name:     "list",
				Usage:    "list services",
				Metadata: map[string]any{"meta": meta},
				Flags: append(append([]cli.Flag{
					tldrFlag,
					schemaFlag,
				}, target...), NewGlobalFlags("services")...),
				Action: ServicesListCommandAction,
			},
			{
				Name:      "describe",
				Usage:     "describe one service",
				UsageText: `runctl services describe SERVICE [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append(append([]cli.Flag{}, target...), NewGlobalFlags("services")...),
				Action:    ServicesDescribeCommandAction,
			},
			{
				Name:      "update",
				Usage:     "update a service, minting a new revision when needed",
				UsageText: `runctl services update SERVICE [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags: append(append([]cli.Flag{
					&cli.StringFlag{
						Name:  "image",
						Usage: "container image",
					},
					&cli.IntFlag{
						Name:        "port",
						Usage:       "container port",
						HideDefault: true,
					},
					&cli.StringSliceFlag{
						Name:  "set-env",
						Usage: "env var as KEY=VALUE, repeatable. Replaces the env set",
					},
					&cli.StringSliceFlag{
						Name:  "set-secrets",
						Usage: "secret env var as KEY=secret:version, repeatable",
					},
					&cli.IntFlag{
						Name:        "min-instances",
						Usage:       "autoscaling floor",
						HideDefault: true,
					},
					&cli.IntFlag{
						Name:        "max-instances",
						Usage:       "autoscaling ceiling",
						HideDefault: true,
					},
					&cli.IntFlag{
						Name:        "concurrency",
						Usage:       "concurrent requests per instance",
						HideDefault: true,
					},
					&cli.BoolFlag{
						Name:  "cpu-always-allocated",
						Usage: "keep CPU allocated outside of requests",
						Value: false,
					},
					&cli.StringFlag{
						Name:  "ingress",
						Usage: "ingress setting, all or internal",
						Validator: func(value string) error {
							if value == "" {
								return nil
							}
							return FlagValidators(value, IngressValidator)
						},
					},
					&cli.StringFlag{
						Name:  "service-account",
						Usage: "service identity for secret access",
					},
				}, target...), NewGlobalFlags("services")...),
				Action: ServicesUpdateCommandAction,
			},
			{
				Name:      "delete",
				Usage:     "delete a service and its revisions",
				UsageText: `runctl services delete SERVICE [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append([]cli.Flag{}, target...),
				Action:    ServicesDeleteCommandAction,
			},
			{
				Name:      "stop",
				Usage:     "stop routing traffic to a service",
				UsageText: `runctl services stop SERVICE [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append([]cli.Flag{}, target...),
				Action:    ServicesStopCommandAction,
			},
			{
				Name:      "start",
				Usage:     "resume a stopped service",
				UsageText: `runctl services start SERVICE [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append([]cli.Flag{}, target...),
				Action:    ServicesStartCommandAction,
			},
		},
	}
}
