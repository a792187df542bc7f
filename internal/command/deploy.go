// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"

	"github.com/apex/log"
	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/staranto/runctlgo/internal/build"
	"github.com/staranto/runctlgo/internal/manifest"
	"github.com/staranto/runctlgo/internal/meta"
	"github.com/staranto/runctlgo/internal/platform"
)

// DeployCommandAction deploys from the manifest in the working
// directory, or from explicit flags when no manifest is given. Flags
// win over manifest values.
func DeployCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "deploy") {
		return nil
	}

	var man *manifest.Manifest
	path := cmd.String("manifest")
	if path == "" {
		for _, candidate := range []string{"runctl.yaml", "runctl.yml", "runctl.hcl"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		var err error
		man, err = manifest.Load(path)
		if err != nil {
			return err
		}
		log.Debugf("manifest: %s service=%s runtime=%s", path, man.Service, man.Runtime)
	}

	spec, err := buildDeploySpec(cmd, man)
	if err != nil {
		return err
	}

	// --dockerfile renders the build contract and stops.
	if cmd.Bool("dockerfile") {
		if man == nil {
			return fmt.Errorf("--dockerfile needs a manifest")
		}
		df, err := build.Dockerfile(man)
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, df)
		return nil
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	svc, rev, err := p.Deploy(spec)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Deployed %s revision %s\nURL: %s\n", svc.Name, rev.Name, svc.URL)
	return nil
}

func buildDeploySpec(cmd *cli.Command, man *manifest.Manifest) (platform.DeploySpec, error) {
	service := cmd.String("service")
	if service == "" {
		service = cmd.Args().First()
	}

	spec := platform.DeploySpec{
		Service:        service,
		Image:          cmd.String("image"),
		Port:           cmd.Int("port"),
		Ingress:        cmd.String("ingress"),
		ServiceAccount: cmd.String("service-account"),
		Scaling:        ScalingPatch(cmd),
	}

	env, err := ParseKVs(cmd.StringSlice("set-env"))
	if err != nil {
		return spec, err
	}
	spec.Env = env

	secretEnv, err := ParseKVs(cmd.StringSlice("set-secrets"))
	if err != nil {
		return spec, err
	}
	spec.SecretEnv = secretEnv

	if man != nil {
		if spec.Service == "" {
			spec.Service = man.Service
		}
		if spec.Port == 0 {
			spec.Port = man.EffectivePort()
		}
		if spec.Ingress == "" {
			spec.Ingress = man.Ingress
		}
		if spec.Env == nil {
			spec.Env = man.Env
		}
		if spec.SecretEnv == nil {
			spec.SecretEnv = man.SecretEnv
		}
		// Manifest scaling first, then any flags on top. The result is
		// pinned so the platform does not re-default unset knobs.
		spec.Scaling = man.Scaling.Settings().Apply(spec.Scaling).Patch()
		if spec.Image == "" {
			spec.Image = build.ImageTag(cmd.String("project"), man.Service, "src")
		}
	}

	if spec.Service == "" {
		return spec, fmt.Errorf("service is not set (--service or manifest)")
	}

	return spec, nil
}

// DeployCommandBuilder constructs the cli.Command for "deploy",
// wiring metadata, flags, and action/validator handlers.
func DeployCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "deploy",
		Usage:     "deploy a service revision",
		UsageText: `runctl deploy [SERVICE] [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "manifest",
				Aliases: []string{"m"},
				Usage:   "deployment manifest (defaults to runctl.yaml in the working directory)",
			},
			&cli.StringFlag{
				Name:  "service",
				Usage: "service name, overrides the manifest",
			},
			&cli.StringFlag{
				Name:  "image",
				Usage: "container image to deploy",
			},
			&cli.IntFlag{
				Name:        "port",
				Usage:       "container port, reaches the container as $PORT",
				HideDefault: true,
			},
			&cli.StringSliceFlag{
				Name:  "set-env",
				Usage: "env var as KEY=VALUE, repeatable",
			},
			&cli.StringSliceFlag{
				Name:  "set-secrets",
				Usage: "secret env var as KEY=secret:version, repeatable",
			},
			&cli.IntFlag{
				Name:        "min-instances",
				Usage:       "autoscaling floor",
				HideDefault: true,
				Sources: cli.NewValueSourceChain(
					yaml.YAML("deploy.min-instances", altsrc.StringSourcer(cfg.Source)),
				),
			},
			&cli.IntFlag{
				Name:        "max-instances",
				Usage:       "autoscaling ceiling",
				HideDefault: true,
				Sources: cli.NewValueSourceChain(
					yaml.YAML("deploy.max-instances", altsrc.StringSourcer(cfg.Source)),
				),
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
			&cli.BoolFlag{
				Name:        "dockerfile",
				Usage:       "print the generated Dockerfile and exit",
				HideDefault: true,
			},
			NewProjectFlag("deploy"),
			NewRegionFlag("deploy"),
			NewAccountFlag("deploy"),
			NewHomeFlag("deploy"),
			tldrFlag,
		}, NewGlobalFlags("deploy")...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if err := GlobalFlagsValidator(ctx, cmd); err != nil {
				return err
			}
			return DeployCommandAction(ctx, cmd)
		},
	}
}
