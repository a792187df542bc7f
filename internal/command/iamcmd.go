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

// IamBindCommandAction grants a role to a member on a resource.
func IamBindCommandAction(ctx context.Context, cmd *cli.Command) error {
	resource, role, member, err := iamArgs(cmd)
	if err != nil {
		return err
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.AddBinding(resource, role, member); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Bound %s to %s on %s\n", member, role, resource)
	return nil
}

// IamUnbindCommandAction revokes a role from a member on a resource.
func IamUnbindCommandAction(ctx context.Context, cmd *cli.Command) error {
	resource, role, member, err := iamArgs(cmd)
	if err != nil {
		return err
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.RemoveBinding(resource, role, member); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Unbound %s from %s on %s\n", member, role, resource)
	return nil
}

// IamPolicyCommandAction prints the bindings of a resource.
func IamPolicyCommandAction(ctx context.Context, cmd *cli.Command) error {
	resource := cmd.Args().First()
	if resource == "" {
		return fmt.Errorf("resource is required, such as secret/openai-api-key")
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	policy, err := p.GetPolicy(resource)
	if err != nil {
		return err
	}

	if len(policy.Bindings) == 0 {
		fmt.Fprintf(os.Stdout, "No bindings on %s\n", resource)
		return nil
	}

	for _, role := range policy.Roles() {
		fmt.Fprintf(os.Stdout, "%s\n", role)
		for _, member := range policy.Members(role) {
			fmt.Fprintf(os.Stdout, "  %s\n", member)
		}
	}
	return nil
}

func iamArgs(cmd *cli.Command) (resource string, role string, member string, err error) {
	resource = cmd.Args().First()
	role = cmd.String("role")
	member = cmd.String("member")
	if resource == "" || role == "" || member == "" {
		err = fmt.Errorf("resource argument, --role and --member are required")
	}
	return
}

// IamCommandBuilder constructs the cli.Command for "iam".
func IamCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	target := []cli.Flag{
		NewProjectFlag("iam"),
		NewRegionFlag("iam"),
		NewAccountFlag("iam"),
		NewHomeFlag("iam"),
	}

	bindingFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "role",
			Usage: "role name, such as roles/secretmanager.secretAccessor",
		},
		&cli.StringFlag{
			Name:  "member",
			Usage: "member, such as serviceAccount:grader@demo.iam",
		},
	}

	return &cli.Command{
		Name:      "iam",
		Usage:     "manage resource policies",
		UsageText: `runctl iam <bind|unbind|policy> RESOURCE [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			{
				Name:      "bind",
				Usage:     "grant a role to a member on a resource",
				UsageText: `runctl iam bind RESOURCE --role ROLE --member MEMBER [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append(append([]cli.Flag{}, bindingFlags...), target...),
				Action:    IamBindCommandAction,
			},
			{
				Name:      "unbind",
				Usage:     "revoke a role from a member on a resource",
				UsageText: `runctl iam unbind RESOURCE --role ROLE --member MEMBER [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append(append([]cli.Flag{}, bindingFlags...), target...),
				Action:    IamUnbindCommandAction,
			},
			{
				Name:      "policy",
				Usage:     "show the bindings of a resource",
				UsageText: `runctl iam policy RESOURCE [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append([]cli.Flag{}, target...),
				Action:    IamPolicyCommandAction,
			},
		},
	}
}
