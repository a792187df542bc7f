// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/staranto/runctlgo/internal/meta"
	"github.com/staranto/runctlgo/internal/platform"
	"github.com/staranto/runctlgo/internal/secret"
)

// SecretsCreateCommandAction creates an empty named secret.
func SecretsCreateCommandAction(ctx context.Context, cmd *cli.Command) error {
	name, err := requireSecretArg(cmd)
	if err != nil {
		return err
	}

	labels, err := ParseKVs(cmd.StringSlice("label"))
	if err != nil {
		return err
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	s, err := p.CreateSecret(name, labels)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Created secret %s\n", s.Name)
	return nil
}

// SecretsListCommandAction lists the project's secrets.
func SecretsListCommandAction(ctx context.Context, cmd *cli.Command) error {
	m := GetMeta(cmd)
	log.Debugf("Executing action for %v", m.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "secrets") {
		return nil
	}
	if DumpSchemaIfRequested(cmd, reflect.TypeOf(secret.Secret{})) {
		return nil
	}

	attrs := BuildAttrs(cmd, "name", "nextVersion", "createTime", "age")
	log.Debugf("attrs: %v", attrs)

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	secrets, err := p.ListSecrets()
	if err != nil {
		return err
	}

	return EmitSliceWith(secrets, attrs, cmd, AgeColumn("createTime"))
}

// SecretsAddVersionCommandAction seals a payload as the secret's next
// version. The payload comes from --data-file or stdin.
func SecretsAddVersionCommandAction(ctx context.Context, cmd *cli.Command) error {
	name, err := requireSecretArg(cmd)
	if err != nil {
		return err
	}

	var plaintext []byte
	if path := cmd.String("data-file"); path != "" && path != "-" {
		plaintext, err = os.ReadFile(path)
	} else {
		plaintext, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}
	plaintext = []byte(strings.TrimRight(string(plaintext), "\n"))
	if len(plaintext) == 0 {
		return fmt.Errorf("empty payload")
	}

	passphrase, err := ResolvePassphrase(cmd)
	if err != nil {
		return err
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	v, err := p.AddVersion(name, plaintext, passphrase)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Added %s\n", v.Ref())
	return nil
}

// SecretsVersionsCommandAction lists the versions of a secret.
func SecretsVersionsCommandAction(ctx context.Context, cmd *cli.Command) error {
	name, err := requireSecretArg(cmd)
	if err != nil {
		return err
	}

	attrs := BuildAttrs(cmd, "number", "state", "createTime")

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	versions, err := p.ListVersions(name)
	if err != nil {
		return err
	}

	return EmitSlice(versions, attrs, cmd)
}

// SecretsAccessCommandAction opens a version payload and writes it to
// stdout.
func SecretsAccessCommandAction(ctx context.Context, cmd *cli.Command) error {
	name, err := requireSecretArg(cmd)
	if err != nil {
		return err
	}

	passphrase, err := ResolvePassphrase(cmd)
	if err != nil {
		return err
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	plaintext, err := p.AccessVersion(name, cmd.String("version"), passphrase)
	if err != nil {
		return err
	}

	_, err = os.Stdout.Write(plaintext)
	return err
}

// SecretsEnableCommandAction re-enables a disabled version.
func SecretsEnableCommandAction(ctx context.Context, cmd *cli.Command) error {
	return secretsTransitionAction(cmd, (*platform.Platform).EnableVersion)
}

// SecretsDisableCommandAction disables a version without discarding
// it.
func SecretsDisableCommandAction(ctx context.Context, cmd *cli.Command) error {
	return secretsTransitionAction(cmd, (*platform.Platform).DisableVersion)
}

// SecretsDestroyCommandAction permanently discards a version payload.
func SecretsDestroyCommandAction(ctx context.Context, cmd *cli.Command) error {
	return secretsTransitionAction(cmd, (*platform.Platform).DestroyVersion)
}

func secretsTransitionAction(cmd *cli.Command, fn func(*platform.Platform, string, string) (*secret.Version, error)) error {
	name, err := requireSecretArg(cmd)
	if err != nil {
		return err
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	v, err := fn(p, name, cmd.String("version"))
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s is %s\n", v.Ref(), v.State)
	return nil
}

// SecretsDeleteCommandAction removes a secret and all its versions.
func SecretsDeleteCommandAction(ctx context.Context, cmd *cli.Command) error {
	name, err := requireSecretArg(cmd)
	if err != nil {
		return err
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.DeleteSecret(name); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Deleted secret %s\n", name)
	return nil
}

func requireSecretArg(cmd *cli.Command) (string, error) {
	name := cmd.Args().First()
	if name == "" {
		return "", fmt.Errorf("secret name is required")
	}
	return name, nil
}

var versionFlag = &cli.StringFlag{
	Name:        "version",
	Usage:       "version number, or latest",
	Value:       "latest",
	HideDefault: true,
}

// SecretsCommandBuilder constructs the cli.Command for "secrets" and
// its subcommands.
func SecretsCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	target := []cli.Flag{
		NewProjectFlag("secrets"),
		NewRegionFlag("secrets"),
		NewAccountFlag("secrets"),
		NewHomeFlag("secrets"),
	}

	return &cli.Command{
		Name:      "secrets",
		Usage:     "manage secrets and their versions",
		UsageText: `runctl secrets <create|list|add-version|versions|access|enable|disable|destroy|delete> [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "create a named secret",
				UsageText: `runctl secrets create SECRET [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags: append([]cli.Flag{
					&cli.StringSliceFlag{
						Name:  "label",
						Usage: "label as KEY=VALUE, repeatable",
					},
				}, target...),
				Action: SecretsCreateCommandAction,
			},
			{
				Name:     "list",
				Usage:    "list secrets",
				Metadata: map[string]any{"meta": meta},
				Flags: append(append([]cli.Flag{
					tldrFlag,
					schemaFlag,
				}, target...), NewGlobalFlags("secrets")...),
				Action: SecretsListCommandAction,
			},
			{
				Name:      "add-version",
				Usage:     "seal a payload as the next version",
				UsageText: `runctl secrets add-version SECRET [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "data-file",
						Usage: "payload file, - for stdin",
						Value: "-",
					},
					NewPassphraseFlag(),
				}, target...),
				Action: SecretsAddVersionCommandAction,
			},
			{
				Name:      "versions",
				Usage:     "list versions of a secret",
				UsageText: `runctl secrets versions SECRET [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append(append([]cli.Flag{}, target...), NewGlobalFlags("secrets")...),
				Action:    SecretsVersionsCommandAction,
			},
			{
				Name:      "access",
				Usage:     "print a version payload",
				UsageText: `runctl secrets access SECRET [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags: append([]cli.Flag{
					versionFlag,
					NewPassphraseFlag(),
				}, target...),
				Action: SecretsAccessCommandAction,
			},
			{
				Name:      "enable",
				Usage:     "re-enable a disabled version",
				UsageText: `runctl secrets enable SECRET [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append([]cli.Flag{versionFlag}, target...),
				Action:    SecretsEnableCommandAction,
			},
			{
				Name:      "disable",
				Usage:     "disable a version without discarding it",
				UsageText: `runctl secrets disable SECRET [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append([]cli.Flag{versionFlag}, target...),
				Action:    SecretsDisableCommandAction,
			},
			{
				Name:      "destroy",
				Usage:     "permanently discard a version payload",
				UsageText: `runctl secrets destroy SECRET [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append([]cli.Flag{versionFlag}, target...),
				Action:    SecretsDestroyCommandAction,
			},
			{
				Name:      "delete",
				Usage:     "delete a secret and all its versions",
				UsageText: `runctl secrets delete SECRET [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags:     append([]cli.Flag{}, target...),
				Action:    SecretsDeleteCommandAction,
			},
		},
	}
}
