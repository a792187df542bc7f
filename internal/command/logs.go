// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/staranto/runctlgo/internal/archive"
	"github.com/staranto/runctlgo/internal/aws"
	"github.com/staranto/runctlgo/internal/logbuf"
	"github.com/staranto/runctlgo/internal/meta"
	"github.com/staranto/runctlgo/internal/tailui"
)

// LogsReadCommandAction lists buffered log entries, newest last.
func LogsReadCommandAction(ctx context.Context, cmd *cli.Command) error {
	if ShortCircuitTLDR(ctx, cmd, "logs") {
		return nil
	}

	opts, err := logsReadOptions(cmd)
	if err != nil {
		return err
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	entries, err := p.Logs().Read(opts)
	if err != nil {
		return err
	}

	attrs := BuildAttrs(cmd, "seq", "time", "severity", "service", "revision", "message")

	return EmitSlice(entries, attrs, cmd)
}

// LogsTailCommandAction follows the log buffer in a full screen viewer.
func LogsTailCommandAction(ctx context.Context, cmd *cli.Command) error {
	opts, err := logsReadOptions(cmd)
	if err != nil {
		return err
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	interval := cmd.Duration("interval")
	if interval <= 0 {
		interval = time.Second
	}

	return tailui.Run(ctx, p.Logs(), opts, interval)
}

// LogsExportCommandAction ships matching entries to an S3 bucket as NDJSON.
func LogsExportCommandAction(ctx context.Context, cmd *cli.Command) error {
	bucket := cmd.String("bucket")
	if bucket == "" {
		return fmt.Errorf("--bucket is required")
	}

	opts, err := logsReadOptions(cmd)
	if err != nil {
		return err
	}

	p, err := OpenPlatform(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	entries, err := p.Logs().Read(opts)
	if err != nil {
		return err
	}

	awsOpts := []aws.Option{}
	if profile := cmd.String("profile"); profile != "" {
		awsOpts = append(awsOpts, aws.WithProfile(profile))
	}
	if region := cmd.String("bucket-region"); region != "" {
		awsOpts = append(awsOpts, aws.WithRegion(region))
	}

	cfg, err := aws.LoadConfig(ctx, awsOpts...)
	if err != nil {
		return err
	}

	key := archive.ObjectKey(cmd.String("prefix"), p.Project(), time.Now().UTC())

	uri, err := archive.Export(ctx, aws.NewS3(cfg), bucket, key, entries)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Exported %d entries to %s\n", len(entries), uri)
	return nil
}

func logsReadOptions(cmd *cli.Command) (logbuf.ReadOptions, error) {
	opts := logbuf.ReadOptions{
		Service:  cmd.String("service"),
		Revision: cmd.String("revision"),
		Limit:    cmd.Int("limit"),
	}

	if sev := cmd.String("severity"); sev != "" {
		parsed, err := logbuf.ParseSeverity(sev)
		if err != nil {
			return opts, err
		}
		opts.MinSeverity = parsed
	}

	if freshness := cmd.Duration("freshness"); freshness > 0 {
		opts.Since = time.Now().Add(-freshness)
	}

	return opts, nil
}

// LogsCommandBuilder constructs the cli.Command for "logs".
func LogsCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	target := []cli.Flag{
		NewProjectFlag("logs"),
		NewRegionFlag("logs"),
		NewAccountFlag("logs"),
		NewHomeFlag("logs"),
	}

	filter := []cli.Flag{
		&cli.StringFlag{
			Name:  "severity",
			Usage: "minimum severity to include",
			Validator: func(value string) error {
				if value == "" {
					return nil
				}
				return FlagValidators(value, SeverityValidator)
			},
		},
		&cli.StringFlag{
			Name:  "service",
			Usage: "only entries for this service",
		},
		&cli.StringFlag{
			Name:  "revision",
			Usage: "only entries for this revision",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "keep only the newest N entries",
		},
		&cli.DurationFlag{
			Name:        "freshness",
			Usage:       "only entries newer than this, such as 2h",
			HideDefault: true,
		},
	}

	return &cli.Command{
		Name:      "logs",
		Usage:     "read, tail and export platform logs",
		UsageText: `runctl logs <read|tail|export> [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			{
				Name:      "read",
				Usage:     "list buffered log entries",
				UsageText: `runctl logs read [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags: append(append(append([]cli.Flag{tldrFlag},
					filter...), target...),
					NewGlobalFlags("logs")...),
				Action: LogsReadCommandAction,
			},
			{
				Name:      "tail",
				Usage:     "follow the log buffer",
				UsageText: `runctl logs tail [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags: append(append([]cli.Flag{
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "poll interval",
						Value: time.Second,
					},
				}, filter...), target...),
				Action: LogsTailCommandAction,
			},
			{
				Name:      "export",
				Usage:     "export entries to an S3 bucket as NDJSON",
				UsageText: `runctl logs export --bucket BUCKET [options]`,
				Metadata:  map[string]any{"meta": meta},
				Flags: append(append([]cli.Flag{
					&cli.StringFlag{
						Name:  "bucket",
						Usage: "destination S3 bucket",
					},
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "object key prefix",
						Value: "runctl-logs",
					},
					&cli.StringFlag{
						Name:  "bucket-region",
						Usage: "region of the destination bucket",
					},
					&cli.StringFlag{
						Name:  "profile",
						Usage: "AWS shared config profile",
					},
				}, filter...), target...),
				Action: LogsExportCommandAction,
			},
		},
	}
}
