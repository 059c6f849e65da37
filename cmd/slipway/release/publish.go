// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/slipway-project/slipway/cmd/slipway/cli"
	"github.com/slipway-project/slipway/lib/registry"
	"github.com/slipway-project/slipway/lib/release"
)

func publishCommand() *cli.Command {
	var configPath string
	var dryRun bool

	return &cli.Command{
		Name:    "publish",
		Summary: "Tag, publish to the registry, and create the host release",
		Description: `Publish the version the workspace manifests carry: tag the current
commit, push the tag, publish the workspace to the package registry,
and create the host release marked latest.

Meant to run on the base branch after a release proposal merges.
Exits successfully without doing anything when the version is already
tagged or released.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("publish", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to slipway config file (default: $SLIPWAY_CONFIG)")
			flags.BoolVar(&dryRun, "dry-run", false, "report what would happen without mutating anything")
			return flags
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}

			cfg, _, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger := cli.NewCommandLogger().With(
				"command", "release/publish",
				"repository", cfg.Forge.Owner+"/"+cfg.Forge.Repo,
			)

			host, err := newForgeClient(cfg, logger)
			if err != nil {
				return err
			}

			publisher, err := release.NewPublisher(release.PublishConfig{
				Repo:          repository(cfg),
				Host:          host,
				Registry:      registry.NewCargo(cfg.Registry.Command, cfg.Registry.Args, logger),
				Identity:      identity(cfg),
				Logger:        logger,
				TagPrefix:     cfg.Repository.TagPrefix,
				Remote:        cfg.Repository.Remote,
				ChangelogPath: cfg.Repository.Changelog,
				DryRun:        dryRun,
			})
			if err != nil {
				return err
			}

			outcome, err := publisher.Run(context.Background())
			if err != nil {
				return err
			}
			printPublishOutcome(outcome)
			return nil
		},
	}
}

func printPublishOutcome(outcome release.Outcome) {
	switch outcome.Status {
	case release.StatusNoop:
		fmt.Fprintf(os.Stdout, "nothing to do: %s\n", outcome.Reason)
		if outcome.ReleaseURL != "" {
			fmt.Fprintf(os.Stdout, "existing release: %s\n", outcome.ReleaseURL)
		}
	case release.StatusPlanned:
		fmt.Fprintf(os.Stdout, "would publish %s as tag %s\n", outcome.Version, outcome.Tag)
	default:
		fmt.Fprintf(os.Stdout, "published %s: %s\n", outcome.Version, outcome.ReleaseURL)
	}
}
