// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/slipway-project/slipway/cmd/slipway/cli"
	"github.com/slipway-project/slipway/lib/release"
)

func proposeCommand() *cli.Command {
	var configPath string
	var dryRun bool

	return &cli.Command{
		Name:    "propose",
		Summary: "Open a release pull request from the commit history",
		Description: `Inspect commits since the last release tag, bump every workspace
manifest to the resolved next version, write the changelog section,
and open a pull request with the result.

Exits successfully without doing anything when there is nothing to
release or when the proposal pull request is already open.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("propose", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to slipway config file (default: $SLIPWAY_CONFIG)")
			flags.BoolVar(&dryRun, "dry-run", false, "report what would happen without mutating anything")
			return flags
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}

			cfg, grammar, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger := cli.NewCommandLogger().With(
				"command", "release/propose",
				"repository", cfg.Forge.Owner+"/"+cfg.Forge.Repo,
			)

			host, err := newForgeClient(cfg, logger)
			if err != nil {
				return err
			}

			proposer, err := release.NewProposer(release.ProposeConfig{
				Repo:          repository(cfg),
				Host:          host,
				Identity:      identity(cfg),
				Logger:        logger,
				Grammar:       grammar,
				TagPrefix:     cfg.Repository.TagPrefix,
				BaseBranch:    cfg.Repository.BaseBranch,
				Remote:        cfg.Repository.Remote,
				ChangelogPath: cfg.Repository.Changelog,
				DryRun:        dryRun,
			})
			if err != nil {
				return err
			}

			outcome, err := proposer.Run(context.Background())
			if err != nil {
				return err
			}
			printProposeOutcome(outcome)
			return nil
		},
	}
}

func printProposeOutcome(outcome release.Outcome) {
	switch outcome.Status {
	case release.StatusNoop:
		fmt.Fprintf(os.Stdout, "nothing to do: %s\n", outcome.Reason)
		if outcome.PullRequestURL != "" {
			fmt.Fprintf(os.Stdout, "open proposal: %s\n", outcome.PullRequestURL)
		}
	case release.StatusPlanned:
		fmt.Fprintf(os.Stdout, "would propose %s on branch %s\n", outcome.Version, outcome.Branch)
	default:
		fmt.Fprintf(os.Stdout, "proposed %s: %s\n", outcome.Version, outcome.PullRequestURL)
	}
}
