// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/slipway-project/slipway/cmd/slipway/cli"
	"github.com/slipway-project/slipway/lib/commits"
	"github.com/slipway-project/slipway/lib/manifest"
	"github.com/slipway-project/slipway/lib/release"
)

func statusCommand() *cli.Command {
	var configPath string
	var check bool

	return &cli.Command{
		Name:    "status",
		Summary: "Report what the next release would be",
		Description: `Report the release state of the repository: the version the
manifests carry, the commits accumulated since the last release tag,
and the version a proposal would target. Read-only; never contacts
the host or touches the working tree.

With --check, exits 1 when there is nothing to release, so CI jobs
can gate the propose step on it.`,
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
			flags.StringVar(&configPath, "config", "", "path to slipway config file (default: $SLIPWAY_CONFIG)")
			flags.BoolVar(&check, "check", false, "exit 1 when there is nothing to release")
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

			ctx := context.Background()
			repo := repository(cfg)

			ws, err := manifest.Load(cfg.Repository.Path)
			if err != nil {
				return err
			}
			current, err := ws.Version()
			if err != nil {
				return err
			}

			inspector := commits.NewInspector(repo, grammar, cfg.Repository.TagPrefix)
			records, err := inspector.Since(ctx)
			if err != nil {
				return err
			}
			latestTag, tagged, err := inspector.LatestTag(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "manifest version:  %s\n", current)
			if tagged {
				fmt.Fprintf(os.Stdout, "last release tag:  %s\n", latestTag)
			} else {
				fmt.Fprintf(os.Stdout, "last release tag:  none (first release)\n")
			}
			fmt.Fprintf(os.Stdout, "commits since tag: %d\n", len(records))
			for _, kind := range []commits.Kind{commits.KindBreaking, commits.KindFeature, commits.KindFix} {
				count := 0
				for _, record := range records {
					if record.Kind == kind {
						count++
					}
				}
				if count > 0 {
					fmt.Fprintf(os.Stdout, "  %s: %d\n", kind, count)
				}
			}

			level := release.ResolveLevel(records)
			if level == release.LevelNone {
				fmt.Fprintf(os.Stdout, "next release:      nothing to release\n")
				if check {
					return &cli.ExitError{Code: 1}
				}
				return nil
			}

			next := release.NextVersion(current, level)
			fmt.Fprintf(os.Stdout, "next release:      %s (%s)\n", next, level)
			return nil
		},
	}
}
