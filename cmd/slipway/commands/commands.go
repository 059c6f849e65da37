// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete slipway CLI command tree.
package commands

import (
	"fmt"
	"os"

	"github.com/slipway-project/slipway/cmd/slipway/cli"
	releasecmd "github.com/slipway-project/slipway/cmd/slipway/release"
	"github.com/slipway-project/slipway/lib/version"
)

// Root builds and returns the complete slipway CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "slipway",
		Description: `Slipway: release automation for workspace repositories.

Proposes version bumps from the commit history, carries them through
review as a pull request, and publishes merged releases to the
package registry and the code host.`,
		Subcommands: []*cli.Command{
			releasecmd.Command(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			fmt.Fprintln(os.Stdout, version.Full())
			return nil
		},
	}
}
