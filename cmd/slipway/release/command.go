// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/slipway-project/slipway/cmd/slipway/cli"
	"github.com/slipway-project/slipway/lib/commits"
	"github.com/slipway-project/slipway/lib/config"
	"github.com/slipway-project/slipway/lib/forge"
	"github.com/slipway-project/slipway/lib/git"
	"github.com/slipway-project/slipway/lib/workspace"
)

// Command returns the "release" command group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "release",
		Summary: "Propose, publish, and inspect releases",
		Description: `Drive the two-phase release pipeline.

"propose" inspects the commit history since the last release tag,
bumps every workspace manifest to the next version, writes the
changelog section, and opens a pull request carrying all of it.
Nothing is released yet: the pull request is the review gate.

"publish" runs after the proposal merges. It tags the merge commit
with the manifest version, pushes the tag, publishes the workspace to
the package registry, and creates the host release marked latest.

Both phases are guarded: rerunning after success is a clean noop, so
the commands are safe to wire into CI triggers that may fire twice.`,
		Subcommands: []*cli.Command{
			proposeCommand(),
			publishCommand(),
			statusCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Open a release proposal for the repository in the current directory",
				Command:     "slipway release propose --config slipway.yaml",
			},
			{
				Description: "Publish after the proposal merged",
				Command:     "slipway release publish --config slipway.yaml",
			},
			{
				Description: "See what a release would do without doing it",
				Command:     "slipway release propose --dry-run",
			},
		},
	}
}

// loadConfig resolves configuration from the --config flag when given,
// otherwise from SLIPWAY_CONFIG, then overlays the repository's own
// policy file. The returned grammar is the policy's commit grammar,
// or the conventional-commit default when the repository carries no
// policy.
func loadConfig(configPath string) (*config.Config, commits.Grammar, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, commits.Grammar{}, err
	}

	policy, err := config.LoadPolicy(cfg.Repository.Path)
	if err != nil {
		return nil, commits.Grammar{}, err
	}
	cfg.Apply(policy)
	return cfg, policy.CommitGrammar(), nil
}

// newForgeClient builds the host API client from configuration. Token
// auth reads the token from the configured environment variable; app
// auth reads the private key file.
func newForgeClient(cfg *config.Config, logger *slog.Logger) (*forge.Client, error) {
	forgeConfig := forge.Config{
		Owner:   cfg.Forge.Owner,
		Repo:    cfg.Forge.Repo,
		BaseURL: cfg.Forge.BaseURL,
		Logger:  logger,
	}
	if cfg.Forge.AppID != 0 {
		key, err := os.ReadFile(cfg.Forge.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading forge private key: %w", err)
		}
		forgeConfig.AppID = cfg.Forge.AppID
		forgeConfig.PrivateKey = key
		forgeConfig.InstallationID = cfg.Forge.InstallationID
	} else {
		token := cfg.Token()
		if token == "" {
			return nil, fmt.Errorf("forge token not found in $%s", cfg.Forge.TokenEnv)
		}
		forgeConfig.Token = token
	}
	return forge.NewClient(forgeConfig)
}

func repository(cfg *config.Config) *git.Repository {
	return git.NewRepository(cfg.Repository.Path)
}

func identity(cfg *config.Config) workspace.Identity {
	return workspace.Identity{Name: cfg.Identity.Name, Email: cfg.Identity.Email}
}
