// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/slipway-project/slipway/lib/changelog"
	"github.com/slipway-project/slipway/lib/clock"
	"github.com/slipway-project/slipway/lib/commits"
	"github.com/slipway-project/slipway/lib/forge"
	"github.com/slipway-project/slipway/lib/git"
	"github.com/slipway-project/slipway/lib/manifest"
	"github.com/slipway-project/slipway/lib/workspace"
)

// branchPrefix is the namespace for proposal branches. The branch name
// doubles as the idempotency key: one open proposal per target version.
const branchPrefix = "release/"

// ProposeConfig configures a Proposer. Repo, Host, Identity, and
// Logger are required; everything else has a sensible default.
type ProposeConfig struct {
	Repo     *git.Repository
	Host     PullRequestHost
	Identity workspace.Identity
	Logger   *slog.Logger

	// Grammar classifies commit subjects. Zero value means the
	// conventional-commit default.
	Grammar commits.Grammar

	// TagPrefix precedes the version in tag and branch names.
	// Defaults to "v".
	TagPrefix string

	// BaseBranch is the pull request target. Defaults to "main".
	BaseBranch string

	// Remote receives the proposal branch. Defaults to "origin".
	Remote string

	// ChangelogPath is relative to the repository root. Defaults to
	// "CHANGELOG.md".
	ChangelogPath string

	// DryRun stops the workflow at the point of first mutation and
	// reports what would have happened.
	DryRun bool

	Clock clock.Clock
}

// Proposer runs the propose phase: inspect history since the last
// release tag, bump every workspace manifest, write release notes, and
// open a pull request carrying all of it.
type Proposer struct {
	config ProposeConfig
}

// NewProposer validates the configuration and fills in defaults.
func NewProposer(config ProposeConfig) (*Proposer, error) {
	if config.Repo == nil {
		return nil, errors.New("release: ProposeConfig.Repo is required")
	}
	if config.Host == nil {
		return nil, errors.New("release: ProposeConfig.Host is required")
	}
	if config.Logger == nil {
		return nil, errors.New("release: ProposeConfig.Logger is required")
	}
	if config.Grammar.Types == nil {
		config.Grammar = commits.DefaultGrammar()
	}
	if config.TagPrefix == "" {
		config.TagPrefix = "v"
	}
	if config.BaseBranch == "" {
		config.BaseBranch = "main"
	}
	if config.Remote == "" {
		config.Remote = "origin"
	}
	if config.ChangelogPath == "" {
		config.ChangelogPath = "CHANGELOG.md"
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	return &Proposer{config: config}, nil
}

// Run executes the propose workflow. The remote branch and the pull
// request are created last, so a failure partway through leaves
// nothing visible outside the local clone.
func (proposer *Proposer) Run(ctx context.Context) (Outcome, error) {
	config := proposer.config
	logger := config.Logger

	inspector := commits.NewInspector(config.Repo, config.Grammar, config.TagPrefix)
	records, err := inspector.Since(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("inspecting commit history: %w", err)
	}

	level := ResolveLevel(records)
	if level == LevelNone {
		logger.Info("nothing to release", "commits", len(records))
		return Outcome{
			Status: StatusNoop,
			Reason: "no releasable commits since the last release tag",
		}, nil
	}

	ws, err := manifest.Load(config.Repo.Dir())
	if err != nil {
		return Outcome{}, err
	}
	current, err := ws.Version()
	if err != nil {
		return Outcome{}, err
	}
	next := NextVersion(current, level)
	branch := branchPrefix + config.TagPrefix + next.String()
	logger.Info("resolved release level",
		"level", level,
		"current", current,
		"next", next,
		"commits", len(records))

	existing, err := config.Host.FindOpenByHead(ctx, branch)
	if err != nil {
		return Outcome{}, fmt.Errorf("checking for an open proposal: %w", err)
	}
	if existing != nil {
		logger.Info("proposal already open", "branch", branch, "url", existing.HTMLURL)
		return Outcome{
			Status:         StatusNoop,
			Reason:         fmt.Sprintf("proposal branch %s already has an open pull request", branch),
			Version:        next,
			Branch:         branch,
			PullRequestURL: existing.HTMLURL,
		}, nil
	}

	if config.DryRun {
		return Outcome{Status: StatusPlanned, Version: next, Branch: branch}, nil
	}

	lease, err := workspace.Acquire(ctx, config.Repo, config.Identity, logger)
	if err != nil {
		return Outcome{}, err
	}
	defer func() {
		if closeErr := lease.Close(ctx); closeErr != nil {
			logger.Warn("restoring workspace state", "error", closeErr)
		}
	}()

	if err := ws.SetVersion(next); err != nil {
		return Outcome{}, err
	}

	section := changelog.Render(next, config.Clock.Now(), records)
	changelogPath := filepath.Join(config.Repo.Dir(), config.ChangelogPath)
	if _, err := changelog.Insert(changelogPath, next, section); err != nil {
		return Outcome{}, err
	}

	if err := lease.SwitchNewBranch(ctx, branch); err != nil {
		return Outcome{}, err
	}
	commitPaths := append(ws.Paths(), config.ChangelogPath)
	title := fmt.Sprintf("chore: release %s%s", config.TagPrefix, next)
	hash, err := lease.Commit(ctx, title, commitPaths...)
	if err != nil {
		return Outcome{}, err
	}
	logger.Info("committed release proposal", "branch", branch, "commit", hash)

	if err := lease.Push(ctx, config.Remote, branch); err != nil {
		return Outcome{}, err
	}

	pullRequest, err := config.Host.CreatePullRequest(ctx, forge.CreatePullRequestRequest{
		Title: title,
		Body:  section,
		Head:  branch,
		Base:  config.BaseBranch,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("opening pull request: %w", err)
	}
	logger.Info("opened release proposal", "url", pullRequest.HTMLURL)

	return Outcome{
		Status:         StatusCompleted,
		Version:        next,
		Branch:         branch,
		PullRequestURL: pullRequest.HTMLURL,
	}, nil
}
