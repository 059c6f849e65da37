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
	"github.com/slipway-project/slipway/lib/forge"
	"github.com/slipway-project/slipway/lib/git"
	"github.com/slipway-project/slipway/lib/manifest"
	"github.com/slipway-project/slipway/lib/workspace"
)

// PublishConfig configures a Publisher. Repo, Host, Registry,
// Identity, and Logger are required.
type PublishConfig struct {
	Repo     *git.Repository
	Host     ReleaseHost
	Registry Registry
	Identity workspace.Identity
	Logger   *slog.Logger

	// TagPrefix precedes the version in the tag name. Defaults to "v".
	TagPrefix string

	// Remote receives the release tag. Defaults to "origin".
	Remote string

	// ChangelogPath is relative to the repository root. Defaults to
	// "CHANGELOG.md". The host release body is the changelog section
	// for the published version when one exists.
	ChangelogPath string

	// DryRun stops the workflow at the point of first mutation and
	// reports what would have happened.
	DryRun bool
}

// Publisher runs the publish phase: tag the current commit with the
// manifest version, push the tag, publish to the registry, and mark
// the host release latest. It is meant to run on the base branch after
// a proposal merges; the tag guard makes reruns harmless.
type Publisher struct {
	config PublishConfig
}

// NewPublisher validates the configuration and fills in defaults.
func NewPublisher(config PublishConfig) (*Publisher, error) {
	if config.Repo == nil {
		return nil, errors.New("release: PublishConfig.Repo is required")
	}
	if config.Host == nil {
		return nil, errors.New("release: PublishConfig.Host is required")
	}
	if config.Registry == nil {
		return nil, errors.New("release: PublishConfig.Registry is required")
	}
	if config.Logger == nil {
		return nil, errors.New("release: PublishConfig.Logger is required")
	}
	if config.TagPrefix == "" {
		config.TagPrefix = "v"
	}
	if config.Remote == "" {
		config.Remote = "origin"
	}
	if config.ChangelogPath == "" {
		config.ChangelogPath = "CHANGELOG.md"
	}
	return &Publisher{config: config}, nil
}

// Run executes the publish workflow. The steps after the guard run
// once with no internal retry: tag, push, registry, host release. A
// failure partway leaves the completed steps in place for an operator
// to finish; the tag guard only short-circuits full reruns.
func (publisher *Publisher) Run(ctx context.Context) (Outcome, error) {
	config := publisher.config
	logger := config.Logger

	if err := config.Repo.Validate(ctx); err != nil {
		return Outcome{}, err
	}

	ws, err := manifest.Load(config.Repo.Dir())
	if err != nil {
		return Outcome{}, err
	}
	version, err := ws.Version()
	if err != nil {
		return Outcome{}, err
	}
	tag := config.TagPrefix + version.String()

	tagged, err := publisher.tagExists(ctx, tag)
	if err != nil {
		return Outcome{}, err
	}
	if tagged {
		logger.Info("already published", "tag", tag)
		return Outcome{
			Status:  StatusNoop,
			Reason:  fmt.Sprintf("tag %s already exists", tag),
			Version: version,
			Tag:     tag,
		}, nil
	}

	existing, err := config.Host.GetReleaseByTag(ctx, tag)
	if err != nil && !forge.IsNotFound(err) {
		return Outcome{}, fmt.Errorf("checking for an existing release: %w", err)
	}
	if existing != nil {
		logger.Info("already published", "tag", tag, "url", existing.HTMLURL)
		return Outcome{
			Status:     StatusNoop,
			Reason:     fmt.Sprintf("host release for %s already exists", tag),
			Version:    version,
			Tag:        tag,
			ReleaseURL: existing.HTMLURL,
		}, nil
	}

	if config.DryRun {
		return Outcome{Status: StatusPlanned, Version: version, Tag: tag}, nil
	}

	body, found, err := changelog.Section(filepath.Join(config.Repo.Dir(), config.ChangelogPath), version)
	if err != nil {
		return Outcome{}, err
	}
	if !found {
		logger.Warn("changelog has no section for this version", "version", version)
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

	if err := lease.TagAnnotated(ctx, tag, fmt.Sprintf("release %s", tag)); err != nil {
		return Outcome{}, err
	}
	if err := lease.Push(ctx, config.Remote, tag); err != nil {
		return Outcome{}, err
	}
	logger.Info("pushed release tag", "tag", tag, "remote", config.Remote)

	if err := config.Registry.Publish(ctx, config.Repo.Dir()); err != nil {
		return Outcome{}, fmt.Errorf("publishing to registry: %w", err)
	}
	logger.Info("published to registry", "version", version)

	release, err := config.Host.CreateRelease(ctx, forge.CreateReleaseRequest{
		TagName:    tag,
		Name:       tag,
		Body:       body,
		MakeLatest: "true",
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("creating host release: %w", err)
	}
	logger.Info("created host release", "tag", tag, "url", release.HTMLURL)

	return Outcome{
		Status:     StatusCompleted,
		Version:    version,
		Tag:        tag,
		ReleaseURL: release.HTMLURL,
	}, nil
}

// tagExists checks the local clone for the release tag. The clone is
// the source of truth here: publish runs on a freshly fetched base
// branch, so a tag missing locally is genuinely unpublished.
func (publisher *Publisher) tagExists(ctx context.Context, tag string) (bool, error) {
	output, err := publisher.config.Repo.Run(ctx, "tag", "--list", tag)
	if err != nil {
		return false, err
	}
	return len(git.Lines(output)) > 0, nil
}
