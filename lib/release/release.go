// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

// Package release implements the two-phase release lifecycle: propose
// (bump versions, write notes, open a pull request) and publish (tag,
// push to the registry, create the host release). Both phases are
// guarded so a rerun after success is a clean noop rather than a
// duplicate release.
package release

import (
	"context"

	"github.com/Masterminds/semver/v3"

	"github.com/slipway-project/slipway/lib/forge"
)

// Status is the terminal state of a workflow run.
type Status int

const (
	// StatusCompleted means the workflow performed its side effects.
	StatusCompleted Status = iota

	// StatusNoop means a guard halted the workflow before any side
	// effect: nothing to release, or the release already exists.
	StatusNoop

	// StatusPlanned means a dry run stopped at the point where the
	// first mutation would have happened.
	StatusPlanned
)

// String returns the lowercase status name used in logs.
func (s Status) String() string {
	switch s {
	case StatusNoop:
		return "noop"
	case StatusPlanned:
		return "planned"
	default:
		return "completed"
	}
}

// Outcome describes what a workflow run did. Reason is set for noops,
// Version whenever the workflow got far enough to know one, and the
// URL fields when the corresponding host object was created (or, for a
// noop, already existed).
type Outcome struct {
	Status         Status
	Reason         string
	Version        *semver.Version
	Branch         string
	Tag            string
	PullRequestURL string
	ReleaseURL     string
}

// PullRequestHost is the host surface the propose workflow needs.
// *forge.Client satisfies it.
type PullRequestHost interface {
	FindOpenByHead(ctx context.Context, headBranch string) (*forge.PullRequest, error)
	CreatePullRequest(ctx context.Context, request forge.CreatePullRequestRequest) (*forge.PullRequest, error)
}

// ReleaseHost is the host surface the publish workflow needs.
// *forge.Client satisfies it.
type ReleaseHost interface {
	GetReleaseByTag(ctx context.Context, tag string) (*forge.Release, error)
	CreateRelease(ctx context.Context, request forge.CreateReleaseRequest) (*forge.Release, error)
}

// Registry publishes the workspace to a package registry.
// *registry.Cargo satisfies it.
type Registry interface {
	Publish(ctx context.Context, dir string) error
}
