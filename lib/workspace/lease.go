// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace provides scoped write access to a release working
// tree. Acquire returns a Lease that has normalized filesystem
// ownership for git, verified the tree is clean, and configured the
// release bot's author identity; Close restores every piece of
// process-visible state on all exit paths. The Lease is the only
// writer of release commits and tags.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/slipway-project/slipway/lib/git"
)

// Identity is the fixed bot identity release commits and tags are
// authored under. Deterministic authorship keeps release commits
// recognizable and reproducible.
type Identity struct {
	Name  string
	Email string
}

// Lease is scoped write access to a working tree. Acquired state is
// undone by Close in reverse acquisition order.
type Lease struct {
	repo     *git.Repository
	logger   *slog.Logger
	restores []func(context.Context) error
	closed   bool

	// originalBranch is the branch checked out at acquisition time.
	// Close switches back to it once the tree is clean again.
	originalBranch string

	// acquired is set once Acquire has fully succeeded. Before that
	// point the tree may carry the caller's own uncommitted work,
	// which Close must never touch.
	acquired bool
}

// Acquire prepares the repository for release writes. It registers the
// directory as a safe.directory (the pipeline runs in shared
// containers where the checkout is owned by a different uid, which
// git otherwise refuses to touch), verifies the tree carries no
// unrelated changes, and sets the bot identity at repository scope.
//
// A dirty tree is fatal with no retry: committing on top of unrelated
// work would bundle it into the release commit.
func Acquire(ctx context.Context, repo *git.Repository, identity Identity, logger *slog.Logger) (*Lease, error) {
	lease := &Lease{repo: repo, logger: logger}

	if err := lease.normalizeOwnership(ctx); err != nil {
		return nil, err
	}

	status, err := repo.Run(ctx, "status", "--porcelain")
	if err != nil {
		lease.Close(ctx)
		return nil, fmt.Errorf("checking tree state: %w", err)
	}
	if status != "" {
		lease.Close(ctx)
		return nil, &git.StateError{
			Dir:    repo.Dir(),
			Reason: fmt.Sprintf("working tree has unrelated changes:\n%s", status),
		}
	}

	branch, err := repo.Run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		lease.Close(ctx)
		return nil, fmt.Errorf("reading current branch: %w", err)
	}
	// Detached HEAD (common in CI checkouts) has nothing to restore.
	if branch != "HEAD" {
		lease.originalBranch = branch
	}

	if err := lease.setIdentity(ctx, identity); err != nil {
		lease.Close(ctx)
		return nil, err
	}

	lease.acquired = true
	return lease, nil
}

// normalizeOwnership registers the repository directory in the global
// safe.directory list and arranges its removal on Close.
func (lease *Lease) normalizeOwnership(ctx context.Context) error {
	dir := lease.repo.Dir()
	if _, err := lease.repo.Run(ctx, "config", "--global", "--add", "safe.directory", dir); err != nil {
		return fmt.Errorf("registering safe.directory: %w", err)
	}
	lease.restores = append(lease.restores, func(ctx context.Context) error {
		_, err := lease.repo.Run(ctx, "config", "--global", "--fixed-value",
			"--unset-all", "safe.directory", dir)
		return err
	})
	return nil
}

// setIdentity sets the bot's user.name and user.email at repository
// scope, recording any previous values for restoration.
func (lease *Lease) setIdentity(ctx context.Context, identity Identity) error {
	if identity.Name == "" || identity.Email == "" {
		return fmt.Errorf("bot identity requires both name and email")
	}
	for key, value := range map[string]string{
		"user.name":  identity.Name,
		"user.email": identity.Email,
	} {
		previous, previousErr := lease.repo.Run(ctx, "config", "--local", "--get", key)
		hadPrevious := previousErr == nil

		if _, err := lease.repo.Run(ctx, "config", "--local", key, value); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}

		lease.restores = append(lease.restores, func(ctx context.Context) error {
			if hadPrevious {
				_, err := lease.repo.Run(ctx, "config", "--local", key, previous)
				return err
			}
			_, err := lease.repo.Run(ctx, "config", "--local", "--unset", key)
			return err
		})
	}
	return nil
}

// Commit stages exactly the given paths and commits them as a single
// commit authored by the bot identity. Returns the commit hash.
func (lease *Lease) Commit(ctx context.Context, message string, paths ...string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("commit requires at least one path")
	}
	addArgs := append([]string{"add", "--"}, paths...)
	if _, err := lease.repo.Run(ctx, addArgs...); err != nil {
		return "", fmt.Errorf("staging release files: %w", err)
	}
	if _, err := lease.repo.Run(ctx, "commit", "-m", message); err != nil {
		return "", fmt.Errorf("creating release commit: %w", err)
	}
	return lease.repo.Run(ctx, "rev-parse", "HEAD")
}

// SwitchNewBranch checks out a new branch at HEAD, resetting any
// existing branch of the same name. Release branch names encode the
// target version and their content is regenerated from scratch each
// run, so a leftover branch from an interrupted run carries nothing
// worth keeping.
func (lease *Lease) SwitchNewBranch(ctx context.Context, name string) error {
	if _, err := lease.repo.Run(ctx, "switch", "-C", name); err != nil {
		return fmt.Errorf("creating branch %s: %w", name, err)
	}
	return nil
}

// Push pushes a branch or tag ref to the remote. The remote's
// compare-and-push semantics are the cross-invocation safety net: a
// push whose parent is stale is rejected, forcing a rerun.
func (lease *Lease) Push(ctx context.Context, remote, ref string) error {
	if _, err := lease.repo.Run(ctx, "push", remote, ref); err != nil {
		return fmt.Errorf("pushing %s to %s: %w", ref, remote, err)
	}
	return nil
}

// TagAnnotated creates an annotated tag at HEAD, authored by the bot
// identity.
func (lease *Lease) TagAnnotated(ctx context.Context, name, message string) error {
	if _, err := lease.repo.Run(ctx, "tag", "-a", name, "-m", message); err != nil {
		return fmt.Errorf("creating tag %s: %w", name, err)
	}
	return nil
}

// Close restores everything Acquire changed, in reverse order. When a
// run aborts with uncommitted modifications in the tree, Close
// discards them: the tree was verified clean at acquisition, so
// anything uncommitted was written under this lease, and leaving it
// behind would trip the next run's clean-tree check. Close then
// switches back to the originally checked-out branch. Safe to call
// more than once; only the first call does work.
func (lease *Lease) Close(ctx context.Context) error {
	if lease.closed {
		return nil
	}
	lease.closed = true

	var errs []error

	status, statusErr := lease.repo.Run(ctx, "status", "--porcelain")
	dirty := statusErr == nil && status != ""

	if dirty && lease.acquired {
		lease.logger.Warn("discarding uncommitted release modifications",
			"paths", len(git.Lines(status)))
		_, resetErr := lease.repo.Run(ctx, "reset", "--hard", "HEAD")
		if resetErr != nil {
			errs = append(errs, fmt.Errorf("discarding modified files: %w", resetErr))
		}
		_, cleanErr := lease.repo.Run(ctx, "clean", "-fd")
		if cleanErr != nil {
			errs = append(errs, fmt.Errorf("removing untracked files: %w", cleanErr))
		}
		dirty = resetErr != nil || cleanErr != nil
	}

	if lease.originalBranch != "" {
		if dirty {
			lease.logger.Warn("leaving working tree on current branch for inspection",
				"original_branch", lease.originalBranch)
		} else if _, err := lease.repo.Run(ctx, "switch", lease.originalBranch); err != nil {
			errs = append(errs, fmt.Errorf("restoring branch %s: %w", lease.originalBranch, err))
		}
	}

	for i := len(lease.restores) - 1; i >= 0; i-- {
		if err := lease.restores[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
