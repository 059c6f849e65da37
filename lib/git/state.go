// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package git

import (
	"context"
	"errors"
	"fmt"
)

// StateError reports that a repository is not in a state the release
// pipeline can operate on: not a working tree, a shallow clone, or a
// tree dirty with unrelated changes. These are operator problems, not
// transient failures — the run aborts and the operator fixes the
// underlying condition before rerunning.
type StateError struct {
	// Dir is the repository directory that failed validation.
	Dir string

	// Reason describes what is wrong with the repository state.
	Reason string
}

func (err *StateError) Error() string {
	return fmt.Sprintf("repository %s: %s", err.Dir, err.Reason)
}

// IsStateError reports whether err is a repository state failure.
func IsStateError(err error) bool {
	var stateError *StateError
	return errors.As(err, &stateError)
}

// Validate checks that the repository is a non-shallow working tree.
// The release pipeline needs full history to find the previous release
// tag; CI checkouts default to depth-1 clones, which would silently
// misclassify every release as "first release". Returns a *StateError
// describing the problem, or nil.
func (r *Repository) Validate(ctx context.Context) error {
	inside, err := r.Run(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil || inside != "true" {
		return &StateError{Dir: r.dir, Reason: "not a git working tree"}
	}

	shallow, err := r.Run(ctx, "rev-parse", "--is-shallow-repository")
	if err != nil {
		return &StateError{Dir: r.dir, Reason: fmt.Sprintf("checking clone depth: %v", err)}
	}
	if shallow == "true" {
		return &StateError{Dir: r.dir, Reason: "shallow clone (fetch full history before releasing)"}
	}

	return nil
}
