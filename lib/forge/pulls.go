// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package forge

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// PullRequest is a release proposal on the host.
type PullRequest struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"` // "open" or "closed"
	HTMLURL   string    `json:"html_url"`
	Head      Branch    `json:"head"`
	Base      Branch    `json:"base"`
	Merged    bool      `json:"merged"`
	CreatedAt time.Time `json:"created_at"`
}

// Branch is a git branch reference on a pull request.
type Branch struct {
	Ref string `json:"ref"` // branch name
	SHA string `json:"sha"` // head commit SHA
}

// CreatePullRequestRequest contains the fields for opening a pull
// request.
type CreatePullRequestRequest struct {
	// Title is the PR title.
	Title string `json:"title"`

	// Body is the PR description, carrying the rendered release notes
	// for reviewers.
	Body string `json:"body"`

	// Head is the branch carrying the release commit.
	Head string `json:"head"`

	// Base is the integration branch the release merges into.
	Base string `json:"base"`
}

// CreatePullRequest opens a pull request.
func (client *Client) CreatePullRequest(ctx context.Context, request CreatePullRequestRequest) (*PullRequest, error) {
	var pullRequest PullRequest
	path := client.repoPath("/pulls")
	if err := client.post(ctx, path, request, &pullRequest); err != nil {
		return nil, fmt.Errorf("creating pull request for %s: %w", request.Head, err)
	}
	return &pullRequest, nil
}

// FindOpenByHead returns the open pull request whose head is the given
// branch, or nil when none exists. The propose workflow uses this as
// its idempotency guard: one candidate version, at most one open PR.
func (client *Client) FindOpenByHead(ctx context.Context, headBranch string) (*PullRequest, error) {
	head := url.QueryEscape(client.owner + ":" + headBranch)
	path := client.repoPath("/pulls?state=open&head=%s", head)

	var pullRequests []PullRequest
	if err := client.get(ctx, path, &pullRequests); err != nil {
		return nil, fmt.Errorf("listing open pull requests for %s: %w", headBranch, err)
	}
	if len(pullRequests) == 0 {
		return nil, nil
	}
	return &pullRequests[0], nil
}
