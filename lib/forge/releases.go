// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package forge

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Release is a published release object on the host: the permanent,
// host-visible record that a version was published.
type Release struct {
	ID          int64     `json:"id"`
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	HTMLURL     string    `json:"html_url"`
	CreatedAt   time.Time `json:"created_at"`
	PublishedAt time.Time `json:"published_at"`
}

// CreateReleaseRequest contains the fields for publishing a release.
type CreateReleaseRequest struct {
	// TagName is the existing tag the release is bound to.
	TagName string `json:"tag_name"`

	// Name is the display name, conventionally the tag name.
	Name string `json:"name"`

	// Body carries the generated release notes as markdown.
	Body string `json:"body"`

	// MakeLatest marks the release as the repository's latest.
	// The API takes the string "true"/"false", not a boolean.
	MakeLatest string `json:"make_latest,omitempty"`
}

// GetReleaseByTag returns the release bound to a tag. A 404 (mapped
// to IsNotFound) means the tag has no release yet — the publish
// workflow's idempotency guard depends on that distinction.
func (client *Client) GetReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	var release Release
	path := client.repoPath("/releases/tags/%s", url.PathEscape(tag))
	if err := client.get(ctx, path, &release); err != nil {
		return nil, fmt.Errorf("getting release for tag %s: %w", tag, err)
	}
	return &release, nil
}

// CreateRelease publishes a release object for an existing tag.
func (client *Client) CreateRelease(ctx context.Context, request CreateReleaseRequest) (*Release, error) {
	var release Release
	path := client.repoPath("/releases")
	if err := client.post(ctx, path, request, &release); err != nil {
		return nil, fmt.Errorf("creating release %s: %w", request.TagName, err)
	}
	return &release, nil
}
