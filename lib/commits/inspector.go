// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package commits

import (
	"context"
	"fmt"
	"strings"

	"github.com/slipway-project/slipway/lib/git"
)

// Field and record separators for the git log wire format. Unit and
// record separator control characters cannot appear in commit
// messages, unlike any printable delimiter.
const (
	fieldSeparator  = "\x1f"
	recordSeparator = "\x1e"
)

// Inspector reads the commit history that feeds a release decision.
// Read-only: it never mutates the repository.
type Inspector struct {
	repo    *git.Repository
	grammar Grammar

	// tagPrefix is the release tag prefix, normally "v". The latest
	// tag matching "<prefix><digit>..." marks the previous release.
	tagPrefix string
}

// NewInspector returns an Inspector for the given repository, using
// grammar to classify commit messages and tagPrefix to recognize
// release tags.
func NewInspector(repo *git.Repository, grammar Grammar, tagPrefix string) *Inspector {
	return &Inspector{repo: repo, grammar: grammar, tagPrefix: tagPrefix}
}

// Since returns the commits strictly after the most recent release tag
// reachable from HEAD, newest first. If no release tag exists, returns
// the full history. Returns a *git.StateError if the repository is not
// a valid, fully-fetched working tree.
func (inspector *Inspector) Since(ctx context.Context) ([]Record, error) {
	if err := inspector.repo.Validate(ctx); err != nil {
		return nil, err
	}

	logRange := "HEAD"
	tag, found, err := inspector.LatestTag(ctx)
	if err != nil {
		return nil, err
	}
	if found {
		logRange = tag + "..HEAD"
	}

	output, err := inspector.repo.Run(ctx, "log",
		"--format=%H"+fieldSeparator+"%s"+fieldSeparator+"%b"+recordSeparator,
		logRange)
	if err != nil {
		return nil, fmt.Errorf("reading history for %s: %w", logRange, err)
	}

	return inspector.parseLog(output), nil
}

// LatestTag returns the most recent release tag reachable from HEAD.
// The second return is false when no release tag exists (first
// release).
func (inspector *Inspector) LatestTag(ctx context.Context) (string, bool, error) {
	tag, err := inspector.repo.Run(ctx, "describe", "--tags", "--abbrev=0",
		"--match", inspector.tagPrefix+"[0-9]*")
	if err != nil {
		// "No names found" / "cannot describe" means no release tag is
		// reachable — valid first-release state, not a failure.
		message := err.Error()
		if strings.Contains(message, "No names found") ||
			strings.Contains(message, "cannot describe") ||
			strings.Contains(message, "No tags can describe") {
			return "", false, nil
		}
		return "", false, fmt.Errorf("finding latest release tag: %w", err)
	}
	return tag, true, nil
}

// parseLog splits the separator-framed git log output into classified
// records, preserving git's newest-first order.
func (inspector *Inspector) parseLog(output string) []Record {
	var records []Record
	for _, chunk := range strings.Split(output, recordSeparator) {
		chunk = strings.TrimLeft(chunk, "\n")
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		parts := strings.SplitN(chunk, fieldSeparator, 3)
		if len(parts) != 3 {
			continue
		}
		record := Record{
			Hash:    strings.TrimSpace(parts[0]),
			Subject: strings.TrimSpace(parts[1]),
			Body:    strings.TrimSpace(parts[2]),
		}
		record.Kind = inspector.grammar.Classify(record.Subject, record.Body)
		records = append(records, record)
	}
	return records
}
