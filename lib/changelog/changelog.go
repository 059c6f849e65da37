// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

// Package changelog renders release notes from classified commits and
// splices them into a CHANGELOG.md. Rendering is pure; insertion is
// idempotent — a section for a version that already has one is never
// inserted twice.
package changelog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/slipway-project/slipway/lib/commits"
)

// header is written once when the changelog file does not exist yet.
const header = "# Changelog\n"

// shortHashLength is how much of the commit hash appears next to each
// entry.
const shortHashLength = 8

// Render produces the markdown section for one version. Entries are
// grouped by classification with breaking changes first, keep the
// newest-first order of the input, and omit commits with no releasable
// effect (chores, docs, unparseable messages).
func Render(version *semver.Version, date time.Time, records []commits.Record) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "## v%s - %s\n", version, date.Format("2006-01-02"))

	groups := []struct {
		title string
		kind  commits.Kind
	}{
		{"Breaking changes", commits.KindBreaking},
		{"Features", commits.KindFeature},
		{"Fixes", commits.KindFix},
	}
	for _, group := range groups {
		var entries []string
		for _, record := range records {
			if record.Kind != group.kind {
				continue
			}
			entries = append(entries, fmt.Sprintf("- %s (%s)", record.Subject, shortHash(record.Hash)))
		}
		if len(entries) == 0 {
			continue
		}
		fmt.Fprintf(&builder, "\n### %s\n\n", group.title)
		for _, entry := range entries {
			builder.WriteString(entry)
			builder.WriteString("\n")
		}
	}
	return builder.String()
}

func shortHash(hash string) string {
	if len(hash) > shortHashLength {
		return hash[:shortHashLength]
	}
	return hash
}

// Insert splices section into the changelog at path, directly above
// the previous newest version section. The file is created with a
// top-level header when missing. Returns false without touching the
// file when a section for the version already exists.
func Insert(path string, version *semver.Version, section string) (bool, error) {
	source, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		content := header + "\n" + section
		if writeErr := os.WriteFile(path, []byte(content), 0o644); writeErr != nil {
			return false, fmt.Errorf("creating changelog: %w", writeErr)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading changelog: %w", err)
	}

	exists, offset := findVersionHeadings(source, version)
	if exists {
		return false, nil
	}

	var builder strings.Builder
	if offset < 0 {
		// No version sections yet: append at the end of the prose.
		builder.Write(source)
		if !strings.HasSuffix(string(source), "\n") {
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
		builder.WriteString(section)
	} else {
		builder.Write(source[:offset])
		builder.WriteString(section)
		builder.WriteString("\n")
		builder.Write(source[offset:])
	}

	if err := os.WriteFile(path, []byte(builder.String()), 0o644); err != nil {
		return false, fmt.Errorf("writing changelog: %w", err)
	}
	return true, nil
}

// Section extracts the body of the section for one version: the
// level-2 heading line through the line before the next level-2
// heading (or end of file). Returns false when the changelog has no
// section for the version.
func Section(path string, version *semver.Version) (string, bool, error) {
	source, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading changelog: %w", err)
	}

	start, end := -1, len(source)
	document := goldmark.DefaultParser().Parse(text.NewReader(source))
	_ = ast.Walk(document, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := node.(*ast.Heading)
		if !ok || heading.Level != 2 {
			return ast.WalkContinue, nil
		}
		lines := heading.Lines()
		if lines.Len() == 0 {
			return ast.WalkContinue, nil
		}
		segment := lines.At(0)
		offset := lineStart(source, segment.Start)
		if start >= 0 {
			end = offset
			return ast.WalkStop, nil
		}
		if headingNamesVersion(string(source[segment.Start:segment.Stop]), version) {
			start = offset
		}
		return ast.WalkContinue, nil
	})

	if start < 0 {
		return "", false, nil
	}
	return strings.TrimRight(string(source[start:end]), "\n") + "\n", true, nil
}

// findVersionHeadings parses the changelog and reports whether a
// level-2 heading for the version already exists, and the byte offset
// of the first level-2 heading (-1 when there is none). Parsing the
// markdown instead of string-matching keeps the check robust against
// version strings appearing in entry text.
func findVersionHeadings(source []byte, version *semver.Version) (exists bool, firstOffset int) {
	firstOffset = -1
	document := goldmark.DefaultParser().Parse(text.NewReader(source))

	_ = ast.Walk(document, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := node.(*ast.Heading)
		if !ok || heading.Level != 2 {
			return ast.WalkContinue, nil
		}

		lines := heading.Lines()
		if lines.Len() == 0 {
			return ast.WalkContinue, nil
		}
		segment := lines.At(0)
		headingText := string(source[segment.Start:segment.Stop])

		if firstOffset < 0 {
			// The heading segment starts after the "## " marker; back
			// up to the start of the line for the splice point.
			firstOffset = lineStart(source, segment.Start)
		}
		if headingNamesVersion(headingText, version) {
			exists = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return exists, firstOffset
}

// headingNamesVersion reports whether a heading line is the section
// for the given version, accepting both "v1.2.3" and bare "1.2.3"
// spellings, optionally bracketed.
func headingNamesVersion(headingText string, version *semver.Version) bool {
	fields := strings.Fields(headingText)
	if len(fields) == 0 {
		return false
	}
	name := strings.Trim(fields[0], "[]")
	name = strings.TrimPrefix(name, "v")
	return name == version.String()
}

// lineStart returns the offset of the first byte of the line
// containing offset.
func lineStart(source []byte, offset int) int {
	for offset > 0 && source[offset-1] != '\n' {
		offset--
	}
	return offset
}
