// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

// Package commits reads and classifies the commit history that drives
// release decisions. The Inspector returns the commits strictly after
// the most recent release tag; each commit is classified against a
// Grammar into the kinds the version resolver understands.
//
// The grammar defaults to the conventional-commit convention
// ("feat: ...", "fix: ...", "!" or a BREAKING CHANGE footer for
// breaking changes) but the type table is configurable — no single
// convention is normative.
package commits

import (
	"regexp"
	"strings"
)

// Kind classifies a commit's effect on the next release.
type Kind int

const (
	// KindOther is anything with no releasable effect: chores, docs,
	// CI changes, and messages that don't parse at all.
	KindOther Kind = iota

	// KindFix is a backwards-compatible bug fix.
	KindFix

	// KindFeature is a backwards-compatible feature addition.
	KindFeature

	// KindBreaking is a backwards-incompatible change.
	KindBreaking
)

// String returns the lowercase name used in logs and release notes.
func (k Kind) String() string {
	switch k {
	case KindFix:
		return "fix"
	case KindFeature:
		return "feature"
	case KindBreaking:
		return "breaking"
	default:
		return "other"
	}
}

// Record is one commit in the release range. Immutable once read from
// history.
type Record struct {
	// Hash is the full commit hash.
	Hash string

	// Subject is the first line of the commit message.
	Subject string

	// Body is the rest of the message, without the subject line.
	Body string

	// Kind is the classification under the inspector's grammar.
	Kind Kind
}

// Grammar maps commit message shapes to kinds. The zero value
// classifies everything as KindOther; use DefaultGrammar for the
// conventional-commit convention.
type Grammar struct {
	// Types maps a lowercase type token (the part before the colon,
	// ignoring scope) to a kind name: "feature", "fix", or "breaking".
	// Tokens not in the table classify as other.
	Types map[string]string

	// BreakingFooters are message body prefixes that force
	// KindBreaking regardless of the type token.
	BreakingFooters []string
}

// DefaultGrammar returns the conventional-commit classification table:
// "feat" is a feature, "fix" is a fix, a "!" before the colon or a
// BREAKING CHANGE footer is breaking, everything else is other.
func DefaultGrammar() Grammar {
	return Grammar{
		Types: map[string]string{
			"feat": "feature",
			"fix":  "fix",
		},
		BreakingFooters: []string{"BREAKING CHANGE:", "BREAKING-CHANGE:"},
	}
}

// subjectPattern matches "type(scope)!: subject". Scope and the bang
// are optional.
var subjectPattern = regexp.MustCompile(`^([A-Za-z]+)(\([^)]*\))?(!)?:\s+\S`)

// Classify determines the kind of a commit message under this grammar.
// Unparseable messages classify as KindOther.
func (g Grammar) Classify(subject, body string) Kind {
	for _, footer := range g.BreakingFooters {
		for _, line := range strings.Split(body, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), footer) {
				return KindBreaking
			}
		}
	}

	match := subjectPattern.FindStringSubmatch(subject)
	if match == nil {
		return KindOther
	}
	if match[3] == "!" {
		return KindBreaking
	}

	switch g.Types[strings.ToLower(match[1])] {
	case "feature":
		return KindFeature
	case "fix":
		return KindFix
	case "breaking":
		return KindBreaking
	default:
		return KindOther
	}
}
