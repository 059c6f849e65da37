// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/slipway-project/slipway/lib/commits"
)

// PolicyFileName is the per-repository policy file, checked into the
// repository root alongside its manifests.
const PolicyFileName = ".slipway.jsonc"

// Policy is per-repository release policy. It travels with the code
// it governs, so maintainers can change the commit grammar or branch
// layout in the same pull request that starts using it. All fields
// are optional; absent fields keep the operator configuration's
// values.
type Policy struct {
	// TagPrefix overrides repository.tag_prefix.
	TagPrefix string `json:"tag_prefix"`

	// BaseBranch overrides repository.base_branch.
	BaseBranch string `json:"base_branch"`

	// Changelog overrides repository.changelog.
	Changelog string `json:"changelog"`

	// Grammar overrides the commit classification table.
	Grammar *GrammarPolicy `json:"grammar"`
}

// GrammarPolicy is the commit grammar in policy form.
type GrammarPolicy struct {
	// Types maps a commit type token to "feature", "fix", or
	// "breaking".
	Types map[string]string `json:"types"`

	// BreakingFooters are message body prefixes that mark a breaking
	// change.
	BreakingFooters []string `json:"breaking_footers"`
}

// LoadPolicy reads the policy file from a repository root. Returns nil
// with no error when the repository carries none; most don't.
func LoadPolicy(dir string) (*Policy, error) {
	path := filepath.Join(dir, PolicyFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var policy Policy
	if err := json.Unmarshal(jsonc.ToJSON(data), &policy); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &policy, nil
}

// Apply overlays a policy onto the configuration. A nil policy is a
// no-op.
func (c *Config) Apply(policy *Policy) {
	if policy == nil {
		return
	}
	if policy.TagPrefix != "" {
		c.Repository.TagPrefix = policy.TagPrefix
	}
	if policy.BaseBranch != "" {
		c.Repository.BaseBranch = policy.BaseBranch
	}
	if policy.Changelog != "" {
		c.Repository.Changelog = policy.Changelog
	}
}

// CommitGrammar returns the commit grammar the policy prescribes, or
// the conventional-commit default when it prescribes none.
func (p *Policy) CommitGrammar() commits.Grammar {
	if p == nil || p.Grammar == nil {
		return commits.DefaultGrammar()
	}
	grammar := commits.Grammar{
		Types:           p.Grammar.Types,
		BreakingFooters: p.Grammar.BreakingFooters,
	}
	if grammar.Types == nil {
		grammar.Types = commits.DefaultGrammar().Types
	}
	if grammar.BreakingFooters == nil {
		grammar.BreakingFooters = commits.DefaultGrammar().BreakingFooters
	}
	return grammar
}
