// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for slipway.
//
// Operator configuration is loaded from a single YAML file specified
// by:
//   - SLIPWAY_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The config file is
// the single source of truth for where to release and as whom; the
// only value read from the environment is the forge token, which
// never belongs in a file that gets committed.
//
// Repositories can additionally carry a .slipway.jsonc policy file
// overriding per-repository settings such as the commit grammar; see
// LoadPolicy.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the operator configuration for slipway.
type Config struct {
	// Repository locates the working tree and names its branches.
	Repository RepositoryConfig `yaml:"repository"`

	// Identity is the committer identity for release commits and tags.
	Identity IdentityConfig `yaml:"identity"`

	// Forge configures the code host API client.
	Forge ForgeConfig `yaml:"forge"`

	// Registry configures the package registry publisher.
	Registry RegistryConfig `yaml:"registry"`
}

// RepositoryConfig locates the working tree and names its branches.
type RepositoryConfig struct {
	// Path is the working tree of the repository being released.
	// Default: current directory.
	Path string `yaml:"path"`

	// Remote receives proposal branches and release tags.
	// Default: origin.
	Remote string `yaml:"remote"`

	// BaseBranch is the pull request target and the branch releases
	// publish from. Default: main.
	BaseBranch string `yaml:"base_branch"`

	// TagPrefix precedes the version in tag and branch names.
	// Default: v.
	TagPrefix string `yaml:"tag_prefix"`

	// Changelog is the notes file, relative to the repository root.
	// Default: CHANGELOG.md.
	Changelog string `yaml:"changelog"`
}

// IdentityConfig is the committer identity for release commits.
type IdentityConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// ForgeConfig configures the code host API client. Exactly one of
// token auth (TokenEnv) or app auth (AppID, PrivateKeyFile,
// InstallationID) must be configured.
type ForgeConfig struct {
	// Owner and Repo identify the repository on the host.
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`

	// BaseURL overrides the API endpoint for enterprise hosts.
	// Must be HTTPS. Default: https://api.github.com.
	BaseURL string `yaml:"base_url"`

	// TokenEnv names the environment variable holding the API token.
	// The token itself never appears in the config file.
	// Default: GITHUB_TOKEN.
	TokenEnv string `yaml:"token_env"`

	// AppID, PrivateKeyFile, and InstallationID configure app
	// authentication as an alternative to a token.
	AppID          int64  `yaml:"app_id"`
	PrivateKeyFile string `yaml:"private_key_file"`
	InstallationID int64  `yaml:"installation_id"`
}

// RegistryConfig configures the package registry publisher.
type RegistryConfig struct {
	// Command is the registry CLI. Default: cargo.
	Command string `yaml:"command"`

	// Args are appended to the publish invocation, e.g. --no-verify.
	Args []string `yaml:"args"`
}

// Default returns the default configuration. These defaults fill in
// the optional fields; Owner, Repo, and Identity have no defaults and
// must come from the file.
func Default() *Config {
	return &Config{
		Repository: RepositoryConfig{
			Path:       ".",
			Remote:     "origin",
			BaseBranch: "main",
			TagPrefix:  "v",
			Changelog:  "CHANGELOG.md",
		},
		Forge: ForgeConfig{
			TokenEnv: "GITHUB_TOKEN",
		},
		Registry: RegistryConfig{
			Command: "cargo",
		},
	}
}

// Load loads configuration from the SLIPWAY_CONFIG environment
// variable. There are no fallbacks: if SLIPWAY_CONFIG is not set, this
// fails, which keeps configuration deterministic and auditable.
func Load() (*Config, error) {
	configPath := os.Getenv("SLIPWAY_CONFIG")
	if configPath == "" {
		return nil, errors.New("SLIPWAY_CONFIG environment variable not set; " +
			"set it to the path of your slipway.yaml config file, or use the --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, on top of
// the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields that have no usable default.
func (c *Config) Validate() error {
	if c.Forge.Owner == "" || c.Forge.Repo == "" {
		return errors.New("forge.owner and forge.repo are required")
	}
	if c.Identity.Name == "" || c.Identity.Email == "" {
		return errors.New("identity.name and identity.email are required")
	}
	appConfigured := c.Forge.AppID != 0 || c.Forge.PrivateKeyFile != "" || c.Forge.InstallationID != 0
	if appConfigured {
		if c.Forge.AppID == 0 || c.Forge.PrivateKeyFile == "" || c.Forge.InstallationID == 0 {
			return errors.New("app auth requires forge.app_id, forge.private_key_file, and forge.installation_id together")
		}
	}
	return nil
}

// Token resolves the forge API token from the configured environment
// variable. Empty when app auth is configured or the variable is
// unset.
func (c *Config) Token() string {
	if c.Forge.AppID != 0 {
		return ""
	}
	return os.Getenv(c.Forge.TokenEnv)
}
