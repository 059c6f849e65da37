// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest reads and rewrites version metadata in a Cargo-style
// TOML workspace. A workspace is a root manifest that either is a
// package itself or lists member packages; every package manifest
// carries a [package] version field and may reference sibling members
// with path dependencies that pin a version.
//
// The updater's contract is workspace-level atomicity: either every
// manifest ends up on the new version, or every file is restored to
// its original bytes before the error is reported.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
)

// FileName is the manifest file name within each package directory.
const FileName = "Cargo.toml"

// File is one parsed package manifest.
type File struct {
	// Path is the absolute path of the manifest file.
	Path string

	// Name is the package name, or "" for a pure workspace root with
	// no [package] section.
	Name string

	// Version is the package version. Nil for a pure workspace root.
	Version *semver.Version

	// raw is the original file text. Rewrites are textual to preserve
	// comments and formatting the TOML decoder would discard.
	raw string
}

// tomlManifest mirrors the subset of the manifest schema slipway reads.
// Rewrites never go through this struct.
type tomlManifest struct {
	Workspace *struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
	Package *struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
}

// WriteError reports a failed or malformed manifest update. When
// returned from SetVersion, the workspace files have already been
// restored to their pre-update contents.
type WriteError struct {
	// Path is the manifest that failed.
	Path string

	// Err is the underlying failure.
	Err error
}

func (err *WriteError) Error() string {
	return fmt.Sprintf("manifest %s: %v", err.Path, err.Err)
}

func (err *WriteError) Unwrap() error { return err.Err }

// IsWriteError reports whether err is a manifest update failure.
func IsWriteError(err error) bool {
	var writeError *WriteError
	return errors.As(err, &writeError)
}

// loadFile parses a single manifest file.
func loadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var parsed tomlManifest
	if err := toml.Unmarshal(raw, &parsed); err != nil {
		return nil, &WriteError{Path: path, Err: fmt.Errorf("parsing: %w", err)}
	}

	file := &File{Path: path, raw: string(raw)}
	if parsed.Package != nil {
		if parsed.Package.Name == "" {
			return nil, &WriteError{Path: path, Err: errors.New("[package] section has no name")}
		}
		version, err := semver.StrictNewVersion(parsed.Package.Version)
		if err != nil {
			return nil, &WriteError{Path: path, Err: fmt.Errorf("version %q: %w", parsed.Package.Version, err)}
		}
		file.Name = parsed.Package.Name
		file.Version = version
	}
	return file, nil
}

// memberPaths returns the manifest paths of workspace members declared
// in the root manifest, resolved relative to dir. Glob patterns in the
// member list are expanded with filepath.Glob.
func (parsed *tomlManifest) memberPaths(dir string) ([]string, error) {
	if parsed.Workspace == nil {
		return nil, nil
	}
	var paths []string
	for _, member := range parsed.Workspace.Members {
		matches, err := filepath.Glob(filepath.Join(dir, member))
		if err != nil {
			return nil, fmt.Errorf("workspace member pattern %q: %w", member, err)
		}
		for _, match := range matches {
			manifestPath := filepath.Join(match, FileName)
			if _, err := os.Stat(manifestPath); err == nil {
				paths = append(paths, manifestPath)
			}
		}
	}
	return paths, nil
}

// versionConstraintOperators are the constraint prefixes a path
// dependency may carry in front of the bare version. The operator is
// preserved when the version is rewritten.
var versionConstraintOperators = []string{"^", "~", "="}

// rewriteVersions returns the file text with the package's own version
// and any member dependency constraint matching oldVersion replaced by
// newVersion. memberNames guards the dependency rewrite: only
// constraints on workspace siblings are touched.
func rewriteVersions(raw string, memberNames map[string]bool, oldVersion, newVersion string) string {
	lines := strings.Split(raw, "\n")
	section := ""
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			section = strings.Trim(trimmed, "[]")
			continue
		}

		switch {
		case section == "package" || section == "workspace.package":
			if key, _, found := splitKeyValue(trimmed); found && key == "version" {
				lines[i] = replaceQuotedVersion(line, oldVersion, newVersion)
			}
		case isDependencySection(section):
			key, _, found := splitKeyValue(trimmed)
			if found && memberNames[key] {
				lines[i] = replaceQuotedVersion(line, oldVersion, newVersion)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// isDependencySection reports whether a TOML section header names a
// dependency table, including target-specific ones like
// [target.'cfg(unix)'.dependencies].
func isDependencySection(section string) bool {
	return strings.HasSuffix(section, "dependencies")
}

// splitKeyValue splits a "key = value" TOML line. Returns false for
// lines that are not assignments (comments, blank lines, table
// headers).
func splitKeyValue(line string) (key, value string, found bool) {
	if strings.HasPrefix(line, "#") {
		return "", "", false
	}
	index := strings.Index(line, "=")
	if index < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:index]), strings.TrimSpace(line[index+1:]), true
}

// replaceQuotedVersion replaces a quoted version string equal to
// oldVersion (optionally behind a constraint operator) with
// newVersion, preserving the operator and everything else on the line.
func replaceQuotedVersion(line, oldVersion, newVersion string) string {
	candidates := []string{`"` + oldVersion + `"`}
	for _, operator := range versionConstraintOperators {
		candidates = append(candidates, `"`+operator+oldVersion+`"`)
	}
	for _, candidate := range candidates {
		if strings.Contains(line, candidate) {
			replacement := strings.Replace(candidate, oldVersion, newVersion, 1)
			return strings.Replace(line, candidate, replacement, 1)
		}
	}
	return line
}
