// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
)

// Workspace is the set of package manifests under one repository root.
// For a single-package repository the workspace has exactly one file;
// for a Cargo workspace it has the root manifest plus every member.
type Workspace struct {
	dir   string
	files []*File
}

// Load reads the workspace rooted at dir. The root manifest must
// exist; members are discovered from its [workspace] section. The root
// itself is included when it carries a [package] section.
func Load(dir string) (*Workspace, error) {
	rootPath := filepath.Join(dir, FileName)
	rootRaw, err := os.ReadFile(rootPath)
	if err != nil {
		return nil, fmt.Errorf("workspace %s: %w", dir, err)
	}

	var parsedRoot tomlManifest
	if err := toml.Unmarshal(rootRaw, &parsedRoot); err != nil {
		return nil, &WriteError{Path: rootPath, Err: fmt.Errorf("parsing: %w", err)}
	}

	root, err := loadFile(rootPath)
	if err != nil {
		return nil, err
	}

	workspace := &Workspace{dir: dir}
	if root.Name != "" {
		workspace.files = append(workspace.files, root)
	}

	memberPaths, err := parsedRoot.memberPaths(dir)
	if err != nil {
		return nil, err
	}
	for _, path := range memberPaths {
		member, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		if member.Name == "" {
			return nil, &WriteError{Path: path, Err: errors.New("workspace member has no [package] section")}
		}
		workspace.files = append(workspace.files, member)
	}

	if len(workspace.files) == 0 {
		return nil, &WriteError{Path: rootPath, Err: errors.New("no package manifests in workspace")}
	}
	return workspace, nil
}

// Dir returns the workspace root directory.
func (w *Workspace) Dir() string { return w.dir }

// Paths returns the manifest file paths, root first, relative to the
// workspace directory. These are the paths the release commit stages.
func (w *Workspace) Paths() []string {
	var paths []string
	for _, file := range w.files {
		relative, err := filepath.Rel(w.dir, file.Path)
		if err != nil {
			relative = file.Path
		}
		paths = append(paths, relative)
	}
	return paths
}

// Version returns the workspace's single current version. Every
// member manifest must agree; disagreement means a previous update was
// applied by hand and the workspace is not in a releasable state.
func (w *Workspace) Version() (*semver.Version, error) {
	version := w.files[0].Version
	for _, file := range w.files[1:] {
		if !file.Version.Equal(version) {
			return nil, &WriteError{
				Path: file.Path,
				Err:  fmt.Errorf("version %s disagrees with %s in %s", file.Version, version, w.files[0].Path),
			}
		}
	}
	return version, nil
}

// SetVersion rewrites every manifest to the new version, including
// intra-workspace dependency constraints that pin the old version.
// All-or-nothing: on any write failure, files written so far are
// restored to their original bytes before the error returns.
func (w *Workspace) SetVersion(next *semver.Version) error {
	current, err := w.Version()
	if err != nil {
		return err
	}

	memberNames := make(map[string]bool, len(w.files))
	for _, file := range w.files {
		memberNames[file.Name] = true
	}

	// Compute every rewrite up front so nothing touches disk if any
	// manifest is malformed.
	rewritten := make([]string, len(w.files))
	for i, file := range w.files {
		rewritten[i] = rewriteVersions(file.raw, memberNames, current.String(), next.String())
	}

	var written []*File
	for i, file := range w.files {
		if err := os.WriteFile(file.Path, []byte(rewritten[i]), 0o644); err != nil {
			w.restore(written)
			return &WriteError{Path: file.Path, Err: err}
		}
		written = append(written, file)
	}

	// Reload so the in-memory view matches disk and a second
	// SetVersion sees the new current version.
	for _, file := range w.files {
		reloaded, err := loadFile(file.Path)
		if err != nil {
			w.restore(written)
			return &WriteError{Path: file.Path, Err: fmt.Errorf("verifying update: %w", err)}
		}
		if reloaded.Version == nil || !reloaded.Version.Equal(next) {
			w.restore(written)
			return &WriteError{Path: file.Path, Err: fmt.Errorf("update did not take: version is %v, want %s", reloaded.Version, next)}
		}
		file.raw = reloaded.raw
		file.Version = reloaded.Version
	}
	return nil
}

// restore writes the original bytes back for every file already
// updated. Best effort: restoration failures are unrecoverable here
// and the operator will see them as a dirty tree on the next run.
func (w *Workspace) restore(written []*File) {
	for _, file := range written {
		_ = os.WriteFile(file.Path, []byte(file.raw), 0o644)
	}
}
