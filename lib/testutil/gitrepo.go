// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for slipway packages.
//
// Most slipway tests run against real git repositories rather than
// mocked history: the pipeline's correctness depends on git's actual
// tag-reachability and log-range semantics, which are cheap to
// exercise for real in a temp directory and easy to get subtly wrong
// in a fake.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// InitRepo creates a git repository in a temp directory with a "main"
// branch, a fixed committer identity, and one initial commit. Returns
// the working tree path. The repository is removed when the test
// completes (via t.TempDir cleanup).
func InitRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	Git(t, dir, "init", "--initial-branch=main")
	Git(t, dir, "config", "user.name", "Test")
	Git(t, dir, "config", "user.email", "test@test.local")

	WriteFile(t, dir, "README.md", "# test\n")
	Git(t, dir, "add", "README.md")
	Git(t, dir, "commit", "-m", "chore: initial commit")

	return dir
}

// Git runs a git command in dir, failing the test on error. Returns
// combined output for assertions.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()

	fullArgs := append([]string{"-C", dir}, args...)
	command := exec.Command("git", fullArgs...)
	output, err := command.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, output)
	}
	return string(output)
}

// WriteFile writes content to a file under dir, creating parent
// directories as needed.
func WriteFile(t *testing.T, dir, name, content string) {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// Commit stages everything and creates a commit with the given
// message. The message is the only thing that varies between fixture
// commits; classification tests drive behavior entirely through it.
func Commit(t *testing.T, dir, message string) {
	t.Helper()

	Git(t, dir, "add", "-A")
	Git(t, dir, "commit", "--allow-empty", "-m", message)
}

// Tag creates an annotated tag at HEAD.
func Tag(t *testing.T, dir, name string) {
	t.Helper()

	Git(t, dir, "tag", "-a", name, "-m", name)
}
