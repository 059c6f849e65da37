// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package git

import (
	"context"
	"strings"
	"testing"

	"github.com/slipway-project/slipway/lib/testutil"
)

func TestRepositoryRun(t *testing.T) {
	t.Parallel()

	dir := testutil.InitRepo(t)
	repo := NewRepository(dir)

	output, err := repo.Run(context.Background(), "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		t.Fatalf("Run(rev-parse): %v", err)
	}
	if output != "main" {
		t.Errorf("current branch = %q, want %q", output, "main")
	}
}

func TestRepositoryRunTrimsTrailingNewline(t *testing.T) {
	t.Parallel()

	dir := testutil.InitRepo(t)
	repo := NewRepository(dir)

	output, err := repo.Run(context.Background(), "log", "--format=%s", "-1")
	if err != nil {
		t.Fatalf("Run(log): %v", err)
	}
	if strings.HasSuffix(output, "\n") {
		t.Errorf("output %q has trailing newline", output)
	}
}

func TestRepositoryRunErrorIncludesStderr(t *testing.T) {
	t.Parallel()

	dir := testutil.InitRepo(t)
	repo := NewRepository(dir)

	_, err := repo.Run(context.Background(), "not-a-real-command")
	if err == nil {
		t.Fatal("expected error for invalid git subcommand")
	}
	if !strings.Contains(err.Error(), dir) {
		t.Errorf("error = %v, want to contain repository dir %q", err, dir)
	}
}

func TestRepositoryRunNonexistentDirectory(t *testing.T) {
	t.Parallel()

	repo := NewRepository("/tmp/nonexistent-slipway-repo-abcxyz")

	_, err := repo.Run(context.Background(), "status")
	if err == nil {
		t.Fatal("expected error for nonexistent directory")
	}
}

func TestLines(t *testing.T) {
	t.Parallel()

	got := Lines("  a  \n\nb\n  \nc\n")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Lines() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Lines()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
