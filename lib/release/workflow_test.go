// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/slipway-project/slipway/lib/clock"
	"github.com/slipway-project/slipway/lib/forge"
	"github.com/slipway-project/slipway/lib/git"
	"github.com/slipway-project/slipway/lib/testutil"
	"github.com/slipway-project/slipway/lib/workspace"
)

// These tests acquire workspace leases, which register safe.directory
// entries in the global git config. Point GIT_CONFIG_GLOBAL at a
// throwaway file so the host config is never touched; t.Setenv also
// keeps the tests from running in parallel, which the shared env
// requires anyway.
func isolateGlobalConfig(t *testing.T) {
	t.Helper()
	t.Setenv("GIT_CONFIG_GLOBAL", filepath.Join(t.TempDir(), "gitconfig"))
}

var testIdentity = workspace.Identity{Name: "slipway-bot", Email: "bot@slipway.test"}

type fakeHost struct {
	openPulls       map[string]*forge.PullRequest
	createdPulls    []forge.CreatePullRequestRequest
	releases        map[string]*forge.Release
	createdReleases []forge.CreateReleaseRequest
}

func (host *fakeHost) FindOpenByHead(_ context.Context, headBranch string) (*forge.PullRequest, error) {
	return host.openPulls[headBranch], nil
}

func (host *fakeHost) CreatePullRequest(_ context.Context, request forge.CreatePullRequestRequest) (*forge.PullRequest, error) {
	host.createdPulls = append(host.createdPulls, request)
	return &forge.PullRequest{
		Number:  len(host.createdPulls),
		State:   "open",
		HTMLURL: "https://example.test/pulls/" + request.Head,
	}, nil
}

func (host *fakeHost) GetReleaseByTag(_ context.Context, tag string) (*forge.Release, error) {
	if release, ok := host.releases[tag]; ok {
		return release, nil
	}
	return nil, &forge.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
}

func (host *fakeHost) CreateRelease(_ context.Context, request forge.CreateReleaseRequest) (*forge.Release, error) {
	host.createdReleases = append(host.createdReleases, request)
	return &forge.Release{
		ID:      int64(len(host.createdReleases)),
		TagName: request.TagName,
		HTMLURL: "https://example.test/releases/" + request.TagName,
	}, nil
}

type fakeRegistry struct {
	calls int
	err   error
}

func (registry *fakeRegistry) Publish(context.Context, string) error {
	registry.calls++
	return registry.err
}

// newWorkspaceRepo builds a released-at-1.4.2 workspace with a local
// bare remote wired up as origin.
func newWorkspaceRepo(t *testing.T) (dir string, remote string) {
	t.Helper()

	dir = testutil.InitRepo(t)
	testutil.WriteFile(t, dir, "Cargo.toml",
		"[package]\nname = \"dag-codec\"\nversion = \"1.4.2\"\nedition = \"2021\"\n")
	testutil.Commit(t, dir, "chore: add manifest")
	testutil.Tag(t, dir, "v1.4.2")

	remote = t.TempDir()
	testutil.Git(t, remote, "init", "--bare")
	testutil.Git(t, dir, "remote", "add", "origin", remote)
	return dir, remote
}

func newProposer(t *testing.T, dir string, host PullRequestHost) *Proposer {
	t.Helper()

	proposer, err := NewProposer(ProposeConfig{
		Repo:     git.NewRepository(dir),
		Host:     host,
		Identity: testIdentity,
		Logger:   slog.New(slog.DiscardHandler),
		Clock:    clock.Fake(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("NewProposer: %v", err)
	}
	return proposer
}

func newPublisher(t *testing.T, dir string, host ReleaseHost, registry Registry) *Publisher {
	t.Helper()

	publisher, err := NewPublisher(PublishConfig{
		Repo:     git.NewRepository(dir),
		Host:     host,
		Registry: registry,
		Identity: testIdentity,
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	return publisher
}

func TestProposeOpensPullRequest(t *testing.T) {
	isolateGlobalConfig(t)

	dir, remote := newWorkspaceRepo(t)
	testutil.Commit(t, dir, "fix: handle empty payload")
	testutil.Commit(t, dir, "feat: accept external signers")

	host := &fakeHost{}
	outcome, err := newProposer(t, dir, host).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Status != StatusCompleted {
		t.Fatalf("Status = %v (%s), want completed", outcome.Status, outcome.Reason)
	}
	if outcome.Version.String() != "1.5.0" {
		t.Errorf("Version = %s, want 1.5.0", outcome.Version)
	}
	if outcome.Branch != "release/v1.5.0" {
		t.Errorf("Branch = %s", outcome.Branch)
	}

	if len(host.createdPulls) != 1 {
		t.Fatalf("created %d pull requests, want 1", len(host.createdPulls))
	}
	pull := host.createdPulls[0]
	if pull.Head != "release/v1.5.0" || pull.Base != "main" {
		t.Errorf("pull head/base = %s/%s", pull.Head, pull.Base)
	}
	if !strings.Contains(pull.Body, "feat: accept external signers") {
		t.Errorf("pull body missing release notes:\n%s", pull.Body)
	}

	// The proposal commit carries the bumped manifest and the
	// changelog, and the branch made it to the remote.
	manifest := testutil.Git(t, dir, "show", "release/v1.5.0:Cargo.toml")
	if !strings.Contains(manifest, `version = "1.5.0"`) {
		t.Errorf("manifest on proposal branch:\n%s", manifest)
	}
	changelog := testutil.Git(t, dir, "show", "release/v1.5.0:CHANGELOG.md")
	if !strings.Contains(changelog, "## v1.5.0") {
		t.Errorf("changelog on proposal branch:\n%s", changelog)
	}
	testutil.Git(t, remote, "rev-parse", "--verify", "refs/heads/release/v1.5.0")

	// The lease restored the original branch.
	branch := strings.TrimSpace(testutil.Git(t, dir, "rev-parse", "--abbrev-ref", "HEAD"))
	if branch != "main" {
		t.Errorf("current branch after run = %s, want main", branch)
	}
}

func TestProposeNoopWithoutReleasableCommits(t *testing.T) {
	isolateGlobalConfig(t)

	dir, _ := newWorkspaceRepo(t)
	testutil.Commit(t, dir, "chore: tidy CI config")
	testutil.Commit(t, dir, "docs: expand usage notes")

	host := &fakeHost{}
	outcome, err := newProposer(t, dir, host).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Status != StatusNoop {
		t.Fatalf("Status = %v, want noop", outcome.Status)
	}
	if len(host.createdPulls) != 0 {
		t.Errorf("created %d pull requests, want 0", len(host.createdPulls))
	}
}

func TestProposeNoopWhenProposalAlreadyOpen(t *testing.T) {
	isolateGlobalConfig(t)

	dir, _ := newWorkspaceRepo(t)
	testutil.Commit(t, dir, "feat: accept external signers")

	host := &fakeHost{openPulls: map[string]*forge.PullRequest{
		"release/v1.5.0": {Number: 7, State: "open", HTMLURL: "https://example.test/pulls/7"},
	}}
	outcome, err := newProposer(t, dir, host).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Status != StatusNoop {
		t.Fatalf("Status = %v, want noop", outcome.Status)
	}
	if outcome.PullRequestURL != "https://example.test/pulls/7" {
		t.Errorf("PullRequestURL = %s", outcome.PullRequestURL)
	}
	if len(host.createdPulls) != 0 {
		t.Errorf("created %d pull requests, want 0", len(host.createdPulls))
	}

	// The guard fired before any mutation.
	manifest := testutil.Git(t, dir, "show", "HEAD:Cargo.toml")
	if !strings.Contains(manifest, `version = "1.4.2"`) {
		t.Errorf("manifest changed despite noop:\n%s", manifest)
	}
}

func TestProposeDryRun(t *testing.T) {
	isolateGlobalConfig(t)

	dir, _ := newWorkspaceRepo(t)
	testutil.Commit(t, dir, "feat: accept external signers")

	host := &fakeHost{}
	proposer, err := NewProposer(ProposeConfig{
		Repo:     git.NewRepository(dir),
		Host:     host,
		Identity: testIdentity,
		Logger:   slog.New(slog.DiscardHandler),
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("NewProposer: %v", err)
	}

	outcome, err := proposer.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Status != StatusPlanned {
		t.Fatalf("Status = %v, want planned", outcome.Status)
	}
	if outcome.Version.String() != "1.5.0" {
		t.Errorf("Version = %s, want 1.5.0", outcome.Version)
	}
	if len(host.createdPulls) != 0 {
		t.Errorf("dry run created a pull request")
	}
	if output := testutil.Git(t, dir, "status", "--porcelain"); strings.TrimSpace(output) != "" {
		t.Errorf("dry run dirtied the tree:\n%s", output)
	}
}

func TestProposeRerunAfterPushFailure(t *testing.T) {
	isolateGlobalConfig(t)

	dir, remote := newWorkspaceRepo(t)
	testutil.Commit(t, dir, "feat: accept external signers")

	// First run dies at the push step: the remote is unreachable. The
	// proposal branch and commit already exist locally at that point.
	testutil.Git(t, dir, "remote", "set-url", "origin", filepath.Join(t.TempDir(), "missing.git"))
	host := &fakeHost{}
	if _, err := newProposer(t, dir, host).Run(context.Background()); err == nil {
		t.Fatal("expected push to the unreachable remote to fail")
	}
	if len(host.createdPulls) != 0 {
		t.Fatalf("failed run created %d pull requests, want 0", len(host.createdPulls))
	}

	// The aborted run leaves the tree clean and back on the base
	// branch, ready for another attempt.
	if output := testutil.Git(t, dir, "status", "--porcelain"); strings.TrimSpace(output) != "" {
		t.Fatalf("failed run left the tree dirty:\n%s", output)
	}
	branch := strings.TrimSpace(testutil.Git(t, dir, "rev-parse", "--abbrev-ref", "HEAD"))
	if branch != "main" {
		t.Fatalf("current branch after failed run = %s, want main", branch)
	}

	// With the remote repaired, the rerun completes despite the
	// leftover local proposal branch.
	testutil.Git(t, dir, "remote", "set-url", "origin", remote)
	outcome, err := newProposer(t, dir, host).Run(context.Background())
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if outcome.Status != StatusCompleted {
		t.Fatalf("rerun Status = %v (%s), want completed", outcome.Status, outcome.Reason)
	}
	if len(host.createdPulls) != 1 {
		t.Errorf("created %d pull requests across both runs, want 1", len(host.createdPulls))
	}
	testutil.Git(t, remote, "rev-parse", "--verify", "refs/heads/release/v1.5.0")
}

func TestProposeRerunAfterChangelogFailure(t *testing.T) {
	isolateGlobalConfig(t)

	dir, _ := newWorkspaceRepo(t)
	testutil.WriteFile(t, dir, "notes/keep.txt", "placeholder\n")
	testutil.Commit(t, dir, "chore: reserve notes directory")
	testutil.Commit(t, dir, "feat: accept external signers")

	// Pointing the changelog at a directory makes the notes step fail
	// after the manifests were already bumped on the base branch.
	host := &fakeHost{}
	broken, err := NewProposer(ProposeConfig{
		Repo:          git.NewRepository(dir),
		Host:          host,
		Identity:      testIdentity,
		Logger:        slog.New(slog.DiscardHandler),
		Clock:         clock.Fake(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)),
		ChangelogPath: "notes",
	})
	if err != nil {
		t.Fatalf("NewProposer: %v", err)
	}
	if _, err := broken.Run(context.Background()); err == nil {
		t.Fatal("expected the changelog step to fail")
	}

	// The bumped manifest was rolled back, so the next run's clean-tree
	// check passes.
	if output := testutil.Git(t, dir, "status", "--porcelain"); strings.TrimSpace(output) != "" {
		t.Fatalf("failed run left the tree dirty:\n%s", output)
	}
	manifest := testutil.Git(t, dir, "show", "HEAD:Cargo.toml")
	if !strings.Contains(manifest, `version = "1.4.2"`) {
		t.Fatalf("manifest changed on the base branch:\n%s", manifest)
	}

	outcome, err := newProposer(t, dir, host).Run(context.Background())
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if outcome.Status != StatusCompleted {
		t.Fatalf("rerun Status = %v (%s), want completed", outcome.Status, outcome.Reason)
	}
	if len(host.createdPulls) != 1 {
		t.Errorf("created %d pull requests across both runs, want 1", len(host.createdPulls))
	}
}

func TestProposeRejectsDirtyTree(t *testing.T) {
	isolateGlobalConfig(t)

	dir, _ := newWorkspaceRepo(t)
	testutil.Commit(t, dir, "feat: accept external signers")
	testutil.WriteFile(t, dir, "scratch.txt", "uncommitted\n")

	_, err := newProposer(t, dir, &fakeHost{}).Run(context.Background())
	if !git.IsStateError(err) {
		t.Fatalf("err = %v, want a repository state error", err)
	}
}

// newPublishableRepo is a workspace whose manifests already carry the
// next version, as they do on the base branch after a proposal merges.
func newPublishableRepo(t *testing.T) (dir string, remote string) {
	t.Helper()

	dir, remote = newWorkspaceRepo(t)
	testutil.WriteFile(t, dir, "Cargo.toml",
		"[package]\nname = \"dag-codec\"\nversion = \"1.5.0\"\nedition = \"2021\"\n")
	testutil.WriteFile(t, dir, "CHANGELOG.md",
		"# Changelog\n\n## v1.5.0 - 2026-03-14\n\n### Features\n\n- feat: accept external signers (bbbbbbbb)\n")
	testutil.Commit(t, dir, "chore: release v1.5.0")
	return dir, remote
}

func TestPublishTagsAndReleases(t *testing.T) {
	isolateGlobalConfig(t)

	dir, remote := newPublishableRepo(t)
	host := &fakeHost{}
	registry := &fakeRegistry{}

	outcome, err := newPublisher(t, dir, host, registry).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Status != StatusCompleted {
		t.Fatalf("Status = %v (%s), want completed", outcome.Status, outcome.Reason)
	}
	if outcome.Tag != "v1.5.0" {
		t.Errorf("Tag = %s", outcome.Tag)
	}
	if registry.calls != 1 {
		t.Errorf("registry published %d times, want 1", registry.calls)
	}

	if len(host.createdReleases) != 1 {
		t.Fatalf("created %d host releases, want 1", len(host.createdReleases))
	}
	created := host.createdReleases[0]
	if created.MakeLatest != "true" {
		t.Errorf("MakeLatest = %q, want \"true\"", created.MakeLatest)
	}
	if !strings.Contains(created.Body, "feat: accept external signers") {
		t.Errorf("release body missing changelog section:\n%s", created.Body)
	}

	// Annotated tag exists locally and on the remote.
	kind := strings.TrimSpace(testutil.Git(t, dir, "cat-file", "-t", "v1.5.0"))
	if kind != "tag" {
		t.Errorf("local v1.5.0 object type = %s, want tag", kind)
	}
	testutil.Git(t, remote, "rev-parse", "--verify", "refs/tags/v1.5.0")
}

func TestPublishTwiceProducesOneArtifact(t *testing.T) {
	isolateGlobalConfig(t)

	dir, _ := newPublishableRepo(t)
	host := &fakeHost{}
	registry := &fakeRegistry{}
	publisher := newPublisher(t, dir, host, registry)

	first, err := publisher.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.Status != StatusCompleted {
		t.Fatalf("first Status = %v", first.Status)
	}

	second, err := publisher.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.Status != StatusNoop {
		t.Fatalf("second Status = %v, want noop", second.Status)
	}

	if registry.calls != 1 {
		t.Errorf("registry published %d times, want exactly 1", registry.calls)
	}
	if len(host.createdReleases) != 1 {
		t.Errorf("created %d host releases, want exactly 1", len(host.createdReleases))
	}
}

func TestPublishNoopWhenHostReleaseExists(t *testing.T) {
	isolateGlobalConfig(t)

	dir, _ := newPublishableRepo(t)
	host := &fakeHost{releases: map[string]*forge.Release{
		"v1.5.0": {ID: 3, TagName: "v1.5.0", HTMLURL: "https://example.test/releases/v1.5.0"},
	}}
	registry := &fakeRegistry{}

	outcome, err := newPublisher(t, dir, host, registry).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.Status != StatusNoop {
		t.Fatalf("Status = %v, want noop", outcome.Status)
	}
	if registry.calls != 0 {
		t.Errorf("registry published %d times, want 0", registry.calls)
	}
	// No local tag was created.
	if output := testutil.Git(t, dir, "tag", "--list", "v1.5.0"); strings.TrimSpace(output) != "" {
		t.Errorf("noop created a local tag: %s", output)
	}
}

func TestPublishDryRun(t *testing.T) {
	isolateGlobalConfig(t)

	dir, _ := newPublishableRepo(t)
	host := &fakeHost{}
	registry := &fakeRegistry{}

	publisher, err := NewPublisher(PublishConfig{
		Repo:     git.NewRepository(dir),
		Host:     host,
		Registry: registry,
		Identity: testIdentity,
		Logger:   slog.New(slog.DiscardHandler),
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}

	outcome, err := publisher.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Status != StatusPlanned {
		t.Fatalf("Status = %v, want planned", outcome.Status)
	}
	if registry.calls != 0 || len(host.createdReleases) != 0 {
		t.Error("dry run performed side effects")
	}
	if output := testutil.Git(t, dir, "tag", "--list", "v1.5.0"); strings.TrimSpace(output) != "" {
		t.Errorf("dry run created a tag: %s", output)
	}
}

func TestPublishSurfacesRegistryFailure(t *testing.T) {
	isolateGlobalConfig(t)

	dir, _ := newPublishableRepo(t)
	host := &fakeHost{}
	registry := &fakeRegistry{err: fmt.Errorf("cargo publish: exit status 101")}

	_, err := newPublisher(t, dir, host, registry).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "cargo publish") {
		t.Fatalf("err = %v, want the registry failure", err)
	}
	// The host release is the last step; it must not exist.
	if len(host.createdReleases) != 0 {
		t.Errorf("created %d host releases after registry failure, want 0", len(host.createdReleases))
	}
}
