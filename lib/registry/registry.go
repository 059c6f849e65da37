// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry pushes released workspaces to a package registry by
// shelling out to the registry's own CLI. The tool already knows how
// to build, verify, and upload a crate; wrapping it keeps slipway out
// of the packaging business.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ToolError reports a registry CLI invocation that exited nonzero,
// carrying enough of its stderr to diagnose without rerunning.
type ToolError struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (err *ToolError) Error() string {
	message := fmt.Sprintf("%s %s: %v", err.Tool, strings.Join(err.Args, " "), err.Err)
	if err.Stderr != "" {
		message += fmt.Sprintf(" (stderr: %s)", err.Stderr)
	}
	return message
}

func (err *ToolError) Unwrap() error { return err.Err }

// IsToolError reports whether err came from a registry CLI invocation.
func IsToolError(err error) bool {
	var toolError *ToolError
	return errors.As(err, &toolError)
}

// Cargo publishes to a Cargo-style registry via the cargo CLI. The
// zero value is not usable; construct with NewCargo.
type Cargo struct {
	command string
	args    []string
	logger  *slog.Logger
}

// NewCargo returns a publisher that runs command ("cargo" ordinarily,
// a stub in tests) with "publish" plus extraArgs in the workspace
// directory. Authentication is the CLI's concern: it reads its
// registry token from its own config or environment.
func NewCargo(command string, extraArgs []string, logger *slog.Logger) *Cargo {
	if command == "" {
		command = "cargo"
	}
	return &Cargo{command: command, args: extraArgs, logger: logger}
}

// Publish uploads the workspace at dir. Stdout is discarded; stderr is
// captured for the error path because cargo writes its diagnostics
// there.
func (cargo *Cargo) Publish(ctx context.Context, dir string) error {
	args := append([]string{"publish"}, cargo.args...)
	cargo.logger.Info("running registry publish", "tool", cargo.command, "args", args, "dir", dir)

	command := exec.CommandContext(ctx, cargo.command, args...)
	command.Dir = dir
	var stderr strings.Builder
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return &ToolError{
			Tool:   cargo.command,
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return nil
}
