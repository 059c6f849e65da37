// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "slipway",
		Subcommands: []*Command{
			{
				Name: "version",
				Run: func(args []string) error {
					called = "version"
					return nil
				},
			},
			{
				Name: "release",
				Run: func(args []string) error {
					called = "release"
					return nil
				},
			},
		},
	}

	if err := root.Execute([]string{"release"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "release" {
		t.Errorf("dispatched to %q, want %q", called, "release")
	}
}

func TestCommand_Execute_NestedSubcommands(t *testing.T) {
	var called string
	var receivedArgs []string

	root := &Command{
		Name: "slipway",
		Subcommands: []*Command{
			{
				Name: "release",
				Subcommands: []*Command{
					{
						Name: "propose",
						Run: func(args []string) error {
							called = "release propose"
							receivedArgs = args
							return nil
						},
					},
				},
			},
		},
	}

	if err := root.Execute([]string{"release", "propose", "extra"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "release propose" {
		t.Errorf("dispatched to %q", called)
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "extra" {
		t.Errorf("args = %v, want [extra]", receivedArgs)
	}
}

func TestCommand_Execute_UnknownCommandSuggestsClosest(t *testing.T) {
	root := &Command{
		Name: "slipway",
		Subcommands: []*Command{
			{Name: "release", Run: func([]string) error { return nil }},
			{Name: "version", Run: func([]string) error { return nil }},
		},
	}

	err := root.Execute([]string{"relaese"})
	if err == nil {
		t.Fatal("Execute() succeeded for unknown command")
	}
	if !strings.Contains(err.Error(), `did you mean "release"`) {
		t.Errorf("error %q does not suggest release", err)
	}
}

func TestCommand_Execute_ParsesFlags(t *testing.T) {
	var dryRun bool
	var receivedArgs []string

	command := &Command{
		Name: "propose",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("propose", pflag.ContinueOnError)
			flags.BoolVar(&dryRun, "dry-run", false, "")
			return flags
		},
		Run: func(args []string) error {
			receivedArgs = args
			return nil
		},
	}

	if err := command.Execute([]string{"--dry-run", "positional"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !dryRun {
		t.Error("--dry-run not parsed")
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "positional" {
		t.Errorf("args = %v, want [positional]", receivedArgs)
	}
}

func TestCommand_Execute_UnknownFlagSuggestsClosest(t *testing.T) {
	command := &Command{
		Name: "propose",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("propose", pflag.ContinueOnError)
			flags.Bool("dry-run", false, "")
			return flags
		},
		Run: func([]string) error { return nil },
	}

	err := command.Execute([]string{"--dry-rnu"})
	if err == nil {
		t.Fatal("Execute() succeeded for unknown flag")
	}
	if !strings.Contains(err.Error(), "--dry-run") {
		t.Errorf("error %q does not suggest --dry-run", err)
	}
}

func TestCommand_Execute_SubcommandRequired(t *testing.T) {
	root := &Command{
		Name: "slipway",
		Subcommands: []*Command{
			{Name: "release", Run: func([]string) error { return nil }},
		},
	}

	err := root.Execute(nil)
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("Execute() error = %v, want subcommand required", err)
	}
}

func TestCommand_PrintHelp_ListsSubcommandsAndExamples(t *testing.T) {
	root := &Command{
		Name:        "slipway",
		Description: "Release automation.",
		Subcommands: []*Command{
			{Name: "release", Summary: "Manage releases"},
			{Name: "version", Summary: "Print version information"},
		},
		Examples: []Example{
			{Description: "Propose a release", Command: "slipway release propose"},
		},
	}

	var buffer bytes.Buffer
	root.PrintHelp(&buffer)
	help := buffer.String()

	for _, want := range []string{"Release automation.", "release", "Manage releases", "slipway release propose", "Commands:"} {
		if !strings.Contains(help, want) {
			t.Errorf("help output missing %q:\n%s", want, help)
		}
	}
}

func TestExitError(t *testing.T) {
	err := &ExitError{Code: 3}
	if err.ExitCode() != 3 {
		t.Errorf("ExitCode = %d, want 3", err.ExitCode())
	}
	if !strings.Contains(err.Error(), "3") {
		t.Errorf("Error() = %q", err.Error())
	}
}
