package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "tk dev") {
		t.Errorf("expected output to contain 'tk dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"tk 1.0.0", "commit: abc123", "built: 2026-01-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestRootCmdHelp(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help failed: %v", err)
	}

	out := buf.String()
	for _, sub := range []string{"version", "db", "worker", "task", "justify", "alerts", "timer", "serve"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q, got: %s", sub, out)
		}
	}
}

func TestSubcommandHelp_ConfigFlag(t *testing.T) {
	for _, args := range [][]string{
		{"db", "init"},
		{"worker", "add"},
		{"task", "list"},
		{"justify", "review"},
		{"alerts", "export"},
		{"timer", "start"},
		{"serve"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			cmd := newRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(append(args, "--help"))

			if err := cmd.Execute(); err != nil {
				t.Fatalf("%v --help failed: %v", args, err)
			}
			out := buf.String()
			if !strings.Contains(out, "--config") {
				t.Errorf("expected --config flag, got: %s", out)
			}
			if !strings.Contains(out, "timekeeper.yaml") {
				t.Errorf("expected default config path, got: %s", out)
			}
		})
	}
}

func TestExecute_ReturnsExitCode(t *testing.T) {
	ok := newRootCmd()
	ok.SetOut(new(bytes.Buffer))
	ok.SetArgs([]string{"version"})
	if got := execute(ok); got != 0 {
		t.Errorf("execute(version) = %d, want 0", got)
	}

	bad := newRootCmd()
	bad.SetOut(new(bytes.Buffer))
	bad.SetErr(new(bytes.Buffer))
	bad.SetArgs([]string{"no-such-command"})
	if got := execute(bad); got != 1 {
		t.Errorf("execute(unknown) = %d, want 1", got)
	}
}

func TestNewTimerStartCmd_Flags(t *testing.T) {
	cmd := newTimerStartCmd()
	if cmd.Use != "start <task-id>" {
		t.Errorf("Use = %q", cmd.Use)
	}
	if f := cmd.Flags().Lookup("for"); f == nil || f.DefValue != "0s" {
		t.Errorf("--for flag = %+v, want default 0s", f)
	}
}

func TestNewWorkerAddCmd_RequiredFlags(t *testing.T) {
	cmd := newWorkerAddCmd()
	for _, name := range []string{"name", "department"} {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			t.Fatalf("missing --%s flag", name)
		}
		if ann := f.Annotations[cobra.BashCompOneRequiredFlag]; len(ann) == 0 {
			t.Errorf("--%s should be required", name)
		}
	}
}
