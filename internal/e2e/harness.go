// Package e2e provides testing infrastructure for end-to-end CLI tests.
// It includes a harness for running CLI commands against an isolated local
// wiki, remote wikis served over RPC from their own page databases, and
// fixture helpers.
package e2e

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauern/wikisync/internal/cli"
)

// Result contains the outcome of running a CLI command.
type Result struct {
	// Stdout contains the captured command output.
	Stdout string
	// Err is the error returned by the CLI command, if any.
	Err error
	// ExitCode is the inferred exit code (0 for success, 1 for error).
	ExitCode int
}

// Success returns true if the command completed without error.
func (r *Result) Success() bool {
	return r.Err == nil
}

// Harness runs CLI commands against one isolated local wiki.
type Harness struct {
	t       *testing.T
	homeDir string
}

// NewHarness creates a harness with its own WIKISYNC_HOME. The local wiki's
// config file and data directory live below it.
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	h := &Harness{t: t, homeDir: t.TempDir()}
	h.SetEnv("WIKISYNC_HOME", h.homeDir)
	h.SetEnv("NO_COLOR", "1")
	return h
}

// SetEnv sets an environment variable for the rest of the test.
func (h *Harness) SetEnv(key, value string) {
	h.t.Helper()
	h.t.Setenv(key, value)
}

// HomeDir returns the isolated home directory for this test harness.
func (h *Harness) HomeDir() string {
	return h.homeDir
}

// ConfigPath returns the config file of the local wiki.
func (h *Harness) ConfigPath() string {
	return filepath.Join(h.homeDir, "config.yaml")
}

// DataDir returns the data directory of the local wiki.
func (h *Harness) DataDir() string {
	return filepath.Join(h.homeDir, "data")
}

// Init runs "wikisync init" for a local wiki called name and fails the test
// on error. extra is appended to the init arguments.
func (h *Harness) Init(name string, extra ...string) {
	h.t.Helper()
	args := append([]string{"init", "--name", name}, extra...)
	if r := h.Run(args...); !r.Success() {
		h.t.Fatalf("init %s failed: %v\nstdout: %s", name, r.Err, r.Stdout)
	}
}

// Run executes a CLI command and captures its output.
func (h *Harness) Run(args ...string) *Result {
	h.t.Helper()
	return h.run("", args)
}

// RunWithStdin executes a CLI command that reads a page body from stdin.
func (h *Harness) RunWithStdin(stdin string, args ...string) *Result {
	h.t.Helper()
	return h.run(stdin, args)
}

func (h *Harness) run(stdin string, args []string) *Result {
	h.t.Helper()
	if len(args) == 0 || args[0] != "wikisync" {
		args = append([]string{"wikisync"}, args...)
	}

	var stdout bytes.Buffer
	err := cli.RunIO(context.Background(), args, strings.NewReader(stdin), &stdout)

	exitCode := 0
	if err != nil {
		exitCode = 1
	}
	return &Result{Stdout: stdout.String(), Err: err, ExitCode: exitCode}
}
