// Package procexec runs external CLIs (git, trc, agent binaries) with a
// captured stdout/stderr and an explicit working directory. It never
// inherits or mutates the calling process's cwd, and it never treats a
// non-zero exit as a Go error by itself — callers decide what a given exit
// code means for their protocol (see internal/tracker, internal/gitrepo).
package procexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Result is the outcome of running one command to completion.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes argv in dir and reports its outcome. Implementations
// must not depend on or mutate the calling process's working directory —
// dir is passed explicitly on every call so concurrent executor scopes
// (internal/worktree) can each run commands against their own checkout.
type Runner interface {
	Run(ctx context.Context, dir string, argv ...string) (Result, error)
}

// Exec is the real Runner, backed by os/exec.
type Exec struct{}

// New returns the real process adapter.
func New() Exec { return Exec{} }

// Run starts argv[0] with argv[1:] as arguments, waits for it to finish,
// and captures its output. It returns a non-nil error only when the
// command could not be started or waited on for a reason other than a
// non-zero exit (e.g. binary not found, context cancelled) — a non-zero
// exit is reported in Result.ExitCode, not as an error, matching spec
// §4.1 ("no exception on non-zero exit unless the caller asks").
func (Exec) Run(ctx context.Context, dir string, argv ...string) (Result, error) {
	if len(argv) == 0 {
		return Result{}, fmt.Errorf("procexec: empty argv")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
		return result, nil
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	default:
		// Could not even start/wait the process (missing binary, context
		// cancellation, permission error) — this is a genuine Go error,
		// not a CLI exit code.
		return result, fmt.Errorf("procexec: run %v in %q: %w", argv, dir, err)
	}
}
