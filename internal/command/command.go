// Package command runs a shell command on this machine, typically the build
// step that produces the directory a sync uploads.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/eugenetaranov/sitepush/internal/syncerr"
)

// waitDelay bounds how long Run waits for output pipes after the process
// is killed by a cancelled context.
const waitDelay = 2 * time.Second

// Result holds the output from command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports whether the command exited with status 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes commands through a shell.
type Runner struct {
	shell     string
	shellArgs []string
	env       []string
}

// Option configures the runner.
type Option func(*Runner)

// WithShell sets a custom shell for command execution.
func WithShell(shell string, args ...string) Option {
	return func(r *Runner) {
		r.shell = shell
		r.shellArgs = args
	}
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) Option {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// New creates a new runner using the platform shell.
func New(opts ...Option) *Runner {
	r := &Runner{}

	switch runtime.GOOS {
	case "windows":
		r.shell = "cmd"
		r.shellArgs = []string{"/C"}
	default:
		r.shell = "/bin/sh"
		r.shellArgs = []string{"-c"}
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes cmd with dir as the working directory. A non-zero exit status
// is reported in the result, not as an error.
func (r *Runner) Run(ctx context.Context, dir, cmd string) (*Result, error) {
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, syncerr.LocalPath("chdir", dir, err)
		}
		if !info.IsDir() {
			return nil, syncerr.LocalPath("chdir", dir, errors.New("not a directory"))
		}
	}

	args := append(append([]string(nil), r.shellArgs...), cmd)
	execCmd := exec.CommandContext(ctx, r.shell, args...)
	execCmd.Dir = dir
	execCmd.WaitDelay = waitDelay
	if len(r.env) > 0 {
		execCmd.Env = append(os.Environ(), r.env...)
	}

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	result := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("failed to execute command: %w", err)
		}
	}

	return result, nil
}

// Run executes cmd in dir using the platform shell.
func Run(ctx context.Context, dir, cmd string) (*Result, error) {
	return New().Run(ctx, dir, cmd)
}
