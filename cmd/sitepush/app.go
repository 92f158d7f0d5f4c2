package main

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/eugenetaranov/sitepush/internal/command"
	"github.com/eugenetaranov/sitepush/internal/config"
	"github.com/eugenetaranov/sitepush/internal/output"
	"github.com/eugenetaranov/sitepush/internal/session"
	"github.com/eugenetaranov/sitepush/internal/syncer"
)

// app carries what every command needs to run a job.
type app struct {
	out    *output.Output
	logger *log.Logger
	runner *command.Runner
	dialer syncer.Dialer
}

func newApp(w io.Writer, logger *log.Logger) *app {
	return &app{
		out:    output.New(w),
		logger: logger,
		runner: command.New(),
		dialer: syncer.NewDialer(logger),
	}
}

// apply runs the pre-command, the sync and the post-command in order,
// stopping at the first failure.
func (a *app) apply(ctx context.Context, cfg *config.Config) bool {
	if cfg.PreCommand != "" {
		a.out.Section("Pre-command")
		if !a.runStep(ctx, cfg.WorkingDir, cfg.PreCommand) {
			return false
		}
	}

	if !a.sync(ctx, cfg) {
		return false
	}

	if cfg.PostCommand != "" {
		a.out.Section("Post-command")
		if !a.runStep(ctx, cfg.WorkingDir, cfg.PostCommand) {
			return false
		}
	}

	a.out.Success("Settings applied successfully")
	return true
}

// sync mirrors the configured local root onto the remote root.
func (a *app) sync(ctx context.Context, cfg *config.Config) bool {
	ep, err := cfg.Endpoint()
	if err != nil {
		a.out.Failure("Invalid endpoint: %v", err)
		return false
	}

	a.out.Section("Sync " + ep.String())
	s := syncer.New(a.out, syncer.WithDialer(a.dialer), syncer.WithLogger(a.logger))
	result := s.Run(ctx, cfg.Job(), ep)
	a.out.Summary(result.Stats)
	a.logger.Debug("sync finished", "result", result.Summary())
	return result.Success
}

// runStep runs one shell command in dir and echoes its output. A non-zero
// exit status counts as failure.
func (a *app) runStep(ctx context.Context, dir, line string) bool {
	if dir == "" {
		dir = "."
	}

	res, err := a.runner.Run(ctx, dir, line)
	if err != nil {
		a.out.Failure("Command failed: %v", err)
		return false
	}

	a.out.Command(line, res.Stdout, res.Stderr)
	if !res.Success() {
		a.out.Failure("Command exited with status %d: %s", res.ExitCode, line)
		return false
	}
	a.out.Success("Command finished in %s", dir)
	return true
}

// test opens and closes a session to ep.
func (a *app) test(ctx context.Context, ep session.Endpoint) bool {
	sess, err := a.dialer(ctx, ep)
	if err != nil {
		a.out.Failure("Connection to %s failed: %v", ep.String(), err)
		return false
	}
	if err := sess.Close(); err != nil {
		a.out.Advisory("Connected to %s but closing failed: %v", sess.String(), err)
		return true
	}
	a.out.Success("Connection to %s succeeded", sess.String())
	return true
}
