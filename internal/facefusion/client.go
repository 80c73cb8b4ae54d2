// Package facefusion drives the FaceFusion command line: every method maps to
// one subcommand of "python facefusion.py".
package facefusion

import (
	"context"

	"github.com/kozaktomas/fusion-batch/internal/metrics"
	"github.com/kozaktomas/fusion-batch/internal/shell"
	"go.uber.org/zap"
)

// Subcommands of the external tool.
const (
	SubcommandJobCreate    = "job-create"
	SubcommandJobAddStep   = "job-add-step"
	SubcommandJobSubmit    = "job-submit"
	SubcommandJobRun       = "job-run"
	SubcommandJobDelete    = "job-delete"
	SubcommandJobDeleteAll = "job-delete-all"
)

// Client invokes the tool through a shell.Runner.
type Client struct {
	python string
	script string
	runner shell.Runner
	logger *zap.Logger
}

// NewClient creates a client running "<python> <script> <subcommand> ...".
func NewClient(runner shell.Runner, python, script string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		python: python,
		script: script,
		runner: runner,
		logger: logger.Named("facefusion"),
	}
}

// JobCreate registers a new job under the caller-chosen name.
func (c *Client) JobCreate(ctx context.Context, job string) (shell.CommandLog, error) {
	return c.invoke(ctx, SubcommandJobCreate, job, job)
}

// JobAddStep attaches a processing step to a job.
func (c *Client) JobAddStep(ctx context.Context, job string, step Step) (shell.CommandLog, error) {
	return c.invoke(ctx, SubcommandJobAddStep, job, append([]string{job}, step.Args()...)...)
}

// JobSubmit moves a drafted job into the tool's queue.
func (c *Client) JobSubmit(ctx context.Context, job string) (shell.CommandLog, error) {
	return c.invoke(ctx, SubcommandJobSubmit, job, job)
}

// JobRun executes a submitted job and blocks until the tool exits.
func (c *Client) JobRun(ctx context.Context, job string) (shell.CommandLog, error) {
	return c.invoke(ctx, SubcommandJobRun, job, job)
}

// JobDelete removes a single job.
func (c *Client) JobDelete(ctx context.Context, job string) (shell.CommandLog, error) {
	return c.invoke(ctx, SubcommandJobDelete, job, job)
}

// JobDeleteAll removes every job known to the tool.
func (c *Client) JobDeleteAll(ctx context.Context) (shell.CommandLog, error) {
	return c.invoke(ctx, SubcommandJobDeleteAll, "")
}

func (c *Client) invoke(ctx context.Context, subcommand, job string, args ...string) (shell.CommandLog, error) {
	argv := make([]string, 0, len(args)+2)
	argv = append(argv, c.script, subcommand)
	argv = append(argv, args...)

	res, err := c.runner.Run(ctx, c.python, argv...)
	log := shell.NewLog(c.python, argv, res)
	metrics.ObserveCommand(subcommand, err)

	fields := []zap.Field{
		zap.String("subcommand", subcommand),
		zap.String("job", job),
		zap.Strings("args", argv),
		zap.Int("exit_code", log.ExitCode),
		zap.Duration("duration", log.Duration),
	}
	if err != nil {
		c.logger.Warn("command failed", append(fields, zap.String("stderr", log.Stderr), zap.Error(err))...)
		return log, &CommandError{Subcommand: subcommand, Job: job, Log: log, Err: err}
	}
	c.logger.Debug("command finished", fields...)
	return log, nil
}
