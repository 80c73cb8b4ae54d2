// Package shell runs external commands and records what they did.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/alessio/shellescape"
)

// killGrace bounds how long Run waits for the output pipes to close once a
// cancelled command's process group was killed.
const killGrace = 5 * time.Second

// Result is the outcome of one process execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string        `json:"command"`
	Args     []string      `json:"args"`
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Duration time.Duration `json:"duration"`
}

// String renders the command line for logs.
func (l CommandLog) String() string {
	return shellescape.QuoteCommand(append([]string{l.Command}, l.Args...))
}

// NewLog builds a CommandLog from an invocation and its result.
func NewLog(name string, args []string, res Result) CommandLog {
	return CommandLog{
		Command:  name,
		Args:     append([]string(nil), args...),
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Duration: res.Duration,
	}
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct {
	// Dir is the working directory of every command (empty = current).
	Dir string
	// Env is appended to the inherited environment.
	Env []string
	// Prefix is a shell snippet executed before the command, e.g. a conda activation.
	// When set, commands run through "bash -c".
	Prefix string
	// Passthrough streams output to Stdout/Stderr instead of capturing it.
	Passthrough bool
	Stdout      io.Writer
	Stderr      io.Writer
}

// Run executes one command and captures stdout/stderr and exit code.
// A non-zero exit status is returned as an error together with the populated Result.
// Cancelling ctx kills the whole process group, including processes the
// command started itself (ffmpeg under FaceFusion, the command after a prefix).
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := r.command(ctx, name, args)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = killGrace
	if r.Dir != "" {
		cmd.Dir = r.Dir
	}
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	if r.Passthrough {
		cmd.Stdout = writerOr(r.Stdout, os.Stdout)
		cmd.Stderr = writerOr(r.Stderr, os.Stderr)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	start := time.Now()
	err := cmd.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

func (r *ExecRunner) command(ctx context.Context, name string, args []string) *exec.Cmd {
	if strings.TrimSpace(r.Prefix) == "" {
		return exec.CommandContext(ctx, name, args...)
	}
	return exec.CommandContext(ctx, "bash", "-c", WrapWithPrefix(r.Prefix, name, args...))
}

// WrapWithPrefix builds a shell script that runs prefix and then the quoted command.
func WrapWithPrefix(prefix, name string, args ...string) string {
	quoted := shellescape.QuoteCommand(append([]string{name}, args...))
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return quoted
	}
	return prefix + " && " + quoted
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}
