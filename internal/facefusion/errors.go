package facefusion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/fusion-batch/internal/shell"
)

// ErrUnknownPolicy is returned by ParseErrorPolicy for unsupported names.
var ErrUnknownPolicy = errors.New("unknown error policy")

// CommandError reports a failed invocation of the external tool.
type CommandError struct {
	Subcommand string
	Job        string
	Log        shell.CommandLog
	Err        error
}

func (e *CommandError) Error() string {
	if e.Job == "" {
		return fmt.Sprintf("%s failed (exit=%d): %v", e.Subcommand, e.Log.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed (exit=%d): %v", e.Subcommand, e.Job, e.Log.ExitCode, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ErrorPolicy decides what a batch does when a subcommand fails.
type ErrorPolicy string

const (
	// PolicyIgnore logs the failure and keeps going with the job's remaining subcommands.
	PolicyIgnore ErrorPolicy = "ignore"
	// PolicySkip abandons the failing job and continues with the next one.
	PolicySkip ErrorPolicy = "skip"
	// PolicyFailFast aborts the whole batch.
	PolicyFailFast ErrorPolicy = "fail-fast"
)

// ParseErrorPolicy converts a flag value into an ErrorPolicy; empty means PolicyIgnore.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyIgnore:
		return PolicyIgnore, nil
	case PolicySkip:
		return PolicySkip, nil
	case PolicyFailFast, "failfast":
		return PolicyFailFast, nil
	default:
		return "", fmt.Errorf("%w: %q (want ignore, skip or fail-fast)", ErrUnknownPolicy, s)
	}
}
