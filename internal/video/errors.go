package video

import (
	"fmt"

	"github.com/kozaktomas/fusion-batch/internal/shell"
)

// Pipeline stages.
const (
	StageStitch  = "stitch"
	StageSwap    = "swap"
	StageExtract = "extract"
	StageCleanup = "cleanup"
)

// StageError is a stage-aware error with optional command context.
type StageError struct {
	Stage   string
	Message string
	Log     *shell.CommandLog
	Err     error
}

func (e *StageError) Error() string {
	if e.Log == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s (cmd=%s exit=%d)", e.Stage, e.Message, e.Log.Command, e.Log.ExitCode)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *StageError) Unwrap() error {
	return e.Err
}
