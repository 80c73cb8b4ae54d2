package batch

import (
	"context"
	"strings"
	"time"

	"github.com/kozaktomas/fusion-batch/internal/database"
	"github.com/kozaktomas/fusion-batch/internal/facefusion"
	"go.uber.org/zap"
)

// Recorder is an Observer persisting a batch and its task outcomes.
// Write failures are logged and never affect the batch.
type Recorder struct {
	ctx    context.Context
	writer database.RunWriter
	logger *zap.Logger
	run    database.Run
}

// NewRecorder creates a recorder writing the run with the given ID. The task
// total is taken from the batch_started event.
func NewRecorder(ctx context.Context, writer database.RunWriter, id string, kind Kind, preset string, policy facefusion.ErrorPolicy, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		ctx:    context.WithoutCancel(ctx),
		writer: writer,
		logger: logger.Named("history"),
		run: database.Run{
			ID:     id,
			Kind:   string(kind),
			Preset: preset,
			Policy: string(policy),
			Status: database.RunStatusRunning,
		},
	}
}

// Observe implements Observer.
func (r *Recorder) Observe(e Event) {
	switch e.Type {
	case EventBatchStarted:
		r.run.StartedAt = e.Time
		r.run.Total = e.Total
		if err := r.writer.CreateRun(r.ctx, r.run); err != nil {
			r.logger.Warn("could not record run", zap.String("run", r.run.ID), zap.Error(err))
		}
	case EventTaskFinished:
		if e.Task == nil {
			return
		}
		rec := database.JobRecord{
			RunID:    r.run.ID,
			JobName:  e.Task.Job,
			Source:   strings.Join(e.Task.Step.Sources, " "),
			Target:   e.Task.Step.Target,
			Output:   e.Task.Step.Output,
			Status:   string(e.Status),
			Error:    e.Error,
			Duration: e.Elapsed,
		}
		if err := r.writer.AddJob(r.ctx, rec); err != nil {
			r.logger.Warn("could not record job", zap.String("job", rec.JobName), zap.Error(err))
		}
	case EventBatchFinished:
		if e.Summary == nil {
			return
		}
		finished := e.Time
		if finished.IsZero() {
			finished = time.Now()
		}
		r.run.Status = string(e.Summary.Status)
		r.run.Succeeded = e.Summary.Succeeded
		r.run.Failed = e.Summary.Failed
		r.run.Skipped = e.Summary.Skipped
		r.run.FinishedAt = &finished
		if err := r.writer.FinishRun(r.ctx, r.run); err != nil {
			r.logger.Warn("could not finish run", zap.String("run", r.run.ID), zap.Error(err))
		}
	}
}
