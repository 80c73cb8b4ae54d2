package handlers

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kozaktomas/fusion-batch/internal/batch"
	"github.com/kozaktomas/fusion-batch/internal/constants"
	"github.com/kozaktomas/fusion-batch/internal/database"
	"github.com/kozaktomas/fusion-batch/internal/media"
	"github.com/kozaktomas/fusion-batch/internal/presets"
	"github.com/kozaktomas/fusion-batch/internal/video"
	"go.uber.org/zap"
)

// Executor runs the batches taken from the queue.
type Executor struct {
	client   batch.JobClient
	catalog  *presets.Catalog
	ffmpeg   *video.FFmpeg
	settings video.Settings
	history  database.RunWriter
	logger   *zap.Logger
}

// NewExecutor creates an executor. history may be nil when run history is disabled.
func NewExecutor(client batch.JobClient, catalog *presets.Catalog, ff *video.FFmpeg, settings video.Settings, history database.RunWriter, logger *zap.Logger) *Executor {
	if catalog == nil {
		catalog = presets.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		client:   client,
		catalog:  catalog,
		ffmpeg:   ff,
		settings: settings,
		history:  history,
		logger:   logger,
	}
}

// Catalog returns the presets requests are resolved against.
func (e *Executor) Catalog() *presets.Catalog {
	return e.catalog
}

// Settings returns the default encoding settings of pipeline batches.
func (e *Executor) Settings() video.Settings {
	return e.settings
}

// Run executes one batch; it is the JobManager worker function.
func (e *Executor) Run(ctx context.Context, job *BatchJob) {
	info := job.Info()
	logger := e.logger.With(zap.String("batch", info.ID), zap.String("kind", string(info.Kind)))
	job.SendEvent(JobEvent{Type: "started", Message: "Batch started"})

	req := info.Request
	staged, err := stageInputs(&req, info.ID)
	defer removeEmptyDirs(staged, logger)
	if err != nil {
		e.failJob(job, fmt.Sprintf("staging failed: %v", err))
		return
	}
	if len(staged) > 0 {
		job.update(func(i *JobInfo) { i.Request = req })
	}

	resolved, err := req.resolve(e.catalog, e.settings)
	if err != nil {
		e.failJob(job, err.Error())
		return
	}

	observer := batch.Observers{job}
	if e.history != nil {
		observer = append(observer, batch.NewRecorder(ctx, e.history, info.ID, resolved.kind, resolved.preset(), resolved.policy, logger))
	}

	if resolved.kind == batch.KindPipeline {
		e.runPipeline(ctx, job, resolved, observer, logger)
		return
	}

	plan, err := batch.NewPlanner(resolved.catalog).Plan(resolved.request)
	if err != nil {
		e.failJob(job, fmt.Sprintf("planning failed: %v", err))
		return
	}
	job.update(func(i *JobInfo) {
		i.TotalTasks = len(plan.Tasks)
		i.Rejected = plan.Rejected
	})

	summary, err := batch.NewDriver(e.client, resolved.policy, observer, logger).Execute(ctx, plan)
	switch summary.Status {
	case batch.StatusCancelled:
		e.cancelJob(job)
	case batch.StatusFailed:
		message := fmt.Sprintf("%d of %d tasks failed", summary.Failed, summary.Total)
		if err != nil {
			message = err.Error()
		}
		e.failJob(job, message)
	default:
		job.finish(JobStatusCompleted, "")
		job.SendEvent(JobEvent{Type: "completed", Data: summary})
	}
}

func (e *Executor) runPipeline(ctx context.Context, job *BatchJob, r *resolvedRequest, observer batch.Observer, logger *zap.Logger) {
	req := job.Info().Request
	p := video.NewPipeline(e.ffmpeg, e.client, r.catalog, r.settings, observer, logger)
	res, err := p.Run(ctx, video.Options{
		FilesDir:   r.request.FilesDir,
		MainDir:    r.request.MainDir,
		OutputDir:  r.request.OutputDir,
		Preset:     r.request.Preset,
		KeepVideos: req.KeepVideos,
		OnStage: func(stage string) {
			job.update(func(i *JobInfo) { i.Stage = stage })
			job.SendEvent(JobEvent{Type: "pipeline_stage", Message: stage})
		},
	})
	job.update(func(i *JobInfo) { i.Pipeline = &res })

	switch {
	case err == nil:
		job.finish(JobStatusCompleted, "")
		job.SendEvent(JobEvent{Type: "completed", Data: res})
	case errors.Is(err, context.Canceled):
		e.cancelJob(job)
	default:
		e.failJob(job, err.Error())
	}
}

// stageInputs moves the explicitly listed files of req into folders private to
// batch id, so batches waiting in the queue never see each other's inputs,
// and points req at them. The created folders are returned.
func stageInputs(req *BatchRequest, id string) ([]string, error) {
	var dirs []string
	if len(req.Files) > 0 {
		dir := filepath.Join(cmp.Or(req.FilesDir, constants.StagedFilesFolder), id)
		dirs = append(dirs, dir)
		if _, err := media.Stage(req.Files, dir); err != nil {
			return dirs, err
		}
		req.FilesDir = dir
	}
	if len(req.Faces) > 0 {
		dir := filepath.Join(cmp.Or(req.MainDir, constants.StagedMainFolder), id)
		dirs = append(dirs, dir)
		if _, err := media.Stage(req.Faces, dir); err != nil {
			return dirs, err
		}
		req.MainDir = dir
	}
	return dirs, nil
}

// removeEmptyDirs drops staging folders whose files were all consumed.
func removeEmptyDirs(dirs []string, logger *zap.Logger) {
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			logger.Debug("could not remove staging folder", zap.String("path", dir), zap.Error(err))
		}
	}
}

func (e *Executor) cancelJob(job *BatchJob) {
	job.finish(JobStatusCancelled, "")
	job.SendEvent(JobEvent{Type: "cancelled", Message: "Batch was cancelled"})
}

func (e *Executor) failJob(job *BatchJob, message string) {
	e.logger.Warn("batch failed", zap.String("batch", job.Info().ID), zap.String("error", sanitizeForLog(message)))
	job.finish(JobStatusFailed, message)
	job.SendEvent(JobEvent{Type: "job_error", Message: message})
}
