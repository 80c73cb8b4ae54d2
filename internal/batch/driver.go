package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kozaktomas/fusion-batch/internal/facefusion"
	"github.com/kozaktomas/fusion-batch/internal/metrics"
	"github.com/kozaktomas/fusion-batch/internal/shell"
	"go.uber.org/zap"
)

// ErrDependencyFailed marks a task skipped because the job it reads from failed.
var ErrDependencyFailed = errors.New("previous job did not succeed")

// JobClient is the subset of the FaceFusion client the driver needs.
type JobClient interface {
	JobCreate(ctx context.Context, job string) (shell.CommandLog, error)
	JobAddStep(ctx context.Context, job string, step facefusion.Step) (shell.CommandLog, error)
	JobSubmit(ctx context.Context, job string) (shell.CommandLog, error)
	JobRun(ctx context.Context, job string) (shell.CommandLog, error)
	JobDelete(ctx context.Context, job string) (shell.CommandLog, error)
	JobDeleteAll(ctx context.Context) (shell.CommandLog, error)
}

// Driver executes plans strictly sequentially, one external process at a time.
type Driver struct {
	client   JobClient
	policy   facefusion.ErrorPolicy
	observer Observer
	logger   *zap.Logger
}

// NewDriver creates a driver. A nil observer or logger is allowed.
func NewDriver(client JobClient, policy facefusion.ErrorPolicy, observer Observer, logger *zap.Logger) *Driver {
	if policy == "" {
		policy = facefusion.PolicyIgnore
	}
	if observer == nil {
		observer = Observers(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		client:   client,
		policy:   policy,
		observer: observer,
		logger:   logger.Named("batch"),
	}
}

// Policy returns the driver's error policy.
func (d *Driver) Policy() facefusion.ErrorPolicy {
	return d.policy
}

// taskResult is the outcome of one task lifecycle.
type taskResult struct {
	status TaskStatus
	err    error
}

type stage struct {
	name string
	call func(ctx context.Context) (shell.CommandLog, error)
}

// Execute runs every task of the plan in order. The returned error is the
// context error on cancellation, the first task error under PolicyFailFast,
// and nil otherwise; failed tasks are counted in the summary. The final
// job-delete-all sweep runs when the plan asks for it even after an abort.
func (d *Driver) Execute(ctx context.Context, plan *Plan) (Summary, error) {
	start := time.Now()
	summary := Summary{Total: len(plan.Tasks)}
	d.emit(Event{Type: EventBatchStarted, Kind: plan.Kind, Total: summary.Total})
	d.logger.Info("batch started",
		zap.String("kind", string(plan.Kind)),
		zap.String("preset", plan.Preset),
		zap.Int("tasks", summary.Total),
		zap.String("policy", string(d.policy)))

	refs := referenceCounts(plan.Tasks)
	groups := make(map[string]bool)
	for _, t := range plan.Tasks {
		if t.Group != "" {
			groups[t.Group] = true
		}
	}
	groupFailed := make(map[string]bool)
	succeeded := make(map[string]bool, len(plan.Tasks))

	var runErr error
	processed := 0
	for i := range plan.Tasks {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		task := &plan.Tasks[i]

		var res taskResult
		if task.After != "" && !succeeded[task.After] {
			res = taskResult{status: TaskSkipped, err: fmt.Errorf("%s: %w", task.After, ErrDependencyFailed)}
			d.emit(Event{Type: EventTaskFinished, Kind: plan.Kind, Index: i, Total: summary.Total, Task: task, Status: res.status, Error: res.err.Error()})
		} else {
			res = d.runTask(ctx, plan.Kind, i, summary.Total, task)
		}
		processed++

		switch res.status {
		case TaskSucceeded:
			summary.Succeeded++
			succeeded[task.Job] = true
		case TaskFailed:
			summary.Failed++
		case TaskSkipped:
			summary.Skipped++
		}
		if res.status != TaskSkipped {
			metrics.ObserveTask(string(plan.Kind), res.err)
		}
		if res.status != TaskSucceeded && task.Group != "" {
			groupFailed[task.Group] = true
		}

		// Cancellation mid-task leaves the group incomplete: keep its source.
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
		summary.Deleted += d.release(plan, task, refs, groups, groupFailed, i)
		if res.status == TaskFailed && d.policy == facefusion.PolicyFailFast {
			runErr = res.err
			break
		}
	}
	summary.Skipped += len(plan.Tasks) - processed

	if plan.Sweep {
		d.sweep(context.WithoutCancel(ctx), plan.Kind)
	}

	summary.Duration = time.Since(start)
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		summary.Status = StatusCancelled
	case runErr != nil || summary.Failed > 0:
		summary.Status = StatusFailed
	default:
		summary.Status = StatusCompleted
	}
	metrics.ObserveBatch(string(plan.Kind), string(summary.Status))

	d.logger.Info("batch finished",
		zap.String("kind", string(plan.Kind)),
		zap.String("status", string(summary.Status)),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("duration", summary.Duration))
	final := summary
	d.emit(Event{Type: EventBatchFinished, Kind: plan.Kind, Total: summary.Total, Summary: &final, Elapsed: summary.Duration})
	return summary, runErr
}

// runTask drives one job through its subcommands. Under PolicyIgnore the
// remaining subcommands still run after a failure; otherwise the task stops
// at the first failure. A per-job delete always runs once the job was created.
func (d *Driver) runTask(ctx context.Context, kind Kind, index, total int, task *Task) taskResult {
	start := time.Now()
	d.emit(Event{Type: EventTaskStarted, Kind: kind, Index: index, Total: total, Task: task})

	var firstErr error
	if dir := filepath.Dir(task.Step.Output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			firstErr = fmt.Errorf("creating output folder %s: %w", dir, err)
		}
	}

	stages := []stage{
		{facefusion.SubcommandJobCreate, func(ctx context.Context) (shell.CommandLog, error) {
			return d.client.JobCreate(ctx, task.Job)
		}},
		{facefusion.SubcommandJobAddStep, func(ctx context.Context) (shell.CommandLog, error) {
			return d.client.JobAddStep(ctx, task.Job, task.Step)
		}},
		{facefusion.SubcommandJobSubmit, func(ctx context.Context) (shell.CommandLog, error) {
			return d.client.JobSubmit(ctx, task.Job)
		}},
		{facefusion.SubcommandJobRun, func(ctx context.Context) (shell.CommandLog, error) {
			return d.client.JobRun(ctx, task.Job)
		}},
	}

	created := false
	if firstErr == nil {
		for _, s := range stages {
			if err := ctx.Err(); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				break
			}
			log, err := s.call(ctx)
			if s.name == facefusion.SubcommandJobCreate {
				created = true
			}
			ev := Event{Type: EventStage, Kind: kind, Index: index, Total: total, Task: task, Stage: s.name, Log: &log}
			if err != nil {
				ev.Error = err.Error()
			}
			d.emit(ev)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				if d.policy != facefusion.PolicyIgnore {
					break
				}
			}
		}
	}

	if created && task.Delete == DeletePerJob {
		log, err := d.client.JobDelete(context.WithoutCancel(ctx), task.Job)
		ev := Event{Type: EventStage, Kind: kind, Index: index, Total: total, Task: task, Stage: facefusion.SubcommandJobDelete, Log: &log}
		if err != nil {
			ev.Error = err.Error()
			d.logger.Warn("could not delete job", zap.String("job", task.Job), zap.Error(err))
		}
		d.emit(ev)
	}

	res := taskResult{status: TaskSucceeded, err: firstErr}
	if firstErr != nil {
		res.status = TaskFailed
		d.logger.Warn("task failed", zap.String("job", task.Job), zap.Error(firstErr))
	}
	ev := Event{Type: EventTaskFinished, Kind: kind, Index: index, Total: total, Task: task, Status: res.status, Elapsed: time.Since(start)}
	if firstErr != nil {
		ev.Error = firstErr.Error()
	}
	d.emit(ev)
	return res
}

// release drops the task's references and deletes every group input that no
// remaining task refers to. A group input that is also the source of a later
// task is kept until that task ran. Under PolicyIgnore the input goes even
// when a task of the group failed, like a plain loop ignoring exit codes would.
func (d *Driver) release(plan *Plan, task *Task, refs map[string]int, groups, groupFailed map[string]bool, index int) int {
	deleted := 0
	for _, path := range taskPaths(task) {
		refs[path]--
		if !plan.DeleteSources || !groups[path] || refs[path] > 0 {
			continue
		}
		if groupFailed[path] && d.policy != facefusion.PolicyIgnore {
			d.logger.Info("keeping source of failed group", zap.String("path", path))
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			d.logger.Warn("could not delete source", zap.String("path", path), zap.Error(err))
			continue
		}
		d.emit(Event{Type: EventSourceDeleted, Kind: plan.Kind, Index: index, Total: len(plan.Tasks), Path: path})
		deleted++
	}
	return deleted
}

func (d *Driver) sweep(ctx context.Context, kind Kind) {
	log, err := d.client.JobDeleteAll(ctx)
	ev := Event{Type: EventSweep, Kind: kind, Stage: facefusion.SubcommandJobDeleteAll, Log: &log}
	if err != nil {
		ev.Error = err.Error()
		d.logger.Warn("could not delete all jobs", zap.Error(err))
	}
	d.emit(ev)
}

func (d *Driver) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	d.observer.Observe(e)
}

// taskPaths lists the distinct input paths a task reads or owns.
func taskPaths(task *Task) []string {
	paths := make([]string, 0, len(task.Step.Sources)+2)
	seen := make(map[string]bool, cap(paths))
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	add(task.Group)
	add(task.Step.Target)
	for _, s := range task.Step.Sources {
		add(s)
	}
	return paths
}

func referenceCounts(tasks []Task) map[string]int {
	refs := make(map[string]int)
	for i := range tasks {
		for _, p := range taskPaths(&tasks[i]) {
			refs[p]++
		}
	}
	return refs
}
