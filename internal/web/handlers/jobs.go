package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kozaktomas/fusion-batch/internal/batch"
	"github.com/kozaktomas/fusion-batch/internal/constants"
	"github.com/kozaktomas/fusion-batch/internal/metrics"
	"github.com/kozaktomas/fusion-batch/internal/video"
)

// JobStatus represents the status of a queued batch.
type JobStatus string

// JobStatus constants define the lifecycle states of a batch.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ErrQueueFull is returned when no more batches can wait for the worker.
var ErrQueueFull = errors.New("batch queue is full")

// JobInfo is the externally visible state of a batch.
type JobInfo struct {
	ID             string         `json:"id"`
	Kind           batch.Kind     `json:"kind"`
	Status         JobStatus      `json:"status"`
	Stage          string         `json:"stage,omitempty"`
	Progress       int            `json:"progress"`
	TotalTasks     int            `json:"total_tasks"`
	ProcessedTasks int            `json:"processed_tasks"`
	Error          string         `json:"error,omitempty"`
	Rejected       []string       `json:"rejected,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	Request        BatchRequest   `json:"request"`
	Summary        *batch.Summary `json:"summary,omitempty"`
	Pipeline       *video.Result  `json:"pipeline,omitempty"`
}

// BatchJob is one submitted batch.
type BatchJob struct {
	EventBroadcaster

	info JobInfo
}

// Info returns a copy of the batch state.
func (j *BatchJob) Info() JobInfo {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.info
}

// GetStatus returns the current job status (implements SSEJob).
func (j *BatchJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.info.Status
}

func (j *BatchJob) update(fn func(*JobInfo)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(&j.info)
}

// start moves a pending batch to running and stores its cancel function.
// It reports false when the batch was cancelled while it waited.
func (j *BatchJob) start(cancel context.CancelFunc) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.info.Status != JobStatusPending {
		return false
	}
	now := time.Now()
	j.info.Status = JobStatusRunning
	j.info.StartedAt = &now
	j.cancel = cancel
	return true
}

// finish stores the final state of the batch.
func (j *BatchJob) finish(status JobStatus, message string) {
	now := time.Now()
	j.update(func(info *JobInfo) {
		info.Status = status
		info.Error = message
		info.CompletedAt = &now
		if status == JobStatusCompleted {
			info.Progress = 100
		}
	})
}

// Cancel stops a running batch or drops a waiting one. It reports false when
// the batch already finished.
func (j *BatchJob) Cancel() bool {
	j.mu.Lock()
	switch j.info.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		j.mu.Unlock()
		return false
	case JobStatusPending:
		now := time.Now()
		j.info.Status = JobStatusCancelled
		j.info.CompletedAt = &now
	}
	j.mu.Unlock()

	j.EventBroadcaster.Cancel()
	return true
}

// Observe turns driver events into job progress and SSE events.
func (j *BatchJob) Observe(e batch.Event) {
	j.update(func(info *JobInfo) {
		switch e.Type {
		case batch.EventBatchStarted:
			info.TotalTasks = e.Total
			info.ProcessedTasks = 0
		case batch.EventStage:
			info.Stage = e.Stage
		case batch.EventTaskFinished:
			info.ProcessedTasks = e.Index + 1
			if e.Total > 0 {
				info.Progress = info.ProcessedTasks * 100 / e.Total
			}
		case batch.EventBatchFinished:
			info.Summary = e.Summary
		}
	})
	j.SendEvent(JobEvent{Type: string(e.Type), Data: e})
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Batch cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager keeps every submitted batch and feeds them to a single worker
// in submission order.
type JobManager struct {
	jobs  map[string]*BatchJob
	order []string
	queue chan *BatchJob
	mu    sync.RWMutex
}

// NewJobManager creates a job manager holding up to queueSize waiting batches.
func NewJobManager(queueSize int) *JobManager {
	if queueSize <= 0 {
		queueSize = constants.BatchQueueSize
	}
	return &JobManager{
		jobs:  make(map[string]*BatchJob),
		queue: make(chan *BatchJob, queueSize),
	}
}

// CreateJob registers a pending batch.
func (m *JobManager) CreateJob(id string, req BatchRequest) *BatchJob {
	job := &BatchJob{
		info: JobInfo{
			ID:        id,
			Kind:      batch.Kind(req.Kind),
			Status:    JobStatusPending,
			CreatedAt: time.Now(),
			Request:   req,
		},
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.order = append(m.order, id)
	m.mu.Unlock()

	return job
}

// Enqueue hands a batch to the worker.
func (m *JobManager) Enqueue(job *BatchJob) error {
	select {
	case m.queue <- job:
		metrics.SetQueued(len(m.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *BatchJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// ListJobs returns all jobs in submission order.
func (m *JobManager) ListJobs() []*BatchJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*BatchJob, 0, len(m.order))
	for _, id := range m.order {
		jobs = append(jobs, m.jobs[id])
	}
	return jobs
}

// Run is the worker loop: it executes queued batches one at a time until ctx
// is done. Batches cancelled while waiting are dropped.
func (m *JobManager) Run(ctx context.Context, run func(context.Context, *BatchJob)) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.queue:
			metrics.SetQueued(len(m.queue))
			jobCtx, cancel := context.WithCancel(ctx)
			if job.start(cancel) {
				run(jobCtx, job)
			}
			cancel()
		}
	}
}
