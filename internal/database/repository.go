package database

import (
	"context"
)

// RunWriter records batch runs and their jobs
type RunWriter interface {
	// CreateRun inserts a run in the running state
	CreateRun(ctx context.Context, run Run) error
	// AddJob appends the outcome of one job to a run
	AddJob(ctx context.Context, rec JobRecord) error
	// FinishRun stores the final status and counters of a run
	FinishRun(ctx context.Context, run Run) error
}

// RunReader provides read-only access to run history
type RunReader interface {
	// GetRun retrieves a run by ID, returns nil if not found
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns the most recent runs first
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	// ListJobs returns the jobs of a run in execution order
	ListJobs(ctx context.Context, runID string) ([]JobRecord, error)
}

// Store is a history backend.
type Store interface {
	RunWriter
	RunReader
	Close() error
}
