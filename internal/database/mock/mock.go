// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/kozaktomas/fusion-batch/internal/database"
)

// MockRunStore is an in-memory implementation of database.Store
type MockRunStore struct {
	mu     sync.RWMutex
	runs   map[string]*database.Run
	jobs   map[string][]database.JobRecord
	nextID int64
	closed bool

	// Error injection
	CreateRunError error
	AddJobError    error
	FinishRunError error
	GetRunError    error
	ListRunsError  error
	ListJobsError  error
}

// NewMockRunStore creates a new mock run store
func NewMockRunStore() *MockRunStore {
	return &MockRunStore{
		runs: make(map[string]*database.Run),
		jobs: make(map[string][]database.JobRecord),
	}
}

// CreateRun stores a copy of the run
func (m *MockRunStore) CreateRun(ctx context.Context, run database.Run) error {
	if m.CreateRunError != nil {
		return m.CreateRunError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = &run
	return nil
}

// AddJob appends a job record to its run
func (m *MockRunStore) AddJob(ctx context.Context, rec database.JobRecord) error {
	if m.AddJobError != nil {
		return m.AddJobError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	m.jobs[rec.RunID] = append(m.jobs[rec.RunID], rec)
	return nil
}

// FinishRun updates the status and counters of a stored run
func (m *MockRunStore) FinishRun(ctx context.Context, run database.Run) error {
	if m.FinishRunError != nil {
		return m.FinishRunError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.runs[run.ID]
	if !ok {
		return nil
	}
	stored.Status = run.Status
	stored.Total = run.Total
	stored.Succeeded = run.Succeeded
	stored.Failed = run.Failed
	stored.Skipped = run.Skipped
	stored.FinishedAt = run.FinishedAt
	return nil
}

// GetRun returns a copy of the run or nil
func (m *MockRunStore) GetRun(ctx context.Context, id string) (*database.Run, error) {
	if m.GetRunError != nil {
		return nil, m.GetRunError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	copied := *run
	return &copied, nil
}

// ListRuns returns runs newest first
func (m *MockRunStore) ListRuns(ctx context.Context, limit int) ([]database.Run, error) {
	if m.ListRunsError != nil {
		return nil, m.ListRunsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]database.Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// ListJobs returns the recorded jobs of a run
func (m *MockRunStore) ListJobs(ctx context.Context, runID string) ([]database.JobRecord, error) {
	if m.ListJobsError != nil {
		return nil, m.ListJobsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]database.JobRecord(nil), m.jobs[runID]...), nil
}

// Close marks the store closed
func (m *MockRunStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called
func (m *MockRunStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

var _ database.Store = (*MockRunStore)(nil)
