package database

import (
	"time"
)

// Run statuses stored in the runs table.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// Run is one executed batch.
type Run struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Preset     string     `json:"preset"`
	Policy     string     `json:"policy"`
	Status     string     `json:"status"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Skipped    int        `json:"skipped"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// JobRecord is the outcome of one task of a run.
type JobRecord struct {
	ID        int64         `json:"id"`
	RunID     string        `json:"run_id"`
	JobName   string        `json:"job_name"`
	Source    string        `json:"source,omitempty"`
	Target    string        `json:"target"`
	Output    string        `json:"output"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}
