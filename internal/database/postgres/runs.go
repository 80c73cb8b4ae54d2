package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/fusion-batch/internal/database"
)

// RunRepository provides PostgreSQL-backed run history
type RunRepository struct {
	pool *Pool
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(pool *Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// CreateRun inserts a new run
func (r *RunRepository) CreateRun(ctx context.Context, run database.Run) error {
	query := `
		INSERT INTO runs (id, kind, preset, policy, status, total, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query, run.ID, run.Kind, run.Preset, run.Policy, run.Status, run.Total, run.StartedAt)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// AddJob stores the outcome of one job
func (r *RunRepository) AddJob(ctx context.Context, rec database.JobRecord) error {
	query := `
		INSERT INTO run_jobs (run_id, job_name, source, target, output, status, error, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		rec.RunID, rec.JobName, rec.Source, rec.Target, rec.Output,
		rec.Status, rec.Error, rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("add job %s: %w", rec.JobName, err)
	}
	return nil
}

// FinishRun updates the final status and counters of a run
func (r *RunRepository) FinishRun(ctx context.Context, run database.Run) error {
	query := `
		UPDATE runs SET
			status = $2,
			total = $3,
			succeeded = $4,
			failed = $5,
			skipped = $6,
			finished_at = $7
		WHERE id = $1
	`
	finished := time.Now()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	_, err := r.pool.Exec(ctx, query, run.ID, run.Status, run.Total, run.Succeeded, run.Failed, run.Skipped, finished)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

const runColumns = `id, kind, preset, policy, status, total, succeeded, failed, skipped, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (database.Run, error) {
	var run database.Run
	var finished sql.NullTime
	err := row.Scan(
		&run.ID,
		&run.Kind,
		&run.Preset,
		&run.Policy,
		&run.Status,
		&run.Total,
		&run.Succeeded,
		&run.Failed,
		&run.Skipped,
		&run.StartedAt,
		&finished,
	)
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return run, err
}

// GetRun retrieves a run by ID, returns nil if not found
func (r *RunRepository) GetRun(ctx context.Context, id string) (*database.Run, error) {
	run, err := scanRun(r.pool.QueryRow(ctx, "SELECT "+runColumns+" FROM runs WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs first
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]database.Run, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+runColumns+" FROM runs ORDER BY started_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []database.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ListJobs returns the jobs of a run in insertion order
func (r *RunRepository) ListJobs(ctx context.Context, runID string) ([]database.JobRecord, error) {
	query := `
		SELECT id, run_id, job_name, source, target, output, status, error, duration_ms, created_at
		FROM run_jobs
		WHERE run_id = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []database.JobRecord
	for rows.Next() {
		var rec database.JobRecord
		var durationMs int64
		if err := rows.Scan(
			&rec.ID,
			&rec.RunID,
			&rec.JobName,
			&rec.Source,
			&rec.Target,
			&rec.Output,
			&rec.Status,
			&rec.Error,
			&durationMs,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		jobs = append(jobs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Close closes the underlying pool
func (r *RunRepository) Close() error {
	return r.pool.Close()
}
