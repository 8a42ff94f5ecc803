// ABOUTME: Database operations for the job_state table
// ABOUTME: Tracks when background jobs such as the reminder sweep last ran and how they ended
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Job states.
const (
	JobRunning = "running"
	JobIdle    = "idle"
	JobError   = "error"
)

// JobState is the last known outcome of a background job.
type JobState struct {
	Job          string
	LastRunAt    *time.Time
	Status       string
	ErrorMessage *string
	LastSummary  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GetJobState retrieves the state of a job, or nil when it never ran.
func GetJobState(ctx context.Context, q Querier, job string) (*JobState, error) {
	row := q.QueryRowContext(ctx, `
		SELECT job, last_run_at, status, error_message, last_summary, created_at, updated_at
		FROM job_state
		WHERE job = ?
	`, job)

	state, err := scanJobState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job state: %w", err)
	}

	return state, nil
}

// MarkJobRunning records that a job started.
func MarkJobRunning(ctx context.Context, q Querier, job string, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO job_state (job, status, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(job) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at
	`, job, JobRunning, at, at)

	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	return nil
}

// MarkJobFinished stores the outcome of a run. A nil errMsg means success.
func MarkJobFinished(ctx context.Context, q Querier, job, summary string, errMsg *string, at time.Time) error {
	status := JobIdle
	var errorMsgVal sql.NullString
	if errMsg != nil {
		status = JobError
		errorMsgVal = sql.NullString{String: *errMsg, Valid: true}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO job_state (job, last_run_at, status, error_message, last_summary, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			status = excluded.status,
			error_message = excluded.error_message,
			last_summary = excluded.last_summary,
			updated_at = excluded.updated_at
	`, job, at, status, errorMsgVal, summary, at, at)

	if err != nil {
		return fmt.Errorf("failed to record job result: %w", err)
	}

	return nil
}

// ListJobStates retrieves the state of every job that has run.
func ListJobStates(ctx context.Context, q Querier) ([]JobState, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT job, last_run_at, status, error_message, last_summary, created_at, updated_at
		FROM job_state
		ORDER BY job
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query job states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []JobState
	for rows.Next() {
		state, err := scanJobState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job state: %w", err)
		}
		states = append(states, *state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job states: %w", err)
	}

	return states, nil
}

func scanJobState(row rowScanner) (*JobState, error) {
	var state JobState
	var lastRunAt sql.NullTime
	var errorMessage, summary sql.NullString

	err := row.Scan(
		&state.Job,
		&lastRunAt,
		&state.Status,
		&errorMessage,
		&summary,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastRunAt.Valid {
		state.LastRunAt = &lastRunAt.Time
	}
	if errorMessage.Valid {
		state.ErrorMessage = &errorMessage.String
	}
	state.LastSummary = summary.String

	return &state, nil
}
