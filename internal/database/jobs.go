package database

import (
	"context"
	"fmt"
	"time"

	"careerbook/internal/models"
)

// CreateJob persists a durable job. The (job_type, booking_id) unique index
// makes scheduling idempotent: a second reminder for the same booking is
// reported as ErrDuplicateJob and nothing is written.
func (db *DB) CreateJob(ctx context.Context, job *models.Job) error {
	query := `INSERT OR IGNORE INTO jobs (job_type, booking_id, payload, status, fire_at, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	if job.Status == "" {
		job.Status = models.JobPending
	}
	result, err := db.ExecContext(ctx, query,
		job.JobType,
		job.BookingID,
		job.Payload,
		job.Status,
		job.FireAt,
		job.RetryCount,
		job.LastError,
		now,
		job.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s booking %d", ErrDuplicateJob, job.JobType, job.BookingID)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	job.ID = id
	job.CreatedAt = now

	return nil
}

// GetDueJobs returns jobs whose fire time has arrived, including retries
// whose backoff delay has elapsed. Used both by the running worker and by
// the recovery scan after a restart.
func (db *DB) GetDueJobs(ctx context.Context, now time.Time, limit int) ([]models.Job, error) {
	query := `SELECT id, job_type, booking_id, payload, status, fire_at, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM jobs
              WHERE status IN ('pending', 'retry') AND fire_at <= ?
                AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY fire_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, now, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var j models.Job
		err := rows.Scan(
			&j.ID, &j.JobType, &j.BookingID, &j.Payload, &j.Status, &j.FireAt,
			&j.RetryCount, &j.LastError, &j.CreatedAt, &j.ProcessedAt, &j.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ClaimJob moves a job to 'sending' iff nobody else has. The conditional
// update is the dispatch dedup point: losing the race returns ErrJobClaimed
// and the loser must not send.
func (db *DB) ClaimJob(ctx context.Context, id int64) error {
	query := `UPDATE jobs SET status = ? WHERE id = ? AND status IN ('pending', 'retry')`
	result, err := db.ExecContext(ctx, query, models.JobSending, id)
	if err != nil {
		return fmt.Errorf("failed to claim job: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrJobClaimed
	}
	return nil
}

// UpdateJobStatus records the outcome of a dispatch attempt.
func (db *DB) UpdateJobStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now()

	switch status {
	case models.JobRetry:
		query = `UPDATE jobs SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	case models.JobCompleted, models.JobFailed:
		query = `UPDATE jobs SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, &now, id}
	default:
		query = `UPDATE jobs SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	}

	_, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

// RecoverStuckJobs resets jobs stuck in 'sending' (process died mid-send)
// back to pending so the next scan retries them.
func (db *DB) RecoverStuckJobs(ctx context.Context) (int64, error) {
	query := `UPDATE jobs SET status = ? WHERE status = ?`
	result, err := db.ExecContext(ctx, query, models.JobPending, models.JobSending)
	if err != nil {
		return 0, fmt.Errorf("failed to recover stuck jobs: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func (db *DB) GetFailedJobs(ctx context.Context) ([]models.Job, error) {
	query := `SELECT id, job_type, booking_id, payload, status, fire_at, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM jobs WHERE status = 'failed' ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var j models.Job
		err := rows.Scan(
			&j.ID, &j.JobType, &j.BookingID, &j.Payload, &j.Status, &j.FireAt,
			&j.RetryCount, &j.LastError, &j.CreatedAt, &j.ProcessedAt, &j.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
