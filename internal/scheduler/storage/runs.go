package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/reminder-be/internal/scheduler/domain"
)

// LatestRun returns the job's most recently scheduled run, or nil when the
// job has never been materialized.
func (s *Storage) LatestRun(ctx context.Context, jobID string) (*domain.JobRun, error) {
	query := `
		SELECT
			id, job_id, period_key, scheduled_at, sent_at, status,
			created_at, updated_at
		FROM job_runs
		WHERE job_id = $1
		ORDER BY scheduled_at DESC
		LIMIT 1
	`

	var run domain.JobRun
	err := s.db.GetContext(ctx, &run, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return &run, nil
}

// InsertRun persists a run unless one already exists for the same
// (job, period_key). Returns false when the unique constraint rejected the
// insert; the race loser treats that as success-by-idempotence.
func (s *Storage) InsertRun(ctx context.Context, run *domain.JobRun) (bool, error) {
	return insertRunTx(ctx, s.db, run)
}

func insertRunTx(ctx context.Context, q sqlx.ExtContext, run *domain.JobRun) (bool, error) {
	query := `
		INSERT INTO job_runs (
			id, job_id, period_key, scheduled_at, sent_at, status,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8
		)
		ON CONFLICT (job_id, period_key) DO NOTHING
	`

	res, err := q.ExecContext(
		ctx,
		query,
		run.ID,
		run.JobID,
		run.PeriodKey,
		run.ScheduledAt,
		run.SentAt,
		run.Status,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert run: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Status domain.RunStatus
	From   *time.Time
	To     *time.Time
}

// ListRuns returns runs belonging to the user's jobs, most recent
// scheduled first.
func (s *Storage) ListRuns(ctx context.Context, userID string, filter RunFilter) ([]domain.JobRun, error) {
	query := `
		SELECT
			r.id, r.job_id, r.period_key, r.scheduled_at, r.sent_at, r.status,
			r.created_at, r.updated_at
		FROM job_runs r
		JOIN jobs j ON j.id = r.job_id
		WHERE j.user_id = $1
	`
	args := []interface{}{userID}
	argIdx := 2

	if filter.Status != "" {
		query += fmt.Sprintf(" AND r.status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.From != nil {
		query += fmt.Sprintf(" AND r.scheduled_at >= $%d", argIdx)
		args = append(args, *filter.From)
		argIdx++
	}

	if filter.To != nil {
		query += fmt.Sprintf(" AND r.scheduled_at <= $%d", argIdx)
		args = append(args, *filter.To)
		argIdx++
	}

	query += " ORDER BY r.scheduled_at DESC"

	var runs []domain.JobRun
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

// GetRunOwned resolves a run through an ownership join. A missing run and
// a run owned by someone else both come back as domain.ErrRunNotFound.
func (s *Storage) GetRunOwned(ctx context.Context, runID, userID string) (*domain.JobRun, error) {
	query := `
		SELECT
			r.id, r.job_id, r.period_key, r.scheduled_at, r.sent_at, r.status,
			r.created_at, r.updated_at
		FROM job_runs r
		JOIN jobs j ON j.id = r.job_id
		WHERE r.id = $1 AND j.user_id = $2
	`

	var run domain.JobRun
	err := s.db.GetContext(ctx, &run, query, runID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &run, nil
}

// DueRuns selects pending runs whose effective due time (scheduled minus
// lead) has passed, joined with their job and an eligible recipient.
// Oldest scheduled first, capped at limit.
func (s *Storage) DueRuns(ctx context.Context, now time.Time, limit int) ([]domain.DueRun, error) {
	query := `
		SELECT
			r.id, r.job_id, r.period_key, r.scheduled_at, r.sent_at, r.status,
			r.created_at, r.updated_at,
			j.id, j.user_id, j.name, j.description, j.rule,
			j.first_run_at, j.lead_minutes, j.channel, j.status,
			j.created_at, j.updated_at,
			u.user_id, u.push_target, u.notify_enabled
		FROM job_runs r
		JOIN jobs j ON j.id = r.job_id
		JOIN recipients u ON u.user_id = j.user_id
		WHERE j.status = $1
		  AND j.channel = $2
		  AND r.status = $3
		  AND u.notify_enabled = TRUE
		  AND u.push_target IS NOT NULL
		  AND r.scheduled_at - (j.lead_minutes * INTERVAL '1 minute') <= $4
		ORDER BY r.scheduled_at ASC
		LIMIT $5
	`

	rows, err := s.db.QueryContext(
		ctx,
		query,
		domain.JobStatusActive,
		domain.ChannelPush,
		domain.RunStatusPending,
		now,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan due runs: %w", err)
	}
	defer rows.Close()

	var due []domain.DueRun
	for rows.Next() {
		var d domain.DueRun
		err := rows.Scan(
			&d.Run.ID, &d.Run.JobID, &d.Run.PeriodKey, &d.Run.ScheduledAt,
			&d.Run.SentAt, &d.Run.Status, &d.Run.CreatedAt, &d.Run.UpdatedAt,
			&d.Job.ID, &d.Job.UserID, &d.Job.Name, &d.Job.Description, &d.Job.Rule,
			&d.Job.FirstRunAt, &d.Job.LeadMinutes, &d.Job.Channel, &d.Job.Status,
			&d.Job.CreatedAt, &d.Job.UpdatedAt,
			&d.Recipient.UserID, &d.Recipient.PushTarget, &d.Recipient.NotifyEnabled,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due run row: %w", err)
		}
		due = append(due, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due runs: %w", err)
	}

	return due, nil
}

// MarkRunSent transitions a run pending -> sent and appends the Reminder
// audit record in one transaction. When the conditional update touches
// zero rows the run was no longer pending (another dispatcher won) and
// domain.ErrRunNotPending is returned with nothing written.
func (s *Storage) MarkRunSent(ctx context.Context, runID string, sentAt time.Time, payload []byte) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	update := `
		UPDATE job_runs
		SET status = $1,
		    sent_at = $2,
		    updated_at = $2
		WHERE id = $3 AND status = $4
	`

	res, err := tx.ExecContext(ctx, update, domain.RunStatusSent, sentAt, runID, domain.RunStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark run sent: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		s.logger.Warn("Run no longer pending, skipping sent transition",
			slog.String("run_id", runID),
		)
		return domain.ErrRunNotPending
	}

	insert := `
		INSERT INTO reminders (id, job_run_id, sent_at, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := tx.ExecContext(ctx, insert, uuid.New().String(), runID, sentAt, payload, sentAt); err != nil {
		return fmt.Errorf("failed to insert reminder: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sent transition: %w", err)
	}

	return nil
}
