// Package storage is the Postgres job store. All state transitions are
// conditional at the SQL level: inserts use ON CONFLICT DO NOTHING against
// the schema's unique constraints and updates carry a WHERE clause on the
// expected current status, so concurrent scheduler processes resolve races
// in the database rather than in application locks.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/reminder-be/internal/scheduler/domain"
	"github.com/cuongbtq/reminder-be/shared/postgresql"
)

type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewStorage(pg *postgresql.Client, logger *slog.Logger) *Storage {
	return &Storage{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// CreateJob persists a job and, when firstRun is non-nil, its first run in
// the same transaction.
func (s *Storage) CreateJob(ctx context.Context, job *domain.Job, firstRun *domain.JobRun) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO jobs (
			id, user_id, name, description, rule,
			first_run_at, lead_minutes, channel, status,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11
		)
	`

	_, err = tx.ExecContext(
		ctx,
		query,
		job.ID,
		job.UserID,
		job.Name,
		job.Description,
		job.Rule,
		job.FirstRunAt,
		job.LeadMinutes,
		job.Channel,
		job.Status,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	if firstRun != nil {
		if _, err := insertRunTx(ctx, tx, firstRun); err != nil {
			return fmt.Errorf("failed to create first run: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job creation: %w", err)
	}

	return nil
}

// ListJobs returns all jobs owned by the user, newest first.
func (s *Storage) ListJobs(ctx context.Context, userID string) ([]domain.Job, error) {
	query := `
		SELECT
			id, user_id, name, description, rule,
			first_run_at, lead_minutes, channel, status,
			created_at, updated_at
		FROM jobs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// ListActiveJobs returns every job eligible for materialization: active
// status on a supported channel. Ordered by creation for stable cycles.
func (s *Storage) ListActiveJobs(ctx context.Context) ([]domain.Job, error) {
	query := `
		SELECT
			id, user_id, name, description, rule,
			first_run_at, lead_minutes, channel, status,
			created_at, updated_at
		FROM jobs
		WHERE status = $1 AND channel = $2
		ORDER BY created_at ASC, id ASC
	`

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, domain.JobStatusActive, domain.ChannelPush); err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}

	return jobs, nil
}

// UpsertRecipient creates or updates a recipient's push eligibility.
func (s *Storage) UpsertRecipient(ctx context.Context, rec *domain.Recipient) error {
	query := `
		INSERT INTO recipients (user_id, push_target, notify_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			push_target = EXCLUDED.push_target,
			notify_enabled = EXCLUDED.notify_enabled,
			updated_at = NOW()
	`

	if _, err := s.db.ExecContext(ctx, query, rec.UserID, rec.PushTarget, rec.NotifyEnabled); err != nil {
		return fmt.Errorf("failed to upsert recipient: %w", err)
	}

	return nil
}

// GetRecipient returns a user's recipient record, or nil when the user
// never registered one.
func (s *Storage) GetRecipient(ctx context.Context, userID string) (*domain.Recipient, error) {
	query := `
		SELECT user_id, push_target, notify_enabled
		FROM recipients
		WHERE user_id = $1
	`

	var rec domain.Recipient
	if err := s.db.GetContext(ctx, &rec, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}

	return &rec, nil
}
