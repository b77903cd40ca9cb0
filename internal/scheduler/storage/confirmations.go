package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/reminder-be/internal/scheduler/domain"
)

// ApplyConfirmation records a confirmation and applies its run transition
// exactly once per (run, idempotency_key). The unique constraint decides
// the winner: a replay gets the previously stored confirmation back and
// the run's status is left untouched.
func (s *Storage) ApplyConfirmation(ctx context.Context, conf *domain.Confirmation) (*domain.Confirmation, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO confirmations (
			id, job_run_id, action, confirmed_at, idempotency_key, payload, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		ON CONFLICT (job_run_id, idempotency_key) DO NOTHING
	`

	res, err := tx.ExecContext(
		ctx,
		insert,
		conf.ID,
		conf.JobRunID,
		conf.Action,
		conf.ConfirmedAt,
		conf.IdempotencyKey,
		conf.Payload,
		conf.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert confirmation: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		// Replay: return the stored row unchanged, no transition.
		existing, err := s.getConfirmation(ctx, conf.JobRunID, conf.IdempotencyKey)
		if err != nil {
			return nil, err
		}

		s.logger.Info("Confirmation replay, returning existing record",
			slog.String("run_id", conf.JobRunID),
			slog.String("idempotency_key", conf.IdempotencyKey),
		)

		return existing, nil
	}

	update := `
		UPDATE job_runs
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	if _, err := tx.ExecContext(ctx, update, conf.Action.RunStatus(), conf.ConfirmedAt, conf.JobRunID); err != nil {
		return nil, fmt.Errorf("failed to apply confirmation transition: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit confirmation: %w", err)
	}

	return conf, nil
}

func (s *Storage) getConfirmation(ctx context.Context, runID, idempotencyKey string) (*domain.Confirmation, error) {
	query := `
		SELECT
			id, job_run_id, action, confirmed_at, idempotency_key, payload, created_at
		FROM confirmations
		WHERE job_run_id = $1 AND idempotency_key = $2
	`

	var conf domain.Confirmation
	err := s.db.GetContext(ctx, &conf, query, runID, idempotencyKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("confirmation vanished after conflict: %w", err)
		}
		return nil, fmt.Errorf("failed to get confirmation: %w", err)
	}

	return &conf, nil
}
