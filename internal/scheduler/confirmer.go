package scheduler

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cuongbtq/reminder-be/internal/scheduler/domain"
)

// Confirm records a user decision on a run. Replays of the same
// (run, idempotency_key) return the originally stored confirmation and do
// not re-apply the transition. The run must belong to a job owned by
// userID; a run that exists but is someone else's reports not-found.
func (s *Service) Confirm(ctx context.Context, userID, runID string, action domain.ConfirmAction, idempotencyKey string, payload []byte) (*domain.Confirmation, error) {
	if !action.Valid() {
		return nil, domain.ErrInvalidAction
	}
	if idempotencyKey == "" {
		return nil, domain.ErrMissingIdempotencyKey
	}

	run, err := s.store.GetRunOwned(ctx, runID, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	conf, err := s.store.ApplyConfirmation(ctx, &domain.Confirmation{
		ID:             uuid.New().String(),
		JobRunID:       run.ID,
		Action:         action,
		ConfirmedAt:    now,
		IdempotencyKey: idempotencyKey,
		Payload:        payload,
		CreatedAt:      now,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Confirmation recorded",
		slog.String("run_id", run.ID),
		slog.String("action", string(conf.Action)),
		slog.String("idempotency_key", idempotencyKey),
	)

	return conf, nil
}
