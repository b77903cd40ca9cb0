// Package scheduler holds the reminder scheduler core: materializing
// recurrence rules into persisted job runs, scanning for due runs,
// dispatching notifications, and recording confirmations.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/reminder-be/internal/scheduler/domain"
	"github.com/cuongbtq/reminder-be/internal/scheduler/recurrence"
)

// DefaultCatchUpCap bounds runs created per job per cycle. After long
// downtime one cycle backfills at most this many occurrences and the next
// cycle continues from the new latest run.
const DefaultCatchUpCap = 100

// MaterializerStore is the slice of the job store the materializer needs.
type MaterializerStore interface {
	LatestRun(ctx context.Context, jobID string) (*domain.JobRun, error)
	InsertRun(ctx context.Context, run *domain.JobRun) (bool, error)
}

// Materializer ensures every due occurrence of a job exists as a persisted
// run. Safe to invoke concurrently: the store's (job, period_key) unique
// constraint rejects duplicate inserts and the loser no-ops.
type Materializer struct {
	store  MaterializerStore
	cap    int
	logger *slog.Logger
}

func NewMaterializer(store MaterializerStore, catchUpCap int, logger *slog.Logger) *Materializer {
	if catchUpCap <= 0 {
		catchUpCap = DefaultCatchUpCap
	}

	return &Materializer{
		store:  store,
		cap:    catchUpCap,
		logger: logger,
	}
}

// MaterializeJob creates all missing runs for the job up to now and
// returns how many it created. An unparseable rule wraps
// domain.ErrInvalidRule; the caller logs it and moves on to the next job.
func (m *Materializer) MaterializeJob(ctx context.Context, job *domain.Job, now time.Time) (int, error) {
	last, err := m.store.LatestRun(ctx, job.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load latest run: %w", err)
	}

	if last == nil {
		if job.FirstRunAt.After(now) {
			return 0, nil
		}

		created, err := m.store.InsertRun(ctx, NewPendingRun(job.ID, job.FirstRunAt, now))
		if err != nil {
			return 0, err
		}
		if !created {
			// Concurrent materializer won the insert.
			return 0, nil
		}

		m.logger.Info("Materialized first run",
			slog.String("job_id", job.ID),
			slog.Time("scheduled_at", job.FirstRunAt),
		)
		return 1, nil
	}

	rule, err := recurrence.Parse(job.Rule)
	if err != nil {
		return 0, err
	}

	count := 0
	next := rule.Next(last.ScheduledAt)
	for iter := 0; iter < m.cap && !next.IsZero() && !next.After(now); iter++ {
		created, err := m.store.InsertRun(ctx, NewPendingRun(job.ID, next, now))
		if err != nil {
			return count, err
		}
		if created {
			count++
		}
		next = rule.Next(next)
	}

	if count > 0 {
		m.logger.Info("Materialized runs",
			slog.String("job_id", job.ID),
			slog.Int("created", count),
		)
	}

	return count, nil
}

// NewPendingRun builds a pending run for an occurrence. The period key is
// derived from the scheduled instant, never from now.
func NewPendingRun(jobID string, scheduledAt, now time.Time) *domain.JobRun {
	return &domain.JobRun{
		ID:          uuid.New().String(),
		JobID:       jobID,
		PeriodKey:   domain.PeriodKey(scheduledAt),
		ScheduledAt: scheduledAt,
		Status:      domain.RunStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
