package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cuongbtq/reminder-be/internal/metrics"
	"github.com/cuongbtq/reminder-be/internal/scheduler/domain"
)

// CycleStore is the slice of the job store the cycle driver needs.
type CycleStore interface {
	ListActiveJobs(ctx context.Context) ([]domain.Job, error)
	DueRuns(ctx context.Context, now time.Time, limit int) ([]domain.DueRun, error)
}

// LoopConfig configures the periodic cycle driver.
type LoopConfig struct {
	Interval   time.Duration
	BatchLimit int
}

// Loop drives materialize -> scan -> dispatch on a fixed cadence. Cycles
// run in a single goroutine, so a cycle that outlasts the interval runs
// long instead of overlapping the next one. A failure on one job or run is
// logged and skipped; nothing a single bad definition does can stop the
// loop.
type Loop struct {
	store        CycleStore
	materializer *Materializer
	dispatcher   *Dispatcher
	interval     time.Duration
	batchLimit   int
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewLoop(cfg LoopConfig, store CycleStore, materializer *Materializer, dispatcher *Dispatcher, m *metrics.Metrics, logger *slog.Logger) *Loop {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	batchLimit := cfg.BatchLimit
	if batchLimit <= 0 {
		batchLimit = 100
	}

	return &Loop{
		store:        store,
		materializer: materializer,
		dispatcher:   dispatcher,
		interval:     interval,
		batchLimit:   batchLimit,
		logger:       logger,
		metrics:      m,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one cycle immediately, then one per tick until the context
// is canceled.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Scheduler loop started",
		slog.Duration("interval", l.interval),
		slog.Int("batch_limit", l.batchLimit),
	)

	l.RunCycle(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Scheduler loop stopped")
			return nil
		case <-ticker.C:
			l.RunCycle(ctx)
		}
	}
}

// RunCycle performs one materialize/scan/dispatch pass.
func (l *Loop) RunCycle(ctx context.Context) {
	now := l.now()
	start := time.Now()

	l.materializeAll(ctx, now)
	l.dispatchDue(ctx, now)

	l.metrics.CyclesTotal.Inc()
	l.metrics.CycleDuration.Observe(time.Since(start).Seconds())
}

func (l *Loop) materializeAll(ctx context.Context, now time.Time) {
	jobs, err := l.store.ListActiveJobs(ctx)
	if err != nil {
		l.logger.Error("Failed to list active jobs",
			slog.String("error", err.Error()),
		)
		return
	}

	for i := range jobs {
		job := &jobs[i]
		created, err := l.materializer.MaterializeJob(ctx, job, now)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidRule) {
				// Configuration fault: skip this cycle, never auto-pause.
				l.metrics.ConfigFaults.Inc()
				l.logger.Warn("Skipping job with invalid rule",
					slog.String("job_id", job.ID),
					slog.String("rule", job.Rule),
					slog.String("error", err.Error()),
				)
			} else {
				l.logger.Error("Failed to materialize job",
					slog.String("job_id", job.ID),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		l.metrics.RunsMaterialized.Add(float64(created))
	}
}

func (l *Loop) dispatchDue(ctx context.Context, now time.Time) {
	due, err := l.store.DueRuns(ctx, now, l.batchLimit)
	if err != nil {
		l.logger.Error("Failed to scan due runs",
			slog.String("error", err.Error()),
		)
		return
	}

	for i := range due {
		d := &due[i]
		if d.DueAt().After(now) {
			continue
		}

		if err := l.dispatcher.Dispatch(ctx, d); err != nil {
			l.metrics.DispatchFailures.Inc()
			l.logger.Warn("Dispatch failed, run left pending",
				slog.String("run_id", d.Run.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		l.metrics.NotificationsSent.Inc()
	}
}
