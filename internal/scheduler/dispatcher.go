package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/reminder-be/internal/notify"
	"github.com/cuongbtq/reminder-be/internal/scheduler/domain"
)

// DispatchStore is the slice of the job store the dispatcher needs.
type DispatchStore interface {
	MarkRunSent(ctx context.Context, runID string, sentAt time.Time, payload []byte) error
}

// Dispatcher sends one notification per due run. A sink failure leaves the
// run pending so the next cycle retries it; only a confirmed delivery
// transitions the run to sent, atomically with its Reminder audit record.
// A duplicate notification is preferred over a false sent status.
type Dispatcher struct {
	store   DispatchStore
	sink    notify.Sink
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewDispatcher(store DispatchStore, sink notify.Sink, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Dispatcher{
		store:   store,
		sink:    sink,
		timeout: timeout,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type reminderPayload struct {
	Channel string `json:"channel"`
	Target  string `json:"target"`
	Text    string `json:"text"`
}

// Dispatch sends the notification for one due run. Returns nil when the
// run ended up sent (by us or by a concurrent dispatcher) and an error
// when the run is still pending and should be retried next cycle.
// sent_at records the moment the sink accepted the send, not the start of
// the surrounding cycle.
func (d *Dispatcher) Dispatch(ctx context.Context, due *domain.DueRun) error {
	if due.Run.Status != domain.RunStatusPending {
		return nil
	}
	if !due.Recipient.Eligible() {
		return fmt.Errorf("recipient %s is not eligible", due.Recipient.UserID)
	}

	target := *due.Recipient.PushTarget
	text := notificationText(due)

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sink.Send(sendCtx, target, text); err != nil {
		// Run stays pending; retried on the next scan.
		return fmt.Errorf("failed to send notification for run %s: %w", due.Run.ID, err)
	}
	sentAt := d.now()

	payload, err := json.Marshal(reminderPayload{
		Channel: due.Job.Channel,
		Target:  target,
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode reminder payload: %w", err)
	}

	if err := d.store.MarkRunSent(ctx, due.Run.ID, sentAt, payload); err != nil {
		if errors.Is(err, domain.ErrRunNotPending) {
			// Another dispatcher marked it sent between our scan and now.
			// The user may see a duplicate message; state stays consistent.
			d.logger.Warn("Run already sent by another dispatcher",
				slog.String("run_id", due.Run.ID),
			)
			return nil
		}
		return fmt.Errorf("failed to record sent run %s: %w", due.Run.ID, err)
	}

	d.logger.Info("Reminder dispatched",
		slog.String("job_id", due.Job.ID),
		slog.String("run_id", due.Run.ID),
		slog.Time("scheduled_at", due.Run.ScheduledAt),
	)

	return nil
}

// notificationText renders the human-readable body. Formatting is a
// presentation detail, not part of the dispatch contract.
func notificationText(due *domain.DueRun) string {
	description := "(none)"
	if due.Job.Description != nil && *due.Job.Description != "" {
		description = *due.Job.Description
	}

	return fmt.Sprintf(
		"Reminder: %s\nDetails: %s\nScheduled (UTC): %s\nJob %s / run %s",
		due.Job.Name,
		description,
		due.Run.ScheduledAt.UTC().Format("2006-01-02T15:04"),
		due.Job.ID,
		due.Run.ID,
	)
}
