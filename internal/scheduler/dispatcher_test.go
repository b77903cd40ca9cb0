package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/reminder-be/internal/scheduler/domain"
)

func dueFixture(t *testing.T, store *fakeStore) *domain.DueRun {
	t.Helper()

	scheduled := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	desc := "buy milk on the way home"
	job := &domain.Job{
		ID:          "job-1",
		UserID:      "user-1",
		Name:        "groceries",
		Description: &desc,
		Rule:        "cron:0 9 * * *",
		FirstRunAt:  scheduled,
		LeadMinutes: 30,
		Channel:     domain.ChannelPush,
		Status:      domain.JobStatusActive,
	}
	store.addJob(job)
	store.addRecipient(job.UserID, "device-token-1", true)

	run := NewPendingRun(job.ID, scheduled, scheduled)
	_, err := store.InsertRun(context.Background(), run)
	require.NoError(t, err)

	target := "device-token-1"
	return &domain.DueRun{
		Run: *store.runByID(run.ID),
		Job: *job,
		Recipient: domain.Recipient{
			UserID:        job.UserID,
			PushTarget:    &target,
			NotifyEnabled: true,
		},
	}
}

func TestDispatchSuccess(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{}
	disp := NewDispatcher(store, sink, time.Second, testLogger())
	due := dueFixture(t, store)

	// The scan found the run at 08:30:00 but the send lands five seconds
	// later; sent_at records the send, not the scan.
	sentAt := time.Date(2024, 1, 1, 8, 30, 5, 0, time.UTC)
	disp.now = func() time.Time { return sentAt }

	err := disp.Dispatch(context.Background(), due)
	require.NoError(t, err)

	run := store.runByID(due.Run.ID)
	assert.Equal(t, domain.RunStatusSent, run.Status)
	require.NotNil(t, run.SentAt)
	assert.True(t, run.SentAt.Equal(sentAt))

	require.Len(t, store.reminders, 1)
	assert.Equal(t, due.Run.ID, store.reminders[0].JobRunID)
	assert.True(t, store.reminders[0].SentAt.Equal(sentAt))

	require.Equal(t, 1, sink.count())
	assert.Equal(t, "device-token-1", sink.sends[0].Target)
	assert.Contains(t, sink.sends[0].Text, "groceries")
	assert.Contains(t, sink.sends[0].Text, "buy milk on the way home")
	assert.Contains(t, sink.sends[0].Text, "2024-01-01T09:00")
	assert.Contains(t, sink.sends[0].Text, due.Run.ID)
}

func TestDispatchSinkFailureLeavesRunPending(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{fail: true}
	disp := NewDispatcher(store, sink, time.Second, testLogger())
	due := dueFixture(t, store)

	err := disp.Dispatch(context.Background(), due)
	require.Error(t, err)
	assert.ErrorIs(t, err, errSinkDown)

	run := store.runByID(due.Run.ID)
	assert.Equal(t, domain.RunStatusPending, run.Status)
	assert.Nil(t, run.SentAt)
	assert.Empty(t, store.reminders)
}

func TestDispatchSinkTimeoutLeavesRunPending(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{block: true}
	disp := NewDispatcher(store, sink, 10*time.Millisecond, testLogger())
	due := dueFixture(t, store)

	err := disp.Dispatch(context.Background(), due)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	run := store.runByID(due.Run.ID)
	assert.Equal(t, domain.RunStatusPending, run.Status)
	assert.Empty(t, store.reminders)
}

func TestDispatchAlreadySentSnapshotIsNoop(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{}
	disp := NewDispatcher(store, sink, time.Second, testLogger())
	due := dueFixture(t, store)
	due.Run.Status = domain.RunStatusSent

	err := disp.Dispatch(context.Background(), due)
	require.NoError(t, err)
	assert.Equal(t, 0, sink.count())
}

func TestDispatchLostRaceKeepsSingleReminder(t *testing.T) {
	store := newFakeStore()
	sink := &fakeSink{}
	disp := NewDispatcher(store, sink, time.Second, testLogger())
	due := dueFixture(t, store)

	// Another dispatcher marks the run sent between our scan and send.
	first := time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, store.MarkRunSent(context.Background(), due.Run.ID, first, nil))
	disp.now = func() time.Time { return first.Add(time.Second) }

	err := disp.Dispatch(context.Background(), due)
	require.NoError(t, err)

	// Possibly a duplicate message, but exactly one Reminder and the
	// original sent_at survive.
	require.Len(t, store.reminders, 1)
	run := store.runByID(due.Run.ID)
	assert.Equal(t, domain.RunStatusSent, run.Status)
	assert.True(t, run.SentAt.Equal(first))
	assert.Equal(t, 1, sink.count())
}
