package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/reminder-be/internal/scheduler/domain"
	"github.com/cuongbtq/reminder-be/internal/scheduler/storage"
)

func newTestService(store *fakeStore, now time.Time) *Service {
	svc := NewService(store, testLogger())
	svc.now = func() time.Time { return now }
	return svc
}

func validInput() CreateJobInput {
	return CreateJobInput{
		Name:        "daily standup",
		Rule:        "cron:0 9 * * *",
		FirstRunAt:  time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		LeadMinutes: 30,
		Channel:     domain.ChannelPush,
		Status:      domain.JobStatusActive,
	}
}

func TestCreateJobValidation(t *testing.T) {
	longName := make([]rune, 121)
	for i := range longName {
		longName[i] = 'x'
	}

	tests := []struct {
		name    string
		mutate  func(*CreateJobInput)
		wantErr error
	}{
		{
			name:    "empty name",
			mutate:  func(in *CreateJobInput) { in.Name = "" },
			wantErr: domain.ErrInvalidJob,
		},
		{
			name:    "name too long",
			mutate:  func(in *CreateJobInput) { in.Name = string(longName) },
			wantErr: domain.ErrInvalidJob,
		},
		{
			name:    "negative lead",
			mutate:  func(in *CreateJobInput) { in.LeadMinutes = -1 },
			wantErr: domain.ErrInvalidJob,
		},
		{
			name:    "lead over one week",
			mutate:  func(in *CreateJobInput) { in.LeadMinutes = domain.MaxLeadMinutes + 1 },
			wantErr: domain.ErrInvalidJob,
		},
		{
			name:    "unsupported channel",
			mutate:  func(in *CreateJobInput) { in.Channel = "email" },
			wantErr: domain.ErrUnsupportedChannel,
		},
		{
			name:    "unknown status",
			mutate:  func(in *CreateJobInput) { in.Status = "running" },
			wantErr: domain.ErrInvalidJob,
		},
		{
			name:    "missing first run",
			mutate:  func(in *CreateJobInput) { in.FirstRunAt = time.Time{} },
			wantErr: domain.ErrInvalidJob,
		},
		{
			name:    "unparseable rule",
			mutate:  func(in *CreateJobInput) { in.Rule = "cron:every other tuesday" },
			wantErr: domain.ErrInvalidRule,
		},
	}

	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(newFakeStore(), now)
			in := validInput()
			tt.mutate(&in)

			_, err := svc.CreateJob(context.Background(), "user-1", in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateJobCreatesFirstRun(t *testing.T) {
	// Creation at 08:00 for a 09:00 first run persists the run right
	// away; a run that only existed once overdue could never be sent
	// ahead of time.
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	firstRun := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.addRecipient("user-1", "device-token-1", true)
	svc := newTestService(store, now)

	job, err := svc.CreateJob(context.Background(), "user-1", validInput())
	require.NoError(t, err)
	assert.Equal(t, "user-1", job.UserID)
	assert.NotEmpty(t, job.ID)

	runs := store.runsForJob(job.ID)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].ScheduledAt.Equal(firstRun))
	assert.Equal(t, domain.RunStatusPending, runs[0].Status)
	assert.Equal(t, "2024-01-01T09:00", runs[0].PeriodKey)
}

func TestCreateJobRequiresRecipient(t *testing.T) {
	// jobs.user_id references recipients, so a user with no recipient
	// record gets a validation error, not a constraint violation.
	store := newFakeStore()
	svc := newTestService(store, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))

	_, err := svc.CreateJob(context.Background(), "user-1", validInput())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRecipientNotFound)
	assert.Empty(t, store.jobs)

	_, err = svc.RegisterRecipient(context.Background(), "user-1", RegisterRecipientInput{
		PushTarget:    ptr("device-token-1"),
		NotifyEnabled: true,
	})
	require.NoError(t, err)

	job, err := svc.CreateJob(context.Background(), "user-1", validInput())
	require.NoError(t, err)
	assert.Len(t, store.runsForJob(job.ID), 1)
}

func TestRegisterRecipient(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, time.Now().UTC())

	rec, err := svc.RegisterRecipient(context.Background(), "user-1", RegisterRecipientInput{
		PushTarget:    ptr("  device-token-1  "),
		NotifyEnabled: true,
	})
	require.NoError(t, err)
	require.NotNil(t, rec.PushTarget)
	assert.Equal(t, "device-token-1", *rec.PushTarget)
	assert.True(t, rec.Eligible())

	// Re-registering replaces the previous record.
	rec, err = svc.RegisterRecipient(context.Background(), "user-1", RegisterRecipientInput{
		PushTarget:    ptr("device-token-2"),
		NotifyEnabled: false,
	})
	require.NoError(t, err)
	assert.False(t, rec.Eligible())

	stored, err := store.GetRecipient(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "device-token-2", *stored.PushTarget)
	assert.False(t, stored.NotifyEnabled)

	_, err = svc.RegisterRecipient(context.Background(), "user-1", RegisterRecipientInput{
		PushTarget: ptr("   "),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)
}

func ptr(s string) *string { return &s }

func TestListRunsRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(newFakeStore(), time.Now().UTC())

	_, err := svc.ListRuns(context.Background(), "user-1", storage.RunFilter{Status: "exploded"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidJob)
}

func TestListRunsFilters(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	svc := newTestService(store, now)

	job := testJob("cron:0 9 * * *", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	store.addJob(job)
	for day := 1; day <= 4; day++ {
		at := time.Date(2024, 1, day, 9, 0, 0, 0, time.UTC)
		_, err := store.InsertRun(context.Background(), NewPendingRun(job.ID, at, at))
		require.NoError(t, err)
	}

	from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 3, 23, 0, 0, 0, time.UTC)
	runs, err := svc.ListRuns(context.Background(), job.UserID, storage.RunFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	// Most recently scheduled first.
	assert.True(t, runs[0].ScheduledAt.After(runs[1].ScheduledAt))
}
