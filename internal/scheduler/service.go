package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cuongbtq/reminder-be/internal/scheduler/domain"
	"github.com/cuongbtq/reminder-be/internal/scheduler/recurrence"
	"github.com/cuongbtq/reminder-be/internal/scheduler/storage"
)

const (
	maxNameLen        = 120
	maxDescriptionLen = 500
	maxPushTargetLen  = 512
)

// APIStore is the slice of the job store backing the exposed API.
type APIStore interface {
	CreateJob(ctx context.Context, job *domain.Job, firstRun *domain.JobRun) error
	ListJobs(ctx context.Context, userID string) ([]domain.Job, error)
	ListRuns(ctx context.Context, userID string, filter storage.RunFilter) ([]domain.JobRun, error)
	GetRunOwned(ctx context.Context, runID, userID string) (*domain.JobRun, error)
	ApplyConfirmation(ctx context.Context, conf *domain.Confirmation) (*domain.Confirmation, error)
	UpsertRecipient(ctx context.Context, rec *domain.Recipient) error
	GetRecipient(ctx context.Context, userID string) (*domain.Recipient, error)
}

// Service is the scheduler's API surface for the rest of the system.
type Service struct {
	store  APIStore
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store APIStore, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateJobInput carries a new job definition.
type CreateJobInput struct {
	Name        string
	Description *string
	Rule        string
	FirstRunAt  time.Time
	LeadMinutes int
	Channel     string
	Status      domain.JobStatus
}

// CreateJob validates and persists a job together with its first run in
// one transaction. The first run is always created, even when scheduled
// in the future, so the due scan can honor the job's lead time from the
// start.
func (s *Service) CreateJob(ctx context.Context, userID string, in CreateJobInput) (*domain.Job, error) {
	if n := utf8.RuneCountInString(in.Name); n == 0 || n > maxNameLen {
		return nil, fmt.Errorf("%w: name must be 1-%d characters", domain.ErrInvalidJob, maxNameLen)
	}
	if in.Description != nil && utf8.RuneCountInString(*in.Description) > maxDescriptionLen {
		return nil, fmt.Errorf("%w: description exceeds %d characters", domain.ErrInvalidJob, maxDescriptionLen)
	}
	if in.LeadMinutes < 0 || in.LeadMinutes > domain.MaxLeadMinutes {
		return nil, fmt.Errorf("%w: lead_minutes must be 0-%d", domain.ErrInvalidJob, domain.MaxLeadMinutes)
	}
	if in.Channel != domain.ChannelPush {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedChannel, in.Channel)
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidJob, string(in.Status))
	}
	if in.FirstRunAt.IsZero() {
		return nil, fmt.Errorf("%w: first_run_at is required", domain.ErrInvalidJob)
	}
	if _, err := recurrence.Parse(in.Rule); err != nil {
		return nil, err
	}

	// The jobs table references recipients(user_id); surface the missing
	// registration as a validation error instead of a constraint violation.
	rec, err := s.store.GetRecipient(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: register a push target before creating jobs", domain.ErrRecipientNotFound)
	}

	now := s.now()
	job := &domain.Job{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		Rule:        in.Rule,
		FirstRunAt:  in.FirstRunAt.UTC(),
		LeadMinutes: in.LeadMinutes,
		Channel:     in.Channel,
		Status:      in.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	firstRun := NewPendingRun(job.ID, job.FirstRunAt, now)
	if err := s.store.CreateJob(ctx, job, firstRun); err != nil {
		return nil, err
	}

	s.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("user_id", userID),
		slog.String("rule", job.Rule),
		slog.Time("first_run_at", job.FirstRunAt),
	)

	return job, nil
}

// RegisterRecipientInput carries a user's push delivery settings.
type RegisterRecipientInput struct {
	PushTarget    *string
	NotifyEnabled bool
}

// RegisterRecipient creates or updates where and whether a user receives
// notifications. Jobs require a registered recipient, so this is the first
// call a new user makes.
func (s *Service) RegisterRecipient(ctx context.Context, userID string, in RegisterRecipientInput) (*domain.Recipient, error) {
	if in.PushTarget != nil {
		target := strings.TrimSpace(*in.PushTarget)
		if target == "" {
			return nil, fmt.Errorf("%w: push_target must not be blank", domain.ErrInvalidRecipient)
		}
		if utf8.RuneCountInString(target) > maxPushTargetLen {
			return nil, fmt.Errorf("%w: push_target exceeds %d characters", domain.ErrInvalidRecipient, maxPushTargetLen)
		}
		in.PushTarget = &target
	}

	rec := &domain.Recipient{
		UserID:        userID,
		PushTarget:    in.PushTarget,
		NotifyEnabled: in.NotifyEnabled,
	}
	if err := s.store.UpsertRecipient(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("Recipient registered",
		slog.String("user_id", userID),
		slog.Bool("notify_enabled", rec.NotifyEnabled),
	)

	return rec, nil
}

// ListJobs returns the user's jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, userID string) ([]domain.Job, error) {
	return s.store.ListJobs(ctx, userID)
}

// ListRuns returns runs of the user's jobs filtered by status and
// scheduled-time range.
func (s *Service) ListRuns(ctx context.Context, userID string, filter storage.RunFilter) ([]domain.JobRun, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", domain.ErrInvalidJob, string(filter.Status))
	}
	return s.store.ListRuns(ctx, userID, filter)
}
