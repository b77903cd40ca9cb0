package dto

import (
	"time"

	"github.com/cuongbtq/reminder-be/internal/scheduler/domain"
)

type CreateJobRequest struct {
	Name        string    `json:"name" binding:"required"`
	Description *string   `json:"description"`
	Rule        string    `json:"rule" binding:"required"`
	FirstRunAt  time.Time `json:"first_run_at" binding:"required"`
	LeadMinutes int       `json:"lead_minutes"`
	Channel     string    `json:"channel" binding:"required"`
	Status      string    `json:"status" binding:"required"`
}

type ListRunsRequest struct {
	Status string     `form:"status"`
	From   *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To     *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

type UpsertRecipientRequest struct {
	PushTarget *string `json:"push_target"`
	// Pointer so an absent field defaults to enabled.
	NotifyEnabled *bool `json:"notify_enabled"`
}

type ConfirmRequest struct {
	JobRunID       string  `json:"job_run_id" binding:"required"`
	Action         string  `json:"action" binding:"required"`
	IdempotencyKey string  `json:"idempotency_key" binding:"required"`
	Payload        *string `json:"payload"`
}

type JobDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Rule        string  `json:"rule"`
	FirstRunAt  string  `json:"first_run_at"`
	LeadMinutes int     `json:"lead_minutes"`
	Channel     string  `json:"channel"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type ListJobsResponse struct {
	Jobs []JobDTO `json:"jobs"`
}

type JobRunDTO struct {
	ID          string  `json:"id"`
	JobID       string  `json:"job_id"`
	PeriodKey   string  `json:"period_key"`
	ScheduledAt string  `json:"scheduled_at"`
	SentAt      *string `json:"sent_at,omitempty"`
	Status      string  `json:"status"`
}

type ListRunsResponse struct {
	Runs []JobRunDTO `json:"runs"`
}

type ConfirmationDTO struct {
	ID             string  `json:"id"`
	JobRunID       string  `json:"job_run_id"`
	Action         string  `json:"action"`
	IdempotencyKey string  `json:"idempotency_key"`
	Payload        *string `json:"payload,omitempty"`
	ConfirmedAt    string  `json:"confirmed_at"`
}

func NewJobDTO(job *domain.Job) JobDTO {
	return JobDTO{
		ID:          job.ID,
		Name:        job.Name,
		Description: job.Description,
		Rule:        job.Rule,
		FirstRunAt:  job.FirstRunAt.Format(time.RFC3339),
		LeadMinutes: job.LeadMinutes,
		Channel:     job.Channel,
		Status:      string(job.Status),
		CreatedAt:   job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   job.UpdatedAt.Format(time.RFC3339),
	}
}

func NewJobRunDTO(run *domain.JobRun) JobRunDTO {
	out := JobRunDTO{
		ID:          run.ID,
		JobID:       run.JobID,
		PeriodKey:   run.PeriodKey,
		ScheduledAt: run.ScheduledAt.Format(time.RFC3339),
		Status:      string(run.Status),
	}
	if run.SentAt != nil {
		sent := run.SentAt.Format(time.RFC3339)
		out.SentAt = &sent
	}
	return out
}

func NewConfirmationDTO(conf *domain.Confirmation) ConfirmationDTO {
	out := ConfirmationDTO{
		ID:             conf.ID,
		JobRunID:       conf.JobRunID,
		Action:         string(conf.Action),
		IdempotencyKey: conf.IdempotencyKey,
		ConfirmedAt:    conf.ConfirmedAt.Format(time.RFC3339),
	}
	if len(conf.Payload) > 0 {
		payload := string(conf.Payload)
		out.Payload = &payload
	}
	return out
}

type RecipientDTO struct {
	UserID        string  `json:"user_id"`
	PushTarget    *string `json:"push_target,omitempty"`
	NotifyEnabled bool    `json:"notify_enabled"`
}

func NewRecipientDTO(rec *domain.Recipient) RecipientDTO {
	return RecipientDTO{
		UserID:        rec.UserID,
		PushTarget:    rec.PushTarget,
		NotifyEnabled: rec.NotifyEnabled,
	}
}
