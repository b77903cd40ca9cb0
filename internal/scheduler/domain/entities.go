package domain

import (
	"time"
)

const (
	// ChannelPush is the only supported delivery channel.
	ChannelPush = "push"

	// MaxLeadMinutes caps lead time at one week.
	MaxLeadMinutes = 10080
)

// Job is a user-declared recurring (or one-shot) reminder definition.
type Job struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Name        string    `db:"name"`
	Description *string   `db:"description"`
	Rule        string    `db:"rule"`
	FirstRunAt  time.Time `db:"first_run_at"`
	LeadMinutes int       `db:"lead_minutes"`
	Channel     string    `db:"channel"`
	Status      JobStatus `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Lead is the job's lead time as a duration.
func (j *Job) Lead() time.Duration {
	return time.Duration(j.LeadMinutes) * time.Minute
}

// JobRun is one materialized occurrence of a Job.
type JobRun struct {
	ID          string     `db:"id"`
	JobID       string     `db:"job_id"`
	PeriodKey   string     `db:"period_key"`
	ScheduledAt time.Time  `db:"scheduled_at"`
	SentAt      *time.Time `db:"sent_at"`
	Status      RunStatus  `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// PeriodKey derives the dedup key for an occurrence: the scheduled instant
// in UTC at minute granularity. Two materializers racing on the same
// occurrence always compute the same key.
func PeriodKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04")
}

// Reminder is the append-only audit record of one successful dispatch.
type Reminder struct {
	ID        string    `db:"id"`
	JobRunID  string    `db:"job_run_id"`
	SentAt    time.Time `db:"sent_at"`
	Payload   []byte    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}

// Confirmation is a recorded user decision on a run, deduplicated by
// (job_run_id, idempotency_key).
type Confirmation struct {
	ID             string        `db:"id"`
	JobRunID       string        `db:"job_run_id"`
	Action         ConfirmAction `db:"action"`
	ConfirmedAt    time.Time     `db:"confirmed_at"`
	IdempotencyKey string        `db:"idempotency_key"`
	Payload        []byte        `db:"payload"`
	CreatedAt      time.Time     `db:"created_at"`
}

// Recipient is the notification eligibility record for a user.
type Recipient struct {
	UserID        string  `db:"user_id"`
	PushTarget    *string `db:"push_target"`
	NotifyEnabled bool    `db:"notify_enabled"`
}

// Eligible reports whether the recipient can receive notifications.
func (r *Recipient) Eligible() bool {
	return r.NotifyEnabled && r.PushTarget != nil && *r.PushTarget != ""
}

// DueRun is one scan result: a pending run joined with its job and the
// recipient the notification goes to.
type DueRun struct {
	Run       JobRun
	Job       Job
	Recipient Recipient
}

// DueAt is the effective due time: scheduled time minus the job's lead.
func (d *DueRun) DueAt() time.Time {
	return d.Run.ScheduledAt.Add(-d.Job.Lead())
}
