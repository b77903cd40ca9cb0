package domain

import (
	"database/sql/driver"
	"fmt"
)

// JobStatus is the lifecycle state of a reminder job.
type JobStatus string

const (
	JobStatusActive   JobStatus = "active"
	JobStatusPaused   JobStatus = "paused"
	JobStatusArchived JobStatus = "archived"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusActive, JobStatusPaused, JobStatusArchived:
		return true
	}
	return false
}

func (s JobStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid job status %q", string(s))
	}
	return string(s), nil
}

func (s *JobStatus) Scan(src any) error {
	v, err := scanStatusString(src)
	if err != nil {
		return fmt.Errorf("job status: %w", err)
	}
	st := JobStatus(v)
	if !st.Valid() {
		return fmt.Errorf("unknown job status %q in store", v)
	}
	*s = st
	return nil
}

// RunStatus is the state of one materialized occurrence.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusSent      RunStatus = "sent"
	RunStatusConfirmed RunStatus = "confirmed"
	RunStatusSkipped   RunStatus = "skipped"
	RunStatusSnoozed   RunStatus = "snoozed"
	RunStatusCancelled RunStatus = "cancelled"
)

func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusPending, RunStatusSent, RunStatusConfirmed,
		RunStatusSkipped, RunStatusSnoozed, RunStatusCancelled:
		return true
	}
	return false
}

func (s RunStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid run status %q", string(s))
	}
	return string(s), nil
}

func (s *RunStatus) Scan(src any) error {
	v, err := scanStatusString(src)
	if err != nil {
		return fmt.Errorf("run status: %w", err)
	}
	st := RunStatus(v)
	if !st.Valid() {
		return fmt.Errorf("unknown run status %q in store", v)
	}
	*s = st
	return nil
}

// ConfirmAction is a recorded user decision on a run.
type ConfirmAction string

const (
	ActionComplete ConfirmAction = "complete"
	ActionSkip     ConfirmAction = "skip"
	ActionSnooze   ConfirmAction = "snooze"
	ActionCancel   ConfirmAction = "cancel"
)

func (a ConfirmAction) Valid() bool {
	switch a {
	case ActionComplete, ActionSkip, ActionSnooze, ActionCancel:
		return true
	}
	return false
}

// RunStatus maps the action to the run state it produces. All four are
// terminal for scanning purposes; snoozed runs are not auto-rescheduled.
func (a ConfirmAction) RunStatus() RunStatus {
	switch a {
	case ActionComplete:
		return RunStatusConfirmed
	case ActionSkip:
		return RunStatusSkipped
	case ActionSnooze:
		return RunStatusSnoozed
	case ActionCancel:
		return RunStatusCancelled
	}
	return ""
}

func (a ConfirmAction) Value() (driver.Value, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid confirmation action %q", string(a))
	}
	return string(a), nil
}

func (a *ConfirmAction) Scan(src any) error {
	v, err := scanStatusString(src)
	if err != nil {
		return fmt.Errorf("confirmation action: %w", err)
	}
	act := ConfirmAction(v)
	if !act.Valid() {
		return fmt.Errorf("unknown confirmation action %q in store", v)
	}
	*a = act
	return nil
}

func scanStatusString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unsupported source type %T", src)
	}
}
