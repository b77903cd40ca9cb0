package domain

import "errors"

var (
	// ErrRunNotFound covers both a missing run and a run owned by another
	// user; callers must not be able to tell the two apart.
	ErrRunNotFound = errors.New("job run not found")

	// ErrRunNotPending is returned when a conditional transition from
	// pending touches zero rows (another process got there first).
	ErrRunNotPending = errors.New("job run is not pending")

	// ErrInvalidRule marks an unparseable recurrence rule. It is a
	// configuration fault: the job is skipped for the cycle, never fatal.
	ErrInvalidRule = errors.New("invalid recurrence rule")

	// ErrInvalidAction is returned for a confirmation action outside
	// complete/skip/snooze/cancel.
	ErrInvalidAction = errors.New("invalid confirmation action")

	// ErrMissingIdempotencyKey is returned when a confirmation carries no
	// externally-generated idempotency key.
	ErrMissingIdempotencyKey = errors.New("idempotency key required")

	// ErrUnsupportedChannel is returned when a job names a delivery
	// channel other than push.
	ErrUnsupportedChannel = errors.New("unsupported delivery channel")

	// ErrInvalidJob is returned for job input that fails validation.
	ErrInvalidJob = errors.New("invalid job definition")

	// ErrInvalidRecipient is returned for recipient input that fails
	// validation.
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrRecipientNotFound is returned when a job is created for a user
	// with no registered recipient record.
	ErrRecipientNotFound = errors.New("recipient is not registered")
)
