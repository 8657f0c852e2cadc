package domain

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidStatus     = errors.New("invalid status value")
	ErrJobNotCancellable = errors.New("job cannot be cancelled in its current state")
	ErrJobNotRetriable   = errors.New("job cannot be retried in its current state")
	ErrValidation        = errors.New("validation error")
)

// Status is one of the six states a job moves through. Only the retry
// command moves a job out of a terminal state back to Pending.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRetrying  Status = "retrying"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed, StatusCancelled, StatusRetrying:
		return true
	default:
		return false
	}
}

// Eligible reports whether a job in this status may be claimed once its
// scheduled_at has arrived.
func (s Status) Eligible() bool {
	return s == StatusPending || s == StatusRetrying
}

const (
	MinPriority = -1000
	MaxPriority = 1000

	DefaultMaxRetries = 5
	MaxNameLength      = 200
	MaxErrorLength     = 1000
)

// Job is the central entity of the engine. The core treats Payload and
// Result as opaque bytes; only the handler named by JobType interprets
// them.
type Job struct {
	ID         string
	Name       string
	JobType    string
	Priority   int
	Payload    json.RawMessage
	Status     Status
	Attempts   int
	MaxRetries int

	ScheduledAt time.Time
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Result json.RawMessage
	Error  *string

	// OwnerID identifies the submitter. The core stores it opaquely and
	// never interprets it — set by the HTTP auth boundary.
	OwnerID string
}

// Validate enforces the submission-time invariants from the data model:
// name length, priority range, and a non-empty job type. It does not
// check that JobType names a registered handler — unregistered types
// surface as a terminal UnknownHandler failure at execution time, not a
// validation error at submission time.
func (j *Job) Validate() error {
	if j.JobType == "" {
		return errors.Join(ErrValidation, errors.New("job_type is required"))
	}
	if len(j.Name) > MaxNameLength {
		return errors.Join(ErrValidation, errors.New("name exceeds 200 characters"))
	}
	if j.Priority < MinPriority || j.Priority > MaxPriority {
		return errors.Join(ErrValidation, errors.New("priority out of range [-1000, 1000]"))
	}
	return nil
}

// NextKind enumerates the two outcomes the retry FSM can produce for a
// failed job.
type NextKind string

const (
	NextRetry    NextKind = "retry"
	NextTerminal NextKind = "terminal"
)

// Outcome is what the executor hands to the store after running a job.
type Outcome struct {
	Success bool

	// Populated when Success is true.
	Result json.RawMessage

	// Populated when Success is false.
	Error string
	Next  NextKind
	// ScheduledAt is meaningful only when Next == NextRetry.
	ScheduledAt time.Time
}

// Filter narrows a List query by status and/or job type. Zero values
// mean "no filter on this field".
type Filter struct {
	Status  Status
	JobType string
}
