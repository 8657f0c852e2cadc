// Package executor implements component E: it runs exactly one claimed
// job under a deadline, never lets the handler's panic or error escape
// the worker loop, and turns the result into a domain.Outcome the
// worker pool persists.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arjunmehta-dev/taskforge/internal/domain"
	"github.com/arjunmehta-dev/taskforge/internal/registry"
	"github.com/arjunmehta-dev/taskforge/internal/retry"
)

const maxErrorLength = domain.MaxErrorLength

// Executor resolves handlers from a registry and enforces the
// per-execution timeout and retry decision.
type Executor struct {
	registry         *registry.Registry
	timeout          time.Duration
	retryBackoffBase float64
	jitter           bool
	logger           *slog.Logger
}

func New(reg *registry.Registry, timeout time.Duration, retryBackoffBase float64, logger *slog.Logger) *Executor {
	return &Executor{
		registry:         reg,
		timeout:          timeout,
		retryBackoffBase: retryBackoffBase,
		jitter:           true,
		logger:           logger.With("component", "executor"),
	}
}

// Run executes job and returns the outcome the caller must persist via
// store.Complete (and, for a retry outcome, re-push to the fast tier).
// It never returns a Go error — every failure mode becomes part of the
// Outcome.
func (e *Executor) Run(ctx context.Context, job *domain.Job, now time.Time) domain.Outcome {
	handler, ok := e.registry.Lookup(job.JobType)
	if !ok {
		// UnknownHandler is terminal and does not consume retries,
		// distinct from a HandlerFailure.
		return domain.Outcome{
			Success: false,
			Error:   fmt.Sprintf("unknown job type: %s", job.JobType),
			Next:    domain.NextTerminal,
		}
	}

	timeout := e.timeout
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := e.invoke(runCtx, handler, job.Payload)
	if err == nil {
		return domain.Outcome{Success: true, Result: result}
	}

	errMsg := err.Error()
	if runCtx.Err() == context.DeadlineExceeded {
		errMsg = fmt.Sprintf("timeout after %ds", int(timeout.Seconds()))
	}
	if len(errMsg) > maxErrorLength {
		errMsg = errMsg[:maxErrorLength]
	}

	decision := retry.Decide(job.Attempts, job.MaxRetries, e.retryBackoffBase, now)
	if e.jitter {
		decision = retry.WithJitter(decision, now)
	}
	if decision.Terminal {
		e.logger.WarnContext(ctx, "job reached terminal failure", "job_id", job.ID, "job_type", job.JobType, "attempts", job.Attempts, "error", errMsg)
		return domain.Outcome{Success: false, Error: errMsg, Next: domain.NextTerminal}
	}
	e.logger.InfoContext(ctx, "job scheduled for retry", "job_id", job.ID, "job_type", job.JobType, "attempts", job.Attempts, "error", errMsg, "scheduled_at", decision.ScheduledAt)
	return domain.Outcome{Success: false, Error: errMsg, Next: domain.NextRetry, ScheduledAt: decision.ScheduledAt}
}

// invoke recovers from a handler panic and reports it as a regular
// error so it takes the same retry/terminal path as a returned error —
// spec.md §4.5's "MUST NOT let handler exceptions propagate".
func (e *Executor) invoke(ctx context.Context, h registry.Handler, payload []byte) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, payload)
}
