// Package retry implements the backoff state machine (component F):
// given a job's attempt count it decides whether the next state is a
// scheduled retry or a terminal failure, adapted from the teacher's
// retryDelay in internal/scheduler/worker.go — generalized from the
// teacher's fixed 30s base and backoff-kind switch to the spec's
// configurable base and pure exponential curve.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// maxDelay clamps the computed backoff regardless of attempts or base.
const maxDelay = time.Hour

// Decision is the outcome of Decide: either Terminal (true) with no
// further scheduling, or a ScheduledAt for the next attempt.
type Decision struct {
	Terminal    bool
	ScheduledAt time.Time
}

// Decide implements spec.md §4.6: terminal once attempts exceeds
// maxRetries, otherwise scheduled_at = now + base^attempts seconds,
// clamped to one hour. attempts is the post-increment count recorded
// by the claim that is now failing.
func Decide(attempts, maxRetries int, base float64, now time.Time) Decision {
	if attempts > maxRetries {
		return Decision{Terminal: true}
	}
	delay := time.Duration(math.Pow(base, float64(attempts)) * float64(time.Second))
	if delay > maxDelay {
		delay = maxDelay
	}
	return Decision{ScheduledAt: now.Add(delay)}
}

// WithJitter applies ±10% jitter (the teacher's jitter calculation,
// narrowed from its ±25%) to a Decide result, to avoid synchronized
// retry storms across many jobs failing at once. A no-op on a terminal
// decision.
func WithJitter(d Decision, now time.Time) Decision {
	if d.Terminal {
		return d
	}
	delay := d.ScheduledAt.Sub(now)
	if delay <= 0 {
		return d
	}
	span := delay / 5 // 10% either side of the base delay
	offset := time.Duration(rand.Int63n(int64(span))) - span/2
	jittered := delay + offset
	if jittered < 0 {
		jittered = 0
	}
	return Decision{ScheduledAt: now.Add(jittered)}
}
