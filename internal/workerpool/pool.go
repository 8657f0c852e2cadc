// Package workerpool implements component G: N concurrent workers that
// poll the coordinator for claimable jobs, execute them, and persist
// the outcome, with a graceful, grace-period-bounded shutdown — adapted
// from the teacher's scheduler.Worker poll-and-batch loop in
// internal/scheduler/worker.go, generalized from its ticker-driven
// batch claim to one claim-execute iteration per worker goroutine plus
// an explicit concurrency semaphore.
package workerpool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/arjunmehta-dev/taskforge/internal/coordinator"
	"github.com/arjunmehta-dev/taskforge/internal/domain"
	"github.com/arjunmehta-dev/taskforge/internal/executor"
	"github.com/arjunmehta-dev/taskforge/internal/queue"
	"github.com/arjunmehta-dev/taskforge/internal/store"
)

// completeTimeout bounds how long a post-shutdown store write may take
// so draining never hangs indefinitely on a wedged connection.
const completeTimeout = 5 * time.Second

type Pool struct {
	coordinator   *coordinator.Coordinator
	executor      *executor.Executor
	store         store.Store
	fastQueue     queue.FastQueue // nil when use_fast_queue is disabled
	maxWorkers    int
	pollInterval  time.Duration
	shutdownGrace time.Duration
	logger        *slog.Logger

	sem           chan struct{}
	onJobComplete func(outcome domain.Outcome, duration time.Duration)
}

func New(
	c *coordinator.Coordinator,
	e *executor.Executor,
	s store.Store,
	q queue.FastQueue,
	maxWorkers int,
	pollInterval time.Duration,
	shutdownGrace time.Duration,
	logger *slog.Logger,
) *Pool {
	return &Pool{
		coordinator:   c,
		executor:      e,
		store:         s,
		fastQueue:     q,
		maxWorkers:    maxWorkers,
		pollInterval:  pollInterval,
		shutdownGrace: shutdownGrace,
		sem:           make(chan struct{}, maxWorkers),
		logger:        logger.With("component", "workerpool"),
	}
}

// OnJobComplete registers a metrics hook invoked after every execution.
func (p *Pool) OnJobComplete(fn func(outcome domain.Outcome, duration time.Duration)) {
	p.onJobComplete = fn
}

// Run blocks until ctx is cancelled, then drains in-flight executions
// for up to shutdownGrace before forcibly cancelling them. A job
// cancelled this way is persisted as a retry, never a terminal
// failure, per spec.md §4.7.
func (p *Pool) Run(ctx context.Context) {
	execCtx, execCancel := context.WithCancel(context.Background())
	defer execCancel()

	var wg sync.WaitGroup
	for i := 0; i < p.maxWorkers; i++ {
		wg.Add(1)
		workerID := i
		go func() {
			defer wg.Done()
			p.pollLoop(ctx, execCtx, workerID)
		}()
	}

	<-ctx.Done()
	p.logger.Info("shutdown signal received, draining in-flight jobs", "grace_period", p.shutdownGrace)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool drained cleanly")
	case <-time.After(p.shutdownGrace):
		p.logger.Warn("shutdown grace period elapsed, cancelling in-flight executions")
		execCancel()
		<-done
	}
}

func (p *Pool) pollLoop(ctx, execCtx context.Context, workerID int) {
	logger := p.logger.With("worker_id", workerID)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.coordinator.NextJob(ctx, time.Now())
		if err != nil {
			if !errors.Is(err, store.ErrNoEligibleJob) {
				logger.WarnContext(ctx, "claim failed, backing off", "error", err)
			}
			if !sleepOrDone(ctx, p.pollInterval) {
				return
			}
			continue
		}

		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		p.runJob(execCtx, logger, job)
		<-p.sem
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (p *Pool) runJob(execCtx context.Context, logger *slog.Logger, job *domain.Job) {
	start := time.Now()
	outcome := p.executor.Run(execCtx, job, start)

	// A job cut short by the pool's own forced shutdown cancellation is
	// always a retry, never the job's own terminal failure — overriding
	// whatever the executor's backoff decision would otherwise be.
	if !outcome.Success && execCtx.Err() != nil {
		outcome = domain.Outcome{
			Success:     false,
			Error:       "worker shutdown: execution cancelled",
			Next:        domain.NextRetry,
			ScheduledAt: time.Now(),
		}
	}

	completeCtx, cancel := context.WithTimeout(context.Background(), completeTimeout)
	if err := p.store.Complete(completeCtx, job.ID, outcome, time.Now()); err != nil {
		logger.ErrorContext(completeCtx, "failed to persist job outcome", "job_id", job.ID, "error", err)
	}
	cancel()

	if !outcome.Success && outcome.Next == domain.NextRetry && p.fastQueue != nil {
		pushCtx, cancel := context.WithTimeout(context.Background(), completeTimeout)
		if err := p.fastQueue.Push(pushCtx, job.ID, job.Priority, outcome.ScheduledAt); err != nil {
			logger.WarnContext(pushCtx, "fast queue push for retry failed", "job_id", job.ID, "error", err)
		}
		cancel()
	}

	if p.onJobComplete != nil {
		p.onJobComplete(outcome, time.Since(start))
	}
}
