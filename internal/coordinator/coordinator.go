// Package coordinator implements component C: it owns the enqueue and
// dequeue flow across the durable store (A) and the fast queue (B), and
// runs the periodic reconciliation between them.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/arjunmehta-dev/taskforge/internal/domain"
	"github.com/arjunmehta-dev/taskforge/internal/queue"
	"github.com/arjunmehta-dev/taskforge/internal/store"
)

// maxFastTierAttempts bounds the next_job retry loop against stale fast
// tier entries before falling back to a generic store scan — spec.md
// §4.3 calls for "a small bounded number of tries".
const maxFastTierAttempts = 3

// reclaimScanBatch bounds how many durable rows a single reclaim pass
// re-publishes to the fast tier.
const reclaimScanBatch = 500

type Coordinator struct {
	store        store.Store
	fastQueue    queue.FastQueue // nil when use_fast_queue is disabled
	logger       *slog.Logger
	reclaimEvery time.Duration

	reclaimRescued func(n int) // metrics hook, optional
}

func New(s store.Store, q queue.FastQueue, reclaimEvery time.Duration, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:        s,
		fastQueue:    q,
		reclaimEvery: reclaimEvery,
		logger:       logger.With("component", "coordinator"),
	}
}

// OnReclaimRescued registers a callback invoked with the count of
// jobs republished to the fast tier by each reclaim_scan pass.
func (c *Coordinator) OnReclaimRescued(fn func(n int)) {
	c.reclaimRescued = fn
}

// Submit writes a single job durably, then best-effort publishes it to
// the fast tier — a fast-queue failure never fails the submission.
func (c *Coordinator) Submit(ctx context.Context, job *domain.Job) (string, error) {
	id, err := c.store.Insert(ctx, job)
	if err != nil {
		return "", err
	}
	c.pushBestEffort(ctx, id, job.Priority, job.ScheduledAt)
	return id, nil
}

// SubmitBulk writes jobs.len <= bulk_submit_cap durably in one atomic
// batch, then best-effort pushes each to the fast tier.
func (c *Coordinator) SubmitBulk(ctx context.Context, jobs []*domain.Job) ([]string, error) {
	ids, err := c.store.InsertMany(ctx, jobs)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		c.pushBestEffort(ctx, id, jobs[i].Priority, jobs[i].ScheduledAt)
	}
	return ids, nil
}

func (c *Coordinator) pushBestEffort(ctx context.Context, id string, priority int, scheduledAt time.Time) {
	if c.fastQueue == nil {
		return
	}
	if err := c.fastQueue.Push(ctx, id, priority, scheduledAt); err != nil {
		c.logger.WarnContext(ctx, "fast queue push failed, falling back to durable scan for this job", "job_id", id, "error", err)
	}
}

// NextJob implements spec.md §4.3's next_job: try the fast tier first,
// bounded by maxFastTierAttempts, then fall back to a generic store
// scan. Returns store.ErrNoEligibleJob if nothing is claimable anywhere.
func (c *Coordinator) NextJob(ctx context.Context, now time.Time) (*domain.Job, error) {
	if c.fastQueue != nil {
		for i := 0; i < maxFastTierAttempts; i++ {
			id, err := c.fastQueue.PopReady(ctx, now)
			if errors.Is(err, queue.ErrEmpty) {
				break
			}
			if err != nil {
				c.logger.WarnContext(ctx, "fast queue unavailable, falling back to durable scan", "error", err)
				break
			}
			job, err := c.store.ClaimOneByID(ctx, id, now)
			if err == nil {
				return job, nil
			}
			if !errors.Is(err, store.ErrNoEligibleJob) {
				return nil, err
			}
			// The popped id is stale (already taken, cancelled, or
			// not yet eligible) — silently discard and try the fast
			// tier again.
			c.logger.DebugContext(ctx, "fast queue id no longer eligible, discarding", "job_id", id)
		}
	}
	return c.store.ClaimOne(ctx, now)
}

// Cancel forwards to the store and, on success, best-effort removes
// the id from the fast tier so it is never popped again.
func (c *Coordinator) Cancel(ctx context.Context, id string) error {
	if err := c.store.Cancel(ctx, id); err != nil {
		return err
	}
	if c.fastQueue != nil {
		if err := c.fastQueue.Remove(ctx, id); err != nil {
			c.logger.WarnContext(ctx, "fast queue remove after cancel failed", "job_id", id, "error", err)
		}
	}
	return nil
}

// Retry forwards to the store's reset_for_retry and best-effort
// republishes the job to the fast tier at its new scheduled_at.
func (c *Coordinator) Retry(ctx context.Context, id string, now time.Time) error {
	if err := c.store.ResetForRetry(ctx, id, now); err != nil {
		return err
	}
	job, err := c.store.Fetch(ctx, id)
	if err != nil {
		return nil // store write already succeeded; best-effort republish only
	}
	c.pushBestEffort(ctx, id, job.Priority, job.ScheduledAt)
	return nil
}

// RunReclaimScan blocks, periodically reconciling the fast tier
// against the durable store, until ctx is cancelled. It is meant to run
// as its own goroutine alongside the worker pool.
func (c *Coordinator) RunReclaimScan(ctx context.Context) {
	if c.fastQueue == nil {
		return
	}
	ticker := time.NewTicker(c.reclaimEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reclaimScanOnce(ctx)
		}
	}
}

func (c *Coordinator) reclaimScanOnce(ctx context.Context) {
	now := time.Now()
	jobs, err := c.store.ScanEligible(ctx, now, reclaimScanBatch)
	if err != nil {
		c.logger.WarnContext(ctx, "reclaim scan failed", "error", err)
		return
	}
	rescued := 0
	for _, j := range jobs {
		if err := c.fastQueue.Push(ctx, j.ID, j.Priority, j.ScheduledAt); err != nil {
			c.logger.WarnContext(ctx, "reclaim scan push failed", "job_id", j.ID, "error", err)
			continue
		}
		rescued++
	}
	if rescued > 0 {
		c.logger.InfoContext(ctx, "reclaim scan republished jobs", "count", rescued)
		if c.reclaimRescued != nil {
			c.reclaimRescued(rescued)
		}
	}
}
