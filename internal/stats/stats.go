// Package stats implements component H: operator-facing introspection
// over the durable store and fast tier, plus a periodic refresh of the
// Prometheus gauges in internal/metrics so the HTTP stats endpoint and
// /metrics always agree — grounded in the teacher's pairing of a plain
// Go accessor (health.Checker) alongside a Prometheus registry.
package stats

import (
	"context"
	"log/slog"
	"time"

	"github.com/arjunmehta-dev/taskforge/internal/domain"
	"github.com/arjunmehta-dev/taskforge/internal/queue"
	"github.com/arjunmehta-dev/taskforge/internal/store"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// QueueDepth is a point-in-time, non-transactional snapshot of each
// tier's backlog.
type QueueDepth struct {
	Fast         int
	DurableReady int
}

type Service struct {
	store     store.Store
	fastQueue queue.FastQueue // nil when use_fast_queue is disabled
	logger    *slog.Logger

	onCounts     func(counts map[domain.Status]int)
	onQueueDepth func(depth QueueDepth)
}

func New(s store.Store, q queue.FastQueue, logger *slog.Logger) *Service {
	return &Service{store: s, fastQueue: q, logger: logger.With("component", "stats")}
}

// OnCountsRefresh and OnQueueDepthRefresh let the caller wire these
// snapshots into Prometheus gauges without stats importing metrics.
func (s *Service) OnCountsRefresh(fn func(counts map[domain.Status]int)) { s.onCounts = fn }
func (s *Service) OnQueueDepthRefresh(fn func(depth QueueDepth))         { s.onQueueDepth = fn }

func (s *Service) CountsByStatus(ctx context.Context) (map[domain.Status]int, error) {
	return s.store.CountsByStatus(ctx)
}

// Fetch implements get(id).
func (s *Service) Fetch(ctx context.Context, id string) (*domain.Job, error) {
	return s.store.Fetch(ctx, id)
}

// List applies spec.md §4.8's page size bounds before delegating to the
// store: default 50, capped at 500.
func (s *Service) List(ctx context.Context, filter domain.Filter, limit, offset int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return s.store.List(ctx, store.ListInput{Filter: filter, Limit: limit, Offset: offset})
}

func (s *Service) QueueDepth(ctx context.Context) (QueueDepth, error) {
	durableReady, err := s.store.CountEligible(ctx, time.Now())
	if err != nil {
		return QueueDepth{}, err
	}
	depth := QueueDepth{DurableReady: durableReady}
	if s.fastQueue != nil {
		fastSize, err := s.fastQueue.Size(ctx)
		if err != nil {
			// The fast tier is advisory; a read failure here degrades
			// the snapshot but must not fail the whole stats call.
			s.logger.WarnContext(ctx, "fast queue size unavailable", "error", err)
		} else {
			depth.Fast = fastSize
		}
	}
	return depth, nil
}

// RunGaugeRefresh blocks, periodically feeding counts and queue depth
// into the registered hooks, until ctx is cancelled.
func (s *Service) RunGaugeRefresh(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshOnce(ctx)
		}
	}
}

func (s *Service) refreshOnce(ctx context.Context) {
	if s.onCounts != nil {
		if counts, err := s.CountsByStatus(ctx); err == nil {
			s.onCounts(counts)
		} else {
			s.logger.WarnContext(ctx, "counts refresh failed", "error", err)
		}
	}
	if s.onQueueDepth != nil {
		if depth, err := s.QueueDepth(ctx); err == nil {
			s.onQueueDepth(depth)
		} else {
			s.logger.WarnContext(ctx, "queue depth refresh failed", "error", err)
		}
	}
}
