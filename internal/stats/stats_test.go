package stats_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/arjunmehta-dev/taskforge/internal/domain"
	"github.com/arjunmehta-dev/taskforge/internal/queue/memqueue"
	"github.com/arjunmehta-dev/taskforge/internal/stats"
	"github.com/arjunmehta-dev/taskforge/internal/store/memstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCountsByStatus(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	now := time.Now()

	_, _ = s.Insert(ctx, &domain.Job{JobType: "x", ScheduledAt: now})
	_, _ = s.Insert(ctx, &domain.Job{JobType: "x", ScheduledAt: now})

	svc := stats.New(s, nil, discardLogger())
	counts, err := svc.CountsByStatus(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[domain.StatusPending] != 2 {
		t.Fatalf("expected 2 pending, got %d", counts[domain.StatusPending])
	}
}

func TestList_DefaultAndMaxPageSize(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	svc := stats.New(s, nil, discardLogger())

	for i := 0; i < 10; i++ {
		_, _ = s.Insert(ctx, &domain.Job{JobType: "x", ScheduledAt: time.Now()})
	}

	jobs, err := svc.List(ctx, domain.Filter{}, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 10 {
		t.Fatalf("expected default page to return all 10, got %d", len(jobs))
	}

	jobs, err = svc.List(ctx, domain.Filter{}, 10000, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 10 {
		t.Fatalf("expected capped limit to still return the 10 available, got %d", len(jobs))
	}
}

func TestQueueDepth(t *testing.T) {
	s := memstore.New()
	q := memqueue.New()
	ctx := context.Background()
	now := time.Now()

	id, _ := s.Insert(ctx, &domain.Job{JobType: "x", ScheduledAt: now})
	_ = q.Push(ctx, id, 0, now)

	svc := stats.New(s, q, discardLogger())
	depth, err := svc.QueueDepth(ctx)
	if err != nil {
		t.Fatalf("queue depth: %v", err)
	}
	if depth.Fast != 1 {
		t.Fatalf("expected fast depth 1, got %d", depth.Fast)
	}
	if depth.DurableReady != 1 {
		t.Fatalf("expected durable ready depth 1, got %d", depth.DurableReady)
	}
}

func TestQueueDepth_NilFastQueue(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	svc := stats.New(s, nil, discardLogger())

	depth, err := svc.QueueDepth(ctx)
	if err != nil {
		t.Fatalf("queue depth: %v", err)
	}
	if depth.Fast != 0 {
		t.Fatalf("expected fast depth 0 when fast tier disabled, got %d", depth.Fast)
	}
}
