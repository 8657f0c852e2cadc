package memqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/arjunmehta-dev/taskforge/internal/queue"
	"github.com/arjunmehta-dev/taskforge/internal/queue/memqueue"
)

func TestPopReady_HighestPriorityFirst(t *testing.T) {
	q := memqueue.New()
	ctx := context.Background()
	now := time.Now()

	_ = q.Push(ctx, "low", 1, now)
	_ = q.Push(ctx, "high", 10, now)

	id, err := q.PopReady(ctx, now)
	if err != nil {
		t.Fatalf("pop ready: %v", err)
	}
	if id != "high" {
		t.Fatalf("expected high to pop first, got %s", id)
	}
}

func TestPopReady_SkipsFuturePriorityForEligibleLower(t *testing.T) {
	q := memqueue.New()
	ctx := context.Background()
	now := time.Now()

	_ = q.Push(ctx, "future-high", 100, now.Add(time.Hour))
	_ = q.Push(ctx, "ready-low", 1, now)

	id, err := q.PopReady(ctx, now)
	if err != nil {
		t.Fatalf("pop ready: %v", err)
	}
	if id != "ready-low" {
		t.Fatalf("expected ready-low since future-high is not yet eligible, got %s", id)
	}

	if _, err := q.PopReady(ctx, now); err != queue.ErrEmpty {
		t.Fatalf("expected ErrEmpty since only future-high remains, got %v", err)
	}
}

func TestPopReady_EmptyWhenNothingReady(t *testing.T) {
	q := memqueue.New()
	ctx := context.Background()
	now := time.Now()

	_ = q.Push(ctx, "future", 0, now.Add(time.Minute))

	if _, err := q.PopReady(ctx, now); err != queue.ErrEmpty {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	q := memqueue.New()
	ctx := context.Background()
	now := time.Now()

	_ = q.Push(ctx, "a", 0, now)
	if err := q.Remove(ctx, "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := q.PopReady(ctx, now); err != queue.ErrEmpty {
		t.Fatalf("expected ErrEmpty after remove, got %v", err)
	}
}

func TestSize(t *testing.T) {
	q := memqueue.New()
	ctx := context.Background()
	now := time.Now()

	_ = q.Push(ctx, "a", 0, now)
	_ = q.Push(ctx, "b", 0, now)

	n, err := q.Size(ctx)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected size 2, got %d", n)
	}
}

func TestPush_ReplacesExistingID(t *testing.T) {
	q := memqueue.New()
	ctx := context.Background()
	now := time.Now()

	_ = q.Push(ctx, "a", 1, now)
	_ = q.Push(ctx, "a", 100, now)

	n, _ := q.Size(ctx)
	if n != 1 {
		t.Fatalf("expected re-pushing the same id to replace, got size %d", n)
	}
}
