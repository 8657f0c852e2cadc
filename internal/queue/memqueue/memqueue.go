// Package memqueue is an in-memory fast tier, used for single-instance
// deployments where use_fast_queue is disabled or no Redis is
// configured. Unlike redisqueue it can afford an exact scan for
// eligibility on every pop since there is no network round trip and no
// other process sharing the structure.
package memqueue

import (
	"container/heap"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arjunmehta-dev/taskforge/internal/queue"
)

type entry struct {
	id          string
	priority    int
	scheduledAt time.Time
	index       int
}

// byOrder orders by priority desc, scheduled_at asc — the same order
// queue.Score encodes for the Redis tier.
type byOrder []*entry

func (h byOrder) Len() int { return len(h) }
func (h byOrder) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].scheduledAt.Before(h[j].scheduledAt)
}
func (h byOrder) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *byOrder) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *byOrder) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is a heap-ordered fast tier guarded by a mutex. PopReady scans
// the heap in order and pops the first eligible entry it finds, since
// the head of the heap (highest priority overall) is not necessarily
// the head of the *eligible* subset when it is scheduled in the
// future.
type Queue struct {
	mu   sync.Mutex
	h    byOrder
	byID map[string]*entry
}

func New() *Queue {
	return &Queue{byID: make(map[string]*entry)}
}

func (q *Queue) Push(_ context.Context, id string, priority int, scheduledAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e, ok := q.byID[id]; ok {
		heap.Remove(&q.h, e.index)
		delete(q.byID, id)
	}
	e := &entry{id: id, priority: priority, scheduledAt: scheduledAt}
	heap.Push(&q.h, e)
	q.byID[id] = e
	return nil
}

func (q *Queue) PopReady(_ context.Context, now time.Time) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Scan in heap order (not heap storage order) so ties and
	// eligibility checks respect the same ordering claim_one uses.
	// Sorted with sort.Slice (not sort.Sort(byOrder(...))): byOrder's
	// Swap mutates entry.index for heap bookkeeping, which must not
	// happen on this throwaway snapshot.
	ordered := make([]*entry, len(q.h))
	copy(ordered, q.h)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].priority != ordered[j].priority {
			return ordered[i].priority > ordered[j].priority
		}
		return ordered[i].scheduledAt.Before(ordered[j].scheduledAt)
	})

	for _, e := range ordered {
		if e.scheduledAt.After(now) {
			continue
		}
		heap.Remove(&q.h, e.index)
		delete(q.byID, e.id)
		return e.id, nil
	}
	return "", queue.ErrEmpty
}

func (q *Queue) Remove(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byID[id]
	if !ok {
		return nil
	}
	heap.Remove(&q.h, e.index)
	delete(q.byID, id)
	return nil
}

func (q *Queue) Size(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h), nil
}
