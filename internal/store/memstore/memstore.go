// Package memstore is an in-memory implementation of store.Store used
// only by tests that need to assert the engine's concurrency properties
// (exactly-once claim, priority ordering, bulk atomicity) without a live
// Postgres instance. It is not a deployment alternative to the pgx
// store — see SPEC_FULL.md §4.1.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arjunmehta-dev/taskforge/internal/domain"
	"github.com/arjunmehta-dev/taskforge/internal/store"
	"github.com/google/uuid"
)

type Store struct {
	mu      sync.Mutex
	jobs    map[string]*domain.Job
	ordinal map[string]int // insertion order, used as the "lowest id" tiebreak proxy
	seq     int
}

func New() *Store {
	return &Store{
		jobs:    make(map[string]*domain.Job),
		ordinal: make(map[string]int),
	}
}

func (s *Store) Ping(_ context.Context) error { return nil }

func clone(j *domain.Job) *domain.Job {
	cp := *j
	return &cp
}

func (s *Store) insertLocked(job *domain.Job) string {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = domain.StatusPending
	job.CreatedAt = time.Now()
	s.jobs[job.ID] = clone(job)
	s.seq++
	s.ordinal[job.ID] = s.seq
	return job.ID
}

func (s *Store) Insert(_ context.Context, job *domain.Job) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(job), nil
}

func (s *Store) InsertMany(_ context.Context, jobs []*domain.Job) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Atomic: stage into a temp map first so a mid-batch problem (none
	// currently possible in-memory, but kept symmetric with the
	// durable-store contract) never leaves a partial batch visible.
	staged := make(map[string]*domain.Job, len(jobs))
	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		id := job.ID
		if id == "" {
			id = uuid.NewString()
		}
		cp := clone(job)
		cp.ID = id
		cp.Status = domain.StatusPending
		cp.CreatedAt = time.Now()
		staged[id] = cp
		ids = append(ids, id)
	}
	for _, id := range ids {
		s.jobs[id] = staged[id]
		s.seq++
		s.ordinal[id] = s.seq
	}
	return ids, nil
}

func (s *Store) Fetch(_ context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return clone(j), nil
}

func (s *Store) List(_ context.Context, in store.ListInput) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*domain.Job
	for _, j := range s.jobs {
		if in.Filter.Status != "" && j.Status != in.Filter.Status {
			continue
		}
		if in.Filter.JobType != "" && j.JobType != in.Filter.JobType {
			continue
		}
		matched = append(matched, clone(j))
	}
	sort.Slice(matched, func(i, k int) bool { return matched[i].CreatedAt.After(matched[k].CreatedAt) })

	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}
	start := in.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

// eligibleLocked returns the candidate ids ordered by (priority desc,
// scheduled_at asc, insertion order asc) — the same ordering the
// durable store's ORDER BY enforces.
func (s *Store) eligibleLocked(now time.Time) []string {
	var ids []string
	for id, j := range s.jobs {
		if j.Status.Eligible() && !j.ScheduledAt.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, k int) bool {
		a, b := s.jobs[ids[i]], s.jobs[ids[k]]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.ScheduledAt.Equal(b.ScheduledAt) {
			return a.ScheduledAt.Before(b.ScheduledAt)
		}
		return s.ordinal[ids[i]] < s.ordinal[ids[k]]
	})
	return ids
}

func (s *Store) ClaimOne(_ context.Context, now time.Time) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := s.eligibleLocked(now)
	if len(candidates) == 0 {
		return nil, store.ErrNoEligibleJob
	}
	id := candidates[0]
	j := s.jobs[id]
	j.Status = domain.StatusRunning
	started := now
	j.StartedAt = &started
	j.Attempts++
	return clone(j), nil
}

func (s *Store) ClaimOneByID(_ context.Context, id string, now time.Time) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || !j.Status.Eligible() || j.ScheduledAt.After(now) {
		return nil, store.ErrNoEligibleJob
	}
	j.Status = domain.StatusRunning
	started := now
	j.StartedAt = &started
	j.Attempts++
	return clone(j), nil
}

func (s *Store) Complete(_ context.Context, id string, outcome domain.Outcome, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}

	if outcome.Success {
		j.Status = domain.StatusSucceeded
		j.CompletedAt = &now
		j.Result = outcome.Result
		return nil
	}

	errMsg := outcome.Error
	j.Error = &errMsg
	switch outcome.Next {
	case domain.NextTerminal:
		j.Status = domain.StatusFailed
		j.CompletedAt = &now
	case domain.NextRetry:
		j.Status = domain.StatusRetrying
		j.ScheduledAt = outcome.ScheduledAt
	}
	return nil
}

func (s *Store) Cancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if !j.Status.Eligible() {
		return domain.ErrJobNotCancellable
	}
	j.Status = domain.StatusCancelled
	now := time.Now()
	j.CompletedAt = &now
	return nil
}

func (s *Store) ResetForRetry(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if j.Status != domain.StatusFailed && j.Status != domain.StatusCancelled {
		return domain.ErrJobNotRetriable
	}
	j.Status = domain.StatusPending
	j.Error = nil
	j.ScheduledAt = now
	j.CompletedAt = nil
	return nil
}

func (s *Store) CountsByStatus(_ context.Context) (map[domain.Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.Status]int)
	for _, j := range s.jobs {
		counts[j.Status]++
	}
	return counts, nil
}

func (s *Store) CountEligible(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.eligibleLocked(now)), nil
}

func (s *Store) ScanEligible(_ context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.eligibleLocked(now)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	jobs := make([]*domain.Job, 0, len(ids))
	for _, id := range ids {
		jobs = append(jobs, clone(s.jobs[id]))
	}
	return jobs, nil
}
