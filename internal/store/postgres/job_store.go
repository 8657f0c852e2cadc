package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arjunmehta-dev/taskforge/internal/domain"
	"github.com/arjunmehta-dev/taskforge/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// JobStore is the pgx-backed implementation of store.Store. Claim uses
// SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers — in one
// process or many — never observe the same row as claimable.
type JobStore struct {
	pool *pgxpool.Pool
}

func NewJobStore(pool *pgxpool.Pool) *JobStore {
	return &JobStore{pool: pool}
}

func (s *JobStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *JobStore) Insert(ctx context.Context, job *domain.Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (
			id, name, job_type, priority, payload, status, attempts,
			max_retries, scheduled_at, created_at, owner_id
		) VALUES ($1, $2, $3, $4, $5, 'pending', 0, $6, $7, NOW(), $8)`,
		job.ID, job.Name, job.JobType, job.Priority, job.Payload,
		job.MaxRetries, job.ScheduledAt, job.OwnerID,
	)
	if err != nil {
		return "", &store.TransientError{Err: fmt.Errorf("insert job: %w", err)}
	}
	return job.ID, nil
}

// InsertMany writes every job inside one transaction — if any row fails
// to insert, the transaction rolls back and no row for any job exists.
func (s *JobStore) InsertMany(ctx context.Context, jobs []*domain.Job) ([]string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, &store.TransientError{Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO jobs (
				id, name, job_type, priority, payload, status, attempts,
				max_retries, scheduled_at, created_at, owner_id
			) VALUES ($1, $2, $3, $4, $5, 'pending', 0, $6, $7, NOW(), $8)`,
			job.ID, job.Name, job.JobType, job.Priority, job.Payload,
			job.MaxRetries, job.ScheduledAt, job.OwnerID,
		)
		if err != nil {
			return nil, &store.TransientError{Err: fmt.Errorf("insert job %s: %w", job.ID, err)}
		}
		ids = append(ids, job.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &store.TransientError{Err: fmt.Errorf("commit tx: %w", err)}
	}
	return ids, nil
}

func (s *JobStore) Fetch(ctx context.Context, id string) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, selectColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (s *JobStore) List(ctx context.Context, in store.ListInput) ([]*domain.Job, error) {
	args := []any{}
	where := []string{}

	if in.Filter.Status != "" {
		args = append(args, in.Filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if in.Filter.JobType != "" {
		args = append(args, in.Filter.JobType)
		where = append(where, fmt.Sprintf("job_type = $%d", len(args)))
	}

	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	limitIdx := len(args)
	args = append(args, in.Offset)
	offsetIdx := len(args)

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	query := fmt.Sprintf(`%s FROM jobs %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		selectColumns, whereClause, limitIdx, offsetIdx)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &store.TransientError{Err: fmt.Errorf("list jobs: %w", err)}
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// ClaimOne is the generic scan: highest priority, then earliest
// scheduled_at, then lowest id among eligible rows.
func (s *JobStore) ClaimOne(ctx context.Context, now time.Time) (*domain.Job, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE jobs
		SET    status       = 'running',
		       started_at   = $1,
		       attempts     = attempts + 1
		WHERE id = (
			SELECT id FROM jobs
			WHERE  status IN ('pending', 'retrying')
			  AND  scheduled_at <= $1
			ORDER BY priority DESC, scheduled_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id`, now)

	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNoEligibleJob
		}
		return nil, &store.TransientError{Err: fmt.Errorf("claim one: %w", err)}
	}
	return s.Fetch(ctx, id)
}

// ClaimOneByID attempts to claim exactly the given row. It is the
// focused path the coordinator uses after popping an id from the fast
// tier — a no-op UPDATE (0 rows affected) means the row is no longer
// eligible, and the caller silently discards and retries elsewhere.
func (s *JobStore) ClaimOneByID(ctx context.Context, id string, now time.Time) (*domain.Job, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET    status       = 'running',
		       started_at   = $2,
		       attempts     = attempts + 1
		WHERE id = (
			SELECT id FROM jobs
			WHERE  id = $1
			  AND  status IN ('pending', 'retrying')
			  AND  scheduled_at <= $2
			FOR UPDATE SKIP LOCKED
		)`, id, now)
	if err != nil {
		return nil, &store.TransientError{Err: fmt.Errorf("claim by id: %w", err)}
	}
	if tag.RowsAffected() == 0 {
		return nil, store.ErrNoEligibleJob
	}
	return s.Fetch(ctx, id)
}

func (s *JobStore) Complete(ctx context.Context, id string, outcome domain.Outcome, now time.Time) error {
	if outcome.Success {
		_, err := s.pool.Exec(ctx, `
			UPDATE jobs
			SET status = 'succeeded', completed_at = $2, result = $3
			WHERE id = $1`, id, now, outcome.Result)
		if err != nil {
			return &store.TransientError{Err: fmt.Errorf("complete success: %w", err)}
		}
		return nil
	}

	switch outcome.Next {
	case domain.NextTerminal:
		_, err := s.pool.Exec(ctx, `
			UPDATE jobs
			SET status = 'failed', completed_at = $2, error = $3
			WHERE id = $1`, id, now, outcome.Error)
		if err != nil {
			return &store.TransientError{Err: fmt.Errorf("complete terminal failure: %w", err)}
		}
		return nil
	case domain.NextRetry:
		_, err := s.pool.Exec(ctx, `
			UPDATE jobs
			SET status = 'retrying', scheduled_at = $2, error = $3
			WHERE id = $1`, id, outcome.ScheduledAt, outcome.Error)
		if err != nil {
			return &store.TransientError{Err: fmt.Errorf("complete retry: %w", err)}
		}
		return nil
	default:
		return fmt.Errorf("complete: unknown outcome.Next %q", outcome.Next)
	}
}

func (s *JobStore) Cancel(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = 'cancelled', completed_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'retrying')`, id)
	if err != nil {
		return &store.TransientError{Err: fmt.Errorf("cancel: %w", err)}
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Fetch(ctx, id); err != nil {
			return err
		}
		return domain.ErrJobNotCancellable
	}
	return nil
}

func (s *JobStore) ResetForRetry(ctx context.Context, id string, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'pending', error = NULL, scheduled_at = $2, completed_at = NULL
		WHERE id = $1 AND status IN ('failed', 'cancelled')`, id, now)
	if err != nil {
		return &store.TransientError{Err: fmt.Errorf("reset for retry: %w", err)}
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Fetch(ctx, id); err != nil {
			return err
		}
		return domain.ErrJobNotRetriable
	}
	return nil
}

func (s *JobStore) CountsByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, &store.TransientError{Err: fmt.Errorf("counts by status: %w", err)}
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status domain.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		counts[status] = count
	}
	return counts, nil
}

func (s *JobStore) CountEligible(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM jobs
		WHERE status IN ('pending', 'retrying') AND scheduled_at <= $1`, now).Scan(&count)
	if err != nil {
		return 0, &store.TransientError{Err: fmt.Errorf("count eligible: %w", err)}
	}
	return count, nil
}

func (s *JobStore) ScanEligible(ctx context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	rows, err := s.pool.Query(ctx, selectColumns+`
		FROM jobs
		WHERE status IN ('pending', 'retrying') AND scheduled_at <= $1
		ORDER BY priority DESC, scheduled_at ASC, id ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, &store.TransientError{Err: fmt.Errorf("scan eligible: %w", err)}
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

const selectColumns = `
	SELECT id, name, job_type, priority, payload, status, attempts,
	       max_retries, scheduled_at, created_at, started_at,
	       completed_at, result, error, owner_id`

// pgx.Row and pgx.Rows both implement this.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(
		&j.ID, &j.Name, &j.JobType, &j.Priority, &j.Payload, &j.Status, &j.Attempts,
		&j.MaxRetries, &j.ScheduledAt, &j.CreatedAt, &j.StartedAt,
		&j.CompletedAt, &j.Result, &j.Error, &j.OwnerID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}
