// Package redisqueue implements the fast tier as a single Redis sorted
// set, for multi-instance deployments where the fast tier must be
// shared across processes.
package redisqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arjunmehta-dev/taskforge/internal/queue"
	"github.com/redis/go-redis/v9"
)

// popScript inspects the single best-ordered member (priority desc,
// scheduled_at asc) and removes it only if it is actually eligible.
//
// The composite score in queue.Score mixes priority and scheduled_at
// into one dimension so priority dominates ordering; that means a
// plain ZRANGEBYSCORE upper bound on "now" cannot distinguish eligible
// from not-yet-eligible members (a high-priority job scheduled in the
// future still sorts below a low-priority job scheduled now). Instead
// this script keeps scheduled_at alongside in a hash and checks it
// directly: pop the head of the ZSET only if its recorded scheduled_at
// is at or before now, otherwise report empty and leave it in place.
// A caller seeing empty here may still find eligible work further down
// the set; that is an accepted accuracy/cost trade-off for an advisory
// tier — the durable store's claim_one scan is always the fallback.
var popScript = redis.NewScript(`
local key = KEYS[1]
local schedKey = KEYS[2]
local now = tonumber(ARGV[1])
local head = redis.call("ZRANGE", key, 0, 0)
if #head == 0 then
	return false
end
local id = head[1]
local sched = tonumber(redis.call("HGET", schedKey, id))
if sched == nil or sched > now then
	return false
end
redis.call("ZREM", key, id)
redis.call("HDEL", schedKey, id)
return id
`)

type Queue struct {
	client   *redis.Client
	key      string
	schedKey string
	logger   *slog.Logger
}

// New parses redisURL and configures a connection pool sized for a
// worker pool of tens of concurrent pollers sharing the API server's
// enqueue path.
func New(redisURL string, logger *slog.Logger) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.PoolSize = 50
	opts.MinIdleConns = 5
	opts.ConnMaxIdleTime = 10 * time.Minute
	opts.PoolTimeout = 5 * time.Second
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 8 * time.Millisecond
	opts.MaxRetryBackoff = 512 * time.Millisecond
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 5 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.ContextTimeoutEnabled = true

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Queue{
		client:  client,
		key:     "taskforge:queue:ready",
		schedKey: "taskforge:queue:scheduled_at",
		logger:  logger.With("component", "redisqueue"),
	}, nil
}

func (q *Queue) Push(ctx context.Context, id string, priority int, scheduledAt time.Time) error {
	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, q.key, redis.Z{
		Score:  queue.Score(priority, scheduledAt),
		Member: id,
	})
	pipe.HSet(ctx, q.schedKey, id, scheduledAt.UnixMilli())
	if _, err := pipe.Exec(ctx); err != nil {
		return &queue.TransientError{Err: fmt.Errorf("push: %w", err)}
	}
	return nil
}

func (q *Queue) PopReady(ctx context.Context, now time.Time) (string, error) {
	res, err := popScript.Run(ctx, q.client, []string{q.key, q.schedKey}, now.UnixMilli()).Result()
	if err == redis.Nil {
		return "", queue.ErrEmpty
	}
	if err != nil {
		return "", &queue.TransientError{Err: fmt.Errorf("pop ready: %w", err)}
	}
	id, ok := res.(string)
	if !ok || id == "" {
		return "", queue.ErrEmpty
	}
	return id, nil
}

func (q *Queue) Remove(ctx context.Context, id string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.key, id)
	pipe.HDel(ctx, q.schedKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return &queue.TransientError{Err: fmt.Errorf("remove: %w", err)}
	}
	return nil
}

func (q *Queue) Size(ctx context.Context) (int, error) {
	n, err := q.client.ZCard(ctx, q.key).Result()
	if err != nil {
		return 0, &queue.TransientError{Err: fmt.Errorf("zcard: %w", err)}
	}
	return int(n), nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}
