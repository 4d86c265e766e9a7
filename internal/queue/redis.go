package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLog stores jobs as JSON in two lists per job type:
//
//	<prefix>:<type>:pending  LPUSH on enqueue, consumed from the right
//	<prefix>:<type>:active   BLMOVE target while a job is being processed
//
// Acking removes the payload from the active list.  Whatever is left in the
// active list when a consumer first pops (a crash mid-job) is moved back to
// the consuming end of pending, so it is delivered again before newer jobs.
type RedisLog struct {
	rdb     redis.Cmdable
	prefix  string
	timeout time.Duration

	mu        sync.Mutex
	recovered map[string]bool
}

// NewRedisLog returns a log under prefix ("q" when empty).
func NewRedisLog(rdb redis.Cmdable, prefix string) *RedisLog {
	if prefix == "" {
		prefix = "q"
	}
	return &RedisLog{
		rdb:       rdb,
		prefix:    prefix,
		timeout:   time.Second,
		recovered: make(map[string]bool),
	}
}

func (l *RedisLog) pendingKey(jobType string) string {
	return fmt.Sprintf("%s:%s:pending", l.prefix, jobType)
}

func (l *RedisLog) activeKey(jobType string) string {
	return fmt.Sprintf("%s:%s:active", l.prefix, jobType)
}

func (l *RedisLog) Push(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return l.rdb.LPush(ctx, l.pendingKey(job.Type), data).Err()
}

// Pop polls BLMOVE with a short timeout so ctx cancellation is noticed
// without closing the shared client.
func (l *RedisLog) Pop(ctx context.Context, jobType string) (Job, error) {
	if err := l.recover(ctx, jobType); err != nil {
		return Job{}, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return Job{}, err
		}
		raw, err := l.rdb.BLMove(ctx, l.pendingKey(jobType), l.activeKey(jobType), "RIGHT", "LEFT", l.timeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			return Job{}, fmt.Errorf("blmove %s: %w", l.pendingKey(jobType), err)
		}
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			// Drop the poison payload rather than redelivering it forever.
			_ = l.rdb.LRem(ctx, l.activeKey(jobType), 1, raw).Err()
			return Job{}, fmt.Errorf("unmarshal job: %w", err)
		}
		job.raw = raw
		return job, nil
	}
}

func (l *RedisLog) Ack(ctx context.Context, job Job) error {
	raw := job.raw
	if raw == "" {
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		raw = string(data)
	}
	return l.rdb.LRem(ctx, l.activeKey(job.Type), 1, raw).Err()
}

// recover runs once per job type.
func (l *RedisLog) recover(ctx context.Context, jobType string) error {
	l.mu.Lock()
	done := l.recovered[jobType]
	l.mu.Unlock()
	if done {
		return nil
	}
	for {
		err := l.rdb.LMove(ctx, l.activeKey(jobType), l.pendingKey(jobType), "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return fmt.Errorf("recover %s: %w", l.activeKey(jobType), err)
		}
	}
	l.mu.Lock()
	l.recovered[jobType] = true
	l.mu.Unlock()
	return nil
}

// Len returns the pending and active list lengths for jobType.
func (l *RedisLog) Len(ctx context.Context, jobType string) (pending, active int64, err error) {
	pending, err = l.rdb.LLen(ctx, l.pendingKey(jobType)).Result()
	if err != nil {
		return 0, 0, err
	}
	active, err = l.rdb.LLen(ctx, l.activeKey(jobType)).Result()
	return pending, active, err
}

// Close is a no-op; the Redis client is owned by the caller.
func (l *RedisLog) Close() error { return nil }
