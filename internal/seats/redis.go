package seats

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the key used by the reference deployment.
const DefaultKey = "available_seats"

// RedisStore keeps the counter as a plain string value under Key.
type RedisStore struct {
	rdb redis.Cmdable
	key string
}

// NewRedisStore returns a store using key, or DefaultKey when key is empty.
func NewRedisStore(rdb redis.Cmdable, key string) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Key() string { return s.key }

func (s *RedisStore) Seats(ctx context.Context) (int, error) {
	v, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w: %v", s.key, ErrStoreUnavailable, err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", s.key, v, err)
	}
	return n, nil
}

func (s *RedisStore) SetSeats(ctx context.Context, n int) error {
	if err := s.rdb.Set(ctx, s.key, n, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w: %v", s.key, ErrStoreUnavailable, err)
	}
	return nil
}
