package attempts

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisCounter is a Counter backed by Redis INCR, shared across worker
// processes. INCR is atomic, so concurrent increments from unrelated calls
// need no further coordination.
type RedisCounter struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCounter(rdb *redis.Client, prefix string) (*RedisCounter, error) {
	if rdb == nil {
		return nil, errors.New("attempts: redis client is nil")
	}
	if prefix == "" {
		prefix = "med:attempts:"
	}
	return &RedisCounter{rdb: rdb, prefix: prefix}, nil
}

func (c *RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Incr(ctx, c.prefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("attempts: incr %s: %w", key, err)
	}
	return n, nil
}

func (c *RedisCounter) Get(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Get(ctx, c.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("attempts: get %s: %w", key, err)
	}
	return n, nil
}
