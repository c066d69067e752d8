package attempts

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// guardTTL bounds how long a line stays reserved when nothing releases it,
// so a crashed worker cannot block a patient's line forever.
const guardTTL = 10 * time.Minute

var guardAcquireScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
else
  if redis.call('PTTL', KEYS[1]) < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
  end
end

if current > 1 then
  redis.call('DECR', KEYS[1])
  return 0
end
return 1
`)

var guardReleaseScript = redis.NewScript(`
local current = redis.call('DECR', KEYS[1])
if current <= 0 then
  redis.call('DEL', KEYS[1])
end
return 1
`)

// RedisGuard reserves a patient's phone line for one live reminder call at a
// time, so overlapping dispatches (a retry racing a fresh schedule) never
// dial the same number twice at once. The reservation expires after guardTTL
// if never released.
type RedisGuard struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(rdb *redis.Client) (*RedisGuard, error) {
	if rdb == nil {
		return nil, errors.New("attempts: redis client is required")
	}
	return &RedisGuard{rdb: rdb, prefix: "med:live:", ttl: guardTTL}, nil
}

// Acquire reserves the line. It reports false when a call to this number is
// already in flight.
func (g *RedisGuard) Acquire(ctx context.Context, phone string) (bool, error) {
	if phone == "" {
		return false, errors.New("attempts: phone is required")
	}
	res, err := guardAcquireScript.Run(ctx, g.rdb, []string{g.prefix + phone}, g.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Release frees the line for the next call.
func (g *RedisGuard) Release(ctx context.Context, phone string) error {
	if phone == "" {
		return errors.New("attempts: phone is required")
	}
	_, err := guardReleaseScript.Run(ctx, g.rdb, []string{g.prefix + phone}).Result()
	return err
}
