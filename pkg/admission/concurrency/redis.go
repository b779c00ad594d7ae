package concurrency

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// releaseScript decrements the in-flight counter without letting it go
// negative, and refreshes the TTL. Runs atomically server-side.
const releaseScript = `
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current > 0 then
  redis.call('DECR', KEYS[1])
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return current
`

// RedisTracker is a Tracker backed by shared Redis counters, for
// multi-instance deployments. INCR gives an atomic pre/post pair and the
// key TTL provides the crash-drift safety net.
type RedisTracker struct {
	client     *redis.Client
	prefix     string
	releaseSHA string
}

// NewRedisTracker creates a Redis-backed tracker, verifying connectivity
// and preloading the release script.
func NewRedisTracker(ctx context.Context, client *redis.Client) (*RedisTracker, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	sha, err := client.ScriptLoad(ctx, releaseScript).Result()
	if err != nil {
		return nil, fmt.Errorf("loading release script: %w", err)
	}
	return &RedisTracker{
		client:     client,
		prefix:     "saturn:inflight:",
		releaseSHA: sha,
	}, nil
}

// Acquire implements Tracker.
func (t *RedisTracker) Acquire(ctx context.Context, key string) (int64, error) {
	redisKey := t.prefix + key

	pipe := t.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, CounterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("acquiring slot for %s: %w", key, err)
	}
	return incr.Val() - 1, nil
}

// Release implements Tracker.
func (t *RedisTracker) Release(ctx context.Context, key string) error {
	err := t.client.EvalSha(ctx, t.releaseSHA,
		[]string{t.prefix + key},
		CounterTTL.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("releasing slot for %s: %w", key, err)
	}
	return nil
}
