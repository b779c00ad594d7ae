package window

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by a shared Redis instance, for deployments
// where several service instances must see one set of counters.
//
// Each (identity, kind) pair maps to a hash whose fields are sub-bucket
// start times (unix seconds) and whose values are cost totals. HINCRBYFLOAT
// gives atomic per-bucket increments server-side, so concurrent writers
// across instances never lose updates. The whole hash carries a TTL of one
// window past the newest bucket as a leak guard.
type RedisStore struct {
	client *redis.Client
	prefix string
	nowFn  func() time.Time
}

// NewRedisStore creates a Redis-backed window store and verifies
// connectivity with a ping.
func NewRedisStore(ctx context.Context, client *redis.Client) (*RedisStore, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{
		client: client,
		prefix: "saturn:usage",
		nowFn:  time.Now,
	}, nil
}

// Record implements Store.
func (r *RedisStore) Record(ctx context.Context, key string, kind Kind, cost float64) error {
	now := r.nowFn()
	bucketStart := now.Truncate(kind.BucketSize()).Unix()
	hashKey := r.hashKey(key, kind)

	pipe := r.client.Pipeline()
	pipe.HIncrByFloat(ctx, hashKey, strconv.FormatInt(bucketStart, 10), cost)
	pipe.Expire(ctx, hashKey, kind.Duration()+kind.BucketSize())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording %s usage for %s: %w", kind, key, err)
	}
	return nil
}

// Current implements Store. Expired sub-buckets found during the read are
// deleted opportunistically to keep hashes small.
func (r *RedisStore) Current(ctx context.Context, key string, kind Kind) (Usage, error) {
	hashKey := r.hashKey(key, kind)

	fields, err := r.client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return Usage{}, fmt.Errorf("reading %s usage for %s: %w", kind, key, err)
	}

	now := r.nowFn()
	cutoff := now.Add(-kind.Duration()).Unix()

	var (
		total   float64
		oldest  int64 = -1
		expired []string
	)
	for field, raw := range fields {
		ts, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			expired = append(expired, field)
			continue
		}
		if ts < cutoff {
			expired = append(expired, field)
			continue
		}
		cost, err := strconv.ParseFloat(raw, 64)
		if err != nil || cost == 0 {
			continue
		}
		total += cost
		if oldest == -1 || ts < oldest {
			oldest = ts
		}
	}

	if len(expired) > 0 {
		r.client.HDel(ctx, hashKey, expired...)
	}

	usage := Usage{TotalCost: total}
	if oldest >= 0 {
		remaining := time.Unix(oldest, 0).Add(kind.Duration()).Sub(now)
		if remaining > 0 {
			usage.TimeRemaining = remaining
		}
	}
	return usage, nil
}

func (r *RedisStore) hashKey(key string, kind Kind) string {
	return r.prefix + ":" + string(kind) + ":" + key
}
