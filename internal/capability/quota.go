package capability

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Quota is satisfied by any per-capability token bucket, in-memory or
// Redis-backed.
type Quota interface {
	Allow(now time.Time) bool
}

// QuotaBucket is a fixed-window token bucket: maxTokens are available per
// resetInterval, replenished wholesale at each window boundary rather than
// via continuous refill.
type QuotaBucket struct {
	maxTokens     int
	resetInterval time.Duration

	mu          sync.Mutex
	used        int
	windowStart time.Time
}

// NewQuotaBucket builds an in-memory quota bucket. maxTokens <= 0 means
// unlimited.
func NewQuotaBucket(maxTokens int, resetInterval time.Duration) *QuotaBucket {
	return &QuotaBucket{maxTokens: maxTokens, resetInterval: resetInterval}
}

// Allow consumes one token if the current window has room.
func (q *QuotaBucket) Allow(now time.Time) bool {
	if q.maxTokens <= 0 {
		return true
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.windowStart.IsZero() || now.Sub(q.windowStart) >= q.resetInterval {
		q.windowStart = now
		q.used = 0
	}
	if q.used >= q.maxTokens {
		return false
	}
	q.used++
	return true
}

// RedisQuota is a Redis-backed quota bucket for deployments that share
// capability quotas across multiple registry instances.
type RedisQuota struct {
	client        *redis.Client
	key           string
	maxTokens     int
	resetInterval time.Duration
}

// NewRedisQuota builds a quota bucket backed by a Redis INCR/EXPIRE pair.
func NewRedisQuota(client *redis.Client, key string, maxTokens int, resetInterval time.Duration) *RedisQuota {
	return &RedisQuota{client: client, key: key, maxTokens: maxTokens, resetInterval: resetInterval}
}

// Allow atomically increments the window counter and expires it on first
// use, so every caller shares the same fixed window regardless of which
// registry instance observes it first.
func (q *RedisQuota) Allow(now time.Time) bool {
	if q.maxTokens <= 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	count, err := q.client.Incr(ctx, q.key).Result()
	if err != nil {
		return false
	}
	if count == 1 {
		q.client.Expire(ctx, q.key, q.resetInterval)
	}
	return count <= int64(q.maxTokens)
}
