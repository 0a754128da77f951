package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript implements the atomic INCR+EXPIRE check described in
// spec §4.1: per-identifier key `{prefix}:{family}:{id}:{window}` (family is
// "ip" or "key"), allowed iff the post-increment count is <= limit.
var slidingWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisLimiter is the distributed sliding-window rate limiter variant.
// Per spec §7, it fails open (allows the request) if Redis is unreachable,
// to avoid correlated outage amplification.
type RedisLimiter struct {
	client         *redis.Client
	prefix         string
	windowSeconds  int64
	ipLimit        int64
	keyLimit       int64
}

// NewRedisLimiter constructs a distributed limiter sharing one window
// duration across both bucket families; each family has its own key segment.
func NewRedisLimiter(client *redis.Client, prefix string, windowSeconds int64, ipLimit, keyLimit int64) *RedisLimiter {
	return &RedisLimiter{
		client:        client,
		prefix:        prefix,
		windowSeconds: windowSeconds,
		ipLimit:       ipLimit,
		keyLimit:      keyLimit,
	}
}

func (r *RedisLimiter) check(ctx context.Context, family, id string, limit int64) Decision {
	now := time.Now().Unix()
	window := now / r.windowSeconds
	key := fmt.Sprintf("%s:%s:%s:%d", r.prefix, family, id, window)

	count, err := slidingWindowScript.Run(ctx, r.client, []string{key}, r.windowSeconds).Int64()
	if err != nil {
		// Fail open: a Redis outage must not take down ingress entirely.
		return Decision{Allowed: true, Remaining: float64(limit)}
	}

	if count <= limit {
		return Decision{Allowed: true, Remaining: float64(limit - count)}
	}
	retryAfter := int(r.windowSeconds - (now % r.windowSeconds))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
}

// CheckIP and CheckKey use a background context with a short deadline so a
// slow Redis call never blocks ingress for long before failing open.
func (r *RedisLimiter) CheckIP(ip string) Decision {
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	return r.check(ctx, "ip", ip, r.ipLimit)
}

func (r *RedisLimiter) CheckKey(key string) Decision {
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	return r.check(ctx, "key", key, r.keyLimit)
}

func (r *RedisLimiter) Close() {}
