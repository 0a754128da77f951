package ack

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/notifyhub/core/internal/model"
)

// RedisTracker is the Redis backend of spec §4.5: one hash per pending
// entry plus a sorted set keyed by expiry timestamp for O(log n) sweep.
type RedisTracker struct {
	cfg    Config
	client *redis.Client
	prefix string
}

func NewRedisTracker(client *redis.Client, prefix string, cfg Config) *RedisTracker {
	return &RedisTracker{cfg: cfg, client: client, prefix: prefix}
}

func (t *RedisTracker) pendingKey(id model.NotificationId) string {
	return fmt.Sprintf("%s:%s:pending:%s", t.prefix, t.cfg.TenantID, id)
}

func (t *RedisTracker) timeoutKey() string {
	return fmt.Sprintf("%s:%s:timeout", t.prefix, t.cfg.TenantID)
}

func (t *RedisTracker) statsKey() string {
	return fmt.Sprintf("%s:%s:stats", t.prefix, t.cfg.TenantID)
}

func (t *RedisTracker) Track(ctx context.Context, notificationID model.NotificationId, userID model.UserId, connectionID model.ConnectionId) {
	if !t.cfg.Enabled {
		return
	}
	sentAt := nowUnix()
	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, t.pendingKey(notificationID), map[string]interface{}{
		"notification_id": string(notificationID),
		"user_id":         string(userID),
		"connection_id":   string(connectionID),
		"sent_at":         sentAt,
	})
	pipe.ZAdd(ctx, t.timeoutKey(), redis.Z{Score: float64(sentAt + t.cfg.TimeoutSeconds), Member: string(notificationID)})
	pipe.HIncrBy(ctx, t.statsKey(), "total_tracked", 1)
	// Best-effort: Track must not block the dispatcher (spec §4.5), so
	// failures here are swallowed rather than surfaced to the caller.
	_, _ = pipe.Exec(ctx)
}

func (t *RedisTracker) Acknowledge(ctx context.Context, notificationID model.NotificationId, userID model.UserId) (bool, error) {
	key := t.pendingKey(notificationID)
	vals, err := t.client.HGetAll(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if len(vals) == 0 || vals["user_id"] != string(userID) {
		return false, nil
	}

	sentAt, _ := strconv.ParseInt(vals["sent_at"], 10, 64)
	latencyMs := (nowUnix() - sentAt) * 1000

	pipe := t.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.ZRem(ctx, t.timeoutKey(), string(notificationID))
	pipe.HIncrBy(ctx, t.statsKey(), "total_acked", 1)
	pipe.HIncrBy(ctx, t.statsKey(), "latency_sum_ms", latencyMs)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (t *RedisTracker) GetPending(ctx context.Context, notificationID model.NotificationId) (model.PendingAck, bool, error) {
	vals, err := t.client.HGetAll(ctx, t.pendingKey(notificationID)).Result()
	if err != nil {
		return model.PendingAck{}, false, err
	}
	if len(vals) == 0 {
		return model.PendingAck{}, false, nil
	}
	sentAt, _ := strconv.ParseInt(vals["sent_at"], 10, 64)
	return model.PendingAck{
		NotificationID: notificationID,
		UserID:         model.UserId(vals["user_id"]),
		ConnectionID:   model.ConnectionId(vals["connection_id"]),
		SentAt:         sentAt,
	}, true, nil
}

// CleanupExpired range-scans the timeout sorted set by score, deleting
// each matching pending hash (spec §4.5).
func (t *RedisTracker) CleanupExpired(ctx context.Context) (int, error) {
	now := nowUnix()
	ids, err := t.client.ZRangeByScore(ctx, t.timeoutKey(), &redis.ZRangeBy{
		Min: "-inf", Max: strconv.FormatInt(now, 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := t.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, t.pendingKey(model.NotificationId(id)))
	}
	pipe.ZRem(ctx, t.timeoutKey(), toInterfaceSlice(ids)...)
	pipe.HIncrBy(ctx, t.statsKey(), "total_expired", int64(len(ids)))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (t *RedisTracker) PendingCount(ctx context.Context) (int, error) {
	n, err := t.client.ZCard(ctx, t.timeoutKey()).Result()
	return int(n), err
}

func (t *RedisTracker) Stats(ctx context.Context) (Stats, error) {
	vals, err := t.client.HGetAll(ctx, t.statsKey()).Result()
	if err != nil {
		return Stats{}, err
	}
	tracked, _ := strconv.ParseInt(vals["total_tracked"], 10, 64)
	acked, _ := strconv.ParseInt(vals["total_acked"], 10, 64)
	expired, _ := strconv.ParseInt(vals["total_expired"], 10, 64)
	latencySum, _ := strconv.ParseInt(vals["latency_sum_ms"], 10, 64)
	pending, err := t.PendingCount(ctx)
	if err != nil {
		return Stats{}, err
	}

	var avg float64
	if acked > 0 {
		avg = float64(latencySum) / float64(acked)
	}
	return Stats{
		BackendType:  "redis",
		Enabled:      t.cfg.Enabled,
		TotalTracked: tracked,
		TotalAcked:   acked,
		TotalExpired: expired,
		PendingCount: int64(pending),
		AckRate:      ackRate(acked, expired),
		AvgLatencyMs: avg,
	}, nil
}

func toInterfaceSlice(s []string) []interface{} {
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
