package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/notifyhub/core/internal/ids"
	"github.com/notifyhub/core/internal/model"
)

// redisStoredMessage is the JSON shape stored in the stream's "data" field;
// it embeds queued_at so Drain can filter expiry in-process (spec §4.4).
type redisStoredMessage struct {
	ID       model.NotificationId    `json:"id"`
	Event    model.NotificationEvent `json:"event"`
	QueuedAt int64                   `json:"queued_at"`
}

// RedisQueue is the Redis backend of spec §4.4: one stream per user at
// {prefix}:{tenant}:{user}, bounded with approximate MAXLEN for cheap FIFO
// eviction.
type RedisQueue struct {
	cfg    Config
	client *redis.Client
	prefix string
	log    zerolog.Logger
}

func NewRedisQueue(client *redis.Client, prefix string, cfg Config, log zerolog.Logger) *RedisQueue {
	return &RedisQueue{cfg: cfg, client: client, prefix: prefix, log: log}
}

func (q *RedisQueue) streamKey(userID model.UserId) string {
	return fmt.Sprintf("%s:%s:%s", q.prefix, q.cfg.TenantID, userID)
}

func (q *RedisQueue) Enqueue(ctx context.Context, userID model.UserId, event model.NotificationEvent) error {
	if !q.cfg.Enabled {
		return fmt.Errorf("queue disabled")
	}

	msg := redisStoredMessage{ID: ids.NewNotificationID(), Event: event, QueuedAt: nowUnix()}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	maxLen := int64(q.cfg.MaxSizePerUser)
	args := &redis.XAddArgs{
		Stream: q.streamKey(userID),
		Values: map[string]interface{}{"data": data},
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	return q.client.XAdd(ctx, args).Err()
}

func (q *RedisQueue) Drain(ctx context.Context, userID model.UserId) (DrainResult, error) {
	key := q.streamKey(userID)
	entries, err := q.client.XRange(ctx, key, "-", "+").Result()
	if err != nil {
		return DrainResult{}, err
	}
	if len(entries) > 0 {
		if err := q.client.Del(ctx, key).Err(); err != nil {
			return DrainResult{}, err
		}
	}

	now := nowUnix()
	result := DrainResult{Messages: make([]model.StoredMessage, 0, len(entries))}
	for _, e := range entries {
		raw, ok := e.Values["data"].(string)
		if !ok {
			q.log.Warn().Str("stream_id", e.ID).Msg("queue: malformed stream entry, skipping")
			continue
		}
		var m redisStoredMessage
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			q.log.Warn().Err(err).Str("stream_id", e.ID).Msg("queue: deserialization failure, skipping")
			continue
		}
		if isExpired(m.QueuedAt, q.cfg.MessageTTL, now) {
			result.ExpiredCount++
			continue
		}
		result.Messages = append(result.Messages, model.StoredMessage{
			ID: m.ID, Event: m.Event, QueuedAt: m.QueuedAt, StreamID: e.ID,
		})
	}
	return result, nil
}

func (q *RedisQueue) Peek(ctx context.Context, userID model.UserId, limit int) ([]model.StoredMessage, error) {
	count := int64(limit)
	if count <= 0 {
		count = 100
	}
	entries, err := q.client.XRangeN(ctx, q.streamKey(userID), "-", "+", count).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.StoredMessage, 0, len(entries))
	for _, e := range entries {
		raw, ok := e.Values["data"].(string)
		if !ok {
			continue
		}
		var m redisStoredMessage
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		out = append(out, model.StoredMessage{ID: m.ID, Event: m.Event, QueuedAt: m.QueuedAt, StreamID: e.ID})
	}
	return out, nil
}

func (q *RedisQueue) QueueSize(ctx context.Context, userID model.UserId) (int, error) {
	n, err := q.client.XLen(ctx, q.streamKey(userID)).Result()
	return int(n), err
}

// CleanupExpired is a no-op: eviction is handled by MAXLEN and drain-time
// filtering (spec §4.4 Backend B).
func (q *RedisQueue) CleanupExpired(ctx context.Context) (int, error) {
	return 0, nil
}

func (q *RedisQueue) ClearUserQueue(ctx context.Context, userID model.UserId) (int, error) {
	key := q.streamKey(userID)
	n, err := q.client.XLen(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if err := q.client.Del(ctx, key).Err(); err != nil {
			return 0, err
		}
	}
	return int(n), nil
}

func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pattern := fmt.Sprintf("%s:%s:*", q.prefix, q.cfg.TenantID)
	var total int64
	var users int64
	iter := q.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		n, err := q.client.XLen(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		total += n
		users++
	}
	if err := iter.Err(); err != nil {
		return Stats{}, err
	}
	return Stats{
		BackendType:        "redis",
		Enabled:            q.cfg.Enabled,
		TotalMessages:      total,
		UsersWithQueue:     users,
		MaxQueueSizeConfig: q.cfg.MaxSizePerUser,
		MessageTTLSeconds:  int64(q.cfg.MessageTTL.Seconds()),
	}, nil
}
