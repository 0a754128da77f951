package queue

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/core/internal/ids"
	"github.com/notifyhub/core/internal/model"
)

// SQLQueue is the PostgreSQL-flavoured backend of spec §4.4, backed by
// message_queue(id, tenant_id, user_id, event_data jsonb, queued_at,
// expires_at, attempts).
type SQLQueue struct {
	cfg  Config
	pool *pgxpool.Pool
}

func NewSQLQueue(pool *pgxpool.Pool, cfg Config) *SQLQueue {
	return &SQLQueue{cfg: cfg, pool: pool}
}

// Enqueue uses one statement chaining an eviction CTE with the insert, so
// the per-user bound check and the eviction are race-free (spec §4.4
// Backend C).
func (q *SQLQueue) Enqueue(ctx context.Context, userID model.UserId, event model.NotificationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	const stmt = `
WITH counted AS (
	SELECT count(*) AS n FROM message_queue WHERE tenant_id = $1 AND user_id = $2
), evicted AS (
	DELETE FROM message_queue
	WHERE id IN (
		SELECT id FROM message_queue
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY queued_at ASC
		LIMIT GREATEST((SELECT n FROM counted) - $6 + 1, 0)
	)
)
INSERT INTO message_queue (id, tenant_id, user_id, event_data, queued_at, expires_at, attempts)
VALUES ($3, $1, $2, $4, now(), now() + ($5 || ' seconds')::interval, 0)`

	_, err = q.pool.Exec(ctx, stmt,
		q.cfg.TenantID, userID, ids.NewNotificationID(), data,
		int64(q.cfg.MessageTTL.Seconds()), q.cfg.MaxSizePerUser)
	return err
}

// Drain is a tenant-scoped DELETE...RETURNING for live rows plus a
// separate DELETE for expired rows, returning each affected count (spec
// §4.4 Backend C).
func (q *SQLQueue) Drain(ctx context.Context, userID model.UserId) (DrainResult, error) {
	rows, err := q.pool.Query(ctx, `
DELETE FROM message_queue
WHERE tenant_id = $1 AND user_id = $2 AND expires_at > now()
RETURNING id, event_data, extract(epoch FROM queued_at)::bigint, attempts`,
		q.cfg.TenantID, userID)
	if err != nil {
		return DrainResult{}, err
	}

	var result DrainResult
	for rows.Next() {
		var (
			id       model.NotificationId
			data     []byte
			queuedAt int64
			attempts int
		)
		if err := rows.Scan(&id, &data, &queuedAt, &attempts); err != nil {
			rows.Close()
			return DrainResult{}, err
		}
		var event model.NotificationEvent
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		result.Messages = append(result.Messages, model.StoredMessage{
			ID: id, Event: event, QueuedAt: queuedAt, Attempts: attempts,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return DrainResult{}, err
	}

	tag, err := q.pool.Exec(ctx, `
DELETE FROM message_queue WHERE tenant_id = $1 AND user_id = $2 AND expires_at <= now()`,
		q.cfg.TenantID, userID)
	if err != nil {
		return DrainResult{}, err
	}
	result.ExpiredCount = int(tag.RowsAffected())
	return result, nil
}

func (q *SQLQueue) Peek(ctx context.Context, userID model.UserId, limit int) ([]model.StoredMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.pool.Query(ctx, `
SELECT id, event_data, extract(epoch FROM queued_at)::bigint, attempts
FROM message_queue
WHERE tenant_id = $1 AND user_id = $2
ORDER BY queued_at ASC
LIMIT $3`, q.cfg.TenantID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StoredMessage
	for rows.Next() {
		var (
			id       model.NotificationId
			data     []byte
			queuedAt int64
			attempts int
		)
		if err := rows.Scan(&id, &data, &queuedAt, &attempts); err != nil {
			return nil, err
		}
		var event model.NotificationEvent
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		out = append(out, model.StoredMessage{ID: id, Event: event, QueuedAt: queuedAt, Attempts: attempts})
	}
	return out, rows.Err()
}

func (q *SQLQueue) QueueSize(ctx context.Context, userID model.UserId) (int, error) {
	var n int
	err := q.pool.QueryRow(ctx, `SELECT count(*) FROM message_queue WHERE tenant_id = $1 AND user_id = $2`,
		q.cfg.TenantID, userID).Scan(&n)
	return n, err
}

func (q *SQLQueue) CleanupExpired(ctx context.Context) (int, error) {
	tag, err := q.pool.Exec(ctx, `DELETE FROM message_queue WHERE tenant_id = $1 AND expires_at <= now()`, q.cfg.TenantID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (q *SQLQueue) ClearUserQueue(ctx context.Context, userID model.UserId) (int, error) {
	tag, err := q.pool.Exec(ctx, `DELETE FROM message_queue WHERE tenant_id = $1 AND user_id = $2`,
		q.cfg.TenantID, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (q *SQLQueue) Stats(ctx context.Context) (Stats, error) {
	var total, users int64
	err := q.pool.QueryRow(ctx, `
SELECT count(*), count(DISTINCT user_id) FROM message_queue WHERE tenant_id = $1`,
		q.cfg.TenantID).Scan(&total, &users)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		BackendType:        "sql",
		Enabled:            q.cfg.Enabled,
		TotalMessages:      total,
		UsersWithQueue:     users,
		MaxQueueSizeConfig: q.cfg.MaxSizePerUser,
		MessageTTLSeconds:  int64(q.cfg.MessageTTL.Seconds()),
	}, nil
}
