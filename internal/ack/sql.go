package ack

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/core/internal/model"
)

// SQLTracker is the PostgreSQL-flavoured backend of spec §4.5, backed by
// pending_acks(notification_id pk, tenant_id, user_id, connection_id,
// sent_at, expires_at) plus an ack_stats counters table.
type SQLTracker struct {
	cfg  Config
	pool *pgxpool.Pool
}

func NewSQLTracker(pool *pgxpool.Pool, cfg Config) *SQLTracker {
	return &SQLTracker{cfg: cfg, pool: pool}
}

func (t *SQLTracker) Track(ctx context.Context, notificationID model.NotificationId, userID model.UserId, connectionID model.ConnectionId) {
	if !t.cfg.Enabled {
		return
	}
	// Fire-and-forget: Track must never block the dispatcher (spec §4.5),
	// so a write failure here is swallowed rather than returned.
	_, _ = t.pool.Exec(ctx, `
INSERT INTO pending_acks (notification_id, tenant_id, user_id, connection_id, sent_at, expires_at)
VALUES ($1, $2, $3, $4, now(), now() + ($5 || ' seconds')::interval)
ON CONFLICT (notification_id) DO NOTHING`,
		notificationID, t.cfg.TenantID, userID, connectionID, t.cfg.TimeoutSeconds)
	_, _ = t.pool.Exec(ctx, `SELECT ack_stats_increment($1, 'total_tracked', 1)`, t.cfg.TenantID)
}

func (t *SQLTracker) Acknowledge(ctx context.Context, notificationID model.NotificationId, userID model.UserId) (bool, error) {
	var sentAt int64
	err := t.pool.QueryRow(ctx, `
DELETE FROM pending_acks
WHERE notification_id = $1 AND tenant_id = $2 AND user_id = $3
RETURNING extract(epoch FROM sent_at)::bigint`,
		notificationID, t.cfg.TenantID, userID).Scan(&sentAt)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	latencyMs := (nowUnix() - sentAt) * 1000
	_, err = t.pool.Exec(ctx, `SELECT ack_stats_record_ack($1, $2)`, t.cfg.TenantID, latencyMs)
	return true, err
}

func (t *SQLTracker) GetPending(ctx context.Context, notificationID model.NotificationId) (model.PendingAck, bool, error) {
	var p model.PendingAck
	p.NotificationID = notificationID
	err := t.pool.QueryRow(ctx, `
SELECT user_id, connection_id, extract(epoch FROM sent_at)::bigint
FROM pending_acks WHERE notification_id = $1 AND tenant_id = $2`,
		notificationID, t.cfg.TenantID).Scan(&p.UserID, &p.ConnectionID, &p.SentAt)
	if err == pgx.ErrNoRows {
		return model.PendingAck{}, false, nil
	}
	if err != nil {
		return model.PendingAck{}, false, err
	}
	return p, true, nil
}

func (t *SQLTracker) CleanupExpired(ctx context.Context) (int, error) {
	tag, err := t.pool.Exec(ctx, `
DELETE FROM pending_acks WHERE tenant_id = $1 AND expires_at <= now()`, t.cfg.TenantID)
	if err != nil {
		return 0, err
	}
	n := int(tag.RowsAffected())
	if n > 0 {
		_, err = t.pool.Exec(ctx, `SELECT ack_stats_increment($1, 'total_expired', $2)`, t.cfg.TenantID, n)
	}
	return n, err
}

func (t *SQLTracker) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := t.pool.QueryRow(ctx, `SELECT count(*) FROM pending_acks WHERE tenant_id = $1`, t.cfg.TenantID).Scan(&n)
	return n, err
}

func (t *SQLTracker) Stats(ctx context.Context) (Stats, error) {
	var tracked, acked, expired, latencySum int64
	err := t.pool.QueryRow(ctx, `
SELECT total_tracked, total_acked, total_expired, latency_sum_ms
FROM ack_stats WHERE tenant_id = $1`, t.cfg.TenantID).Scan(&tracked, &acked, &expired, &latencySum)
	if err == pgx.ErrNoRows {
		return Stats{BackendType: "sql", Enabled: t.cfg.Enabled, AckRate: 1.0}, nil
	}
	if err != nil {
		return Stats{}, err
	}

	pending, err := t.PendingCount(ctx)
	if err != nil {
		return Stats{}, err
	}

	var avg float64
	if acked > 0 {
		avg = float64(latencySum) / float64(acked)
	}
	return Stats{
		BackendType:  "sql",
		Enabled:      t.cfg.Enabled,
		TotalTracked: tracked,
		TotalAcked:   acked,
		TotalExpired: expired,
		PendingCount: int64(pending),
		AckRate:      ackRate(acked, expired),
		AvgLatencyMs: avg,
	}, nil
}
