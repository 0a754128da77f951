// Package queue implements the offline queue of spec §4.4: store
// notifications for a user who has no live connection, to be drained once
// they reconnect. Three interchangeable backends share one Queue
// interface and one eviction/expiry policy.
package queue

import (
	"context"
	"time"

	"github.com/notifyhub/core/internal/model"
)

// Stats is the snapshot returned by Queue.Stats().
type Stats struct {
	BackendType         string
	Enabled             bool
	TotalMessages       int64
	UsersWithQueue      int64
	MaxQueueSize        int64
	MaxQueueSizeConfig  int
	MessageTTLSeconds   int64
}

// DrainResult is the atomic result of Drain: every non-expired message,
// plus a count of expired entries discarded in the same step.
type DrainResult struct {
	Messages     []model.StoredMessage
	ExpiredCount int
}

// Queue is the offline queue backend contract (spec §4.4). Every method
// takes a tenant-scoped context implicitly via the backend's construction
// (each backend instance is bound to one tenant_id).
type Queue interface {
	Enqueue(ctx context.Context, userID model.UserId, event model.NotificationEvent) error
	Drain(ctx context.Context, userID model.UserId) (DrainResult, error)
	Peek(ctx context.Context, userID model.UserId, limit int) ([]model.StoredMessage, error)
	QueueSize(ctx context.Context, userID model.UserId) (int, error)
	CleanupExpired(ctx context.Context) (int, error)
	ClearUserQueue(ctx context.Context, userID model.UserId) (int, error)
	Stats(ctx context.Context) (Stats, error)
}

// Config bounds every backend's per-user policy (spec §4.4, §6).
type Config struct {
	Enabled        bool
	MaxSizePerUser int
	MessageTTL     time.Duration
	TenantID       model.TenantId
}

func nowUnix() int64 { return time.Now().Unix() }

// isExpired reports whether a message queued at queuedAt has outlived ttl,
// per spec §4.4: "now − queued_at ≥ message_ttl_seconds". A zero or
// negative ttl means every message is immediately expired (testable
// property #4), not that expiry is disabled.
func isExpired(queuedAt int64, ttl time.Duration, now int64) bool {
	if ttl <= 0 {
		return true
	}
	return now-queuedAt >= int64(ttl.Seconds())
}
