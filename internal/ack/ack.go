// Package ack implements the acknowledgement tracker of spec §4.5: records
// that a notification was sent to a specific connection, and releases the
// record when the client acknowledges it.
package ack

import (
	"context"
	"time"

	"github.com/notifyhub/core/internal/model"
)

// Stats is the snapshot returned by Tracker.Stats().
type Stats struct {
	BackendType   string
	Enabled       bool
	TotalTracked  int64
	TotalAcked    int64
	TotalExpired  int64
	PendingCount  int64
	AckRate       float64
	AvgLatencyMs  float64
}

// Tracker is the ack backend contract (spec §4.5).
type Tracker interface {
	// Track records that a notification was sent; fire-and-forget, must
	// never block the dispatcher.
	Track(ctx context.Context, notificationID model.NotificationId, userID model.UserId, connectionID model.ConnectionId)
	Acknowledge(ctx context.Context, notificationID model.NotificationId, userID model.UserId) (bool, error)
	GetPending(ctx context.Context, notificationID model.NotificationId) (model.PendingAck, bool, error)
	CleanupExpired(ctx context.Context) (int, error)
	PendingCount(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
}

// Config bounds the ack timeout shared by every backend.
type Config struct {
	Enabled        bool
	TimeoutSeconds int64
	TenantID       model.TenantId
}

func nowUnix() int64 { return time.Now().Unix() }

// ackRate implements spec §4.5: acked/(acked+expired), defined as 1.0 when
// both are zero.
func ackRate(acked, expired int64) float64 {
	if acked == 0 && expired == 0 {
		return 1.0
	}
	return float64(acked) / float64(acked+expired)
}
