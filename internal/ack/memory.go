package ack

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/core/internal/model"
)

// MemoryTracker is the memory backend of spec §4.5: a concurrent map of
// notification_id to PendingAck plus running counters for stats.
type MemoryTracker struct {
	cfg Config
	hist prometheus.Histogram

	mu      sync.Mutex
	pending map[model.NotificationId]model.PendingAck

	totalTracked atomic.Int64
	totalAcked   atomic.Int64
	totalExpired atomic.Int64
	latencySumMs atomic.Int64 // accumulated only over acked entries
}

func NewMemoryTracker(cfg Config, hist prometheus.Histogram) *MemoryTracker {
	return &MemoryTracker{cfg: cfg, hist: hist, pending: make(map[model.NotificationId]model.PendingAck)}
}

func (t *MemoryTracker) Track(ctx context.Context, notificationID model.NotificationId, userID model.UserId, connectionID model.ConnectionId) {
	if !t.cfg.Enabled {
		return
	}
	t.mu.Lock()
	t.pending[notificationID] = model.PendingAck{
		NotificationID: notificationID, UserID: userID, ConnectionID: connectionID, SentAt: nowUnix(),
	}
	t.mu.Unlock()
	t.totalTracked.Add(1)
}

// Acknowledge succeeds iff a pending entry exists AND its user_id matches;
// on mismatch the entry is left untouched so a stolen or forged ack cannot
// clear the real tracker (spec §4.5).
func (t *MemoryTracker) Acknowledge(ctx context.Context, notificationID model.NotificationId, userID model.UserId) (bool, error) {
	t.mu.Lock()
	entry, ok := t.pending[notificationID]
	if !ok || entry.UserID != userID {
		t.mu.Unlock()
		return false, nil
	}
	delete(t.pending, notificationID)
	t.mu.Unlock()

	latencyMs := (nowUnix() - entry.SentAt) * 1000
	t.totalAcked.Add(1)
	t.latencySumMs.Add(latencyMs)
	if t.hist != nil {
		t.hist.Observe(float64(latencyMs) / 1000)
	}
	return true, nil
}

func (t *MemoryTracker) GetPending(ctx context.Context, notificationID model.NotificationId) (model.PendingAck, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.pending[notificationID]
	return entry, ok, nil
}

func (t *MemoryTracker) CleanupExpired(ctx context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := nowUnix()
	removed := 0
	for id, entry := range t.pending {
		if now-entry.SentAt >= t.cfg.TimeoutSeconds {
			delete(t.pending, id)
			removed++
		}
	}
	if removed > 0 {
		t.totalExpired.Add(int64(removed))
	}
	return removed, nil
}

func (t *MemoryTracker) PendingCount(ctx context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending), nil
}

func (t *MemoryTracker) Stats(ctx context.Context) (Stats, error) {
	t.mu.Lock()
	pending := len(t.pending)
	t.mu.Unlock()

	acked := t.totalAcked.Load()
	expired := t.totalExpired.Load()
	var avg float64
	if acked > 0 {
		avg = float64(t.latencySumMs.Load()) / float64(acked)
	}
	return Stats{
		BackendType:  "memory",
		Enabled:      t.cfg.Enabled,
		TotalTracked: t.totalTracked.Load(),
		TotalAcked:   acked,
		TotalExpired: expired,
		PendingCount: int64(pending),
		AckRate:      ackRate(acked, expired),
		AvgLatencyMs: avg,
	}, nil
}
