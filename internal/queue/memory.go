package queue

import (
	"context"
	"sync"
	"time"

	"github.com/notifyhub/core/internal/apperror"
	"github.com/notifyhub/core/internal/ids"
	"github.com/notifyhub/core/internal/model"
)

// MemoryQueue is the memory backend of spec §4.4: a concurrent map from
// user_id to a FIFO deque of StoredMessage. Lost on process restart.
type MemoryQueue struct {
	cfg Config

	mu       sync.Mutex
	byUser   map[model.UserId][]model.StoredMessage
	dropped  int64 // messages evicted for exceeding the per-user bound
}

func NewMemoryQueue(cfg Config) *MemoryQueue {
	return &MemoryQueue{cfg: cfg, byUser: make(map[model.UserId][]model.StoredMessage)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, userID model.UserId, event model.NotificationEvent) error {
	if !q.cfg.Enabled {
		return apperror.ErrBackendDisabled
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	deque := q.byUser[userID]
	if q.cfg.MaxSizePerUser > 0 && len(deque) >= q.cfg.MaxSizePerUser {
		// FIFO eviction: drop the oldest entry before appending (spec §4.4).
		deque = deque[1:]
		q.dropped++
	}
	deque = append(deque, model.StoredMessage{
		ID:       ids.NewNotificationID(),
		Event:    event,
		QueuedAt: time.Now().Unix(),
	})
	q.byUser[userID] = deque
	return nil
}

func (q *MemoryQueue) Drain(ctx context.Context, userID model.UserId) (DrainResult, error) {
	q.mu.Lock()
	deque := q.byUser[userID]
	delete(q.byUser, userID)
	q.mu.Unlock()

	now := time.Now().Unix()
	result := DrainResult{Messages: make([]model.StoredMessage, 0, len(deque))}
	for _, m := range deque {
		if isExpired(m.QueuedAt, q.cfg.MessageTTL, now) {
			result.ExpiredCount++
			continue
		}
		result.Messages = append(result.Messages, m)
	}
	return result, nil
}

func (q *MemoryQueue) Peek(ctx context.Context, userID model.UserId, limit int) ([]model.StoredMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	deque := q.byUser[userID]
	if limit <= 0 || limit > len(deque) {
		limit = len(deque)
	}
	out := make([]model.StoredMessage, limit)
	copy(out, deque[:limit])
	return out, nil
}

func (q *MemoryQueue) QueueSize(ctx context.Context, userID model.UserId) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byUser[userID]), nil
}

func (q *MemoryQueue) CleanupExpired(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().Unix()
	removed := 0
	for userID, deque := range q.byUser {
		kept := deque[:0]
		for _, m := range deque {
			if isExpired(m.QueuedAt, q.cfg.MessageTTL, now) {
				removed++
				continue
			}
			kept = append(kept, m)
		}
		if len(kept) == 0 {
			delete(q.byUser, userID)
		} else {
			q.byUser[userID] = kept
		}
	}
	return removed, nil
}

func (q *MemoryQueue) ClearUserQueue(ctx context.Context, userID model.UserId) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.byUser[userID])
	delete(q.byUser, userID)
	return n, nil
}

func (q *MemoryQueue) Stats(ctx context.Context) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var total int64
	for _, deque := range q.byUser {
		total += int64(len(deque))
	}
	return Stats{
		BackendType:        "memory",
		Enabled:            q.cfg.Enabled,
		TotalMessages:      total,
		UsersWithQueue:     int64(len(q.byUser)),
		MaxQueueSizeConfig: q.cfg.MaxSizePerUser,
		MessageTTLSeconds:  int64(q.cfg.MessageTTL.Seconds()),
	}, nil
}
