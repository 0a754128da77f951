package queue

import (
	"context"
	"testing"
	"time"

	"github.com/notifyhub/core/internal/model"
)

func TestMemoryQueue_DisabledRejectsEnqueue(t *testing.T) {
	q := NewMemoryQueue(Config{Enabled: false})
	if err := q.Enqueue(context.Background(), "u1", model.NotificationEvent{}); err == nil {
		t.Fatal("expected enqueue on a disabled queue to fail")
	}
}

func TestMemoryQueue_EnqueueAndDrainFIFO(t *testing.T) {
	q := NewMemoryQueue(Config{Enabled: true, MessageTTL: time.Hour})
	ctx := context.Background()

	q.Enqueue(ctx, "u1", model.NotificationEvent{EventType: "first"})
	q.Enqueue(ctx, "u1", model.NotificationEvent{EventType: "second"})

	result, err := q.Drain(ctx, "u1")
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if len(result.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(result.Messages))
	}
	if result.Messages[0].Event.EventType != "first" || result.Messages[1].Event.EventType != "second" {
		t.Fatalf("expected FIFO order, got %+v", result.Messages)
	}

	if size, _ := q.QueueSize(ctx, "u1"); size != 0 {
		t.Fatalf("expected drain to empty the queue, got size %d", size)
	}
}

func TestMemoryQueue_EvictsOldestWhenOverCapacity(t *testing.T) {
	q := NewMemoryQueue(Config{Enabled: true, MaxSizePerUser: 2, MessageTTL: time.Hour})
	ctx := context.Background()

	q.Enqueue(ctx, "u1", model.NotificationEvent{EventType: "a"})
	q.Enqueue(ctx, "u1", model.NotificationEvent{EventType: "b"})
	q.Enqueue(ctx, "u1", model.NotificationEvent{EventType: "c"})

	result, _ := q.Drain(ctx, "u1")
	if len(result.Messages) != 2 {
		t.Fatalf("expected capacity-bounded queue to retain 2 messages, got %d", len(result.Messages))
	}
	if result.Messages[0].Event.EventType != "b" || result.Messages[1].Event.EventType != "c" {
		t.Fatalf("expected oldest entry evicted, got %+v", result.Messages)
	}
}

func TestMemoryQueue_DrainDiscardsExpiredMessages(t *testing.T) {
	// message_ttl_seconds=0 expires every message immediately (testable
	// property #4): no clock seam is needed since a zero TTL alone forces
	// isExpired to return true regardless of queued_at.
	q := NewMemoryQueue(Config{Enabled: true, MessageTTL: 0})
	ctx := context.Background()

	q.Enqueue(ctx, "u1", model.NotificationEvent{EventType: "a"})
	q.Enqueue(ctx, "u1", model.NotificationEvent{EventType: "b"})

	result, err := q.Drain(ctx, "u1")
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if len(result.Messages) != 0 {
		t.Fatalf("expected zero TTL to expire every message, got %d survivors", len(result.Messages))
	}
	if result.ExpiredCount != 2 {
		t.Fatalf("expected expired_count to equal the number enqueued (2), got %d", result.ExpiredCount)
	}
}

func TestMemoryQueue_ClearUserQueue(t *testing.T) {
	q := NewMemoryQueue(Config{Enabled: true})
	ctx := context.Background()

	q.Enqueue(ctx, "u1", model.NotificationEvent{})
	q.Enqueue(ctx, "u1", model.NotificationEvent{})

	n, err := q.ClearUserQueue(ctx, "u1")
	if err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 cleared, got %d", n)
	}
	if size, _ := q.QueueSize(ctx, "u1"); size != 0 {
		t.Fatalf("expected queue empty after clear, got %d", size)
	}
}

func TestMemoryQueue_Stats(t *testing.T) {
	q := NewMemoryQueue(Config{Enabled: true, MaxSizePerUser: 10, MessageTTL: 5 * time.Minute})
	ctx := context.Background()
	q.Enqueue(ctx, "u1", model.NotificationEvent{})
	q.Enqueue(ctx, "u2", model.NotificationEvent{})

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.BackendType != "memory" {
		t.Fatalf("expected backend type memory, got %s", stats.BackendType)
	}
	if stats.TotalMessages != 2 || stats.UsersWithQueue != 2 {
		t.Fatalf("expected 2 messages across 2 users, got %+v", stats)
	}
}
