// Package registry implements the connection registry of spec §4.2: the
// in-memory index mapping users, tenants, and channels to live
// connections, plus the per-connection handle it hands out.
//
// Grounded on the teacher's Client/SubscriptionSet (internal/shared/connection.go):
// the same split between a lock-free atomic timestamp for the hot
// last-activity path and a small RWMutex-guarded set for the cold
// subscribe/unsubscribe path.
package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/notifyhub/core/internal/model"
	"github.com/notifyhub/core/internal/outbound"
)

// DefaultOutboundQueueSize bounds each connection's outbound channel.
const DefaultOutboundQueueSize = 256

// Handle is one live client connection's state: identity, outbound queue,
// subscriptions, last-activity. Shared between the registry and the two
// per-connection I/O tasks (spec §9): the registry holds one reference,
// the reader/writer tasks hold one, the dispatcher borrows references
// through registry lookups.
type Handle struct {
	ID          model.ConnectionId
	UserID      model.UserId
	TenantID    model.TenantId
	Roles       []string
	ConnectedAt time.Time

	lastActivity atomic.Int64 // unix seconds, lock-free for the stale sweep

	subMu sync.RWMutex
	subs  map[model.Channel]struct{}

	send   chan outbound.Message
	closed atomic.Bool
}

func newHandle(id model.ConnectionId, userID model.UserId, tenantID model.TenantId, roles []string, queueSize int) *Handle {
	if queueSize <= 0 {
		queueSize = DefaultOutboundQueueSize
	}
	h := &Handle{
		ID:          id,
		UserID:      userID,
		TenantID:    tenantID,
		Roles:       append([]string(nil), roles...),
		ConnectedAt: time.Now(),
		subs:        make(map[model.Channel]struct{}),
		send:        make(chan outbound.Message, queueSize),
	}
	h.Touch()
	return h
}

// Touch records activity now; lock-free, called from the WebSocket reader
// loop on every received frame.
func (h *Handle) Touch() { h.lastActivity.Store(time.Now().Unix()) }

// LastActivity returns the unix-second timestamp of the last recorded activity.
func (h *Handle) LastActivity() int64 { return h.lastActivity.Load() }

// Outbound exposes the receive side of the outbound queue for the writer loop.
func (h *Handle) Outbound() <-chan outbound.Message { return h.send }

// Send attempts a non-blocking enqueue. Returns false if the queue is
// full or the handle has been closed — callers must treat either as a
// delivery failure, never block (spec §5).
func (h *Handle) Send(msg outbound.Message) bool {
	if h.closed.Load() {
		return false
	}
	select {
	case h.send <- msg:
		return true
	default:
		return false
	}
}

// Close closes the outbound queue exactly once; the writer loop exits
// when it observes the closed channel.
func (h *Handle) Close() {
	if h.closed.CompareAndSwap(false, true) {
		close(h.send)
	}
}

// Subscriptions returns a snapshot of the handle's current channel set.
func (h *Handle) Subscriptions() []model.Channel {
	h.subMu.RLock()
	defer h.subMu.RUnlock()
	out := make([]model.Channel, 0, len(h.subs))
	for c := range h.subs {
		out = append(out, c)
	}
	return out
}

func (h *Handle) hasSubscription(c model.Channel) bool {
	h.subMu.RLock()
	defer h.subMu.RUnlock()
	_, ok := h.subs[c]
	return ok
}

func (h *Handle) subscriptionCount() int {
	h.subMu.RLock()
	defer h.subMu.RUnlock()
	return len(h.subs)
}

func (h *Handle) addSubscription(c model.Channel) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	h.subs[c] = struct{}{}
}

func (h *Handle) removeSubscription(c model.Channel) {
	h.subMu.Lock()
	defer h.subMu.Unlock()
	delete(h.subs, c)
}
