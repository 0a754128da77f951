// Package shutdown implements the one piece of shutdown orchestration the
// core owns (spec §1, §5): broadcasting a Shutdown server message to every
// live connection and cancelling the context background tasks select on.
package shutdown

import (
	"context"
	"time"

	"github.com/notifyhub/core/internal/model"
	"github.com/notifyhub/core/internal/outbound"
	"github.com/notifyhub/core/internal/registry"
)

// Broadcaster cancels a shared context and notifies every connection that
// the process is going away, with an optional reconnect hint.
type Broadcaster struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// New derives a cancellable context from parent; callers select on Done()
// to know when to stop.
func New(parent context.Context) *Broadcaster {
	ctx, cancel := context.WithCancel(parent)
	return &Broadcaster{ctx: ctx, cancel: cancel}
}

// Context returns the context that every background task should select on.
func (b *Broadcaster) Context() context.Context { return b.ctx }

// Done reports when shutdown has been initiated.
func (b *Broadcaster) Done() <-chan struct{} { return b.ctx.Done() }

// Shutdown sends a Shutdown message to every live connection, then, after
// grace elapses, cancels the shared context so background tasks exit.
func (b *Broadcaster) Shutdown(reg *registry.Registry, reason string, reconnectAfter *int64, grace time.Duration) {
	msg, err := outbound.NewSerialized(model.NewShutdownMessage(reason, reconnectAfter))
	if err == nil {
		for _, h := range reg.GetAllConnections() {
			h.Send(msg)
		}
	}

	if grace > 0 {
		time.Sleep(grace)
	}
	b.cancel()
}
