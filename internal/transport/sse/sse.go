// Package sse implements the server-to-client half of the GET /sse
// contract named in spec §6: an alternative writer adapter in front of
// the same outbound queue the WebSocket writer drains, for clients that
// prefer a plain HTTP event stream to a full-duplex socket.
package sse

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/notifyhub/core/internal/ids"
	"github.com/notifyhub/core/internal/model"
	"github.com/notifyhub/core/internal/registry"
)

const keepAlivePeriod = 25 * time.Second

// Handler serves one long-lived SSE response per registered connection.
type Handler struct {
	registry *registry.Registry
	identify func(r *http.Request) (model.UserId, model.TenantId, []string, error)
	log      zerolog.Logger
}

func NewHandler(reg *registry.Registry, identify func(r *http.Request) (model.UserId, model.TenantId, []string, error), log zerolog.Logger) *Handler {
	return &Handler{registry: reg, identify: identify, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, tenantID, roles, err := h.identify(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	handle, err := h.registry.Register(ids.NewConnectionID(), userID, tenantID, roles)
	if err != nil {
		http.Error(w, "registration rejected", http.StatusServiceUnavailable)
		return
	}
	defer h.registry.Unregister(handle.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	ticker := time.NewTicker(keepAlivePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-handle.Outbound():
			if !ok {
				return
			}
			data, err := msg.Bytes()
			if err != nil {
				h.log.Error().Err(err).Msg("sse: failed to serialize outbound message")
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
