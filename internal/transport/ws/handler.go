package ws

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gobwas/ws"
	"github.com/rs/zerolog"

	"github.com/notifyhub/core/internal/ids"
	"github.com/notifyhub/core/internal/model"
	"github.com/notifyhub/core/internal/ratelimit"
	"github.com/notifyhub/core/internal/registry"
)

// ClientIP extracts the client address, preferring X-Forwarded-For for
// requests behind a load balancer (grounded on the teacher's getClientIP).
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Handler upgrades incoming HTTP requests to WebSocket connections,
// registers them, and runs their reader/writer pumps. Identity (user_id,
// tenant_id, roles) is resolved upstream by the black-box JWT validator
// and passed in via identify.
type Handler struct {
	registry  *registry.Registry
	limiter   ratelimit.Limiter
	onMessage ClientMessageHandler
	identify  func(r *http.Request) (userID model.UserId, tenantID model.TenantId, roles []string, err error)
	log       zerolog.Logger
}

func NewHandler(
	reg *registry.Registry,
	limiter ratelimit.Limiter,
	identify func(r *http.Request) (model.UserId, model.TenantId, []string, error),
	onMessage ClientMessageHandler,
	log zerolog.Logger,
) *Handler {
	return &Handler{registry: reg, limiter: limiter, identify: identify, onMessage: onMessage, log: log}
}

// ServeHTTP implements the /ws upgrade contract of spec §6.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := ClientIP(r)

	decision := h.limiter.CheckIP(clientIP)
	if !decision.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfter))
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	userID, tenantID, roles, err := h.identify(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.log.Warn().Err(err).Str("client_ip", clientIP).Msg("ws: upgrade failed")
		return
	}

	handle, err := h.registry.Register(ids.NewConnectionID(), userID, tenantID, roles)
	if err != nil {
		h.log.Info().Err(err).Str("user_id", string(userID)).Msg("ws: registration rejected")
		conn.Close()
		return
	}

	c := Conn{Raw: conn, Handle: handle}
	go WritePump(c, h.log)
	go func() {
		ReadPump(c, h.onMessage, h.log)
		h.registry.Unregister(handle.ID)
	}()
}

