// Package httpapi implements the HTTP surface of spec §6: notification
// ingress, template CRUD, health/stats, and cluster/tenant introspection.
// Route glue is explicitly out of scope for the core per spec §1, but
// SPEC_FULL.md's ambient stack carries it anyway so the process has a
// real entrypoint — grounded on the teacher's internal/shared/handlers_http.go
// mux-and-middleware style.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/notifyhub/core/internal/cluster"
	"github.com/notifyhub/core/internal/dispatcher"
	"github.com/notifyhub/core/internal/model"
	"github.com/notifyhub/core/internal/queue"
	"github.com/notifyhub/core/internal/ratelimit"
	"github.com/notifyhub/core/internal/registry"
	"github.com/notifyhub/core/internal/template"
	"github.com/notifyhub/core/internal/tenant"
)

// SendNotificationResponse is the common response shape of every
// notification-send endpoint (spec §6).
type SendNotificationResponse struct {
	Success        bool                 `json:"success"`
	NotificationID model.NotificationId `json:"notification_id"`
	DeliveredTo    int                  `json:"delivered_to"`
	Failed         int                  `json:"failed"`
	Timestamp      int64                `json:"timestamp"`
}

// Server wires the HTTP surface to the core components; all dependencies
// are optional collaborators the core already exposes.
type Server struct {
	dispatcher *dispatcher.Dispatcher
	templates  *template.Store
	cluster    cluster.SessionStore
	tenants    *tenant.Manager
	registry   *registry.Registry
	limiter    ratelimit.Limiter
	apiKey     string
	log        zerolog.Logger
	system     *systemMetrics

	mux *http.ServeMux
}

func New(
	disp *dispatcher.Dispatcher,
	templates *template.Store,
	clusterStore cluster.SessionStore,
	tenants *tenant.Manager,
	reg *registry.Registry,
	limiter ratelimit.Limiter,
	apiKey string,
	log zerolog.Logger,
) *Server {
	s := &Server{
		dispatcher: disp,
		templates:  templates,
		cluster:    clusterStore,
		tenants:    tenants,
		registry:   reg,
		limiter:    limiter,
		apiKey:     apiKey,
		log:        log,
		system:     newSystemMetrics(),
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.withMiddleware(s.mux) }

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/v1/notifications/send", s.handleSend)
	s.mux.HandleFunc("POST /api/v1/notifications/send-to-users", s.handleSendToUsers)
	s.mux.HandleFunc("POST /api/v1/notifications/broadcast", s.handleBroadcast)
	s.mux.HandleFunc("POST /api/v1/notifications/channel", s.handleChannel)
	s.mux.HandleFunc("POST /api/v1/notifications/channels", s.handleChannels)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", s.handleStats)

	s.mux.HandleFunc("POST /api/v1/templates", s.handleTemplateCreate)
	s.mux.HandleFunc("GET /api/v1/templates/{id}", s.handleTemplateGet)
	s.mux.HandleFunc("DELETE /api/v1/templates/{id}", s.handleTemplateDelete)
	s.mux.HandleFunc("GET /api/v1/templates", s.handleTemplateList)

	s.mux.HandleFunc("GET /api/v1/cluster/status", s.handleClusterStatus)
	s.mux.HandleFunc("GET /api/v1/cluster/users/{user_id}", s.handleClusterUser)

	s.mux.HandleFunc("GET /api/v1/tenants", s.handleTenantList)
	s.mux.HandleFunc("GET /api/v1/tenants/{tenant_id}", s.handleTenantGet)
}

// withMiddleware applies the shared API key and HTTP-family rate limit
// checks in front of every route (spec §6's auth and rate-limit headers).
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("X-API-Key") != s.apiKey {
			writeError(w, http.StatusUnauthorized, "invalid_api_key", "missing or invalid X-API-Key")
			return
		}

		if s.limiter != nil {
			decision := s.limiter.CheckKey(r.Header.Get("X-API-Key"))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatFloat(decision.Remaining, 'f', 0, 64))
			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfter))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func toResponse(result dispatcher.DeliveryResult) SendNotificationResponse {
	return SendNotificationResponse{
		Success:        result.Success || result.Queued,
		NotificationID: result.NotificationID,
		DeliveredTo:    result.DeliveredTo,
		Failed:         result.Failed,
		Timestamp:      time.Now().Unix(),
	}
}
