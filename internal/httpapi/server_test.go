package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/notifyhub/core/internal/cluster"
	"github.com/notifyhub/core/internal/dispatcher"
	"github.com/notifyhub/core/internal/model"
	"github.com/notifyhub/core/internal/ratelimit"
	"github.com/notifyhub/core/internal/registry"
	"github.com/notifyhub/core/internal/template"
	"github.com/notifyhub/core/internal/tenant"
)

func newTestServer(t *testing.T, apiKey string, limiter ratelimit.Limiter) (*Server, *registry.Registry) {
	t.Helper()
	reg := registry.New(registry.Limits{})
	disp := dispatcher.New(reg, nil, nil, nil, model.DefaultTenant, dispatcher.NewMetrics(nil), zerolog.Nop())
	templates := template.New()
	tenants := tenant.New(tenant.Config{})
	store := cluster.NewLocalStore("srv-1")
	s := New(disp, templates, store, tenants, reg, limiter, apiKey, zerolog.Nop())
	return s, reg
}

func doRequest(t *testing.T, s *Server, method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t, "", nil)
	rec := doRequest(t, s, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleSend_RequiresTargetUserID(t *testing.T) {
	s, _ := newTestServer(t, "", nil)
	rec := doRequest(t, s, http.MethodPost, "/api/v1/notifications/send", map[string]any{}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleSend_DeliversToRegisteredConnection(t *testing.T) {
	s, reg := newTestServer(t, "", nil)
	reg.Register("c1", "u1", model.DefaultTenant, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/notifications/send", map[string]any{
		"target_user_id": "u1",
		"event_type":     "user.greeted",
		"payload":        map[string]any{"hello": "world"},
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SendNotificationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.DeliveredTo != 1 || !resp.Success {
		t.Fatalf("expected successful single delivery, got %+v", resp)
	}
}

func TestHandleBroadcast(t *testing.T) {
	s, reg := newTestServer(t, "", nil)
	reg.Register("c1", "u1", model.DefaultTenant, nil)
	reg.Register("c2", "u2", model.DefaultTenant, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/notifications/broadcast", map[string]any{
		"event_type": "system.announcement",
		"payload":    map[string]any{"text": "hi"},
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp SendNotificationResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.DeliveredTo != 2 {
		t.Fatalf("expected broadcast to reach 2 connections, got %+v", resp)
	}
}

func TestAPIKeyMiddleware_RejectsMissingOrWrongKey(t *testing.T) {
	s, _ := newTestServer(t, "secret", nil)

	rec := doRequest(t, s, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without API key, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/health", nil, "wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong API key, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/health", nil, "secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct API key, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware_Returns429WhenExhausted(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{Enabled: true, KeyCapacity: 1, KeyRefillRate: 0})
	defer limiter.Close()
	s, _ := newTestServer(t, "", limiter)

	rec := doRequest(t, s, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	rec = doRequest(t, s, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on a rate-limited response")
	}
}

func TestTemplateLifecycle(t *testing.T) {
	s, _ := newTestServer(t, "", nil)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/templates", map[string]any{
		"id":               "welcome",
		"name":             "Welcome",
		"event_type":       "user.signup",
		"payload_template": map[string]any{"message": "hi {{name}}"},
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/templates/welcome", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/templates/welcome", nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/templates/welcome", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestHandleSend_TemplateNotFoundReturns404(t *testing.T) {
	s, reg := newTestServer(t, "", nil)
	reg.Register("c1", "u1", model.DefaultTenant, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/notifications/send", map[string]any{
		"target_user_id": "u1",
		"template_id":    "nope",
	}, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleClusterStatus_ReportsLocalBackendUnavailable(t *testing.T) {
	s, _ := newTestServer(t, "", nil)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/cluster/status", nil, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected a local (disabled) cluster backend to report unavailable, got %d", rec.Code)
	}
}

func TestHandleTenantGet_ReturnsLimitsAndStats(t *testing.T) {
	s, reg := newTestServer(t, "", nil)
	reg.Register("c1", "u1", "acme", nil)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/tenants/acme", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var decoded map[string]any
	json.Unmarshal(rec.Body.Bytes(), &decoded)
	if decoded["tenant_id"] != "acme" {
		t.Fatalf("expected tenant_id acme, got %+v", decoded)
	}
}
