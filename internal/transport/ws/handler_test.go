package ws

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/notifyhub/core/internal/model"
	"github.com/notifyhub/core/internal/ratelimit"
	"github.com/notifyhub/core/internal/registry"
)

func TestClientIP_PrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	r.RemoteAddr = "10.0.0.2:12345"

	if ip := ClientIP(r); ip != "203.0.113.5" {
		t.Fatalf("expected first forwarded address, got %s", ip)
	}
}

func TestClientIP_FallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "198.51.100.7:9999"

	if ip := ClientIP(r); ip != "198.51.100.7" {
		t.Fatalf("expected host from remote addr, got %s", ip)
	}
}

func TestServeHTTP_RejectsWhenRateLimited(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{Enabled: true, IPCapacity: 0, IPRefillRate: 0})
	defer limiter.Close()

	reg := registry.New(registry.Limits{})
	identify := func(r *http.Request) (model.UserId, model.TenantId, []string, error) {
		return "u1", model.DefaultTenant, nil, nil
	}
	h := NewHandler(reg, limiter, identify, func(*registry.Handle, model.ClientMessage) {}, zerolog.Nop())

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "10.0.0.2:12345"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 when the IP bucket starts empty, got %d", rec.Code)
	}
}

func TestServeHTTP_RejectsWhenIdentifyFails(t *testing.T) {
	reg := registry.New(registry.Limits{})
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{Enabled: false})
	defer limiter.Close()

	identify := func(r *http.Request) (model.UserId, model.TenantId, []string, error) {
		return "", "", nil, http.ErrNoCookie
	}
	h := NewHandler(reg, limiter, identify, func(*registry.Handle, model.ClientMessage) {}, zerolog.Nop())

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "10.0.0.2:12345"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when identify fails, got %d", rec.Code)
	}
}
