package tenant

import (
	"testing"

	"github.com/notifyhub/core/internal/model"
)

func TestResolveTenant_DisabledAlwaysReturnsDefault(t *testing.T) {
	m := New(Config{Enabled: false})
	tid := m.ResolveTenant(model.Claims{TenantID: "acme"})
	if tid != model.DefaultTenant {
		t.Fatalf("expected default tenant when multi-tenancy disabled, got %s", tid)
	}
}

func TestResolveTenant_EnabledUsesClaim(t *testing.T) {
	m := New(Config{Enabled: true})
	tid := m.ResolveTenant(model.Claims{TenantID: "acme"})
	if tid != "acme" {
		t.Fatalf("expected claim tenant, got %s", tid)
	}
}

func TestResolveTenant_EnabledWithNoClaimFallsBackToDefault(t *testing.T) {
	m := New(Config{Enabled: true})
	tid := m.ResolveTenant(model.Claims{})
	if tid != model.DefaultTenant {
		t.Fatalf("expected default tenant for an empty claim, got %s", tid)
	}
}

func TestLimitsFor_FallsBackToConfiguredDefaults(t *testing.T) {
	m := New(Config{DefaultMaxConnections: 10, DefaultMaxChannels: 5})
	l := m.LimitsFor("unconfigured-tenant")
	if l.MaxConnections != 10 || l.MaxChannels != 5 {
		t.Fatalf("expected defaults, got %+v", l)
	}
}

func TestLimitsFor_ReturnsExplicitOverride(t *testing.T) {
	m := New(Config{DefaultMaxConnections: 10, DefaultMaxChannels: 5})
	m.SetLimits("acme", Limits{MaxConnections: 100, MaxChannels: 50})

	l := m.LimitsFor("acme")
	if l.MaxConnections != 100 || l.MaxChannels != 50 {
		t.Fatalf("expected override, got %+v", l)
	}
	if other := m.LimitsFor("other"); other.MaxConnections != 10 {
		t.Fatalf("expected unrelated tenant to keep defaults, got %+v", other)
	}
}

func TestQualifyChannel_AndDisplayChannel_RoundTrip(t *testing.T) {
	qualified := QualifyChannel("acme", "news")
	if qualified != "acme:news" {
		t.Fatalf("expected qualified channel acme:news, got %s", qualified)
	}
	if display := DisplayChannel("acme", qualified); display != "news" {
		t.Fatalf("expected round-trip to strip the tenant prefix, got %s", display)
	}
}
