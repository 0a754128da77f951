// Package tenant implements the tenant manager of spec §4.12: per-tenant
// limits, aggregate stats, and the channel name rewriting that keeps one
// tenant from addressing another's channels.
package tenant

import (
	"fmt"
	"strings"
	"sync"

	"github.com/notifyhub/core/internal/model"
)

// Limits bounds one tenant's resource usage.
type Limits struct {
	MaxConnections int
	MaxChannels    int
}

// Config is the manager's construction-time policy (spec §6).
type Config struct {
	Enabled               bool
	DefaultMaxConnections int
	DefaultMaxChannels    int
}

// Manager tracks per-tenant limits and resolves the effective tenant for a
// claim. When multi-tenancy is disabled every claim resolves to
// model.DefaultTenant (spec §4.12).
type Manager struct {
	cfg Config

	mu     sync.RWMutex
	limits map[model.TenantId]Limits
}

func New(cfg Config) *Manager {
	return &Manager{cfg: cfg, limits: make(map[model.TenantId]Limits)}
}

// ResolveTenant maps a claim's tenant to the effective tenant id, ignoring
// the claim entirely when multi-tenancy is disabled.
func (m *Manager) ResolveTenant(claims model.Claims) model.TenantId {
	if !m.cfg.Enabled {
		return model.TenantId(model.DefaultTenant)
	}
	return model.TenantId(claims.Tenant())
}

// LimitsFor returns the effective limits for a tenant, falling back to the
// manager's configured defaults when none were set explicitly.
func (m *Manager) LimitsFor(tenantID model.TenantId) Limits {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.limits[tenantID]; ok {
		return l
	}
	return Limits{MaxConnections: m.cfg.DefaultMaxConnections, MaxChannels: m.cfg.DefaultMaxChannels}
}

// SetLimits installs an explicit override for one tenant.
func (m *Manager) SetLimits(tenantID model.TenantId, limits Limits) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits[tenantID] = limits
}

// QualifyChannel rewrites a client-presented channel name to its
// internal, tenant-scoped form (spec §4.12).
func QualifyChannel(tenantID model.TenantId, channel model.Channel) model.Channel {
	return model.Channel(fmt.Sprintf("%s:%s", tenantID, channel))
}

// DisplayChannel reverses QualifyChannel for presentation back to a
// client, stripping the tenant prefix it was given.
func DisplayChannel(tenantID model.TenantId, qualified model.Channel) model.Channel {
	prefix := string(tenantID) + ":"
	return model.Channel(strings.TrimPrefix(string(qualified), prefix))
}
