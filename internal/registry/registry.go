package registry

import (
	"regexp"
	"sync"
	"time"

	"github.com/notifyhub/core/internal/apperror"
	"github.com/notifyhub/core/internal/model"
)

func nowUnix() int64 { return time.Now().Unix() }

// channelNamePattern is spec §4.2's channel name grammar.
var channelNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Limits bounds connection counts and subscriptions (spec §3, §4.2).
type Limits struct {
	MaxConnections                int
	MaxConnectionsPerUser         int
	MaxSubscriptionsPerConnection int
	OutboundQueueSize             int
}

// Stats is the snapshot returned by Registry.Stats().
type Stats struct {
	TotalConnections int
	TotalUsers       int
	TotalTenants     int
	TotalChannels    int
}

type connSet map[model.ConnectionId]struct{}

// Registry is the connection index of spec §4.2. A single RWMutex guards
// the index maps; each Handle's own subscriptions set and last-activity
// are independently synchronized (spec §9), so readers that only need a
// snapshot of "who is connected" never contend with a connection's own
// read/write loops.
type Registry struct {
	limits Limits

	mu         sync.RWMutex
	byID       map[model.ConnectionId]*Handle
	byUser     map[model.UserId]connSet
	byTenant   map[model.TenantId]connSet
	byChannel  map[model.Channel]connSet
}

func New(limits Limits) *Registry {
	return &Registry{
		limits:    limits,
		byID:      make(map[model.ConnectionId]*Handle),
		byUser:    make(map[model.UserId]connSet),
		byTenant:  make(map[model.TenantId]connSet),
		byChannel: make(map[model.Channel]connSet),
	}
}

// Register installs a new handle for (user, tenant), enforcing total and
// per-user limits before any mutation (spec testable property #2: limit
// exhaustion leaves counts unchanged).
func (r *Registry) Register(id model.ConnectionId, userID model.UserId, tenantID model.TenantId, roles []string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.limits.MaxConnections > 0 && len(r.byID) >= r.limits.MaxConnections {
		return nil, apperror.ErrLimitExceeded
	}
	if r.limits.MaxConnectionsPerUser > 0 && len(r.byUser[userID]) >= r.limits.MaxConnectionsPerUser {
		return nil, apperror.ErrLimitExceeded
	}

	h := newHandle(id, userID, tenantID, roles, r.limits.OutboundQueueSize)

	r.byID[id] = h
	addTo(r.byUser, userID, id)
	addTo(r.byTenant, tenantID, id)

	return h, nil
}

// Unregister removes a handle from every index, including every channel
// in its current subscriptions, and closes its outbound queue. Idempotent.
func (r *Registry) Unregister(id model.ConnectionId) {
	r.mu.Lock()
	h, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byID, id)
	removeFrom(r.byUser, h.UserID, id)
	removeFrom(r.byTenant, h.TenantID, id)
	for _, c := range h.Subscriptions() {
		removeFrom(r.byChannel, c, id)
	}
	r.mu.Unlock()

	h.Close()
}

// SubscribeToChannel validates the channel name, enforces the
// per-connection subscription limit, and is a no-op if already subscribed.
func (r *Registry) SubscribeToChannel(id model.ConnectionId, channel model.Channel) error {
	if !channelNamePattern.MatchString(string(channel)) {
		return apperror.New(apperror.CategoryValidation, "invalid_channel", "channel name must match [A-Za-z0-9._-]{1,64}")
	}

	r.mu.Lock()
	h, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return apperror.New(apperror.CategoryValidation, "unknown_connection", "connection not registered")
	}
	if h.hasSubscription(channel) {
		r.mu.Unlock()
		return nil
	}
	if r.limits.MaxSubscriptionsPerConnection > 0 && h.subscriptionCount() >= r.limits.MaxSubscriptionsPerConnection {
		r.mu.Unlock()
		return apperror.ErrLimitExceeded
	}
	addTo(r.byChannel, channel, id)
	r.mu.Unlock()

	h.addSubscription(channel)
	return nil
}

// UnsubscribeFromChannel is a no-op if the connection never held the channel.
func (r *Registry) UnsubscribeFromChannel(id model.ConnectionId, channel model.Channel) {
	r.mu.Lock()
	h, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if !h.hasSubscription(channel) {
		r.mu.Unlock()
		return
	}
	removeFrom(r.byChannel, channel, id)
	r.mu.Unlock()

	h.removeSubscription(channel)
}

// GetHandle looks up a single handle by id.
func (r *Registry) GetHandle(id model.ConnectionId) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byID[id]
	return h, ok
}

// GetUserConnections returns the snapshot of handles for a user.
func (r *Registry) GetUserConnections(userID model.UserId) []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(r.byUser[userID])
}

// GetChannelConnections returns the snapshot of handles subscribed to a channel.
func (r *Registry) GetChannelConnections(channel model.Channel) []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(r.byChannel[channel])
}

// GetTenantConnections returns the snapshot of handles for a tenant.
func (r *Registry) GetTenantConnections(tenantID model.TenantId) []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(r.byTenant[tenantID])
}

// GetAllConnections returns every live handle.
func (r *Registry) GetAllConnections() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Handle, 0, len(r.byID))
	for _, h := range r.byID {
		out = append(out, h)
	}
	return out
}

// GetChannelsUnion returns the deduplicated union of connections across
// several channels (spec §4.3, Channels target).
func (r *Registry) GetChannelsUnion(channels []model.Channel) []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[model.ConnectionId]*Handle)
	for _, c := range channels {
		for id := range r.byChannel[c] {
			if h, ok := r.byID[id]; ok {
				seen[id] = h
			}
		}
	}
	out := make([]*Handle, 0, len(seen))
	for _, h := range seen {
		out = append(out, h)
	}
	return out
}

// snapshot must be called with r.mu held (read or write).
func (r *Registry) snapshot(set connSet) []*Handle {
	out := make([]*Handle, 0, len(set))
	for id := range set {
		if h, ok := r.byID[id]; ok {
			out = append(out, h)
		}
	}
	return out
}

// FindStaleConnections returns connection ids whose last activity exceeds
// timeoutSecs, using the handle's lock-free atomic timestamp (spec §4.2).
func (r *Registry) FindStaleConnections(timeoutSecs int64) []model.ConnectionId {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := nowUnix()
	var stale []model.ConnectionId
	for id, h := range r.byID {
		if now-h.LastActivity() >= timeoutSecs {
			stale = append(stale, id)
		}
	}
	return stale
}

// CleanupStaleConnections unregisters every stale connection and returns the count removed.
func (r *Registry) CleanupStaleConnections(timeoutSecs int64) int {
	stale := r.FindStaleConnections(timeoutSecs)
	for _, id := range stale {
		r.Unregister(id)
	}
	return len(stale)
}

// Stats returns aggregate registry counts.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		TotalConnections: len(r.byID),
		TotalUsers:       len(r.byUser),
		TotalTenants:     len(r.byTenant),
		TotalChannels:    len(r.byChannel),
	}
}

// TenantStats returns the connection count for one tenant.
func (r *Registry) TenantStats(tenantID model.TenantId) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTenant[tenantID])
}

// ListChannels returns every currently-subscribed channel name.
func (r *Registry) ListChannels() []model.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Channel, 0, len(r.byChannel))
	for c := range r.byChannel {
		out = append(out, c)
	}
	return out
}

// GetChannelInfo returns the subscriber count for one channel.
func (r *Registry) GetChannelInfo(channel model.Channel) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byChannel[channel])
}

// ListTenants returns every tenant with at least one live connection.
func (r *Registry) ListTenants() []model.TenantId {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.TenantId, 0, len(r.byTenant))
	for t := range r.byTenant {
		out = append(out, t)
	}
	return out
}

// ListTenantChannels returns the channels with at least one subscriber
// belonging to the given tenant.
func (r *Registry) ListTenantChannels(tenantID model.TenantId) []model.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tenantConns := r.byTenant[tenantID]
	seen := make(map[model.Channel]struct{})
	for channel, conns := range r.byChannel {
		for id := range conns {
			if _, ok := tenantConns[id]; ok {
				seen[channel] = struct{}{}
				break
			}
		}
	}
	out := make([]model.Channel, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	return out
}

func addTo[K comparable](m map[K]connSet, key K, id model.ConnectionId) {
	set, ok := m[key]
	if !ok {
		set = make(connSet)
		m[key] = set
	}
	set[id] = struct{}{}
}

// removeFrom deletes id from m[key]'s set and, per spec §4.2, deletes the
// key entirely once its set becomes empty.
func removeFrom[K comparable](m map[K]connSet, key K, id model.ConnectionId) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(m, key)
	}
}
