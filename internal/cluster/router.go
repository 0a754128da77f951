package cluster

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/notifyhub/core/internal/model"
	"github.com/notifyhub/core/internal/outbound"
	"github.com/notifyhub/core/internal/registry"
)

// LocalSender looks up the local connections for a user; implemented by
// *registry.Registry in production.
type LocalSender interface {
	GetUserConnections(userID model.UserId) []*registry.Handle
}

// RouteResult reports how many local connections received the message and
// how many peer servers were notified (spec §4.6).
type RouteResult struct {
	LocalDelivered int
	RoutedServers  int
}

// Router implements RouteToUser / HandleRoutedMessage (spec §4.6): local
// delivery plus, when the session store is enabled, forwarding to every
// other server known to host the user.
type Router struct {
	store  SessionStore
	local  LocalSender
	log    zerolog.Logger
}

func NewRouter(store SessionStore, local LocalSender, log zerolog.Logger) *Router {
	return &Router{store: store, local: local, log: log}
}

// RouteToUser sends locally to every connection for the user via the
// already-serialized outbound message, then — if the session store is
// enabled — publishes a RoutedMessage per other server hosting the user.
// Use this for a standalone cluster send; the dispatcher's own
// cross-cluster extension calls PublishToRemoteServers instead, since it
// has already performed local delivery with its own audience filtering
// (spec §4.3's "never double-delivers" rule).
func (r *Router) RouteToUser(ctx context.Context, userID model.UserId, tenantID model.TenantId, payload []byte) RouteResult {
	var result RouteResult

	msg := outbound.FromBytes(payload)
	for _, h := range r.local.GetUserConnections(userID) {
		if h.Send(msg) {
			result.LocalDelivered++
		}
	}

	result.RoutedServers = r.PublishToRemoteServers(ctx, userID, tenantID, payload)
	return result
}

// PublishToRemoteServers queries the session store for the servers
// hosting userID and publishes a RoutedMessage to every one of them other
// than self (spec §4.3, §4.6). It performs no local delivery.
func (r *Router) PublishToRemoteServers(ctx context.Context, userID model.UserId, tenantID model.TenantId, payload []byte) int {
	if !r.store.IsEnabled() {
		return 0
	}

	servers, err := r.store.FindUserServers(ctx, userID)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", string(userID)).Msg("cluster: find user servers failed")
		return 0
	}

	self := r.store.ServerID()
	routed := 0
	for _, srv := range servers {
		if srv == self {
			continue
		}
		target := srv
		msg := model.RoutedMessage{
			UserID: userID, TenantID: tenantID, Payload: string(payload),
			FromServer: self, ToServer: &target,
		}
		if err := r.store.PublishRoutedMessage(ctx, msg); err != nil {
			r.log.Warn().Err(err).Str("to_server", string(target)).Msg("cluster: publish routed message failed")
			continue
		}
		routed++
	}
	return routed
}

// HandleRoutedMessage is the incoming side of the routing bus: drop if
// to_server is set and not equal to self, drop if from_server equals
// self, then send the decoded payload to every local connection for the
// message's user (spec §4.6).
func (r *Router) HandleRoutedMessage(msg model.RoutedMessage) {
	self := r.store.ServerID()
	if msg.ToServer != nil && *msg.ToServer != self {
		return
	}
	if msg.FromServer == self {
		return
	}
	out := outbound.FromBytes([]byte(msg.Payload))
	for _, h := range r.local.GetUserConnections(msg.UserID) {
		h.Send(out)
	}
}
