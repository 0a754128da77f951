// Package dispatcher implements the fan-out engine of spec §4.3: resolves
// a NotificationTarget to local connections (and, in cluster mode, remote
// servers), applies audience filtering, and delivers or queues the event.
package dispatcher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/notifyhub/core/internal/ack"
	"github.com/notifyhub/core/internal/cluster"
	"github.com/notifyhub/core/internal/model"
	"github.com/notifyhub/core/internal/outbound"
	"github.com/notifyhub/core/internal/queue"
	"github.com/notifyhub/core/internal/registry"
)

// DeliveryResult is the public return value of every dispatch operation
// (spec §4.3).
type DeliveryResult struct {
	NotificationID model.NotificationId
	DeliveredTo    int
	Failed         int
	Success        bool
	Queued         bool
	Skipped        bool
}

// Dispatcher is the fan-out engine. Queue and ack are optional (nil means
// disabled); router may be nil, and a router whose session store is
// disabled publishes nothing.
type Dispatcher struct {
	registry *registry.Registry
	queue    queue.Queue
	acks     ack.Tracker
	router   *cluster.Router
	tenantID model.TenantId
	metrics  *Metrics
	log      zerolog.Logger
}

func New(reg *registry.Registry, q queue.Queue, acks ack.Tracker, router *cluster.Router, tenantID model.TenantId, metrics *Metrics, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{registry: reg, queue: q, acks: acks, router: router, tenantID: tenantID, metrics: metrics, log: log}
}

// Dispatch resolves target and delivers event, implementing spec §4.3's
// algorithm for every target kind.
func (d *Dispatcher) Dispatch(ctx context.Context, target model.NotificationTarget, event model.NotificationEvent) DeliveryResult {
	switch target.Kind {
	case model.TargetUser:
		d.metrics.ByVariant.WithLabelValues("user").Inc()
		return d.dispatchToUser(ctx, target.UserID, event)
	case model.TargetUsers:
		d.metrics.ByVariant.WithLabelValues("users").Inc()
		return d.dispatchToUsers(ctx, target.UserIDs, event)
	case model.TargetBroadcast:
		d.metrics.ByVariant.WithLabelValues("broadcast").Inc()
		return d.dispatchToConnections(event, d.registry.GetAllConnections())
	case model.TargetChannel:
		d.metrics.ByVariant.WithLabelValues("channel").Inc()
		return d.dispatchToConnections(event, d.registry.GetChannelConnections(target.Channel))
	case model.TargetChannels:
		d.metrics.ByVariant.WithLabelValues("channels").Inc()
		return d.dispatchToConnections(event, d.registry.GetChannelsUnion(target.Channels))
	default:
		return DeliveryResult{NotificationID: event.ID}
	}
}

func (d *Dispatcher) SendToUser(ctx context.Context, userID model.UserId, event model.NotificationEvent) DeliveryResult {
	return d.Dispatch(ctx, model.TargetForUser(userID), event)
}

func (d *Dispatcher) SendToUsers(ctx context.Context, userIDs []model.UserId, event model.NotificationEvent) DeliveryResult {
	return d.Dispatch(ctx, model.TargetForUsers(userIDs), event)
}

func (d *Dispatcher) Broadcast(ctx context.Context, event model.NotificationEvent) DeliveryResult {
	return d.Dispatch(ctx, model.TargetForBroadcast(), event)
}

func (d *Dispatcher) SendToChannel(ctx context.Context, channel model.Channel, event model.NotificationEvent) DeliveryResult {
	return d.Dispatch(ctx, model.TargetForChannel(channel), event)
}

func (d *Dispatcher) SendToChannels(ctx context.Context, channels []model.Channel, event model.NotificationEvent) DeliveryResult {
	return d.Dispatch(ctx, model.TargetForChannels(channels), event)
}

// dispatchToUser implements the single-user algorithm of spec §4.3 steps
// 1–5, including the offline-queue fallback and the cross-cluster
// extension.
func (d *Dispatcher) dispatchToUser(ctx context.Context, userID model.UserId, event model.NotificationEvent) DeliveryResult {
	result := DeliveryResult{NotificationID: event.ID}

	if event.IsExpired(time.Now().Unix()) {
		result.Skipped = true
		d.metrics.TotalSkipped.Inc()
		return result
	}

	recipients := d.filterByAudience(d.registry.GetUserConnections(userID), event)

	if len(recipients) == 0 && d.queue != nil {
		if err := d.queue.Enqueue(ctx, userID, event); err != nil {
			d.log.Warn().Err(err).Str("user_id", string(userID)).Msg("dispatcher: offline enqueue failed")
		} else {
			result.Queued = true
		}
		d.routeToCluster(ctx, userID, event)
		d.metrics.TotalSent.Inc()
		return result
	}

	msg, err := outbound.NewSerialized(model.NewNotificationMessage(event))
	if err != nil {
		d.log.Error().Err(err).Msg("dispatcher: failed to serialize notification")
		result.Failed = len(recipients)
		d.metrics.TotalFailed.Add(float64(result.Failed))
		d.metrics.TotalSent.Inc()
		return result
	}

	result.DeliveredTo, result.Failed = d.deliver(ctx, recipients, msg, event.ID, userID)
	result.Success = result.Failed == 0

	d.routeToCluster(ctx, userID, event)

	d.metrics.TotalSent.Inc()
	d.metrics.TotalDelivered.Add(float64(result.DeliveredTo))
	d.metrics.TotalFailed.Add(float64(result.Failed))
	return result
}

// dispatchToUsers aggregates dispatchToUser over every user, sharing one
// notification_id (spec §4.3).
func (d *Dispatcher) dispatchToUsers(ctx context.Context, userIDs []model.UserId, event model.NotificationEvent) DeliveryResult {
	result := DeliveryResult{NotificationID: event.ID}

	if event.IsExpired(time.Now().Unix()) {
		result.Skipped = true
		d.metrics.TotalSkipped.Inc()
		return result
	}

	for _, userID := range userIDs {
		r := d.dispatchToUser(ctx, userID, event)
		result.DeliveredTo += r.DeliveredTo
		result.Failed += r.Failed
		result.Queued = result.Queued || r.Queued
	}
	result.Success = result.Failed == 0
	return result
}

// dispatchToConnections implements the Broadcast/Channel/Channels
// algorithm: no queueing fallback (there is no single user to queue for),
// otherwise identical to the user path.
func (d *Dispatcher) dispatchToConnections(event model.NotificationEvent, recipients []*registry.Handle) DeliveryResult {
	result := DeliveryResult{NotificationID: event.ID}

	if event.IsExpired(time.Now().Unix()) {
		result.Skipped = true
		d.metrics.TotalSkipped.Inc()
		return result
	}

	filtered := d.filterByAudience(recipients, event)
	if len(filtered) == 0 {
		d.metrics.TotalSent.Inc()
		return result
	}

	msg, err := outbound.NewSerialized(model.NewNotificationMessage(event))
	if err != nil {
		d.log.Error().Err(err).Msg("dispatcher: failed to serialize notification")
		result.Failed = len(filtered)
		d.metrics.TotalFailed.Add(float64(result.Failed))
		d.metrics.TotalSent.Inc()
		return result
	}

	result.DeliveredTo, result.Failed = d.deliver(context.Background(), filtered, msg, event.ID, "")
	result.Success = result.Failed == 0

	d.metrics.TotalSent.Inc()
	d.metrics.TotalDelivered.Add(float64(result.DeliveredTo))
	d.metrics.TotalFailed.Add(float64(result.Failed))
	return result
}

// filterByAudience applies spec §4.3 step 2: only the Roles variant of
// event.metadata.audience is an output filter.
func (d *Dispatcher) filterByAudience(handles []*registry.Handle, event model.NotificationEvent) []*registry.Handle {
	if event.Metadata.Audience == nil {
		return handles
	}
	audience := *event.Metadata.Audience
	out := make([]*registry.Handle, 0, len(handles))
	for _, h := range handles {
		if audience.Satisfies(h.Roles) {
			out = append(out, h)
		}
	}
	return out
}

// deliver attempts a non-blocking send to every recipient, tracking acks
// when enabled. A per-connection failure never retries within one dispatch
// (spec §4.3).
func (d *Dispatcher) deliver(ctx context.Context, recipients []*registry.Handle, msg outbound.Message, notificationID model.NotificationId, userID model.UserId) (delivered, failed int) {
	for _, h := range recipients {
		if !h.Send(msg) {
			failed++
			continue
		}
		delivered++
		if d.acks != nil {
			u := userID
			if u == "" {
				u = h.UserID
			}
			d.acks.Track(ctx, notificationID, u, h.ID)
		}
	}
	return delivered, failed
}

// routeToCluster invokes the cross-cluster extension when a router is set.
// A publish failure is logged by the router and never fails local
// delivery; it is not counted in the dispatcher's metrics.
func (d *Dispatcher) routeToCluster(ctx context.Context, userID model.UserId, event model.NotificationEvent) {
	if d.router == nil {
		return
	}
	msg, err := outbound.NewSerialized(model.NewNotificationMessage(event))
	if err != nil {
		return
	}
	payload, err := msg.Bytes()
	if err != nil {
		return
	}
	d.router.PublishToRemoteServers(ctx, userID, d.tenantID, payload)
}
