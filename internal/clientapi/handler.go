// Package clientapi implements the client→server side of spec §3/§6's
// ClientMessage union: subscribe, unsubscribe, ping, and ack, grounded on
// the teacher's handleClientMessage switch in internal/shared/handlers_message.go.
package clientapi

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/notifyhub/core/internal/ack"
	"github.com/notifyhub/core/internal/model"
	"github.com/notifyhub/core/internal/outbound"
	"github.com/notifyhub/core/internal/registry"
	"github.com/notifyhub/core/internal/tenant"
)

// Handler turns a decoded model.ClientMessage into registry/ack effects
// and a response frame written back onto the connection's own outbound
// queue, matching the teacher's "handle, then c.send <- ack" pattern.
type Handler struct {
	registry *registry.Registry
	acks     ack.Tracker
	log      zerolog.Logger
}

func New(reg *registry.Registry, acks ack.Tracker, log zerolog.Logger) *Handler {
	return &Handler{registry: reg, acks: acks, log: log}
}

// Handle implements ws.ClientMessageHandler / the SSE equivalent callback.
func (h *Handler) Handle(handle *registry.Handle, msg model.ClientMessage) {
	switch msg.Type {
	case model.ClientMsgPing:
		h.respond(handle, model.NewPongMessage())

	case model.ClientMsgSubscribe:
		h.subscribe(handle, msg.Channels)

	case model.ClientMsgUnsubscribe:
		h.unsubscribe(handle, msg.Channels)

	case model.ClientMsgAck:
		h.acknowledge(handle, msg.NotificationID)

	default:
		h.log.Warn().Str("connection_id", string(handle.ID)).Str("type", msg.Type).Msg("clientapi: unknown client message type")
		h.respond(handle, model.NewErrorMessage("unknown_message_type", "unrecognized message type"))
	}
}

func (h *Handler) subscribe(handle *registry.Handle, channels []string) {
	subscribed := make([]string, 0, len(channels))
	for _, raw := range channels {
		qualified := tenant.QualifyChannel(handle.TenantID, model.Channel(raw))
		if err := h.registry.SubscribeToChannel(handle.ID, qualified); err != nil {
			h.respond(handle, model.NewErrorMessage("subscribe_failed", err.Error()))
			continue
		}
		subscribed = append(subscribed, raw)
	}
	h.respond(handle, model.NewSubscribedMessage(subscribed))
}

func (h *Handler) unsubscribe(handle *registry.Handle, channels []string) {
	for _, raw := range channels {
		qualified := tenant.QualifyChannel(handle.TenantID, model.Channel(raw))
		h.registry.UnsubscribeFromChannel(handle.ID, qualified)
	}
	h.respond(handle, model.NewUnsubscribedMessage(channels))
}

func (h *Handler) acknowledge(handle *registry.Handle, notificationID string) {
	if notificationID == "" {
		h.respond(handle, model.NewErrorMessage("invalid_ack", "notification_id is required"))
		return
	}
	id := model.NotificationId(notificationID)
	ok, err := h.acks.Acknowledge(context.Background(), id, handle.UserID)
	if err != nil {
		h.log.Warn().Err(err).Str("notification_id", notificationID).Msg("clientapi: ack backend error")
		h.respond(handle, model.NewErrorMessage("ack_failed", "could not record acknowledgement"))
		return
	}
	if !ok {
		h.respond(handle, model.NewErrorMessage("ack_not_found", "notification not pending or already acknowledged"))
		return
	}
	h.respond(handle, model.NewAckedMessage(id))
}

func (h *Handler) respond(handle *registry.Handle, sm model.ServerMessage) {
	msg, err := outbound.NewSerialized(sm)
	if err != nil {
		h.log.Error().Err(err).Msg("clientapi: failed to serialize response")
		return
	}
	handle.Send(msg)
}
