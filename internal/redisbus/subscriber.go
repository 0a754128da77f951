// Package redisbus implements the external trigger ingestion task of spec
// §4.8: a long-running subscriber that decodes externally-published
// notifications off a configurable set of Redis channels/patterns and
// hands them to the dispatcher.
package redisbus

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/notifyhub/core/internal/backoff"
	"github.com/notifyhub/core/internal/circuitbreaker"
	"github.com/notifyhub/core/internal/health"
	"github.com/notifyhub/core/internal/model"
)

// wireMessage is the JSON shape published by external producers (spec §4.8).
type wireMessage struct {
	Type   string          `json:"type"`
	Target json.RawMessage `json:"target"`
	Event  wireEvent       `json:"event"`
}

type wireEvent struct {
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Priority      model.Priority  `json:"priority,omitempty"`
	TTL           *int64          `json:"ttl,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// EventHandler receives a resolved target and event; implemented by
// dispatcher.Dispatcher's Dispatch method via a thin adapter at wiring time.
type EventHandler func(ctx context.Context, target model.NotificationTarget, event model.NotificationEvent)

// Subscriber ingests externally-published notifications (spec §4.8).
type Subscriber struct {
	client       *redis.Client
	channels     []string
	breaker      *circuitbreaker.Breaker
	backoff      *backoff.Backoff
	health       *health.Tracker
	handle       EventHandler
	resetTimeout time.Duration
	log          zerolog.Logger
}

func New(client *redis.Client, channels []string, breaker *circuitbreaker.Breaker, bo *backoff.Backoff, tracker *health.Tracker, resetTimeout time.Duration, handle EventHandler, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		client: client, channels: channels, breaker: breaker, backoff: bo, health: tracker,
		resetTimeout: resetTimeout, handle: handle, log: log,
	}
}

func isPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

// Run is the outer loop: check circuit-breaker state; if open, sleep half
// the reset timeout and retry. A successful subscribe records a success on
// the breaker and marks health connected. Any stream error records a
// failure and waits the backoff delay before reconnecting (spec §4.8).
func (s *Subscriber) Run(ctx context.Context) {
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !s.breaker.AllowRequest() {
			s.health.SetCircuitOpen()
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.resetTimeout / 2):
			}
			continue
		}

		if err := s.subscribeLoop(ctx); err != nil {
			s.breaker.RecordFailure()
			s.health.SetReconnecting()
			s.log.Warn().Err(err).Msg("redisbus: trigger subscriber error, reconnecting")
			delay := s.backoff.Delay(attempt)
			attempt++
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		attempt = 0
	}
}

func (s *Subscriber) subscribeLoop(ctx context.Context) error {
	var pubsub *redis.PubSub
	patterns := make([]string, 0, len(s.channels))
	plain := make([]string, 0, len(s.channels))
	for _, c := range s.channels {
		if isPattern(c) {
			patterns = append(patterns, c)
		} else {
			plain = append(plain, c)
		}
	}

	if len(patterns) > 0 {
		pubsub = s.client.PSubscribe(ctx, patterns...)
	} else {
		pubsub = s.client.Subscribe(ctx, plain...)
	}
	defer pubsub.Close()

	if len(patterns) > 0 && len(plain) > 0 {
		if err := pubsub.Subscribe(ctx, plain...); err != nil {
			return err
		}
	}

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	s.breaker.RecordSuccess()
	s.health.SetConnected()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return context.Canceled
			}
			s.handleMessage(ctx, m.Payload)
		}
	}
}

func (s *Subscriber) handleMessage(ctx context.Context, payload string) {
	var wire wireMessage
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		s.log.Warn().Err(err).Msg("redisbus: malformed trigger message, dropping")
		return
	}

	target, err := parseTarget(wire.Type, wire.Target)
	if err != nil {
		s.log.Warn().Err(err).Str("type", wire.Type).Msg("redisbus: invalid target, dropping")
		return
	}

	event := model.NotificationEvent{
		OccurredAt: time.Now().Unix(),
		EventType:  wire.Event.EventType,
		Payload:    wire.Event.Payload,
		Metadata: model.EventMetadata{
			Source:        "redisbus",
			Priority:      wire.Event.Priority,
			TTLSeconds:    wire.Event.TTL,
			CorrelationID: wire.Event.CorrelationID,
		},
	}
	if event.Metadata.Priority == "" {
		event.Metadata.Priority = model.PriorityNormal
	}

	s.handle(ctx, target, event)
}

// parseTarget maps the wire "type"/"target" fields to a NotificationTarget.
// Single-target types tolerate either a bare scalar or a one-element list
// (spec §4.8).
func parseTarget(kind string, raw json.RawMessage) (model.NotificationTarget, error) {
	switch kind {
	case "user":
		id, err := decodeScalarOrSingleton(raw)
		if err != nil {
			return model.NotificationTarget{}, err
		}
		return model.TargetForUser(model.UserId(id)), nil
	case "users":
		ids, err := decodeList(raw)
		if err != nil {
			return model.NotificationTarget{}, err
		}
		userIDs := make([]model.UserId, len(ids))
		for i, id := range ids {
			userIDs[i] = model.UserId(id)
		}
		return model.TargetForUsers(userIDs), nil
	case "broadcast":
		return model.TargetForBroadcast(), nil
	case "channel":
		id, err := decodeScalarOrSingleton(raw)
		if err != nil {
			return model.NotificationTarget{}, err
		}
		return model.TargetForChannel(model.Channel(id)), nil
	case "channels":
		ids, err := decodeList(raw)
		if err != nil {
			return model.NotificationTarget{}, err
		}
		channels := make([]model.Channel, len(ids))
		for i, id := range ids {
			channels[i] = model.Channel(id)
		}
		return model.TargetForChannels(channels), nil
	default:
		return model.NotificationTarget{}, errUnknownTargetType(kind)
	}
}

func decodeScalarOrSingleton(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return "", err
	}
	if len(list) != 1 {
		return "", errTargetCardinality
	}
	return list[0], nil
}

func decodeList(raw json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}
