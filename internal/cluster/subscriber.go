package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/notifyhub/core/internal/model"
)

// maxBackoff caps the routed-message subscriber's reconnect delay (spec §4.7).
const maxBackoff = 30 * time.Second

// Subscriber is the long-running task bound to the cluster routing bus
// (spec §4.7): subscribes to both the server-specific channel and the
// broadcast channel, decodes incoming RoutedMessages, and hands them to
// the router.
type Subscriber struct {
	client         *redis.Client
	routingChannel string
	serverID       model.ServerId
	router         *Router
	log            zerolog.Logger
}

func NewSubscriber(client *redis.Client, routingChannel string, serverID model.ServerId, router *Router, log zerolog.Logger) *Subscriber {
	return &Subscriber{client: client, routingChannel: routingChannel, serverID: serverID, router: router, log: log}
}

// Run is the outer retry loop: on any subscription error it tears down and
// re-enters the loop after the current backoff delay, which doubles up to
// a 30-second cap. Shutdown is honoured both here and inside the select.
func (s *Subscriber) Run(ctx context.Context) {
	delay := 1 * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.subscribeLoop(ctx); err != nil {
			s.log.Warn().Err(err).Msg("cluster: routed-message subscriber error, reconnecting")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxBackoff {
				delay = maxBackoff
			}
			continue
		}
		delay = 1 * time.Second
	}
}

func (s *Subscriber) subscribeLoop(ctx context.Context) error {
	serverChannel := fmt.Sprintf("%s:%s", s.routingChannel, s.serverID)
	pubsub := s.client.Subscribe(ctx, s.routingChannel, serverChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return fmt.Errorf("routing bus channel closed")
			}
			var msg model.RoutedMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				s.log.Warn().Err(err).Msg("cluster: malformed routed message, dropping")
				continue
			}
			s.router.HandleRoutedMessage(msg)
		}
	}
}
