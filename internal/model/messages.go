package model

import "encoding/json"

// Priority is the urgency carried in NotificationEvent.Metadata.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityNormal   Priority = "Normal"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// AudienceKind discriminates the NotificationEvent.Metadata.Audience union.
type AudienceKind string

const (
	AudienceAll      AudienceKind = "All"
	AudienceRoles    AudienceKind = "Roles"
	AudienceUsers    AudienceKind = "Users"
	AudienceChannels AudienceKind = "Channels"
)

// Audience is a tagged union: All, Roles([...]), Users([...]), Channels([...]).
type Audience struct {
	Kind   AudienceKind `json:"kind"`
	Values []string     `json:"values,omitempty"`
}

// Satisfies reports whether a connection holding the given roles passes
// this audience filter. Per spec §4.3 step 2, only the Roles variant is
// applied as an output filter; All/Users/Channels are treated as
// satisfied (Users/Channels are input filtering, applied upstream).
func (a Audience) Satisfies(roles []string) bool {
	if a.Kind != AudienceRoles {
		return true
	}
	if len(a.Values) == 0 {
		return false
	}
	want := make(map[string]struct{}, len(a.Values))
	for _, r := range a.Values {
		want[r] = struct{}{}
	}
	for _, r := range roles {
		if _, ok := want[r]; ok {
			return true
		}
	}
	return false
}

// EventMetadata carries routing and lifecycle hints for a NotificationEvent.
type EventMetadata struct {
	Source        string    `json:"source"`
	Priority      Priority  `json:"priority"`
	TTLSeconds    *int64    `json:"ttl_seconds,omitempty"`
	Audience      *Audience `json:"audience,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// NotificationEvent is the payload that flows from any ingress path
// (HTTP, Redis trigger bus, cluster routing bus) into the dispatcher.
type NotificationEvent struct {
	ID         NotificationId  `json:"id"`
	OccurredAt int64           `json:"occurred_at"` // unix seconds
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	Metadata   EventMetadata   `json:"metadata"`
}

// IsExpired implements spec §4.3 step 1: ttl set and now > occurred_at + ttl.
func (e NotificationEvent) IsExpired(nowUnix int64) bool {
	if e.Metadata.TTLSeconds == nil {
		return false
	}
	return nowUnix > e.OccurredAt+*e.Metadata.TTLSeconds
}

// ServerMessage is the server→client tagged union (spec §3). JSON
// discriminator is "type".
type ServerMessage struct {
	Type                 string          `json:"type"`
	Event                *NotificationEvent `json:"event,omitempty"`
	Channels             []string        `json:"channels,omitempty"`
	NotificationID       NotificationId  `json:"notification_id,omitempty"`
	Code                 string          `json:"code,omitempty"`
	Message              string          `json:"message,omitempty"`
	Reason               string          `json:"reason,omitempty"`
	ReconnectAfterSeconds *int64         `json:"reconnect_after_seconds,omitempty"`
}

const (
	ServerMsgNotification = "notification"
	ServerMsgSubscribed   = "subscribed"
	ServerMsgUnsubscribed = "unsubscribed"
	ServerMsgPong         = "pong"
	ServerMsgHeartbeat    = "heartbeat"
	ServerMsgAcked        = "acked"
	ServerMsgError        = "error"
	ServerMsgShutdown     = "shutdown"
)

func NewNotificationMessage(e NotificationEvent) ServerMessage {
	return ServerMessage{Type: ServerMsgNotification, Event: &e}
}

func NewSubscribedMessage(channels []string) ServerMessage {
	return ServerMessage{Type: ServerMsgSubscribed, Channels: channels}
}

func NewUnsubscribedMessage(channels []string) ServerMessage {
	return ServerMessage{Type: ServerMsgUnsubscribed, Channels: channels}
}

func NewPongMessage() ServerMessage { return ServerMessage{Type: ServerMsgPong} }

func NewHeartbeatMessage() ServerMessage { return ServerMessage{Type: ServerMsgHeartbeat} }

func NewAckedMessage(id NotificationId) ServerMessage {
	return ServerMessage{Type: ServerMsgAcked, NotificationID: id}
}

func NewErrorMessage(code, message string) ServerMessage {
	return ServerMessage{Type: ServerMsgError, Code: code, Message: message}
}

func NewShutdownMessage(reason string, after *int64) ServerMessage {
	return ServerMessage{Type: ServerMsgShutdown, Reason: reason, ReconnectAfterSeconds: after}
}

// ClientMessage is the client→server tagged union (spec §3).
type ClientMessage struct {
	Type           string   `json:"type"`
	Channels       []string `json:"channels,omitempty"`
	NotificationID string   `json:"notification_id,omitempty"`
}

const (
	ClientMsgSubscribe   = "subscribe"
	ClientMsgUnsubscribe = "unsubscribe"
	ClientMsgPing        = "ping"
	ClientMsgAck         = "ack"
)
