// Package outbound implements the OutboundMessage sum type (spec §3, §9):
// a Raw ServerMessage serialized lazily at send time, or a pre-serialized
// Serialized payload shared across many recipients during fan-out. This
// is a load-bearing optimization — callers with more than one recipient
// SHOULD build a Serialized message once rather than re-marshal per send.
package outbound

import (
	"encoding/json"

	"github.com/notifyhub/core/internal/model"
)

// Message is the sum type sent down a connection's outbound queue.
type Message struct {
	raw        *model.ServerMessage
	serialized []byte // shared bytes; never mutated after construction
}

// Raw wraps a ServerMessage for lazy serialization at send time.
func Raw(m model.ServerMessage) Message {
	return Message{raw: &m}
}

// NewSerialized marshals m once; the returned Message's Bytes() share the
// same backing slice across every call, making it safe and cheap to fan
// out to many recipients.
func NewSerialized(m model.ServerMessage) (Message, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return Message{}, err
	}
	return Message{serialized: b}, nil
}

// FromBytes wraps an already-serialized payload, e.g. a RoutedMessage's
// Payload arriving from a peer server, so it can be fanned out through the
// same outbound queues as a locally-originated message.
func FromBytes(b []byte) Message {
	return Message{serialized: b}
}

// Bytes returns the JSON encoding of the message, serializing lazily for
// the Raw variant.
func (m Message) Bytes() ([]byte, error) {
	if m.serialized != nil {
		return m.serialized, nil
	}
	return json.Marshal(m.raw)
}
