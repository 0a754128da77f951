package outbound

import (
	"encoding/json"
	"testing"

	"github.com/notifyhub/core/internal/model"
)

func TestRaw_SerializesLazilyAtBytesTime(t *testing.T) {
	m := Raw(model.NewPongMessage())

	b, err := m.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded model.ServerMessage
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("expected valid JSON, got error: %v", err)
	}
	if decoded.Type != model.ServerMsgPong {
		t.Fatalf("expected type %q, got %q", model.ServerMsgPong, decoded.Type)
	}
}

func TestNewSerialized_SharesBytesAcrossCalls(t *testing.T) {
	m, err := NewSerialized(model.NewAckedMessage("notif-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b1, err1 := m.Bytes()
	b2, err2 := m.Bytes()
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if &b1[0] != &b2[0] {
		t.Fatal("expected repeated Bytes() calls to return the same backing array")
	}
}

func TestFromBytes_RoundTrips(t *testing.T) {
	payload := []byte(`{"type":"notification"}`)
	m := FromBytes(payload)

	b, err := m.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != string(payload) {
		t.Fatalf("expected %s, got %s", payload, b)
	}
}
