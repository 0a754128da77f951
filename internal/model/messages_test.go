package model

import "testing"

func TestAudience_Satisfies(t *testing.T) {
	tests := []struct {
		name  string
		aud   Audience
		roles []string
		want  bool
	}{
		{"all kind always satisfies", Audience{Kind: AudienceAll}, nil, true},
		{"users kind is not an output filter", Audience{Kind: AudienceUsers, Values: []string{"u1"}}, nil, true},
		{"roles kind with matching role", Audience{Kind: AudienceRoles, Values: []string{"admin"}}, []string{"admin", "viewer"}, true},
		{"roles kind with no matching role", Audience{Kind: AudienceRoles, Values: []string{"admin"}}, []string{"viewer"}, false},
		{"roles kind with empty values never satisfies", Audience{Kind: AudienceRoles}, []string{"admin"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.aud.Satisfies(tt.roles); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNotificationEvent_IsExpired(t *testing.T) {
	ttl := int64(60)
	e := NotificationEvent{OccurredAt: 1000, Metadata: EventMetadata{TTLSeconds: &ttl}}

	if e.IsExpired(1000) {
		t.Fatal("expected event not yet expired at occurred_at")
	}
	if e.IsExpired(1060) {
		t.Fatal("expected event exactly at the boundary to not be expired")
	}
	if !e.IsExpired(1061) {
		t.Fatal("expected event past ttl to be expired")
	}
}

func TestNotificationEvent_NeverExpiresWithoutTTL(t *testing.T) {
	e := NotificationEvent{OccurredAt: 1000}
	if e.IsExpired(1_000_000_000) {
		t.Fatal("expected an event with no ttl to never expire")
	}
}

func TestServerMessageConstructors(t *testing.T) {
	if m := NewPongMessage(); m.Type != ServerMsgPong {
		t.Fatalf("expected pong type, got %s", m.Type)
	}
	if m := NewAckedMessage("n1"); m.Type != ServerMsgAcked || m.NotificationID != "n1" {
		t.Fatalf("unexpected acked message: %+v", m)
	}
	if m := NewErrorMessage("bad", "oops"); m.Code != "bad" || m.Message != "oops" {
		t.Fatalf("unexpected error message: %+v", m)
	}
	if m := NewSubscribedMessage([]string{"news"}); m.Channels[0] != "news" {
		t.Fatalf("unexpected subscribed message: %+v", m)
	}
}
