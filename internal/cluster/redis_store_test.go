package cluster

import "testing"

func TestRedisStore_KeyBuilders(t *testing.T) {
	s := NewRedisStore(nil, "ara:cluster", "srv-1", 0, "ara:routing")

	if got := s.connKey("c1"); got != "ara:cluster:conn:c1" {
		t.Fatalf("unexpected conn key: %s", got)
	}
	if got := s.userKey("u1"); got != "ara:cluster:user:u1" {
		t.Fatalf("unexpected user key: %s", got)
	}
	if got := s.channelKey("news"); got != "ara:cluster:channel:news" {
		t.Fatalf("unexpected channel key: %s", got)
	}
	if got := s.serverKey("srv-2"); got != "ara:cluster:server:srv-2" {
		t.Fatalf("unexpected server key: %s", got)
	}
	if got := s.usersKey(); got != "ara:cluster:users" {
		t.Fatalf("unexpected users key: %s", got)
	}
}

func TestRedisStore_IdentityMethods(t *testing.T) {
	s := NewRedisStore(nil, "ara:cluster", "srv-1", 0, "ara:routing")

	if s.ServerID() != "srv-1" {
		t.Fatalf("expected srv-1, got %s", s.ServerID())
	}
	if !s.IsEnabled() {
		t.Fatal("expected RedisStore to report enabled")
	}
	if s.BackendType() != "redis" {
		t.Fatalf("expected redis backend type, got %s", s.BackendType())
	}
}
