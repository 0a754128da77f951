package ack

import "testing"

func TestRedisTracker_KeyBuilders(t *testing.T) {
	tr := NewRedisTracker(nil, "ara:ack", Config{TenantID: "acme"})

	if got := tr.pendingKey("n1"); got != "ara:ack:acme:pending:n1" {
		t.Fatalf("unexpected pending key: %s", got)
	}
	if got := tr.timeoutKey(); got != "ara:ack:acme:timeout" {
		t.Fatalf("unexpected timeout key: %s", got)
	}
	if got := tr.statsKey(); got != "ara:ack:acme:stats" {
		t.Fatalf("unexpected stats key: %s", got)
	}
}

func TestToInterfaceSlice(t *testing.T) {
	out := toInterfaceSlice([]string{"a", "b"})
	if len(out) != 2 || out[0] != "a" || out[1] != "b" {
		t.Fatalf("unexpected conversion: %+v", out)
	}
}
