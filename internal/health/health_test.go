package health

import "testing"

func TestTracker_StartsHealthy(t *testing.T) {
	tr := New()
	if tr.Status() != Healthy {
		t.Fatalf("expected initial status Healthy, got %s", tr.Status())
	}
}

func TestTracker_ReconnectCycleIncrementsTotal(t *testing.T) {
	tr := New()

	tr.SetReconnecting()
	if tr.Status() != Reconnecting {
		t.Fatalf("expected Reconnecting, got %s", tr.Status())
	}
	if tr.ReconnectAttempts() != 1 {
		t.Fatalf("expected 1 reconnect attempt, got %d", tr.ReconnectAttempts())
	}

	tr.SetReconnecting()
	if tr.ReconnectAttempts() != 2 {
		t.Fatalf("expected attempts to accumulate across reconnecting calls, got %d", tr.ReconnectAttempts())
	}

	tr.SetConnected()
	if tr.Status() != Healthy {
		t.Fatalf("expected Healthy after SetConnected, got %s", tr.Status())
	}
	if tr.TotalReconnects() != 1 {
		t.Fatalf("expected total reconnects to increment once per reconnect cycle, got %d", tr.TotalReconnects())
	}
	if tr.ReconnectAttempts() != 0 {
		t.Fatalf("expected attempt counter to reset after reconnecting, got %d", tr.ReconnectAttempts())
	}
}

func TestTracker_ConnectedWithoutPriorReconnectDoesNotCountReconnect(t *testing.T) {
	tr := New()
	tr.SetConnected()
	if tr.TotalReconnects() != 0 {
		t.Fatalf("expected no reconnect credited when never Reconnecting, got %d", tr.TotalReconnects())
	}
}

func TestTracker_CircuitOpen(t *testing.T) {
	tr := New()
	tr.SetCircuitOpen()
	if tr.Status() != CircuitOpen {
		t.Fatalf("expected CircuitOpen, got %s", tr.Status())
	}
}
