package heartbeat

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/notifyhub/core/internal/model"
	"github.com/notifyhub/core/internal/registry"
)

func TestTickHeartbeat_SendsToEveryConnection(t *testing.T) {
	reg := registry.New(registry.Limits{})
	h1, _ := reg.Register("c1", "u1", model.DefaultTenant, nil)
	h2, _ := reg.Register("c2", "u2", model.DefaultTenant, nil)

	task := New(Config{HeartbeatInterval: time.Minute, SweepInterval: time.Minute, ConnectionTimeout: time.Minute}, reg, nil, zerolog.Nop())
	task.tickHeartbeat(nil)

	for _, h := range []*registry.Handle{h1, h2} {
		select {
		case <-h.Outbound():
		default:
			t.Fatalf("expected connection %s to receive a heartbeat message", h.ID)
		}
	}
}

func TestTickSweep_RemovesStaleConnections(t *testing.T) {
	reg := registry.New(registry.Limits{})
	reg.Register("c1", "u1", model.DefaultTenant, nil)

	task := New(Config{HeartbeatInterval: time.Minute, SweepInterval: time.Minute, ConnectionTimeout: -time.Second}, reg, nil, zerolog.Nop())
	task.tickSweep()

	if reg.Stats().TotalConnections != 0 {
		t.Fatalf("expected every connection to be swept as stale, got %d", reg.Stats().TotalConnections)
	}
}
