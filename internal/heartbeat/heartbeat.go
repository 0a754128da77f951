// Package heartbeat implements the heartbeat/reaper task of spec §4.10:
// periodically pings every connection and sweeps ones that have gone
// stale.
package heartbeat

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/notifyhub/core/internal/cluster"
	"github.com/notifyhub/core/internal/model"
	"github.com/notifyhub/core/internal/outbound"
	"github.com/notifyhub/core/internal/registry"
)

// Config holds the two interval timers and the stale-connection timeout
// (spec §6 defaults: 30s heartbeat, 60s sweep).
type Config struct {
	HeartbeatInterval time.Duration
	SweepInterval     time.Duration
	ConnectionTimeout time.Duration
}

// Task runs the heartbeat and stale-sweep timers against a registry, and
// optionally refreshes cluster sessions on each heartbeat tick.
type Task struct {
	cfg      Config
	registry *registry.Registry
	store    cluster.SessionStore // nil or disabled (IsEnabled false): no session refresh
	log      zerolog.Logger
}

func New(cfg Config, reg *registry.Registry, store cluster.SessionStore, log zerolog.Logger) *Task {
	return &Task{cfg: cfg, registry: reg, store: store, log: log}
}

// Run drives both timers until ctx is cancelled (spec §4.10: "exits on
// receipt of a shutdown signal").
func (t *Task) Run(ctx context.Context) {
	heartbeatTicker := time.NewTicker(t.cfg.HeartbeatInterval)
	sweepTicker := time.NewTicker(t.cfg.SweepInterval)
	defer heartbeatTicker.Stop()
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeatTicker.C:
			t.tickHeartbeat(ctx)
		case <-sweepTicker.C:
			t.tickSweep()
		}
	}
}

// tickHeartbeat best-effort sends a Heartbeat message to every current
// connection; a failing send is logged, not retried — the subsequent
// sweep is what actually evicts the connection (spec §4.10). When cluster
// mode is enabled it also refreshes this server's distributed sessions.
func (t *Task) tickHeartbeat(ctx context.Context) {
	msg, err := outbound.NewSerialized(model.NewHeartbeatMessage())
	if err != nil {
		t.log.Error().Err(err).Msg("heartbeat: failed to serialize heartbeat message")
		return
	}

	for _, h := range t.registry.GetAllConnections() {
		if !h.Send(msg) {
			t.log.Debug().Str("connection_id", string(h.ID)).Msg("heartbeat: send failed, connection will be swept if stale")
		}
	}

	if t.store != nil && t.store.IsEnabled() {
		if _, err := t.store.RefreshSessions(ctx); err != nil {
			t.log.Warn().Err(err).Msg("heartbeat: session refresh failed")
		}
	}
}

func (t *Task) tickSweep() {
	n := t.registry.CleanupStaleConnections(int64(t.cfg.ConnectionTimeout.Seconds()))
	if n > 0 {
		t.log.Info().Int("count", n).Msg("heartbeat: cleaned up stale connections")
	}
}
