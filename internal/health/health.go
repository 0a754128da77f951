// Package health implements the atomic connection-health tracker of spec
// §4.9: Healthy | Reconnecting | CircuitOpen, plus reconnect counters.
package health

import "sync/atomic"

type Status int32

const (
	Healthy Status = iota
	Reconnecting
	CircuitOpen
)

func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Reconnecting:
		return "reconnecting"
	case CircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Tracker is a lock-free health state machine for the Redis trigger
// subscriber.
type Tracker struct {
	status            atomic.Int32
	reconnectAttempts atomic.Int32
	totalReconnects   atomic.Int64
}

func New() *Tracker {
	t := &Tracker{}
	t.status.Store(int32(Healthy))
	return t
}

func (t *Tracker) Status() Status { return Status(t.status.Load()) }

// SetConnected transitions to Healthy. If the prior state was
// Reconnecting, it also increments total reconnects and zeroes the
// attempt counter, per spec §4.9.
func (t *Tracker) SetConnected() {
	prev := Status(t.status.Swap(int32(Healthy)))
	if prev == Reconnecting {
		t.totalReconnects.Add(1)
		t.reconnectAttempts.Store(0)
	}
}

func (t *Tracker) SetReconnecting() {
	t.status.Store(int32(Reconnecting))
	t.reconnectAttempts.Add(1)
}

func (t *Tracker) SetCircuitOpen() {
	t.status.Store(int32(CircuitOpen))
}

func (t *Tracker) ReconnectAttempts() int32 { return t.reconnectAttempts.Load() }
func (t *Tracker) TotalReconnects() int64   { return t.totalReconnects.Load() }
