// Package circuitbreaker implements the three-state failure gate of spec
// §4.9: Closed → Open → HalfOpen → Closed, driven entirely by atomics so
// it can be queried and updated from many goroutines without a mutex
// (per spec §9's design note).
package circuitbreaker

import (
	"sync/atomic"
	"time"
)

// State is one of the three breaker states.
type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds the three thresholds named in spec §9.
type Config struct {
	FailureThreshold    int
	SuccessThreshold    int
	ResetTimeoutSeconds int
}

// Breaker is a lock-free circuit breaker. state, failures and successes
// are independent atomics; the Open→HalfOpen transition uses a
// compare-and-swap on state so only one caller makes that transition.
type Breaker struct {
	cfg Config

	state      atomic.Int32
	failures   atomic.Int32
	successes  atomic.Int32
	openedAtMs atomic.Int64
}

// New creates a breaker starting Closed.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold < 1 {
		cfg.SuccessThreshold = 2
	}
	if cfg.ResetTimeoutSeconds < 1 {
		cfg.ResetTimeoutSeconds = 30
	}
	b := &Breaker{cfg: cfg}
	b.state.Store(int32(Closed))
	return b
}

// State returns the current state without mutating it.
func (b *Breaker) State() State { return State(b.state.Load()) }

// AllowRequest reports whether a call should proceed. Closed and HalfOpen
// allow every call. In Open state, once the reset timeout has elapsed, it
// compare-exchanges to HalfOpen and allows the caller that wins; a caller
// that loses the race is allowed unless the breaker is Open again.
func (b *Breaker) AllowRequest() bool {
	switch State(b.state.Load()) {
	case Closed, HalfOpen:
		return true
	case Open:
		openedAt := b.openedAtMs.Load()
		elapsed := time.Now().UnixMilli() - openedAt
		if elapsed < int64(b.cfg.ResetTimeoutSeconds)*1000 {
			return false
		}
		if b.state.CompareAndSwap(int32(Open), int32(HalfOpen)) {
			b.successes.Store(0)
			return true
		}
		// Another goroutine already flipped it; re-evaluate its outcome.
		return State(b.state.Load()) != Open
	default:
		return false
	}
}

// RecordSuccess advances HalfOpen→Closed after success_threshold
// successes, or resets the failure count while Closed.
func (b *Breaker) RecordSuccess() {
	switch State(b.state.Load()) {
	case Closed:
		b.failures.Store(0)
	case HalfOpen:
		n := b.successes.Add(1)
		if int(n) >= b.cfg.SuccessThreshold {
			b.state.Store(int32(Closed))
			b.failures.Store(0)
			b.successes.Store(0)
		}
	}
}

// RecordFailure trips Closed→Open after failure_threshold consecutive
// failures, and immediately reverts HalfOpen→Open on any failure.
func (b *Breaker) RecordFailure() {
	switch State(b.state.Load()) {
	case Closed:
		n := b.failures.Add(1)
		if int(n) >= b.cfg.FailureThreshold {
			b.trip()
		}
	case HalfOpen:
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state.Store(int32(Open))
	b.openedAtMs.Store(time.Now().UnixMilli())
	b.failures.Store(0)
	b.successes.Store(0)
}
