// Package ratelimit implements the token-bucket primitive and the
// IP/key rate limiter built on top of it (spec §4.1), plus a Redis
// sliding-window variant for distributed deployments.
//
// The bucket is lock-free: refill and consume are expressed as a single
// compare-and-swap of a packed (tokens, last_refill_ms) pair, so callers
// never block each other. Contention is expected to be low per bucket
// (one bucket per IP or per API key).
package ratelimit

import (
	"math"
	"sync/atomic"
	"time"
)

// packedState packs token count (scaled by 2^16 for sub-token precision)
// and the last-refill timestamp (milliseconds since epoch) into the two
// halves of a uint64 so both can be read/written with one atomic op.
//
// High 32 bits: tokens scaled to a fixed-point integer (capped well under
// 2^32 by any realistic capacity). Low 32 bits: last refill time modulo
// 2^32 milliseconds (~49 days), which is enough to compute elapsed deltas
// correctly as long as TryConsume/Available are called more often than
// that wraparound period — true for any live bucket; a bucket untouched
// for 49 days is swept by the limiter's TTL sweep long before this bites.
type packedState uint64

const tokenScale = 1 << 16

func pack(tokens float64, nowMs int64) packedState {
	scaled := uint64(math.Round(tokens*tokenScale)) & 0xFFFFFFFF
	return packedState(scaled<<32 | uint64(uint32(nowMs)))
}

func unpack(p packedState) (tokens float64, lastMs uint32) {
	scaled := uint64(p) >> 32
	return float64(scaled) / tokenScale, uint32(p)
}

// TokenBucket is a lock-free token bucket: capacity tokens, refilled at
// refillPerSecond, consumed by TryConsume.
type TokenBucket struct {
	state      atomic.Uint64
	capacity   float64
	refillRate float64 // tokens per second
	startMs    int64   // wall-clock origin so the 32-bit ms field doesn't need to hold an absolute timestamp
}

// NewTokenBucket creates a bucket starting full, per spec §4.1 and the
// testable property "starting from full".
func NewTokenBucket(capacity float64, refillPerSecond float64) *TokenBucket {
	b := &TokenBucket{
		capacity:   capacity,
		refillRate: refillPerSecond,
		startMs:    time.Now().UnixMilli(),
	}
	b.state.Store(uint64(pack(capacity, 0)))
	return b
}

func (b *TokenBucket) nowRel() int64 {
	return time.Now().UnixMilli() - b.startMs
}

// refill computes the token count after accounting for elapsed time since
// the packed state's last refill, capped at capacity.
func (b *TokenBucket) refill(p packedState, nowMs int64) float64 {
	tokens, lastMs := unpack(p)
	elapsed := int64(uint32(nowMs)) - int64(lastMs)
	if elapsed < 0 {
		// 32-bit wraparound; treat as no elapsed time rather than a huge
		// negative delta. The next refill after this one self-corrects.
		elapsed = 0
	}
	tokens += float64(elapsed) * b.refillRate / 1000.0
	if tokens > b.capacity {
		tokens = b.capacity
	}
	return tokens
}

// TryConsume attempts to atomically remove n tokens. Returns true and
// commits the new state iff at least n tokens were available after
// refill; on contention it retries the compare-and-swap.
func (b *TokenBucket) TryConsume(n float64) bool {
	nowMs := b.nowRel()
	for {
		old := packedState(b.state.Load())
		tokens := b.refill(old, nowMs)
		if tokens < n {
			// Publish the refilled state even on failure so subsequent
			// calls see up-to-date tokens without re-deriving from an
			// ever-older timestamp.
			newState := uint64(pack(tokens, nowMs))
			b.state.CompareAndSwap(uint64(old), newState)
			return false
		}
		newState := uint64(pack(tokens-n, nowMs))
		if b.state.CompareAndSwap(uint64(old), newState) {
			return true
		}
	}
}

// Available returns the current token count without consuming any,
// refilling first but not publishing the refilled state (non-destructive).
func (b *TokenBucket) Available() float64 {
	p := packedState(b.state.Load())
	return b.refill(p, b.nowRel())
}

// RetryAfter implements spec §4.1's max(1, 1000/rate) seconds formula.
func (b *TokenBucket) RetryAfter() int {
	if b.refillRate <= 0 {
		return 1
	}
	s := int(1000.0 / b.refillRate)
	if s < 1 {
		return 1
	}
	return s
}

// Capacity and RefillRate expose the bucket's static configuration.
func (b *TokenBucket) Capacity() float64   { return b.capacity }
func (b *TokenBucket) RefillRate() float64 { return b.refillRate }
