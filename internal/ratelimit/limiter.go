package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool
	Remaining  float64
	RetryAfter int // seconds, only meaningful when !Allowed
}

// Limiter is implemented by the in-process and distributed (Redis)
// variants, matching spec §4.1's two-family contract (by IP, by key).
type Limiter interface {
	CheckIP(ip string) Decision
	CheckKey(key string) Decision
	Close()
}

type entry struct {
	bucket     *TokenBucket
	lastAccess atomic.Int64 // unix milliseconds, lock-free last-access stamp for the sweep
}

func (e *entry) touch()          { e.lastAccess.Store(time.Now().UnixMilli()) }
func (e *entry) lastTouch() time.Time { return time.UnixMilli(e.lastAccess.Load()) }

// Config configures capacity/refill for both bucket families and the
// sweep interval that evicts idle buckets.
type Config struct {
	Enabled bool

	IPCapacity   float64 // ws_connections_per_minute
	IPRefillRate float64 // ~limit/60 tokens/sec

	KeyCapacity   float64 // http_burst_size
	KeyRefillRate float64 // http_requests_per_second

	BucketTTL time.Duration
}

// MemoryLimiter is the in-process rate limiter: two concurrent maps of
// token buckets (IP family, key family) with a periodic TTL sweep.
type MemoryLimiter struct {
	cfg Config

	ipMu sync.RWMutex
	ip   map[string]*entry

	keyMu sync.RWMutex
	key   map[string]*entry

	stop chan struct{}
	once sync.Once
}

// NewMemoryLimiter constructs a limiter and starts its sweep goroutine.
// A disabled limiter still returns {Allowed:true} unconditionally from
// CheckIP/CheckKey, per spec §4.1.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	if cfg.BucketTTL <= 0 {
		cfg.BucketTTL = 10 * time.Minute
	}
	l := &MemoryLimiter{
		cfg:  cfg,
		ip:   make(map[string]*entry),
		key:  make(map[string]*entry),
		stop: make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

func (l *MemoryLimiter) sweepLoop() {
	ticker := time.NewTicker(l.cfg.BucketTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *MemoryLimiter) sweep() {
	now := time.Now()
	sweepMap := func(mu *sync.RWMutex, m map[string]*entry) {
		mu.Lock()
		defer mu.Unlock()
		for k, e := range m {
			if now.Sub(e.lastTouch()) > l.cfg.BucketTTL {
				delete(m, k)
			}
		}
	}
	sweepMap(&l.ipMu, l.ip)
	sweepMap(&l.keyMu, l.key)
}

func (l *MemoryLimiter) CheckIP(ip string) Decision {
	if !l.cfg.Enabled {
		return Decision{Allowed: true, Remaining: l.cfg.IPCapacity}
	}
	e := getOrCreate(&l.ipMu, l.ip, ip, func() *TokenBucket {
		return NewTokenBucket(l.cfg.IPCapacity, l.cfg.IPRefillRate)
	})
	return decide(e)
}

func (l *MemoryLimiter) CheckKey(key string) Decision {
	if !l.cfg.Enabled {
		return Decision{Allowed: true, Remaining: l.cfg.KeyCapacity}
	}
	e := getOrCreate(&l.keyMu, l.key, key, func() *TokenBucket {
		return NewTokenBucket(l.cfg.KeyCapacity, l.cfg.KeyRefillRate)
	})
	return decide(e)
}

func decide(e *entry) Decision {
	e.touch()
	if e.bucket.TryConsume(1) {
		return Decision{Allowed: true, Remaining: e.bucket.Available()}
	}
	return Decision{Allowed: false, Remaining: e.bucket.Available(), RetryAfter: e.bucket.RetryAfter()}
}

func getOrCreate(mu *sync.RWMutex, m map[string]*entry, key string, newBucket func() *TokenBucket) *entry {
	mu.RLock()
	e, ok := m[key]
	mu.RUnlock()
	if ok {
		return e
	}

	mu.Lock()
	defer mu.Unlock()
	if e, ok := m[key]; ok {
		return e
	}
	e = &entry{bucket: newBucket()}
	m[key] = e
	return e
}

// Close stops the sweep goroutine.
func (l *MemoryLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
}
