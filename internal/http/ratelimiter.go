package http

import (
	"sync"
	"time"
)

// bucket tracks the remaining request budget for one client. The refill
// timestamp doubles as the last-seen marker used to expire idle clients.
type bucket struct {
	remaining float64
	refilled  time.Time
}

// RateLimiter is a token bucket limiter keyed by client IP. Stale entries
// are swept opportunistically from Allow rather than by a background
// goroutine, so the limiter needs no shutdown hook.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	burst   float64
	rate    float64
	ttl     time.Duration
	sweepAt time.Time
	now     func() time.Time
}

// NewRateLimiter builds a limiter that grants up to burst requests at once
// and refills at refillPerSecond. Buckets idle for longer than ttl are
// dropped; a ttl of zero keeps them forever.
func NewRateLimiter(burst int, refillPerSecond float64, ttl time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		burst:   float64(burst),
		rate:    refillPerSecond,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Allow reports whether the client identified by key may proceed, consuming
// one token when it does.
func (rl *RateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.sweep(now)

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{remaining: rl.burst, refilled: now}
		rl.buckets[key] = b
	}

	if elapsed := now.Sub(b.refilled).Seconds(); elapsed > 0 {
		b.remaining = min(b.remaining+elapsed*rl.rate, rl.burst)
	}
	b.refilled = now

	if b.remaining < 1 {
		return false
	}
	b.remaining--
	return true
}

// sweep drops buckets that have not been touched within ttl. It runs at
// most once per ttl so the map scan stays off the hot path. Callers hold
// the mutex.
func (rl *RateLimiter) sweep(now time.Time) {
	if rl.ttl <= 0 || now.Before(rl.sweepAt) {
		return
	}
	rl.sweepAt = now.Add(rl.ttl)

	for key, b := range rl.buckets {
		if now.Sub(b.refilled) > rl.ttl {
			delete(rl.buckets, key)
		}
	}
}
