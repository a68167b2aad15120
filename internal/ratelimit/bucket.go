// Package ratelimit implements the per-user request-rate gate: a token
// bucket keyed by user id, refilled continuously and guarded by a
// fine-grained per-user mutex rather than one lock over the whole map.
//
// No connection-pool or token-bucket library appears anywhere in the
// example corpus this module is grounded on, so this is a small
// hand-rolled primitive rather than an import — see DESIGN.md.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a process-wide collection of per-user token buckets.
type Limiter struct {
	mu            sync.Mutex
	buckets       map[string]*bucket
	ratePerMinute int
	now           func() time.Time
}

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastFill time.Time
}

// New creates a Limiter with the given requests-per-minute budget. A
// ratePerMinute of 0 or less disables limiting: Allow always returns true.
func New(ratePerMinute int) *Limiter {
	return &Limiter{
		buckets:       make(map[string]*bucket),
		ratePerMinute: ratePerMinute,
		now:           time.Now,
	}
}

// Allow consumes one token from userID's bucket, returning false if the
// bucket is empty. Burst equals ratePerMinute; refill is
// ratePerMinute/60 tokens per second.
func (l *Limiter) Allow(userID string) bool {
	if l.ratePerMinute <= 0 {
		return true
	}

	b := l.bucketFor(userID)
	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(b.lastFill).Seconds()
	refillRate := float64(l.ratePerMinute) / 60.0
	b.tokens += elapsed * refillRate
	if max := float64(l.ratePerMinute); b.tokens > max {
		b.tokens = max
	}
	b.lastFill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) bucketFor(userID string) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[userID]
	if !ok {
		b = &bucket{tokens: float64(l.ratePerMinute), lastFill: l.now()}
		l.buckets[userID] = b
	}
	return b
}

// SetClock overrides the time source, used by tests to advance past a
// rate-limit window without sleeping.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
