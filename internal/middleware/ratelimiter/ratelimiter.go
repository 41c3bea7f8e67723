// Package ratelimiter implements per-key token bucket rate limiting with
// idle-key expiry.
package ratelimiter

import (
	"sync"
	"time"
)

// bucket holds the token state for a single key.
type bucket struct {
	tokens     float64
	lastRefill time.Time
	expiry     *time.Timer
	mu         sync.Mutex
}

// Limiter tracks one token bucket per key. Keys that stay idle for the
// configured duration are forgotten, so the map stays bounded by recent
// traffic rather than by everything ever seen.
type Limiter struct {
	rate     float64 // tokens added per second
	capacity float64 // burst size
	idleTTL  time.Duration

	mu      sync.RWMutex
	buckets map[string]*bucket

	now func() time.Time
}

func New(rate, capacity float64, idleTTL time.Duration) *Limiter {
	return &Limiter{
		rate:     rate,
		capacity: capacity,
		idleTTL:  idleTTL,
		buckets:  make(map[string]*bucket),
		now:      time.Now,
	}
}

// Allow reports whether a request for the given key may proceed, consuming
// one token if so.
func (l *Limiter) Allow(key string) bool {
	b := l.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * l.rate
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Stop cancels all pending expiry timers.
func (l *Limiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, b := range l.buckets {
		if b.expiry != nil {
			b.expiry.Stop()
		}
	}
}

func (l *Limiter) bucket(key string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		b.expiry.Reset(l.idleTTL)
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// another goroutine may have created it between the locks
	if b, ok := l.buckets[key]; ok {
		b.expiry.Reset(l.idleTTL)
		return b
	}

	b = &bucket{tokens: l.capacity, lastRefill: l.now()}
	b.expiry = time.AfterFunc(l.idleTTL, func() {
		l.mu.Lock()
		delete(l.buckets, key)
		l.mu.Unlock()
	})
	l.buckets[key] = b
	return b
}
