// Package ratelimit implements the per-connection subscription-creation
// token bucket (spec §4.3). Adapted from
// ws/internal/single/limits/rate_limiter.go's TokenBucket, generalized
// from a boolean CheckLimit into a jittered blocking Wait so it can sit
// directly in the connection engine's REQ handling path.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// maxJitter bounds the extra random delay applied after a token
// becomes available, desynchronizing client bursts (spec §4.3).
const maxJitter = 100 * time.Millisecond

// Limiter is a single-connection token bucket gating subscription
// creation. A Limiter constructed with perMin <= 0 is disabled and
// Wait always returns immediately, matching the "absent or zero"
// config case in spec §4.3.
type Limiter struct {
	enabled bool

	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// New builds a Limiter refilling at perMin subscriptions per minute,
// with burst capacity equal to perMin.
func New(perMin int) *Limiter {
	if perMin <= 0 {
		return &Limiter{enabled: false}
	}
	rate := float64(perMin) / 60.0
	return &Limiter{
		enabled:    true,
		tokens:     float64(perMin),
		maxTokens:  float64(perMin),
		refillRate: rate,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available (plus jitter), or until ctx is
// cancelled. Disabled limiters return immediately.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || !l.enabled {
		return nil
	}
	for {
		wait, ok := l.tryConsume()
		if ok {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	jitter := time.Duration(rand.Int63n(int64(maxJitter) + 1))
	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// tryConsume attempts to take one token. If unavailable it returns the
// duration to wait before a token will exist.
func (l *Limiter) tryConsume() (wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.tokens += elapsed * l.refillRate
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
	l.lastRefill = now

	if l.tokens >= 1 {
		l.tokens--
		return 0, true
	}

	deficit := 1 - l.tokens
	return time.Duration(deficit/l.refillRate*1000) * time.Millisecond, false
}
