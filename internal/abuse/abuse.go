// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package abuse collects charge signals for suspicious requests and
// escalates repeat offenders to blocking.
package abuse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Guard accepts a fire-and-forget charge signal on suspicious or invalid
// attempts. Implementations may escalate to blocking.
type Guard interface {
	Charge(ctx context.Context, weight int)
}

type keyContextKey struct{}

// WithKey attaches the charge key (typically the client address) to the
// request context.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, keyContextKey{}, key)
}

// keyFromContext returns the charge key, or "unknown" when no middleware set
// one (direct service calls in tests).
func keyFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(keyContextKey{}).(string); ok && key != "" {
		return key
	}
	return "unknown"
}

// Limiter is the default Guard: a token bucket per charge key. A key whose
// bucket runs dry is blocked until the bucket refills enough for a single
// charge.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewLimiter creates a Limiter allowing burst charges at once and refilling
// one charge every interval.
func NewLimiter(interval time.Duration, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Every(interval),
		burst:   burst,
	}
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	return b
}

// Charge consumes weight tokens for the key in ctx. No return value; callers
// fire and forget.
func (l *Limiter) Charge(ctx context.Context, weight int) {
	key := keyFromContext(ctx)
	if !l.bucket(key).AllowN(time.Now(), weight) {
		slog.Warn("abuse_threshold_reached", "key", key, "weight", weight)
	}
}

// Blocked reports whether the key in ctx has exhausted its bucket.
func (l *Limiter) Blocked(ctx context.Context) bool {
	return l.bucket(keyFromContext(ctx)).Tokens() < 1
}

// Nop is a Guard that ignores every charge. Useful in tests.
type Nop struct{}

// Charge implements Guard.
func (Nop) Charge(context.Context, int) {}
