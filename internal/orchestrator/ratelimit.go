package orchestrator

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiterPolicy is the per-collector bucket declared at registration:
// capacity tokens, refilling at refillPerSecond.
type RateLimiterPolicy struct {
	Capacity          float64
	RefillPerSecond   float64
}

// DefaultRateLimiterPolicy is the conservative default for unregistered
// collectors: 100 requests per day.
var DefaultRateLimiterPolicy = RateLimiterPolicy{Capacity: 100, RefillPerSecond: 100.0 / 86400.0}

// RateLimiters is a keyed registry of token buckets, one per collector key,
// built on golang.org/x/time/rate, which gives atomic try-consume semantics.
// A bucket admits at most Capacity requests in one burst. Tokens refill
// continuously, so over a window of W seconds a bucket can admit up to
// Capacity + RefillPerSecond*W requests: for the default daily policy, up to
// 200 in 24 hours when it starts full.
type RateLimiters struct {
	mu       sync.RWMutex
	buckets  map[string]*rate.Limiter
	defaults RateLimiterPolicy
	perKey   map[string]RateLimiterPolicy
}

// NewRateLimiters builds a registry. perKey overrides defaults for specific
// collector keys.
func NewRateLimiters(defaults RateLimiterPolicy, perKey map[string]RateLimiterPolicy) *RateLimiters {
	return &RateLimiters{buckets: make(map[string]*rate.Limiter), defaults: defaults, perKey: perKey}
}

func (r *RateLimiters) bucket(collectorKey string) *rate.Limiter {
	r.mu.RLock()
	b, ok := r.buckets[collectorKey]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.buckets[collectorKey]; ok {
		return b
	}
	policy := r.defaults
	if p, ok := r.perKey[collectorKey]; ok {
		policy = p
	}
	b = rate.NewLimiter(rate.Limit(policy.RefillPerSecond), int(policy.Capacity))
	r.buckets[collectorKey] = b
	return b
}

// Check is a non-consuming peek: would a request be allowed right now.
func (r *RateLimiters) Check(collectorKey string) bool {
	return r.bucket(collectorKey).Tokens() >= 1
}

// TryConsume atomically consumes one token if available.
func (r *RateLimiters) TryConsume(collectorKey string) bool {
	return r.bucket(collectorKey).Allow()
}

// Wait blocks until a token is available or ctx is cancelled; used when the
// scheduler's priority level permits waiting rather than failing fast.
func (r *RateLimiters) Wait(ctx context.Context, collectorKey string) error {
	return r.bucket(collectorKey).Wait(ctx)
}

// TokensAvailable reports the current bucket level for observability.
func (r *RateLimiters) TokensAvailable(collectorKey string) float64 {
	return r.bucket(collectorKey).Tokens()
}
