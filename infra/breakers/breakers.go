// Package breakers wraps sony/gobreaker with the per-collector-key registry
// and closed/open/half-open policy the Intelligence Orchestrator needs:
// open after a configurable run of consecutive failures, half-open after
// a cool-off, closed again after a run of successes.
package breakers

import (
	"sync"
	"time"

	cb "github.com/sony/gobreaker"
)

// Settings is the per-collector policy. Collectors without their own entry
// fall back to the defaults their Registry was built with.
type Settings struct {
	ConsecutiveFailureThreshold uint32
	Cooldown                    time.Duration
	HalfOpenSuccessesToClose    uint32
}

// DefaultSettings is the conservative default breaker configuration.
var DefaultSettings = Settings{
	ConsecutiveFailureThreshold: 5,
	Cooldown:                    60 * time.Second,
	HalfOpenSuccessesToClose:    2,
}

// Breaker wraps one gobreaker.CircuitBreaker for one collector key.
type Breaker struct{ cb *cb.CircuitBreaker }

// New builds a Breaker for the given collector key and policy.
func New(collectorKey string, s Settings) *Breaker {
	st := cb.Settings{
		Name:        collectorKey,
		Interval:    s.Cooldown,
		Timeout:     s.Cooldown,
		MaxRequests: s.HalfOpenSuccessesToClose,
		ReadyToTrip: func(counts cb.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFailureThreshold
		},
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker. It returns gobreaker's own
// ErrOpenState/ErrTooManyRequests when the breaker is not closed; callers in
// this system translate that into domain.ErrCircuitOpen.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) { return b.cb.Execute(fn) }

// State reports the current breaker state for observability.
func (b *Breaker) State() cb.State { return b.cb.State() }

// Registry holds one Breaker per collector key, created lazily on first use.
type Registry struct {
	mu       sync.Mutex
	byKey    map[string]*Breaker
	defaults Settings
	perKey   map[string]Settings
}

// NewRegistry builds a Registry. perKey overrides defaults for
// specific collector keys; a nil map means every collector uses defaults.
func NewRegistry(defaults Settings, perKey map[string]Settings) *Registry {
	return &Registry{byKey: make(map[string]*Breaker), defaults: defaults, perKey: perKey}
}

// For returns the Breaker for a collector key, creating it on first access.
func (r *Registry) For(collectorKey string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.byKey[collectorKey]; ok {
		return b
	}
	settings := r.defaults
	if s, ok := r.perKey[collectorKey]; ok {
		settings = s
	}
	b := New(collectorKey, settings)
	r.byKey[collectorKey] = b
	return b
}

