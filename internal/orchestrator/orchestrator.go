package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edgeworks/nfledge/internal/domain"
	"github.com/rs/zerolog"
	cb "github.com/sony/gobreaker"

	"github.com/edgeworks/nfledge/infra/breakers"
)

// RetryPolicy is the backoff schedule.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy is the conservative default backoff.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, BaseDelay: time.Second}

func (p RetryPolicy) delayForAttempt(attempt int, priority Priority) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	switch priority {
	case PriorityCritical:
		d /= 2
	case PriorityHigh:
		d = time.Duration(float64(d) * 0.75)
	}
	return d
}

// Orchestrator is the Intelligence Orchestrator (C3): the single entry point
// every component uses to reach external data, composing the cache, rate
// limiter, circuit breaker, deduplicator, and priority scheduler behind one
// Fetch call.
type Orchestrator struct {
	collectors map[string]Collector
	cache      *Cache
	limiters   *RateLimiters
	breakers   *breakers.Registry
	dedup      *Deduplicator
	queue      *PriorityQueue
	retry      RetryPolicy
	workers    int
	log        zerolog.Logger
}

// Config bundles the tunables an Orchestrator is built from.
type Config struct {
	RateLimiterDefaults RateLimiterPolicy
	RateLimiterPerKey   map[string]RateLimiterPolicy
	BreakerDefaults     breakers.Settings
	BreakerPerKey       map[string]breakers.Settings
	Escalation          EscalationThresholds
	Retry               RetryPolicy
	Workers             int
}

// New builds an Orchestrator. Collectors must be registered via Register
// before Fetch is called for their key.
func New(cache *Cache, cfg Config, log zerolog.Logger) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Orchestrator{
		collectors: make(map[string]Collector),
		cache:      cache,
		limiters:   NewRateLimiters(cfg.RateLimiterDefaults, cfg.RateLimiterPerKey),
		breakers:   breakers.NewRegistry(cfg.BreakerDefaults, cfg.BreakerPerKey),
		dedup:      NewDeduplicator(),
		queue:      NewPriorityQueue(cfg.Escalation),
		retry:      cfg.Retry,
		workers:    cfg.Workers,
		log:        log.With().Str("component", "orchestrator").Logger(),
	}
}

// Register adds a Collector, keyed by its own Key().
func (o *Orchestrator) Register(c Collector) {
	o.collectors[c.Key()] = c
}

// Run starts the worker pool that drains the priority queue. It blocks
// until ctx is cancelled, then closes the queue and returns once workers
// drain. Parallelism is naturally bounded by max_parallel_per_source via the
// rate limiter — workers beyond the available tokens simply wait or fail
// fast per request priority.
func (o *Orchestrator) Run(ctx context.Context) {
	done := make(chan struct{})
	for i := 0; i < o.workers; i++ {
		go o.worker(ctx, done)
	}
	<-ctx.Done()
	o.queue.Close()
	for i := 0; i < o.workers; i++ {
		<-done
	}
}

func (o *Orchestrator) worker(ctx context.Context, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	for {
		item, ok := o.queue.Pop()
		if !ok {
			return
		}
		result, err := o.execute(ctx, item.req, item.priority)
		item.resultCh <- fetchOutcome{result: result, err: err}
	}
}

// Fetch enqueues a request at the given priority and blocks for the result,
// honoring ctx cancellation.
func (o *Orchestrator) Fetch(ctx context.Context, req Request, priority Priority) (Result, error) {
	ch := o.queue.Push(req, priority)
	select {
	case out := <-ch:
		return out.result, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// execute runs the full cache -> dedup -> rate-limit -> circuit-breaker ->
// retry pipeline for one request.
func (o *Orchestrator) execute(ctx context.Context, req Request, priority Priority) (Result, error) {
	if val, fresh, _ := o.cache.Get(ctx, req); fresh {
		return Result{Raw: val, FetchedAt: time.Now().UTC()}, nil
	}

	key := CacheKey(req)
	v, err, _ := o.dedup.Do(key, func() (any, error) {
		return o.fetchWithResilience(ctx, req, priority)
	})
	if err != nil {
		// Serve stale cache on transient/circuit failure if any exists.
		if val, fresh, stale := o.cache.Get(ctx, req); fresh || stale {
			return Result{Raw: val, FetchedAt: time.Now().UTC(), Stale: true}, nil
		}
		return Result{}, err
	}
	return v.(Result), nil
}

func (o *Orchestrator) fetchWithResilience(ctx context.Context, req Request, priority Priority) (Result, error) {
	collector, ok := o.collectors[req.CollectorKey]
	if !ok {
		return Result{}, fmt.Errorf("orchestrator: no collector registered for key %q", req.CollectorKey)
	}

	if err := o.awaitRateLimit(ctx, req.CollectorKey, priority); err != nil {
		return Result{}, err
	}

	breaker := o.breakers.For(req.CollectorKey)
	var lastErr error
	for attempt := 0; attempt <= o.retry.MaxRetries; attempt++ {
		out, err := breaker.Execute(func() (any, error) {
			return collector.Fetch(ctx, req)
		})
		if err == nil {
			result := out.(Result)
			if putErr := o.cache.Put(ctx, req, result.Raw); putErr != nil {
				o.log.Warn().Err(putErr).Str("collector", req.CollectorKey).Msg("cache write failed")
			}
			return result, nil
		}

		if errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests) {
			return Result{}, domain.ErrCircuitOpen
		}
		if errors.Is(err, domain.ErrPermanentSource) {
			return Result{}, err
		}
		lastErr = err
		if attempt < o.retry.MaxRetries {
			select {
			case <-time.After(o.retry.delayForAttempt(attempt, priority)):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		}
	}
	return Result{}, fmt.Errorf("%w: %v", domain.ErrTransientSource, lastErr)
}

// awaitRateLimit enforces priority-aware waiting: LOW priority fails fast on
// an empty bucket, NORMAL and above wait for a token.
func (o *Orchestrator) awaitRateLimit(ctx context.Context, collectorKey string, priority Priority) error {
	if priority == PriorityLow {
		if !o.limiters.TryConsume(collectorKey) {
			return domain.ErrRateLimitExceeded
		}
		return nil
	}
	return o.limiters.Wait(ctx, collectorKey)
}

// Stats exposes dedup/rate-limit observability for the HTTP metrics layer.
func (o *Orchestrator) Stats(collectorKey string) (tokensAvailable float64, deduped int64) {
	return o.limiters.TokensAvailable(collectorKey), o.dedup.Suppressed()
}
