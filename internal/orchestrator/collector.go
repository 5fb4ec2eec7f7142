// Package orchestrator implements the Intelligence Orchestrator (C3):
// collector contracts, the three-tier cache, token-bucket rate limiting,
// circuit breaking, request deduplication, a priority-queue scheduler, and
// retry with backoff, composed behind a single Fetch entry point so
// collectors stay pure transport-and-parse.
package orchestrator

import (
	"context"
	"time"
)

// Priority is the urgency level a request enters the scheduler at.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Request is a normalized, canonicalizable request to one Collector. Params
// must be comparable via equality after CacheKey sorts them, so that
// identical requests dedup and cache-key correctly.
type Request struct {
	CollectorKey string
	Params       map[string]string
	ToKickoff    time.Duration // time until kickoff, drives TTL
}

// Collector is a small, self-contained fetcher for one logical data type.
// Implementations must be pure transport-and-parse: no retry, rate-limit,
// or caching logic belongs in a Collector, all of that is the
// Orchestrator's job.
type Collector interface {
	// Key is the stable name used for rate-limit accounting and cache
	// partitioning.
	Key() string
	// Fetch performs the actual network call. No side effects beyond
	// logging.
	Fetch(ctx context.Context, req Request) (Result, error)
	// TTL is a dynamic time-to-live hint for the given request, typically
	// shortened as kickoff approaches.
	TTL(req Request) time.Duration
}

// Result is a Collector's parsed output plus the raw bytes for history-tier
// replay.
type Result struct {
	Raw         []byte
	FetchedAt   time.Time
	Stale       bool // true when served from a stale cache entry after fetch failure
}
