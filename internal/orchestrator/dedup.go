package orchestrator

import (
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Deduplicator ensures at most one outbound call is in flight per canonical
// request: concurrent callers for the same (collector_key, sorted params)
// attach to the same in-flight call and all receive the same result or
// error. golang.org/x/sync/singleflight is the exact primitive for this,
// used directly instead of hand-rolling an in-flight map with condition
// variables.
type Deduplicator struct {
	group       singleflight.Group
	suppressed  int64 // count of calls that attached to an in-flight call rather than firing one
}

// NewDeduplicator builds a Deduplicator.
func NewDeduplicator() *Deduplicator { return &Deduplicator{} }

// Do runs fn at most once per key among concurrent callers; every caller
// gets the same (value, error, attached) tuple. attached is true for every
// caller except the one that actually executed fn. singleflight.Group.Do's
// own `shared` return is true for the executing call too whenever any
// follower attached, so it can't distinguish leader from follower; this
// wraps fn to mark execution explicitly instead.
func (d *Deduplicator) Do(key string, fn func() (any, error)) (any, error, bool) {
	executed := false
	v, err, _ := d.group.Do(key, func() (any, error) {
		executed = true
		return fn()
	})
	if !executed {
		atomic.AddInt64(&d.suppressed, 1)
	}
	return v, err, !executed
}

// Suppressed returns how many calls were satisfied by an in-flight call
// rather than issuing a new outbound fetch.
func (d *Deduplicator) Suppressed() int64 {
	return atomic.LoadInt64(&d.suppressed)
}
