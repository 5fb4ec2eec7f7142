package domain

import "errors"

// Error taxonomy shared across components. These are kinds, not concrete types bound
// to one collector — callers compare with errors.Is against the sentinels
// below, or type-assert *LookAheadViolation (defined in feature_vector.go)
// for the one kind that carries structured fields.
var (
	// ErrTransientSource: network blip, 5xx, 429, timeout. Retried with
	// backoff; the circuit breaker counts it as a failure.
	ErrTransientSource = errors.New("transient source error")

	// ErrPermanentSource: 4xx other than 429, schema mismatch. Not retried.
	ErrPermanentSource = errors.New("permanent source error")

	// ErrRateLimitExceeded: bucket empty. Caller may wait (priority allows)
	// or fail fast.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrCircuitOpen: fail fast; caller falls back to stale cache or skips.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrCatalogWriteConflict: two writers raced on the Catalog. Retried
	// once by the caller, then fatal.
	ErrCatalogWriteConflict = errors.New("catalog write conflict")

	// ErrInsufficientData: sample below min_sample during discovery; the
	// candidate is quietly discarded, never surfaced as a failure.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDuplicateEdge: register() found an existing edge with similarity
	// >= 0.85 and the candidate did not clear the version-bump bar.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrEdgeNotFound: promote/retire/record_observation referenced an
	// unknown edge id.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrInvariantViolation: promote() was asked to activate an Edge that
	// does not meet the catalog's activation invariants.
	ErrInvariantViolation = errors.New("edge invariant violation")
)

// StaleInput is not an error; it is carried as data on a
// Recommendation via Recommendation.StaleInputs, never as a Go error value.
