package domain

import "time"

// CircuitState mirrors the three breaker states.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpenState CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// APIUsage is the per-source rolling counters.
type APIUsage struct {
	CollectorKey        string
	TokensAvailable     float64
	Capacity            float64
	RefillRate          float64 // tokens per second
	LastRefill          time.Time
	ConsecutiveFailures int
	Circuit             CircuitState
}
