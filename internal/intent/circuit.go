package intent

import (
	"sync"
	"time"
)

// CircuitState represents the state of the secondary-classifier breaker.
type CircuitState int

const (
	StateClosed   CircuitState = iota // healthy — calls flow
	StateOpen                         // unhealthy — calls skipped
	StateHalfOpen                     // probing — one call allowed
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards the secondary classifier: after repeated failures
// the chain stops paying the round-trip and degrades straight to the local
// result until the probe interval elapses.
type CircuitBreaker struct {
	mu sync.Mutex

	state    CircuitState
	failures int
	openedAt time.Time

	failureThreshold int
	probeInterval    time.Duration
}

// NewCircuitBreaker creates a closed breaker with the given thresholds.
func NewCircuitBreaker(failureThreshold int, probeInterval time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		probeInterval:    probeInterval,
	}
}

// currentState transitions OPEN to HALF_OPEN once the probe interval
// elapsed. Must be called with mu held.
func (cb *CircuitBreaker) currentState() CircuitState {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.probeInterval {
		cb.state = StateHalfOpen
	}
	return cb.state
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// Allow reports whether a secondary-classifier call should be attempted.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState() != StateOpen
}

// RecordSuccess closes the breaker after a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
}

// RecordFailure counts a failed call, opening the breaker at the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.failureThreshold {
			cb.state = StateOpen
			cb.openedAt = time.Now()
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.openedAt = time.Now()
	}
}
