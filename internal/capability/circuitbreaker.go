package capability

import (
	"sync"
	"time"
)

// CircuitState is the breaker's Closed/Open/HalfOpen state.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreaker trips a capability's circuit after maxConsecutiveFailures
// non-successful shadow runs in a row, reopening for further attempts only
// after cooldown has elapsed.
type CircuitBreaker struct {
	maxConsecutiveFailures int
	cooldown               time.Duration

	mu                  sync.Mutex
	consecutiveFailures int
	trippedAt           time.Time
	state               CircuitState
}

// NewCircuitBreaker builds a breaker with the given threshold and cooldown.
func NewCircuitBreaker(maxConsecutiveFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxConsecutiveFailures: maxConsecutiveFailures,
		cooldown:               cooldown,
		state:                  CircuitClosed,
	}
}

// Record updates the breaker with one run's outcome.
func (cb *CircuitBreaker) Record(success bool, now time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if success {
		cb.consecutiveFailures = 0
		cb.state = CircuitClosed
		return
	}

	cb.consecutiveFailures++
	if cb.consecutiveFailures >= cb.maxConsecutiveFailures {
		cb.state = CircuitOpen
		cb.trippedAt = now
	}
}

// State returns the breaker's current state, transitioning Open ->
// HalfOpen once cooldown has elapsed since it tripped.
func (cb *CircuitBreaker) State(now time.Time) CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && now.Sub(cb.trippedAt) > cb.cooldown {
		cb.state = CircuitHalfOpen
	}
	return cb.state
}

// Reset clears the breaker back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	cb.state = CircuitClosed
}
