package capability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensThenHalfOpensAfterCooldown(t *testing.T) {
	cb := NewCircuitBreaker(3, 10*time.Millisecond)
	now := time.Now()

	cb.Record(false, now)
	cb.Record(false, now)
	assert.Equal(t, CircuitClosed, cb.State(now))

	cb.Record(false, now)
	assert.Equal(t, CircuitOpen, cb.State(now))

	later := now.Add(20 * time.Millisecond)
	assert.Equal(t, CircuitHalfOpen, cb.State(later))
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)
	now := time.Now()

	cb.Record(false, now)
	cb.Record(false, now)
	cb.Record(true, now)
	cb.Record(false, now)
	cb.Record(false, now)
	assert.Equal(t, CircuitClosed, cb.State(now), "success should have reset the consecutive-failure count")
}
