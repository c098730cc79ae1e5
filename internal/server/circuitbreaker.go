// circuitbreaker.go - circuit breaker guarding object-storage calls.
//
// When the object store becomes unreachable every upload and download would
// otherwise block until its timeout; the breaker fails those requests fast
// and probes for recovery instead.
package server

import (
	"errors"
	"sync"
	"time"
)

// CircuitState is the current state of a circuit breaker.
type CircuitState int

const (
	// StateClosed: requests flow normally.
	StateClosed CircuitState = iota
	// StateOpen: requests fail fast.
	StateOpen
	// StateHalfOpen: a probe request tests whether the service recovered.
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned when the breaker is open and failing fast.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when the half-open probe slot is taken.
	ErrTooManyRequests = errors.New("too many requests while circuit is half-open")
)

// CircuitBreaker implements a closed/open/half-open breaker around one
// external dependency.
type CircuitBreaker struct {
	mu sync.Mutex

	name        string
	maxFailures uint32
	timeout     time.Duration
	maxHalfOpen uint32

	state            CircuitState
	failures         uint32
	lastFailureTime  time.Time
	halfOpenInFlight uint32

	totalRequests    uint64
	successRequests  uint64
	failedRequests   uint64
	rejectedRequests uint64
}

// NewCircuitBreaker creates a closed breaker. name appears in logs only.
func NewCircuitBreaker(name string, maxFailures uint32, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		timeout:     timeout,
		maxHalfOpen: 1,
		state:       StateClosed,
	}
}

// Execute runs fn under breaker protection. When the breaker is open the
// call is rejected with ErrCircuitOpen without invoking fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// allow admits or rejects a request based on the current state.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalRequests++

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailureTime) <= cb.timeout {
			cb.rejectedRequests++
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.halfOpenInFlight = 0
		Info("circuit_breaker_half_open", map[string]any{
			"name":            cb.name,
			"timeout_elapsed": cb.timeout.String(),
		})
		cb.halfOpenInFlight++
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.maxHalfOpen {
			cb.rejectedRequests++
			return ErrTooManyRequests
		}
		cb.halfOpenInFlight++
	}
	return nil
}

// record applies the outcome of an admitted request.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen && cb.halfOpenInFlight > 0 {
		cb.halfOpenInFlight--
	}

	if err != nil {
		cb.failedRequests++
		cb.failures++
		cb.lastFailureTime = time.Now()
		if cb.failures >= cb.maxFailures && cb.state != StateOpen {
			cb.state = StateOpen
			Warn("circuit_breaker_opened", map[string]any{
				"name":         cb.name,
				"failures":     cb.failures,
				"max_failures": cb.maxFailures,
				"timeout":      cb.timeout.String(),
			})
		}
		return
	}

	cb.successRequests++
	if cb.state == StateHalfOpen {
		cb.state = StateClosed
		cb.failures = 0
		Info("circuit_breaker_closed", map[string]any{
			"name":   cb.name,
			"reason": "recovery_successful",
		})
	}
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetStats returns a copy of the breaker counters.
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		State:            cb.state,
		Failures:         cb.failures,
		TotalRequests:    cb.totalRequests,
		SuccessRequests:  cb.successRequests,
		FailedRequests:   cb.failedRequests,
		RejectedRequests: cb.rejectedRequests,
		LastFailureTime:  cb.lastFailureTime,
	}
}

// Reset forces the breaker back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenInFlight = 0

	Info("circuit_breaker_reset", map[string]any{"name": cb.name})
}

// CircuitBreakerStats is a snapshot of breaker counters.
type CircuitBreakerStats struct {
	State            CircuitState `json:"state"`
	Failures         uint32       `json:"failures"`
	TotalRequests    uint64       `json:"total_requests"`
	SuccessRequests  uint64       `json:"success_requests"`
	FailedRequests   uint64       `json:"failed_requests"`
	RejectedRequests uint64       `json:"rejected_requests"`
	LastFailureTime  time.Time    `json:"last_failure_time"`
}
