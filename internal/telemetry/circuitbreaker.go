package telemetry

import (
	"sync"
	"time"
)

// breakerState is the current state of a flush circuit breaker.
type breakerState int

const (
	// stateClosed means flushes are attempted normally.
	stateClosed breakerState = iota
	// stateOpen means flushes are skipped until the cooldown elapses.
	stateOpen
	// stateHalfOpen means exactly one probe flush is allowed through.
	stateHalfOpen
)

// circuitBreaker guards the telemetry flush loop against a telemetry
// endpoint that is down or rejecting every request. After consecutive
// failures reach threshold it opens and stops flushing for cooldown; the
// next Allow() call after cooldown returns true exactly once (half-open
// probe) before reverting to open on renewed failure.
type circuitBreaker struct {
	mu               sync.Mutex
	threshold        int
	cooldown         time.Duration
	state            breakerState
	failureCount     int
	openedAt         time.Time
	lastFailureError string
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	return &circuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     stateClosed,
	}
}

// Allow reports whether a flush attempt should proceed right now.
func (cb *circuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed:
		return true
	case stateHalfOpen:
		// Already handed out the single probe; further calls wait for its result.
		return false
	case stateOpen:
		if time.Since(cb.openedAt) >= cb.cooldown {
			cb.state = stateHalfOpen
			return true
		}
		return false
	}
	return true
}

// RecordSuccess closes the breaker and resets the failure count.
func (cb *circuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = stateClosed
	cb.failureCount = 0
	cb.lastFailureError = ""
}

// RecordFailure registers a flush failure. Past the threshold (or while
// probing from half-open) the breaker opens and starts a new cooldown.
func (cb *circuitBreaker) RecordFailure(reason string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureError = reason

	if cb.state == stateHalfOpen || cb.failureCount >= cb.threshold {
		cb.state = stateOpen
		cb.openedAt = time.Now()
	}
}

// IsOpen reports whether the breaker is currently rejecting flushes.
func (cb *circuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == stateOpen
}

// Snapshot returns a point-in-time view of breaker state for the health endpoint.
type BreakerSnapshot struct {
	Open         bool      `json:"open"`
	FailureCount int       `json:"failure_count"`
	OpenedAt     time.Time `json:"opened_at,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

func (cb *circuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		Open:         cb.state != stateClosed,
		FailureCount: cb.failureCount,
		OpenedAt:     cb.openedAt,
		LastError:    cb.lastFailureError,
	}
}
