package httpclient

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// circuitBreaker is adapted from a mesh circuit breaker design:
// after threshold consecutive failures it opens and rejects calls outright
// until resetTimeout has passed, then lets exactly one probe call through
// before deciding whether to close again or reopen.
type circuitBreaker struct {
	mu           sync.Mutex
	state        breakerState
	failures     int
	threshold    int
	resetTimeout time.Duration
	lastFailure  time.Time
}

func newCircuitBreaker(threshold int, resetTimeout time.Duration) *circuitBreaker {
	return &circuitBreaker{
		state:        breakerClosed,
		threshold:    threshold,
		resetTimeout: resetTimeout,
	}
}

func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = breakerHalfOpen
			cb.failures = 0
			return true
		}
		return false
	default: // breakerHalfOpen: the one probe was let through on the transition
		return false
	}
}

func (cb *circuitBreaker) success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == breakerHalfOpen || cb.state == breakerClosed {
		cb.state = breakerClosed
		cb.failures = 0
	}
}

func (cb *circuitBreaker) failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.state == breakerClosed && cb.failures >= cb.threshold {
		cb.state = breakerOpen
	} else if cb.state == breakerHalfOpen {
		cb.state = breakerOpen
	}
}
