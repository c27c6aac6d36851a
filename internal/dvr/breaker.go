package dvr

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// BreakerState is the state of a Breaker
type BreakerState int

const (
	// BreakerClosed lets requests through
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects requests until the reset timeout elapses
	BreakerOpen
	// BreakerHalfOpen lets a single trial request through
	BreakerHalfOpen
)

// String returns the string representation of BreakerState
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen indicates recent DVR requests kept failing and the call was not attempted
var ErrCircuitOpen = errors.New("dvr circuit breaker is open")

// Breaker stops calling an upstream after consecutive failures, then lets a
// single trial request through once resetTimeout has elapsed
type Breaker struct {
	threshold    int
	resetTimeout time.Duration
	clock        clockwork.Clock

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
}

// NewBreaker creates a closed Breaker. A nil clock uses the real clock.
func NewBreaker(threshold int, resetTimeout time.Duration, clock clockwork.Clock) *Breaker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Breaker{threshold: threshold, resetTimeout: resetTimeout, clock: clock}
}

// Call runs fn unless the breaker is open. Errors for which counts returns
// false pass through without affecting the breaker.
func (b *Breaker) Call(fn func() error, counts func(error) bool) error {
	if !b.allow() {
		return ErrCircuitOpen
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err == nil:
		b.failures = 0
		b.state = BreakerClosed
	case counts(err):
		b.failures++
		b.lastFailure = b.clock.Now()
		if b.state == BreakerHalfOpen || b.failures >= b.threshold {
			b.state = BreakerOpen
		}
	}
	return err
}

// State returns the current state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advanceLocked()
	return b.state != BreakerOpen
}

// advanceLocked moves an open breaker to half-open once the timeout passed
func (b *Breaker) advanceLocked() {
	if b.state == BreakerOpen && b.clock.Since(b.lastFailure) >= b.resetTimeout {
		b.state = BreakerHalfOpen
	}
}
