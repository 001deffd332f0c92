// Package breaker implements a per-tool-server CLOSED/OPEN/HALF_OPEN
// circuit breaker. All state transitions happen under a single mutex, and
// the breaker supplies no retry of its own — retry is composed externally
// by internal/retry.
package breaker

import (
	"sync"
	"time"
)

// State is one of the three breaker states.
type State string

const (
	Closed   State = "CLOSED"
	Open     State = "OPEN"
	HalfOpen State = "HALF_OPEN"
)

// Config tunes a single breaker instance.
type Config struct {
	FailureThreshold int           // default 5
	SuccessThreshold int           // default 2
	RecoveryTimeout  time.Duration // default 60s
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, SuccessThreshold: 2, RecoveryTimeout: 60 * time.Second}
}

// Stats is a point-in-time, read-only view of breaker state for
// observability.
type Stats struct {
	State           State
	FailureCount    int
	SuccessCount    int
	LastFailureTime time.Time
}

// TransitionFunc is invoked (outside the lock) whenever the breaker changes
// state, for structured logging of breaker.state_change events.
type TransitionFunc func(from, to State)

// Breaker is one tool server's circuit breaker.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	halfOpenBusy    bool

	onTransition TransitionFunc
}

// New constructs a Breaker in the CLOSED state.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}
	return &Breaker{cfg: cfg, state: Closed, now: time.Now}
}

// OnTransition registers a callback fired (synchronously, after the lock is
// released) on every state change.
func (b *Breaker) OnTransition(fn TransitionFunc) {
	b.mu.Lock()
	b.onTransition = fn
	b.mu.Unlock()
}

// Allow reports whether a call may proceed right now, and — for HALF_OPEN —
// reserves the single permitted probe slot. Call Allow immediately before
// issuing the call; pair every true result with exactly one RecordSuccess or
// RecordFailure.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	var pending func()
	var allowed bool

	switch b.state {
	case Closed:
		allowed = true
	case Open:
		if b.now().Sub(b.lastFailureTime) >= b.cfg.RecoveryTimeout {
			pending = b.transitionLocked(HalfOpen)
			b.halfOpenBusy = true
			allowed = true
		}
	case HalfOpen:
		if !b.halfOpenBusy {
			b.halfOpenBusy = true
			allowed = true
		}
	}
	b.mu.Unlock()
	if pending != nil {
		pending()
	}
	return allowed
}

// RecordSuccess reports a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	var pending func()

	switch b.state {
	case Closed:
		b.failureCount = 0
	case HalfOpen:
		b.halfOpenBusy = false
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.failureCount = 0
			b.successCount = 0
			pending = b.transitionLocked(Closed)
		}
	case Open:
		// stray success after a concurrent transition; ignore.
	}
	b.mu.Unlock()
	if pending != nil {
		pending()
	}
}

// RecordFailure reports a failed call.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	var pending func()

	b.lastFailureTime = b.now()
	switch b.state {
	case Closed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			pending = b.transitionLocked(Open)
		}
	case HalfOpen:
		b.halfOpenBusy = false
		b.successCount = 0
		pending = b.transitionLocked(Open)
	case Open:
		// already open; lastFailureTime already refreshed above.
	}
	b.mu.Unlock()
	if pending != nil {
		pending()
	}
}

// transitionLocked updates state and returns a callback (to be invoked after
// the caller unlocks mu) that fires onTransition. Caller holds mu.
func (b *Breaker) transitionLocked(to State) func() {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	if b.onTransition == nil {
		return nil
	}
	fn := b.onTransition
	return func() { fn(from, to) }
}

// Stats returns a snapshot of current state for observability.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{State: b.state, FailureCount: b.failureCount, SuccessCount: b.successCount, LastFailureTime: b.lastFailureTime}
}
