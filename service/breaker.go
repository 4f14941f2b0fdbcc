package service

import (
	"sync"
	"time"
)

// BreakerState is one of the circuit breaker's three states.
type BreakerState int

const (
	// BreakerClosed lets calls pass through.
	BreakerClosed BreakerState = iota
	// BreakerOpen short-circuits calls to the fallback, no remote attempt.
	BreakerOpen
	// BreakerHalfOpen lets a single trial call through after the cooldown.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// BreakerSettings tunes a CircuitBreaker. Zero values pick the defaults.
type BreakerSettings struct {
	// FailureThreshold opens the breaker when the rolling failure rate
	// exceeds it. Default 0.5.
	FailureThreshold float64
	// WindowSize is how many recent call outcomes the rolling rate covers.
	// Default 10.
	WindowSize int
	// MinSamples is the minimum number of recorded outcomes before the
	// threshold is evaluated. Default 4.
	MinSamples int
	// Cooldown is how long the breaker stays open before allowing a trial
	// call. Default 10s.
	Cooldown time.Duration
	// Now is the clock, injectable for tests. Default time.Now.
	Now func() time.Time
}

// CircuitBreaker is an explicit CLOSED/OPEN/HALF-OPEN state machine over a
// rolling window of call outcomes. Callers ask Allow before each remote
// call and report the outcome with RecordSuccess/RecordFailure; timeouts
// count as failures.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold  float64
	windowSize int
	minSamples int
	cooldown   time.Duration
	now        func() time.Time

	state    BreakerState
	window   []bool // true = failure
	openedAt time.Time
}

// NewCircuitBreaker creates a closed breaker with the given settings.
func NewCircuitBreaker(settings BreakerSettings) *CircuitBreaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 0.5
	}
	if settings.WindowSize <= 0 {
		settings.WindowSize = 10
	}
	if settings.MinSamples <= 0 {
		settings.MinSamples = 4
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 10 * time.Second
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &CircuitBreaker{
		threshold:  settings.FailureThreshold,
		windowSize: settings.WindowSize,
		minSamples: settings.MinSamples,
		cooldown:   settings.Cooldown,
		now:        settings.Now,
		state:      BreakerClosed,
	}
}

// Allow reports whether a remote call may be attempted now. While open it
// returns false until the cooldown elapses, at which point the breaker moves
// to half-open and admits one trial call.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = BreakerHalfOpen
			return true
		}
		return false
	case BreakerHalfOpen:
		// only the call that triggered the transition probes
		return false
	default:
		return true
	}
}

// RecordSuccess records a successful call. A half-open trial success closes
// the breaker and clears the window.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.state = BreakerClosed
		b.window = b.window[:0]
		return
	}
	b.push(false)
}

// RecordFailure records a failed or timed-out call. A half-open trial
// failure reopens the breaker; in closed state the rolling failure rate is
// re-evaluated against the threshold.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.trip()
		return
	}

	b.push(true)
	if len(b.window) < b.minSamples {
		return
	}
	failures := 0
	for _, failed := range b.window {
		if failed {
			failures++
		}
	}
	if float64(failures)/float64(len(b.window)) > b.threshold {
		b.trip()
	}
}

// State returns the current state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *CircuitBreaker) push(failed bool) {
	b.window = append(b.window, failed)
	if len(b.window) > b.windowSize {
		b.window = b.window[1:]
	}
}

func (b *CircuitBreaker) trip() {
	b.state = BreakerOpen
	b.openedAt = b.now()
	b.window = b.window[:0]
}
