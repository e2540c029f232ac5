package backstop

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------.

type (
	circuitBreakerConfig struct {
		failureThreshold int
		successThreshold int
		resetTimeout     time.Duration
		timeWindow       time.Duration
	}

	// CircuitBreakerOption configures a circuit breaker.
	CircuitBreakerOption func(*circuitBreakerConfig)

	// CircuitBreaker tracks the health of a dependency and fails fast when
	// it's down. Construct one breaker per protected resource and share it
	// (by reference) across every call site that should share fault
	// bookkeeping.
	//
	// Pattern: Circuit Breaker — fast-fails calls to an unhealthy
	// downstream; recovers via a half-open probe window after a scheduled
	// reset timeout. State is mutex-guarded; the reset-timer callback takes
	// the same mutex and checks a generation counter, so a superseded timer
	// firing concurrently with an in-flight call is a no-op.
	CircuitBreaker struct {
		clock Clock
		hooks *Hooks
		cfg   circuitBreakerConfig

		mu sync.Mutex
		// failures holds the timestamps of recent failures, pruned to the
		// sliding timeWindow on every failure event.
		failures             []time.Time
		consecutiveSuccesses int
		state                BreakerState
		resetTimer           Timer
		// timerGen invalidates superseded reset timers.
		timerGen uint64
	}
)

// BreakerState is the circuit breaker's current state.
type BreakerState int

const (
	// StateClosed admits all calls.
	StateClosed BreakerState = iota
	// StateOpen rejects all calls without invoking the wrapped operation.
	StateOpen
	// StateHalfOpen admits calls as recovery probes.
	StateHalfOpen
)

// String returns the state as a human-readable string.
func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// ErrCircuitOpen is the sentinel wrapped by the rejection error returned
// while the breaker is open; match it with errors.Is.
var ErrCircuitOpen = errors.New("circuit breaker is open")

func defaultCircuitBreakerConfig() circuitBreakerConfig {
	return circuitBreakerConfig{
		failureThreshold: 5,
		successThreshold: 2,
		resetTimeout:     60 * time.Second,
		timeWindow:       60 * time.Second,
	}
}

// FailureThreshold sets the number of windowed failures before opening.
func FailureThreshold(n int) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.failureThreshold = n
	}
}

// SuccessThreshold sets the number of consecutive half-open successes
// needed to close the breaker.
func SuccessThreshold(n int) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.successThreshold = n
	}
}

// ResetTimeout sets how long the breaker stays open before transitioning to
// half-open.
func ResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.resetTimeout = d
	}
}

// TimeWindow sets the sliding window within which failures are counted.
func TimeWindow(d time.Duration) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.timeWindow = d
	}
}

// NewCircuitBreaker creates a circuit breaker with the given options.
func NewCircuitBreaker(
	clock Clock,
	hooks *Hooks,
	opts ...CircuitBreakerOption,
) *CircuitBreaker {
	cfg := defaultCircuitBreakerConfig()
	for _, o := range opts {
		o(&cfg)
	}

	if clock == nil {
		clock = RealClock{}
	}

	return &CircuitBreaker{
		clock: clock,
		hooks: hooks,
		cfg:   cfg,
	}
}

// Execute runs fn through the breaker cb. While the breaker is open, fn is
// never invoked and a non-retryable SERVER_ERROR AppError (wrapping
// [ErrCircuitOpen]) is returned. Otherwise fn's own error, if any, is
// returned unchanged after being recorded.
//
//nolint:ireturn // generic type parameter T, not an interface
func Execute[T any](
	ctx context.Context,
	cb *CircuitBreaker,
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T

	if err := cb.Allow(); err != nil {
		return zero, err
	}

	val, err := fn(ctx)
	if err != nil {
		cb.RecordFailure()
		return zero, err
	}

	cb.RecordSuccess()

	return val, nil
}

// Allow reports whether a call should proceed. It returns nil while the
// breaker is closed or half-open, and the open-rejection error while open.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	open := cb.state == StateOpen
	cb.mu.Unlock()

	if open {
		return NewAPIError(
			CodeServerError,
			"service unavailable: circuit breaker is open",
			WithRetryable(false),
			WithSeverity(SeverityHigh),
			WithCause(ErrCircuitOpen),
		)
	}

	return nil
}

// RecordSuccess records a successful call. Successes only advance state
// while half-open; reaching the success threshold closes the breaker and
// clears its failure history.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()

	var notify func()

	if cb.state == StateHalfOpen {
		cb.consecutiveSuccesses++
		if cb.consecutiveSuccesses >= cb.cfg.successThreshold {
			cb.closeLocked()
			notify = cb.hooks.emitCircuitClose
		}
	}

	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// RecordFailure records a failed call: the failure timestamp joins the
// sliding window (older entries pruned), the consecutive-success counter
// resets, and the breaker opens once the windowed count reaches the failure
// threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()

	now := cb.clock.Now()
	cb.consecutiveSuccesses = 0
	cb.failures = append(cb.pruneLocked(now), now)

	var notify func()

	if cb.state != StateOpen && len(cb.failures) >= cb.cfg.failureThreshold {
		cb.openLocked()
		notify = cb.hooks.emitCircuitOpen
	}

	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Reset forces the breaker closed, clearing failure history and cancelling
// any pending reset timer.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()

	var notify func()

	if cb.state != StateClosed {
		cb.closeLocked()
		notify = cb.hooks.emitCircuitClose
	} else {
		cb.closeLocked()
	}

	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// ForceOpen forces the breaker open unconditionally, bypassing threshold
// checks. Useful as an operator-triggered kill switch. Opening an already
// open breaker is a no-op.
func (cb *CircuitBreaker) ForceOpen() {
	cb.mu.Lock()

	var notify func()

	if cb.state != StateOpen {
		cb.openLocked()
		notify = cb.hooks.emitCircuitOpen
	}

	cb.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// FailureCount returns the number of failures currently inside the sliding
// window.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = cb.pruneLocked(cb.clock.Now())

	return len(cb.failures)
}

// pruneLocked drops failure timestamps older than the sliding window.
// Callers must hold cb.mu.
func (cb *CircuitBreaker) pruneLocked(now time.Time) []time.Time {
	cutoff := now.Add(-cb.cfg.timeWindow)

	kept := cb.failures[:0]
	for _, t := range cb.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	return kept
}

// openLocked transitions to open and schedules the one-shot reset timer —
// the sole path out of open. Callers must hold cb.mu.
func (cb *CircuitBreaker) openLocked() {
	cb.state = StateOpen
	cb.stopTimerLocked()

	gen := cb.timerGen
	cb.resetTimer = cb.clock.AfterFunc(cb.cfg.resetTimeout, func() {
		cb.onResetTimeout(gen)
	})
}

// closeLocked transitions to closed, clearing all bookkeeping and
// cancelling any pending reset timer. Callers must hold cb.mu.
func (cb *CircuitBreaker) closeLocked() {
	cb.state = StateClosed
	cb.failures = nil
	cb.consecutiveSuccesses = 0
	cb.stopTimerLocked()
}

// stopTimerLocked cancels the pending reset timer, if any, and bumps the
// generation so an already-fired callback becomes a no-op. Callers must
// hold cb.mu.
func (cb *CircuitBreaker) stopTimerLocked() {
	cb.timerGen++

	if cb.resetTimer != nil {
		cb.resetTimer.Stop()
		cb.resetTimer = nil
	}
}

// onResetTimeout is the reset timer callback: it flips open to half-open.
// Superseded timers (generation mismatch) and transitions that already
// happened are ignored, keeping the state machine idempotent.
func (cb *CircuitBreaker) onResetTimeout(gen uint64) {
	cb.mu.Lock()

	if gen != cb.timerGen || cb.state != StateOpen {
		cb.mu.Unlock()
		return
	}

	cb.state = StateHalfOpen
	cb.consecutiveSuccesses = 0
	cb.resetTimer = nil

	cb.mu.Unlock()

	cb.hooks.emitCircuitHalfOpen()
}
