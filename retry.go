package backstop

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Pattern: Retry with Backoff — masks transient failures with exponential
// backoff plus symmetric jitter; respects the error taxonomy's Retryable
// classification to stop early.

// RetryParams holds the tunables for [DoRetry]. The zero value retries
// nothing; use [DefaultRetryParams] for the standard configuration.
type RetryParams struct {
	// Hooks receives OnRetry notifications before each backoff sleep.
	Hooks *Hooks
	// Clock drives backoff sleeps. Nil means [RealClock].
	Clock Clock
	// InitialDelay is the backoff before the second attempt.
	InitialDelay time.Duration
	// MaxDelay caps the computed backoff. 0 means no cap.
	MaxDelay time.Duration
	// Multiplier scales the delay between consecutive retries.
	// Values <= 0 are treated as 1.
	Multiplier float64
	// JitterFactor in [0,1] perturbs each delay by a uniform factor in
	// [-JitterFactor, +JitterFactor] to avoid synchronized retry storms.
	JitterFactor float64
	// MaxRetries bounds re-attempts: the operation runs at most
	// MaxRetries+1 times.
	MaxRetries int
}

// DefaultRetryParams returns the standard retry configuration: 3 retries,
// 1s initial delay doubling up to 30s, 10% jitter.
func DefaultRetryParams() RetryParams {
	return RetryParams{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.1,
	}
}

// retryConfig holds the optional per-call configuration for retry behavior.
type retryConfig struct {
	retryIf           func(err error, attempt int) bool
	perAttemptTimeout time.Duration
}

// RetryOption configures retry behavior.
type RetryOption func(*retryConfig)

// RetryIf sets a custom predicate deciding whether a failed attempt should
// be retried. attempt is 1-indexed. The default predicate is [IsRetryable].
func RetryIf(fn func(err error, attempt int) bool) RetryOption {
	return func(cfg *retryConfig) {
		cfg.retryIf = fn
	}
}

// PerAttemptTimeout bounds each individual attempt with [DoTimeout].
func PerAttemptTimeout(d time.Duration) RetryOption {
	return func(cfg *retryConfig) {
		cfg.perAttemptTimeout = d
	}
}

// DoRetry executes fn, retrying failed attempts with exponential backoff
// plus jitter. Attempts are strictly sequential: attempt N+1 never starts
// before attempt N settles and its backoff elapses.
//
// On final failure the error from the last attempt is returned unchanged —
// never wrapped — so callers can still pattern-match on the original value.
// A non-retryable failure short-circuits immediately with no further delay.
// Context cancellation aborts a pending backoff sleep and returns ctx.Err().
//
//nolint:ireturn // generic type parameter T, not an interface
func DoRetry[T any](
	ctx context.Context,
	fn func(context.Context) (T, error),
	params RetryParams,
	opts ...RetryOption,
) (T, error) {
	var cfg retryConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if params.Clock == nil {
		params.Clock = RealClock{}
	}

	retries := params.MaxRetries
	if retries < 0 {
		retries = 0
	}

	shouldRetry := cfg.retryIf
	if shouldRetry == nil {
		shouldRetry = func(err error, _ int) bool { return IsRetryable(err) }
	}

	var zero T
	var lastErr error

	// Exactly retries+1 total attempts, 1-indexed.
	for attempt := 1; attempt <= retries+1; attempt++ {
		var result T
		var err error

		if cfg.perAttemptTimeout > 0 {
			result, err = DoTimeout(ctx, cfg.perAttemptTimeout, fn, params.Hooks)
		} else {
			result, err = fn(ctx)
		}

		if err == nil {
			return result, nil
		}

		lastErr = err

		// Out of attempts: rethrow the last error as-is.
		if attempt == retries+1 {
			break
		}

		// Non-retryable: rethrow immediately, no delay.
		if !shouldRetry(err, attempt) {
			return zero, err
		}

		delay := backoffDelay(params, attempt)
		params.Hooks.emitRetry(attempt, delay, err)

		timer := params.Clock.NewTimer(delay)
		select {
		case <-timer.C():
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}

	return zero, lastErr
}

// backoffDelay computes the sleep before the retry following the given
// 1-indexed failed attempt: min(initial * multiplier^(attempt-1), maxDelay)
// perturbed by symmetric jitter and clamped at zero. Jitter can push the
// delay to exactly 0; zero-delay retries are valid.
func backoffDelay(params RetryParams, attempt int) time.Duration {
	multiplier := params.Multiplier
	if multiplier <= 0 {
		multiplier = 1
	}

	base := float64(params.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if params.MaxDelay > 0 && base > float64(params.MaxDelay) {
		base = float64(params.MaxDelay)
	}

	delay := base
	if params.JitterFactor > 0 {
		// Uniform in [-1, 1).
		delay += base * params.JitterFactor * (2*rand.Float64() - 1)
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}
