package backstop

import "time"

// Pattern: Factory Function — each preset produces a ready-made option
// bundle for a common use case, avoiding boilerplate configuration.

// StandardAPIClient returns options suitable for a typical remote API
// client: 5s per-attempt timeout, 3 retries with 1s doubling backoff and
// 10% jitter, and a circuit breaker with a 5-failure window and 30s reset.
func StandardAPIClient() []any {
	return []any{
		WithTimeout(5 * time.Second),
		WithRetry(RetryParams{
			MaxRetries:   3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2,
			JitterFactor: 0.1,
		}),
		WithCircuitBreaker(
			FailureThreshold(5),
			ResetTimeout(30*time.Second),
		),
	}
}

// AggressiveAPIClient returns options for latency-sensitive clients: 2s
// per-attempt timeout, 5 fast retries capped at 5s, and a breaker that
// opens after 3 windowed failures and probes again after 15s.
func AggressiveAPIClient() []any {
	return []any{
		WithTimeout(2 * time.Second),
		WithRetry(RetryParams{
			MaxRetries:   5,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2,
			JitterFactor: 0.2,
		}),
		WithCircuitBreaker(
			FailureThreshold(3),
			ResetTimeout(15*time.Second),
		),
	}
}

// CachedReadThrough returns options for read paths that prefer degraded
// data over no data: 2 quick retries backed by a 5-minute stale cache.
func CachedReadThrough() []any {
	return []any{
		WithRetry(RetryParams{
			MaxRetries:   2,
			InitialDelay: 100 * time.Millisecond,
			Multiplier:   2,
			JitterFactor: 0.1,
		}),
		WithStaleCache(5 * time.Minute),
	}
}
