package backstop

import (
	"context"
	"fmt"
	"time"
)

// Pattern: Timeout — races a call against a deadline, returning a retryable
// TIMEOUT-coded AppError if the deadline wins. The losing operation's
// eventual settlement is discarded: this wrapper stops waiting for work, it
// does not abort it. Operations needing true cancellation must honour the
// context handed to them.

// DoTimeout executes fn with a deadline of d. If fn does not settle within
// d, the derived context is cancelled and a retryable TIMEOUT error is
// returned. Parent context cancellation is distinguished from timeout and
// surfaces as ctx.Err().
//
//nolint:ireturn // generic type parameter T, not an interface
func DoTimeout[T any](
	ctx context.Context,
	d time.Duration,
	fn func(context.Context) (T, error),
	hooks *Hooks,
) (T, error) {
	var zero T

	// If the parent context is already done, return its error immediately.
	if ctx.Err() != nil {
		return zero, ctx.Err() //nolint:wrapcheck // preserving context error identity
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}

	// Buffered so the goroutine can settle after we stop listening.
	ch := make(chan result, 1)

	go func() {
		v, err := fn(timeoutCtx)
		ch <- result{val: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-timeoutCtx.Done():
		// Distinguish between timeout and parent cancellation.
		if ctx.Err() != nil {
			return zero, ctx.Err() //nolint:wrapcheck // preserving context error identity
		}

		hooks.emitTimeout()

		return zero, NewAPIError(
			CodeTimeout,
			fmt.Sprintf("operation timed out after %s", d),
			WithRetryable(true),
		)
	}
}
