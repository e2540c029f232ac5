package backstop

import "context"

// Pattern: Graceful Degradation — runs the primary operation through the
// retry engine and, only once its retries are exhausted, swallows the
// failure in favour of a single uncushioned call to a lower-fidelity
// secondary operation.

// DoDegraded executes primary through [DoRetry] with the given params. If
// the primary ultimately fails, the failure is reported via OnDegraded (and
// otherwise discarded — one of the two sanctioned places this package drops
// an error) and degraded is invoked exactly once, with no retry wrapping;
// its result or error propagates directly to the caller.
//
//nolint:ireturn // generic type parameter T, not an interface
func DoDegraded[T any](
	ctx context.Context,
	primary func(context.Context) (T, error),
	degraded func(context.Context) (T, error),
	params RetryParams,
	opts ...RetryOption,
) (T, error) {
	result, err := DoRetry(ctx, primary, params, opts...)
	if err == nil {
		return result, nil
	}

	params.Hooks.emitDegraded(err)

	return degraded(ctx)
}

// DoFallback executes fn. On error, the static fallback value is returned
// instead and the error reported via OnFallbackUsed.
//
//nolint:ireturn,unparam // generic type parameter T; error is always nil by
// design.
func DoFallback[T any](
	ctx context.Context,
	fn func(context.Context) (T, error),
	fallbackVal T,
	hooks *Hooks,
) (T, error) {
	result, err := fn(ctx)
	if err != nil {
		hooks.emitFallbackUsed(err)
		return fallbackVal, nil
	}

	return result, nil
}

// DoFallbackFunc executes fn. On error, fallbackFn is called with the error
// and its result returned.
//
//nolint:ireturn // generic type parameter T, not an interface
func DoFallbackFunc[T any](
	ctx context.Context,
	fn func(context.Context) (T, error),
	fallbackFn func(error) (T, error),
	hooks *Hooks,
) (T, error) {
	result, err := fn(ctx)
	if err != nil {
		hooks.emitFallbackUsed(err)

		//nolint:wrapcheck // fallback function's error returned as-is
		return fallbackFn(err)
	}

	return result, nil
}
