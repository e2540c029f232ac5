package backstop

import (
	"context"
	"sync"
)

// Pattern: Batch Retry — fans out independent operations concurrently, each
// cushioned by its own retry engine, and collects successes and failures
// without letting one exhaustion abort its siblings.

type (
	// BatchFailure records one operation's final error together with its
	// index in the submitted slice.
	BatchFailure struct {
		Err   error
		Index int
	}

	// BatchResult collects a batch's outcomes. Successes are appended in
	// settlement order and carry no correspondence to submission indices;
	// Failures do carry the original index.
	BatchResult[T any] struct {
		Successes []T
		Failures  []BatchFailure
	}

	// batchConfig holds the optional configuration for DoBatch.
	batchConfig struct {
		maxConcurrent int
	}

	// BatchOption configures batch execution.
	BatchOption func(*batchConfig)
)

// MaxConcurrent bounds how many operations run at once. 0 (the default)
// means unbounded.
func MaxConcurrent(n int) BatchOption {
	return func(cfg *batchConfig) {
		cfg.maxConcurrent = n
	}
}

// DoBatch runs every operation concurrently, each independently wrapped in
// [DoRetry] with the same params. It returns only after all operations,
// including their internal retries, have settled. Failures are recorded,
// never rethrown mid-batch.
func DoBatch[T any](
	ctx context.Context,
	fns []func(context.Context) (T, error),
	params RetryParams,
	opts ...BatchOption,
) BatchResult[T] {
	var cfg batchConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result BatchResult[T]
	)

	var sem chan struct{}
	if cfg.maxConcurrent > 0 {
		sem = make(chan struct{}, cfg.maxConcurrent)
	}

	for i, fn := range fns {
		wg.Add(1)

		go func(index int, op func(context.Context) (T, error)) {
			defer wg.Done()

			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			val, err := DoRetry(ctx, op, params)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				result.Failures = append(result.Failures, BatchFailure{
					Index: index,
					Err:   err,
				})

				return
			}

			result.Successes = append(result.Successes, val)
		}(i, fn)
	}

	wg.Wait()

	return result
}
