package backstop

import "sort"

// PatternEntry holds a middleware with its priority for auto-ordering.
type PatternEntry[T any] struct {
	MW       Middleware[T]
	Name     string
	Priority int
}

// Priority constants define the execution order for recovery patterns.
// Lower priority = outermost middleware (executed first). The resulting
// nesting is degraded(cache(breaker(retry(timeout(op))))): the breaker
// counts post-retry outcomes, each attempt is individually timed out, and
// the cache and degradation layers see only final failures.
const (
	priorityDegraded       = 0 // outermost — last resort
	priorityStaleCache     = 1
	priorityCircuitBreaker = 2
	priorityRetry          = 3
	priorityTimeout        = 4 // innermost — bounds each attempt
)

// SortPatterns sorts pattern entries by priority (lowest first = outermost).
// The sort is stable to preserve insertion order among equal priorities.
func SortPatterns[T any](entries []PatternEntry[T]) []Middleware[T] {
	if len(entries) == 0 {
		return nil
	}

	// Copy to avoid mutating the caller's slice.
	sorted := make([]PatternEntry[T], 0, len(entries))
	sorted = append(sorted, entries...)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	mws := make([]Middleware[T], 0, len(sorted))
	for _, e := range sorted {
		mws = append(mws, e.MW)
	}

	return mws
}
