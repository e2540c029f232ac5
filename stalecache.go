package backstop

import (
	"context"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Store — the caller-supplied cache collaborator
// ---------------------------------------------------------------------------.

type (
	// Entry is a cached value with the instant it was written. Staleness is
	// judged against this timestamp at read time; stores never self-prune
	// entries on the cache's behalf.
	Entry[V any] struct {
		Timestamp time.Time
		Value     V
	}

	// Store is the minimal map-like contract a [StaleCache] needs. Any
	// backing works — an in-memory map, Ristretto, Otter, Redis — as long
	// as it can hold entries by key. Implementations must be safe for
	// concurrent use; the cache itself performs no locking, and concurrent
	// writers to the same key race with last-writer-wins semantics.
	Store[K comparable, V any] interface {
		// Get retrieves a cached entry by key. Returns the entry and true
		// if found.
		Get(key K) (Entry[V], bool)
		// Set stores an entry, overwriting any previous one.
		Set(key K, e Entry[V])
		// Delete removes a cached entry by key.
		Delete(key K)
	}
)

// MapStore is an in-memory, mutex-guarded [Store] backed by a plain map.
// It never evicts; use one of the store adapters for bounded capacity.
type MapStore[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]Entry[V]
}

// NewMapStore creates an empty in-memory store.
func NewMapStore[K comparable, V any]() *MapStore[K, V] {
	return &MapStore[K, V]{entries: make(map[K]Entry[V])}
}

// Get retrieves a cached entry by key.
func (s *MapStore[K, V]) Get(key K) (Entry[V], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]

	return e, ok
}

// Set stores an entry, overwriting any previous one.
func (s *MapStore[K, V]) Set(key K, e Entry[V]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = e
}

// Delete removes a cached entry by key.
func (s *MapStore[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
}

// ---------------------------------------------------------------------------
// StaleCache — serve cached data when the live operation fails
// ---------------------------------------------------------------------------.

type (
	// StaleCache wraps a function call with keyed cache-on-success,
	// serve-on-failure semantics. On success the result is written to the
	// underlying [Store] with the current timestamp. On failure the cached
	// entry for that key is served if it is fresh (age <= TTL) or, by
	// default, even when stale — degraded data over no data.
	//
	// StaleCache is a standalone wrapper; compose it with other patterns by
	// nesting calls or through [Policy] with [WithStaleCache].
	StaleCache[K comparable, V any] struct {
		store           Store[K, V]
		clock           Clock
		hooks           *Hooks
		ttl             time.Duration
		useStaleOnError bool
	}

	// StaleCacheOption configures a [StaleCache].
	StaleCacheOption[K comparable, V any] func(*StaleCache[K, V])
)

// NoStaleOnError restricts error-path serving to fresh entries only:
// entries older than the TTL cause the original error to propagate.
func NoStaleOnError[K comparable, V any]() StaleCacheOption[K, V] {
	return func(sc *StaleCache[K, V]) {
		sc.useStaleOnError = false
	}
}

// WithCacheClock overrides the clock used for entry timestamps and
// staleness checks.
func WithCacheClock[K comparable, V any](clock Clock) StaleCacheOption[K, V] {
	return func(sc *StaleCache[K, V]) {
		sc.clock = clock
	}
}

// WithCacheHooks sets the hooks notified on stale serves and refreshes.
func WithCacheHooks[K comparable, V any](hooks *Hooks) StaleCacheOption[K, V] {
	return func(sc *StaleCache[K, V]) {
		sc.hooks = hooks
	}
}

// NewStaleCache creates a keyed stale cache backed by the given [Store].
// The ttl bounds how long an entry counts as fresh; stale entries are still
// served on failure unless [NoStaleOnError] is set.
func NewStaleCache[K comparable, V any](
	store Store[K, V],
	ttl time.Duration,
	opts ...StaleCacheOption[K, V],
) *StaleCache[K, V] {
	sc := &StaleCache[K, V]{
		store:           store,
		clock:           RealClock{},
		ttl:             ttl,
		useStaleOnError: true,
	}

	for _, opt := range opts {
		opt(sc)
	}

	return sc
}

// Do executes fn with the given key. On success the result is cached and
// returned. On failure a cached entry is served when fresh or when stale
// serving is enabled; otherwise the original error propagates unchanged.
// The error path never writes to the store and never itself fails on a
// stale hit.
//
//nolint:ireturn // generic type parameter V, not an interface
func (sc *StaleCache[K, V]) Do(
	ctx context.Context,
	key K,
	fn func(context.Context, K) (V, error),
) (V, error) {
	result, err := fn(ctx, key)
	if err == nil {
		sc.store.Set(key, Entry[V]{Value: result, Timestamp: sc.clock.Now()})
		sc.hooks.emitCacheRefreshed()

		return result, nil
	}

	entry, ok := sc.store.Get(key)
	if !ok {
		var zero V

		return zero, err //nolint:wrapcheck // caller's error returned as-is
	}

	age := sc.clock.Since(entry.Timestamp)
	if age <= sc.ttl {
		return entry.Value, nil
	}

	if sc.useStaleOnError {
		sc.hooks.emitStaleServed(age)

		return entry.Value, nil
	}

	var zero V

	return zero, err //nolint:wrapcheck // caller's error returned as-is
}
