package backstop

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// Policy[T] — the central integration type
// ---------------------------------------------------------------------------

// Policy composes multiple recovery patterns (degradation, stale cache,
// circuit breaker, retry, timeout) behind a single [Policy.Do] method. Use
// [NewPolicy] with functional options to configure it.
//
// Pattern: Functional Options — configures Policy[T] via composable option
// values; generic options use any to work around Go's generic type
// constraint on function signatures.
type Policy[T any] struct {
	name    string
	hooks   Hooks
	clock   Clock
	handler *Handler
	chain   Middleware[T]

	// References to stateful patterns, needed for health reporting.
	entries []PatternEntry[T]
	breaker *CircuitBreaker
	cache   *StaleCache[string, T]

	// Hierarchical health dependencies.
	deps []HealthReporter

	// Registry this policy is registered with (nil if anonymous or opted
	// out).
	registry *Registry
}

// Name returns the policy's name.
func (p *Policy[T]) Name() string { return p.name }

// Breaker returns the policy's circuit breaker, or nil if none was
// configured. Exposed for manual Reset/ForceOpen operator controls.
func (p *Policy[T]) Breaker() *CircuitBreaker { return p.breaker }

// Do executes fn through the composed middleware chain. The final error, if
// any, is reported to the policy's [Handler] before being returned
// unchanged.
func (p *Policy[T]) Do(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	wrapped := p.chain(fn)

	val, err := wrapped(ctx)
	if err != nil && p.handler != nil {
		p.handler.Handle(err, map[string]any{"policy": p.name})
	}

	return val, err
}

// ---------------------------------------------------------------------------
// Non-generic option descriptors — stored as any, interpreted by NewPolicy[T]
// ---------------------------------------------------------------------------

// policyOptionFunc is a non-generic option that modifies policySetup.
type policyOptionFunc func(*policySetup)

// policySetup holds non-generic configuration collected during NewPolicy.
type policySetup struct {
	clock    Clock
	hooks    Hooks
	handler  *Handler
	registry *Registry
}

// timeoutDesc holds deferred per-attempt timeout configuration.
type timeoutDesc struct {
	d time.Duration
}

// retryDesc holds deferred retry configuration.
type retryDesc struct {
	params RetryParams
	opts   []RetryOption
}

// circuitBreakerDesc holds deferred circuit breaker configuration.
type circuitBreakerDesc struct {
	opts []CircuitBreakerOption
}

// staleCacheDesc holds deferred stale cache configuration. store is a
// type-erased Store[string, T]; nil means an in-memory MapStore.
type staleCacheDesc struct {
	store any
	ttl   time.Duration
	fresh bool // true disables stale-on-error serving
}

// degradedDesc holds a type-erased degraded-path function.
type degradedDesc struct {
	fn any // func(context.Context) (T, error) stored as any
}

// fallbackDesc holds a type-erased static fallback value.
type fallbackDesc struct {
	val any
}

// fallbackFuncDesc holds a type-erased fallback function.
type fallbackFuncDesc struct {
	fn any // func(error) (T, error) stored as any
}

// dependsOnDesc holds health reporters that this policy depends on.
type dependsOnDesc struct {
	reporters []HealthReporter
}

// ---------------------------------------------------------------------------
// With* functions — all return any
// ---------------------------------------------------------------------------

// WithClock sets the clock used by all recovery patterns within this policy.
func WithClock(c Clock) any {
	return policyOptionFunc(func(s *policySetup) {
		s.clock = c
	})
}

// WithHooks sets the lifecycle hooks for all recovery patterns within this
// policy.
func WithHooks(h Hooks) any {
	return policyOptionFunc(func(s *policySetup) {
		s.hooks = h
	})
}

// WithHandler attaches a central error handler; the policy reports every
// final failure to it before propagating the error.
func WithHandler(h *Handler) any {
	return policyOptionFunc(func(s *policySetup) {
		s.handler = h
	})
}

// WithRegistry sets an explicit registry for the policy to register with.
// If not provided, named policies auto-register with DefaultRegistry.
func WithRegistry(reg *Registry) any {
	return policyOptionFunc(func(s *policySetup) {
		s.registry = reg
	})
}

// WithTimeout bounds each attempt with a deadline of d.
func WithTimeout(d time.Duration) any {
	return timeoutDesc{d: d}
}

// WithRetry adds retry logic with the given parameters. The policy's clock
// and hooks override any set on params.
func WithRetry(params RetryParams, opts ...RetryOption) any {
	return retryDesc{params: params, opts: opts}
}

// WithCircuitBreaker adds a circuit breaker that fast-fails while the
// downstream is unhealthy.
func WithCircuitBreaker(opts ...CircuitBreakerOption) any {
	return circuitBreakerDesc{opts: opts}
}

// WithStaleCache adds a single-entry stale cache (keyed by the policy name)
// that serves the last-known-good value on failure. Backed by an in-memory
// store unless [WithStaleCacheStore] is also given.
func WithStaleCache(ttl time.Duration) any {
	return staleCacheDesc{ttl: ttl}
}

// WithStaleCacheStore adds a stale cache backed by the given store. The
// store's type parameter must match the policy's. fresh=false keeps the
// default degraded-data-over-no-data behavior.
func WithStaleCacheStore[T any](ttl time.Duration, store Store[string, T], fresh bool) any {
	return staleCacheDesc{ttl: ttl, store: store, fresh: fresh}
}

// WithDegraded adds a lower-fidelity secondary operation invoked once when
// everything inside the policy has failed. The function signature must be
// func(context.Context) (T, error) matching the policy's type parameter.
func WithDegraded[T any](fn func(context.Context) (T, error)) any {
	return degradedDesc{fn: fn}
}

// WithFallback adds a static fallback value returned when the call fails.
// The value must match the policy's type parameter T.
func WithFallback[T any](val T) any {
	return fallbackDesc{val: val}
}

// WithFallbackFunc adds a fallback function called with the error when the
// call fails. The signature must be func(error) (T, error) matching the
// policy's type parameter.
func WithFallbackFunc[T any](fn func(error) (T, error)) any {
	return fallbackFuncDesc{fn: fn}
}

// DependsOn declares hierarchical health dependencies. If any dependency
// reports CriticalityCritical and is unhealthy, this policy's health status
// is degraded.
func DependsOn(reporters ...HealthReporter) any {
	return dependsOnDesc{reporters: reporters}
}

// ---------------------------------------------------------------------------
// NewPolicy[T] — construct and wire up the policy
// ---------------------------------------------------------------------------

// NewPolicy creates a new [Policy] with the given name and options. Options
// are processed in two phases: first, non-generic options (clock, hooks,
// handler, registry) are collected; then, pattern descriptors build their
// middleware using the resolved clock and hooks. Patterns are auto-sorted
// by priority via [SortPatterns] before chaining.
func NewPolicy[T any](name string, opts ...any) *Policy[T] {
	var setup policySetup

	// Phase 1: collect non-generic options to resolve clock and hooks.
	for _, opt := range opts {
		if pof, ok := opt.(policyOptionFunc); ok {
			pof(&setup)
		}
	}

	if setup.clock == nil {
		setup.clock = RealClock{}
	}

	hooks := setup.hooks
	clock := setup.clock

	// Phase 2: build middleware entries from pattern descriptors.
	var (
		entries []PatternEntry[T]
		breaker *CircuitBreaker
		cache   *StaleCache[string, T]
		deps    []HealthReporter
	)

	for _, opt := range opts {
		switch desc := opt.(type) {
		case policyOptionFunc:
			// Already processed in phase 1.

		case timeoutDesc:
			d := desc.d
			entries = append(entries, PatternEntry[T]{
				Priority: priorityTimeout,
				Name:     "timeout",
				MW: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						return DoTimeout[T](ctx, d, next, &hooks)
					}
				},
			})

		case retryDesc:
			params := desc.params
			params.Clock = clock
			params.Hooks = &hooks
			retryOpts := desc.opts
			entries = append(entries, PatternEntry[T]{
				Priority: priorityRetry,
				Name:     "retry",
				MW: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						return DoRetry[T](ctx, next, params, retryOpts...)
					}
				},
			})

		case circuitBreakerDesc:
			breaker = NewCircuitBreaker(clock, &hooks, desc.opts...)
			cbRef := breaker
			entries = append(entries, PatternEntry[T]{
				Priority: priorityCircuitBreaker,
				Name:     "circuit_breaker",
				MW: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						return Execute[T](ctx, cbRef, next)
					}
				},
			})

		case staleCacheDesc:
			store, _ := desc.store.(Store[string, T])
			if store == nil {
				store = NewMapStore[string, T]()
			}

			scOpts := []StaleCacheOption[string, T]{
				WithCacheClock[string, T](clock),
				WithCacheHooks[string, T](&hooks),
			}
			if desc.fresh {
				scOpts = append(scOpts, NoStaleOnError[string, T]())
			}

			cache = NewStaleCache[string, T](store, desc.ttl, scOpts...)
			scRef := cache
			key := name
			entries = append(entries, PatternEntry[T]{
				Priority: priorityStaleCache,
				Name:     "stale_cache",
				MW: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						return scRef.Do(ctx, key, func(ctx context.Context, _ string) (T, error) {
							return next(ctx)
						})
					}
				},
			})

		case degradedDesc:
			fn := desc.fn.(func(context.Context) (T, error))
			entries = append(entries, PatternEntry[T]{
				Priority: priorityDegraded,
				Name:     "degraded",
				MW: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						val, err := next(ctx)
						if err == nil {
							return val, nil
						}

						hooks.emitDegraded(err)

						return fn(ctx)
					}
				},
			})

		case fallbackDesc:
			val := desc.val.(T)
			entries = append(entries, PatternEntry[T]{
				Priority: priorityDegraded,
				Name:     "fallback",
				MW: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						return DoFallback[T](ctx, next, val, &hooks)
					}
				},
			})

		case fallbackFuncDesc:
			fn := desc.fn.(func(error) (T, error))
			entries = append(entries, PatternEntry[T]{
				Priority: priorityDegraded,
				Name:     "fallback_func",
				MW: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						return DoFallbackFunc[T](ctx, next, fn, &hooks)
					}
				},
			})

		case dependsOnDesc:
			deps = append(deps, desc.reporters...)
		}
	}

	// Sort by priority and chain.
	sorted := SortPatterns[T](entries)
	chain := Chain[T](sorted...)

	// Auto-register if the policy has a name.
	var reg *Registry
	if name != "" {
		reg = setup.registry
		if reg == nil {
			reg = DefaultRegistry()
		}
	}

	p := &Policy[T]{
		name:     name,
		hooks:    hooks,
		clock:    clock,
		handler:  setup.handler,
		chain:    chain,
		entries:  entries,
		breaker:  breaker,
		cache:    cache,
		deps:     deps,
		registry: reg,
	}

	if reg != nil && name != "" {
		reg.Register(p)
	}

	return p
}
