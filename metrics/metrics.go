// Package metrics provides a Prometheus sink for backstop lifecycle hooks.
// Wire the returned Hooks into a policy (or any standalone pattern) to get
// retry, timeout, circuit-state, cache, and degradation metrics without the
// patterns knowing about Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/byteglow/backstop"
)

// Circuit state gauge values.
const (
	gaugeClosed   = 0
	gaugeOpen     = 1
	gaugeHalfOpen = 2
)

// NewHooks registers backstop metrics labelled with the policy name on reg
// and returns a Hooks value that feeds them. Each policy should get its own
// Hooks; registering the same policy name twice on one registerer panics,
// as usual with Prometheus.
func NewHooks(reg prometheus.Registerer, policy string) backstop.Hooks {
	labels := prometheus.Labels{"policy": policy}
	factory := promauto.With(reg)

	retries := factory.NewCounter(prometheus.CounterOpts{
		Name:        "backstop_retries_total",
		Help:        "Retry attempts performed after a failed call.",
		ConstLabels: labels,
	})
	timeouts := factory.NewCounter(prometheus.CounterOpts{
		Name:        "backstop_timeouts_total",
		Help:        "Calls that exceeded their deadline.",
		ConstLabels: labels,
	})
	staleServed := factory.NewCounter(prometheus.CounterOpts{
		Name:        "backstop_stale_served_total",
		Help:        "Failures answered with a stale cached value.",
		ConstLabels: labels,
	})
	refreshes := factory.NewCounter(prometheus.CounterOpts{
		Name:        "backstop_cache_refreshes_total",
		Help:        "Successful calls whose result refreshed the cache.",
		ConstLabels: labels,
	})
	degraded := factory.NewCounter(prometheus.CounterOpts{
		Name:        "backstop_degraded_total",
		Help:        "Primary-path exhaustions that fell back to the degraded path.",
		ConstLabels: labels,
	})
	fallbacks := factory.NewCounter(prometheus.CounterOpts{
		Name:        "backstop_fallbacks_total",
		Help:        "Failures answered with a static fallback value.",
		ConstLabels: labels,
	})
	circuitState := factory.NewGauge(prometheus.GaugeOpts{
		Name:        "backstop_circuit_state",
		Help:        "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		ConstLabels: labels,
	})

	return backstop.Hooks{
		OnRetry: func(_ int, _ time.Duration, _ error) {
			retries.Inc()
		},
		OnTimeout: func() {
			timeouts.Inc()
		},
		OnStaleServed: func(_ time.Duration) {
			staleServed.Inc()
		},
		OnCacheRefreshed: func() {
			refreshes.Inc()
		},
		OnDegraded: func(_ error) {
			degraded.Inc()
		},
		OnFallbackUsed: func(_ error) {
			fallbacks.Inc()
		},
		OnCircuitOpen: func() {
			circuitState.Set(gaugeOpen)
		},
		OnCircuitClose: func() {
			circuitState.Set(gaugeClosed)
		},
		OnCircuitHalfOpen: func() {
			circuitState.Set(gaugeHalfOpen)
		},
	}
}
