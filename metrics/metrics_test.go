package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteglow/backstop"
)

func TestHooksCountEvents(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	hooks := NewHooks(reg, "chat-api")

	hooks.OnRetry(1, time.Second, errors.New("x"))
	hooks.OnRetry(2, 2*time.Second, errors.New("x"))
	hooks.OnTimeout()
	hooks.OnStaleServed(time.Minute)
	hooks.OnCacheRefreshed()
	hooks.OnDegraded(errors.New("x"))
	hooks.OnFallbackUsed(errors.New("x"))

	expected := `
# HELP backstop_retries_total Retry attempts performed after a failed call.
# TYPE backstop_retries_total counter
backstop_retries_total{policy="chat-api"} 2
# HELP backstop_timeouts_total Calls that exceeded their deadline.
# TYPE backstop_timeouts_total counter
backstop_timeouts_total{policy="chat-api"} 1
# HELP backstop_stale_served_total Failures answered with a stale cached value.
# TYPE backstop_stale_served_total counter
backstop_stale_served_total{policy="chat-api"} 1
# HELP backstop_cache_refreshes_total Successful calls whose result refreshed the cache.
# TYPE backstop_cache_refreshes_total counter
backstop_cache_refreshes_total{policy="chat-api"} 1
# HELP backstop_degraded_total Primary-path exhaustions that fell back to the degraded path.
# TYPE backstop_degraded_total counter
backstop_degraded_total{policy="chat-api"} 1
# HELP backstop_fallbacks_total Failures answered with a static fallback value.
# TYPE backstop_fallbacks_total counter
backstop_fallbacks_total{policy="chat-api"} 1
`

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"backstop_retries_total",
		"backstop_timeouts_total",
		"backstop_stale_served_total",
		"backstop_cache_refreshes_total",
		"backstop_degraded_total",
		"backstop_fallbacks_total",
	))
}

func TestHooksCircuitStateGauge(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	hooks := NewHooks(reg, "api")

	check := func(want string) {
		t.Helper()
		require.NoError(t, testutil.GatherAndCompare(reg,
			strings.NewReader(want), "backstop_circuit_state"))
	}

	hooks.OnCircuitOpen()
	check(`
# HELP backstop_circuit_state Circuit breaker state: 0 closed, 1 open, 2 half-open.
# TYPE backstop_circuit_state gauge
backstop_circuit_state{policy="api"} 1
`)

	hooks.OnCircuitHalfOpen()
	check(`
# HELP backstop_circuit_state Circuit breaker state: 0 closed, 1 open, 2 half-open.
# TYPE backstop_circuit_state gauge
backstop_circuit_state{policy="api"} 2
`)

	hooks.OnCircuitClose()
	check(`
# HELP backstop_circuit_state Circuit breaker state: 0 closed, 1 open, 2 half-open.
# TYPE backstop_circuit_state gauge
backstop_circuit_state{policy="api"} 0
`)
}

func TestHooksWiredIntoPolicy(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	hooks := NewHooks(reg, "sync")

	p := backstop.NewPolicy[int]("",
		backstop.WithHooks(hooks),
		backstop.WithRetry(backstop.RetryParams{
			MaxRetries:   2,
			InitialDelay: time.Millisecond,
			Multiplier:   1,
		}),
		backstop.WithCircuitBreaker(backstop.FailureThreshold(1)),
	)

	_, err := p.Do(context.Background(), func(_ context.Context) (int, error) {
		return 0, backstop.NewAPIError(backstop.CodeNetwork, "down")
	})
	require.Error(t, err)

	// Two backoffs inside the exhausted cycle, then the breaker opens.
	expected := `
# HELP backstop_retries_total Retry attempts performed after a failed call.
# TYPE backstop_retries_total counter
backstop_retries_total{policy="sync"} 2
# HELP backstop_circuit_state Circuit breaker state: 0 closed, 1 open, 2 half-open.
# TYPE backstop_circuit_state gauge
backstop_circuit_state{policy="sync"} 1
`

	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"backstop_retries_total", "backstop_circuit_state"))
}

func TestHooksPerPolicyLabels(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()

	a := NewHooks(reg, "a")
	b := NewHooks(reg, "b")

	a.OnTimeout()
	b.OnTimeout()
	b.OnTimeout()

	expected := `
# HELP backstop_timeouts_total Calls that exceeded their deadline.
# TYPE backstop_timeouts_total counter
backstop_timeouts_total{policy="a"} 1
backstop_timeouts_total{policy="b"} 2
`

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"backstop_timeouts_total"))
}

func TestNewHooksDuplicatePolicyPanics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()

	NewHooks(reg, "dup")

	assert.Panics(t, func() { NewHooks(reg, "dup") })
}
