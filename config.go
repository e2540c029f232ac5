package backstop

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

type (
	// configFile is the top-level JSON structure.
	configFile struct {
		Policies map[string]PolicyConfig `json:"policies"`
	}

	// PolicyConfig holds the decoded configuration for a single recovery
	// policy. Export it to embed in your own app config structs for JSON
	// or YAML unmarshaling, then call [BuildOptions] to obtain functional
	// options for [NewPolicy].
	PolicyConfig struct {
		// CircuitBreaker configures the circuit breaker pattern.
		// Optional. Example: {"failure_threshold": 5}.
		CircuitBreaker *BreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
		// Retry configures the retry pattern.
		// Optional. Example: {"max_retries": 3, "initial_delay": "1s"}.
		Retry *RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
		// StaleCache configures the stale-cache fallback.
		// Optional. Example: {"ttl": "5m"}.
		StaleCache *StaleCacheConfig `json:"stale_cache,omitempty" yaml:"stale_cache,omitempty"`
		// Timeout is the maximum duration for a single attempt.
		// Optional. Parsed via time.ParseDuration. Example: "2s".
		Timeout *string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	}

	// BreakerConfig holds circuit breaker configuration values. Embed it
	// (via [PolicyConfig]) in your own config struct for JSON or YAML
	// unmarshaling.
	BreakerConfig struct {
		// ResetTimeout is the duration the breaker stays open.
		// Optional. Parsed via time.ParseDuration. Example: "60s".
		ResetTimeout *string `json:"reset_timeout,omitempty" yaml:"reset_timeout,omitempty"`
		// TimeWindow is the sliding window for counting failures.
		// Optional. Parsed via time.ParseDuration. Example: "60s".
		TimeWindow *string `json:"time_window,omitempty" yaml:"time_window,omitempty"`
		// FailureThreshold is the number of windowed failures before
		// opening. Optional. Example: 5.
		FailureThreshold *int `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
		// SuccessThreshold is the consecutive half-open successes needed
		// to close. Optional. Example: 2.
		SuccessThreshold *int `json:"success_threshold,omitempty" yaml:"success_threshold,omitempty"`
	}

	// RetryConfig holds retry configuration values. Embed it (via
	// [PolicyConfig]) in your own config struct for JSON or YAML
	// unmarshaling.
	RetryConfig struct {
		// InitialDelay is the backoff before the second attempt.
		// Required. Parsed via time.ParseDuration. Example: "1s".
		InitialDelay *string `json:"initial_delay,omitempty" yaml:"initial_delay,omitempty"`
		// MaxDelay caps the backoff delay.
		// Optional. Parsed via time.ParseDuration. Example: "30s".
		MaxDelay *string `json:"max_delay,omitempty" yaml:"max_delay,omitempty"`
		// Multiplier scales the delay between retries. Optional,
		// default 2. Example: 2.
		Multiplier *float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
		// JitterFactor perturbs each delay, in [0,1]. Optional,
		// default 0.1.
		JitterFactor *float64 `json:"jitter_factor,omitempty" yaml:"jitter_factor,omitempty"`
		// MaxRetries is the maximum number of re-attempts. Required.
		// Example: 3.
		MaxRetries *int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	}

	// StaleCacheConfig holds stale-cache configuration values.
	StaleCacheConfig struct {
		// TTL is how long an entry counts as fresh. Required. Parsed via
		// time.ParseDuration. Example: "5m".
		TTL *string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
		// UseStaleOnError controls serving entries older than TTL on
		// failure. Optional, default true.
		UseStaleOnError *bool `json:"use_stale_on_error,omitempty" yaml:"use_stale_on_error,omitempty"`
	}
)

// LoadConfig reads a JSON configuration file and stores the policy
// configurations in a [Registry]. Actual [Policy] instances are not created
// until [GetPolicy] is called, allowing the caller to provide type
// parameters and additional code-level options.
//
// Duration values (timeout, reset_timeout, time_window, initial_delay,
// max_delay, ttl) are parsed using [time.ParseDuration].
func LoadConfig(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("backstop: read config: %w", err)
	}

	var cfg configFile
	if err = json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("backstop: parse config: %w", err)
	}

	// Validate all policies eagerly so errors surface at load time.
	for name, pc := range cfg.Policies {
		if _, buildErr := BuildOptions(&pc); buildErr != nil {
			return nil, fmt.Errorf("backstop: policy %q: %w", name, buildErr)
		}
	}

	reg := NewRegistry()
	reg.mu.Lock()
	reg.configs = cfg.Policies
	reg.mu.Unlock()

	return reg, nil
}

// BuildOptions converts a [PolicyConfig] into a slice of functional option
// values suitable for [NewPolicy]. Use this when you embed [PolicyConfig]
// in your own config struct and want to build a policy without going
// through [LoadConfig].
func BuildOptions(pc *PolicyConfig) ([]any, error) {
	var opts []any

	if pc.Timeout != nil {
		d, err := time.ParseDuration(*pc.Timeout)
		if err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}

		opts = append(opts, WithTimeout(d))
	}

	if pc.CircuitBreaker != nil {
		cbOpts, err := buildBreakerOptions(pc.CircuitBreaker)
		if err != nil {
			return nil, err
		}

		opts = append(opts, WithCircuitBreaker(cbOpts...))
	}

	if pc.Retry != nil {
		params, err := buildRetryParams(pc.Retry)
		if err != nil {
			return nil, err
		}

		opts = append(opts, WithRetry(params))
	}

	if pc.StaleCache != nil {
		if pc.StaleCache.TTL == nil {
			return nil, fmt.Errorf("stale_cache: ttl is required")
		}

		ttl, err := time.ParseDuration(*pc.StaleCache.TTL)
		if err != nil {
			return nil, fmt.Errorf("stale_cache.ttl: %w", err)
		}

		if pc.StaleCache.UseStaleOnError != nil && !*pc.StaleCache.UseStaleOnError {
			opts = append(opts, staleCacheDesc{ttl: ttl, fresh: true})
		} else {
			opts = append(opts, WithStaleCache(ttl))
		}
	}

	return opts, nil
}

func buildBreakerOptions(bc *BreakerConfig) ([]CircuitBreakerOption, error) {
	var cbOpts []CircuitBreakerOption

	if bc.FailureThreshold != nil {
		cbOpts = append(cbOpts, FailureThreshold(*bc.FailureThreshold))
	}

	if bc.SuccessThreshold != nil {
		cbOpts = append(cbOpts, SuccessThreshold(*bc.SuccessThreshold))
	}

	if bc.ResetTimeout != nil {
		d, err := time.ParseDuration(*bc.ResetTimeout)
		if err != nil {
			return nil, fmt.Errorf("circuit_breaker.reset_timeout: %w", err)
		}

		cbOpts = append(cbOpts, ResetTimeout(d))
	}

	if bc.TimeWindow != nil {
		d, err := time.ParseDuration(*bc.TimeWindow)
		if err != nil {
			return nil, fmt.Errorf("circuit_breaker.time_window: %w", err)
		}

		cbOpts = append(cbOpts, TimeWindow(d))
	}

	return cbOpts, nil
}

func buildRetryParams(rc *RetryConfig) (RetryParams, error) {
	params := DefaultRetryParams()

	if rc.MaxRetries != nil {
		params.MaxRetries = *rc.MaxRetries
	}

	if rc.InitialDelay != nil {
		d, err := time.ParseDuration(*rc.InitialDelay)
		if err != nil {
			return RetryParams{}, fmt.Errorf("retry.initial_delay: %w", err)
		}

		params.InitialDelay = d
	}

	if rc.MaxDelay != nil {
		d, err := time.ParseDuration(*rc.MaxDelay)
		if err != nil {
			return RetryParams{}, fmt.Errorf("retry.max_delay: %w", err)
		}

		params.MaxDelay = d
	}

	if rc.Multiplier != nil {
		params.Multiplier = *rc.Multiplier
	}

	if rc.JitterFactor != nil {
		params.JitterFactor = *rc.JitterFactor
	}

	return params, nil
}

// GetPolicy retrieves a named policy configuration from a config-loaded
// [Registry] and returns a typed [Policy] ready for use with [Policy.Do].
// If the name is not found in the stored configs, a bare policy is created
// with only the provided opts.
//
// Additional options can be provided to augment or override the
// config-loaded settings (e.g., adding hooks, a handler, or fallbacks).
// User-provided options are applied after config options, so they take
// precedence.
func GetPolicy[T any](reg *Registry, name string, opts ...any) *Policy[T] {
	reg.mu.Lock()
	pc, ok := reg.configs[name]
	reg.mu.Unlock()

	var allOpts []any

	allOpts = append(allOpts, WithRegistry(reg))

	if ok {
		configOpts, err := BuildOptions(&pc)
		if err == nil {
			allOpts = append(allOpts, configOpts...)
		}
	}

	// User opts come last so they can override config values.
	allOpts = append(allOpts, opts...)

	return NewPolicy[T](name, allOpts...)
}
