package backstop

import (
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// ReadinessStatus — result of checking all registered policies
// ---------------------------------------------------------------------------.

type (
	// ReadinessStatus is the result of checking all registered policies.
	ReadinessStatus struct {
		Policies []PolicyStatus `json:"policies"`
		Ready    bool           `json:"ready"`
	}

	// Registry tracks HealthReporter instances and derives readiness
	// status. It also holds config-loaded policy definitions until
	// [GetPolicy] materialises them with a concrete type parameter.
	//
	// Pattern: Singleton — DefaultRegistry uses sync.OnceValue for safe
	// lazy init; explicit registries can be created for testing or
	// multi-tenant scenarios.
	Registry struct {
		reporters atomic.Pointer[[]HealthReporter]
		configs   map[string]PolicyConfig
		mu        sync.Mutex
	}
)

//nolint:gochecknoglobals // singleton via sync.OnceValue
var defaultRegistry = sync.OnceValue(NewRegistry)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}

	var empty []HealthReporter

	r.reporters.Store(&empty)

	return r
}

// Register adds a HealthReporter to the registry. This is typically called
// during startup by NewPolicy. It is safe for concurrent use but intended
// for initialization only.
func (r *Registry) Register(hr HealthReporter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.reporters.Load()
	// Copy-on-write so concurrent readers never see a mutating slice.
	updated := make([]HealthReporter, len(old), len(old)+1)
	copy(updated, old)
	updated = append(updated, hr)
	r.reporters.Store(&updated)
}

// CheckReadiness iterates all registered reporters and builds a
// ReadinessStatus. Ready is false if any policy has CriticalityCritical and
// is unhealthy.
func (r *Registry) CheckReadiness() ReadinessStatus {
	reporters := *r.reporters.Load()

	status := ReadinessStatus{
		Ready:    true,
		Policies: make([]PolicyStatus, 0, len(reporters)),
	}

	for _, hr := range reporters {
		ps := hr.HealthStatus()
		status.Policies = append(status.Policies, ps)

		if ps.Criticality == CriticalityCritical && !ps.Healthy {
			status.Ready = false
		}
	}

	return status
}

// DefaultRegistry returns the package-level global registry, creating it on
// first call.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}
