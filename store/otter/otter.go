// Package otter provides an adapter for the Otter cache library,
// implementing the backstop.Store interface for use with
// backstop.StaleCache.
package otter

import (
	"time"

	"github.com/maypok86/otter"

	"github.com/byteglow/backstop"
)

// defaultMaxAge bounds retention when the config does not set one; Otter
// requires a TTL on every write.
const defaultMaxAge = 24 * time.Hour

// adapter wraps an otter.CacheWithVariableTTL to implement backstop.Store.
// Entries carry their own write timestamp; Otter only bounds capacity and
// overall retention (MaxAge), while freshness is judged by the StaleCache
// at read time.
type adapter[K comparable, V any] struct {
	cache  otter.CacheWithVariableTTL[K, backstop.Entry[V]]
	maxAge time.Duration
}

// MustNew creates a backstop.Store backed by an Otter cache with per-entry
// TTL support. MaxSize from [backstop.StoreConfig] configures the cache
// capacity; MaxAge bounds retention (default 24h). It panics if the
// underlying Otter cache cannot be built.
//
//nolint:ireturn,varnamelen // generic type params K,V are idiomatic in Go
func MustNew[K comparable, V any](cfg backstop.StoreConfig) backstop.Store[K, V] {
	cache, err := otter.MustBuilder[K, backstop.Entry[V]](cfg.MaxSize).
		WithVariableTTL().
		Build()
	if err != nil {
		panic("backstop/otter: failed to build cache: " + err.Error())
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}

	return &adapter[K, V]{cache: cache, maxAge: maxAge}
}

// Get retrieves a cached entry by key.
func (a *adapter[K, V]) Get(key K) (backstop.Entry[V], bool) {
	return a.cache.Get(key)
}

// Set stores an entry, overwriting any previous one.
func (a *adapter[K, V]) Set(key K, e backstop.Entry[V]) {
	a.cache.Set(key, e, a.maxAge)
}

// Delete removes a cached entry by key.
func (a *adapter[K, V]) Delete(key K) {
	a.cache.Delete(key)
}
