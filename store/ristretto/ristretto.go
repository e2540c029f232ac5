// Package ristretto provides an adapter for the Ristretto cache library,
// implementing the backstop.Store interface for use with
// backstop.StaleCache.
package ristretto

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/byteglow/backstop"
)

type (
	// Key is the subset of ristretto.Key types that are also comparable,
	// required by the backstop.Store interface.
	Key interface {
		uint64 | string | byte | int | int32 | uint32 | int64
	}

	// adapter wraps a ristretto.Cache to implement backstop.Store. Entries
	// carry their own write timestamp; Ristretto only bounds capacity and
	// overall retention (MaxAge), while freshness is judged by the
	// StaleCache at read time.
	adapter[K Key, V any] struct {
		cache *ristretto.Cache[K, backstop.Entry[V]]
		// maxAge bounds retention; 0 means retain until evicted.
		maxAge time.Duration
	}
)

// MustNew creates a backstop.Store backed by a Ristretto cache. K must
// satisfy [Key] (comparable subset of ristretto key types). MaxSize from
// [backstop.StoreConfig] configures the cache capacity; Ristretto
// recommends NumCounters = 10 * MaxSize. It panics if the underlying
// Ristretto cache cannot be built.
//
//nolint:ireturn,varnamelen // generic type params K,V are idiomatic in Go
func MustNew[K Key, V any](cfg backstop.StoreConfig) backstop.Store[K, V] {
	//nolint:mnd // Ristretto recommends 10x max size for num counters and
	// 64 buffer items.
	cache, err := ristretto.NewCache(&ristretto.Config[K, backstop.Entry[V]]{
		NumCounters: int64(cfg.MaxSize) * 10,
		MaxCost:     int64(cfg.MaxSize),
		BufferItems: 64,
	})
	if err != nil {
		panic("backstop/ristretto: failed to build cache: " + err.Error())
	}

	return &adapter[K, V]{cache: cache, maxAge: cfg.MaxAge}
}

// Get retrieves a cached entry by key.
func (a *adapter[K, V]) Get(key K) (backstop.Entry[V], bool) {
	return a.cache.Get(key)
}

// Set stores an entry, overwriting any previous one. Writes are buffered by
// Ristretto and become visible shortly after Set returns.
func (a *adapter[K, V]) Set(key K, e backstop.Entry[V]) {
	if a.maxAge > 0 {
		a.cache.SetWithTTL(key, e, 1, a.maxAge)
		return
	}

	a.cache.Set(key, e, 1)
}

// Delete removes a cached entry by key.
func (a *adapter[K, V]) Delete(key K) {
	a.cache.Del(key)
}

// Wait blocks until buffered writes have been applied. Useful in tests and
// read-your-write situations.
func (a *adapter[K, V]) Wait() {
	a.cache.Wait()
}
