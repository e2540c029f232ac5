// Package redis provides a durable adapter backed by Redis, implementing
// the backstop.Store interface for use with backstop.StaleCache. Entries
// survive process restarts, so a freshly started instance can serve
// last-known-good data while its upstream is down.
package redis

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/byteglow/backstop"
)

// Store is a backstop.Store[string, V] backed by a Redis client. Values are
// JSON-encoded together with their write timestamp. Redis errors surface as
// cache misses: the stale cache treats an unreachable store the same as an
// empty one.
type Store[V any] struct {
	client redis.UniversalClient
	ctx    context.Context
	prefix string
	maxAge time.Duration
}

// wireEntry is the JSON encoding of a backstop.Entry.
type wireEntry[V any] struct {
	Value     V     `json:"value"`
	Timestamp int64 `json:"ts"` // unix nanoseconds
}

// New creates a Redis-backed store. Keys are namespaced with prefix.
// MaxAge from cfg becomes the Redis key expiration (0 means no expiration);
// freshness within MaxAge is still judged by the StaleCache's TTL. The
// "key_prefix" option in cfg.Options overrides prefix when set.
func New[V any](ctx context.Context, client redis.UniversalClient, prefix string, cfg backstop.StoreConfig) *Store[V] {
	if p, ok := cfg.Options["key_prefix"].(string); ok && p != "" {
		prefix = p
	}

	return &Store[V]{
		client: client,
		ctx:    ctx,
		prefix: prefix,
		maxAge: cfg.MaxAge,
	}
}

// Get retrieves a cached entry by key.
func (s *Store[V]) Get(key string) (backstop.Entry[V], bool) {
	var zero backstop.Entry[V]

	data, err := s.client.Get(s.ctx, s.prefix+key).Bytes()
	if err != nil {
		return zero, false
	}

	var we wireEntry[V]
	if err := json.Unmarshal(data, &we); err != nil {
		return zero, false
	}

	return backstop.Entry[V]{
		Value:     we.Value,
		Timestamp: time.Unix(0, we.Timestamp),
	}, true
}

// Set stores an entry, overwriting any previous one. Write failures are
// dropped: caching is best-effort and must never fail the caller's
// success path.
func (s *Store[V]) Set(key string, e backstop.Entry[V]) {
	data, err := json.Marshal(wireEntry[V]{
		Value:     e.Value,
		Timestamp: e.Timestamp.UnixNano(),
	})
	if err != nil {
		return
	}

	s.client.Set(s.ctx, s.prefix+key, data, s.maxAge)
}

// Delete removes a cached entry by key.
func (s *Store[V]) Delete(key string) {
	s.client.Del(s.ctx, s.prefix+key)
}
