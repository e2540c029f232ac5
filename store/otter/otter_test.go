package otter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byteglow/backstop"
)

func TestSetGetRoundTrip(t *testing.T) {
	store := MustNew[string, int](backstop.StoreConfig{MaxSize: 1000})

	written := backstop.Entry[int]{
		Value:     7,
		Timestamp: time.Unix(1700000000, 0),
	}

	store.Set("k", written)

	got, ok := store.Get("k")
	require.True(t, ok)
	assert.Equal(t, written.Value, got.Value)
	assert.True(t, written.Timestamp.Equal(got.Timestamp))
}

func TestGetMiss(t *testing.T) {
	store := MustNew[string, int](backstop.StoreConfig{MaxSize: 1000})

	_, ok := store.Get("never-written")
	assert.False(t, ok)
}

func TestSetOverwrites(t *testing.T) {
	store := MustNew[string, string](backstop.StoreConfig{MaxSize: 1000})

	store.Set("k", backstop.Entry[string]{Value: "v1"})
	store.Set("k", backstop.Entry[string]{Value: "v2"})

	got, ok := store.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v2", got.Value)
}

func TestDelete(t *testing.T) {
	store := MustNew[string, string](backstop.StoreConfig{MaxSize: 1000})

	store.Set("k", backstop.Entry[string]{Value: "v"})
	store.Delete("k")

	_, ok := store.Get("k")
	assert.False(t, ok)
}

func TestMaxAgeEviction(t *testing.T) {
	store := MustNew[string, string](backstop.StoreConfig{
		MaxSize: 1000,
		MaxAge:  50 * time.Millisecond,
	})

	store.Set("k", backstop.Entry[string]{Value: "v", Timestamp: time.Now()})

	_, ok := store.Get("k")
	require.True(t, ok, "entry should be present before MaxAge elapses")

	time.Sleep(100 * time.Millisecond)

	_, ok = store.Get("k")
	assert.False(t, ok, "entry should be evicted after MaxAge")
}

func TestWorksAsStaleCacheBackend(t *testing.T) {
	store := MustNew[string, string](backstop.StoreConfig{MaxSize: 100})
	sc := backstop.NewStaleCache(store, time.Minute)

	got, err := sc.Do(context.Background(), "feed",
		func(_ context.Context, _ string) (string, error) {
			return "fresh", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)

	entry, ok := store.Get("feed")
	require.True(t, ok)
	assert.Equal(t, "fresh", entry.Value)
}
