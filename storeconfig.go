package backstop

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

type (
	// StoreConfig holds configuration for a cache store instance used by
	// the store adapters (ristretto, otter, redis).
	StoreConfig struct {
		// Options holds adapter-specific settings (e.g. "key_prefix" for
		// the redis adapter).
		Options map[string]any
		// MaxAge bounds how long an entry is retained at all, beyond
		// which backends may evict it entirely. Staleness within MaxAge
		// is still judged by the StaleCache's TTL at read time.
		MaxAge time.Duration
		// MaxSize is the maximum number of entries the store can hold.
		MaxSize int
	}

	storeConfigFile struct {
		Stores map[string]storeConfigJSON `json:"stores"`
	}

	storeConfigJSON struct {
		Options map[string]any `json:"options,omitempty"`
		MaxAge  string         `json:"max_age"`
		MaxSize int            `json:"max_size"`
	}
)

// LoadStoreConfig reads a JSON configuration file and returns the
// StoreConfig for the named store entry.
func LoadStoreConfig(path, name string) (StoreConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StoreConfig{}, fmt.Errorf("backstop: read store config: %w", err)
	}

	var cfg storeConfigFile

	if err = json.Unmarshal(data, &cfg); err != nil {
		return StoreConfig{}, fmt.Errorf("backstop: parse store config: %w", err)
	}

	raw, ok := cfg.Stores[name]
	if !ok {
		return StoreConfig{}, fmt.Errorf(
			"backstop: store %q not found in config",
			name,
		)
	}

	sc := StoreConfig{
		Options: raw.Options,
		MaxSize: raw.MaxSize,
	}

	if raw.MaxAge != "" {
		maxAge, ageErr := time.ParseDuration(raw.MaxAge)
		if ageErr != nil {
			return StoreConfig{}, fmt.Errorf(
				"backstop: store %q: max_age: %w",
				name,
				ageErr,
			)
		}

		sc.MaxAge = maxAge
	}

	return sc, nil
}
