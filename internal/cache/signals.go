package cache

import (
	"context"
	"encoding/json"
	"time"

	"bulletsmith/internal/errors"
	"bulletsmith/internal/store"
	"bulletsmith/internal/types"
)

// SignalKeyPrefix namespaces signal entries in the shared store
const SignalKeyPrefix = "jd_signals:"

// DefaultSignalTTL bounds how long extracted signals stay valid
const DefaultSignalTTL = 24 * time.Hour

// SignalCache maps description hashes to previously extracted Signals.
// Backend failures never propagate to the caller: reads degrade to a miss
// and writes are dropped, both with a logged warning.
type SignalCache struct {
	store  store.Store
	ttl    time.Duration
	logger *errors.Logger
}

// NewSignalCache wraps a store with the signal-entry contract. A ttl of zero
// falls back to DefaultSignalTTL.
func NewSignalCache(s store.Store, ttl time.Duration, logger *errors.Logger) *SignalCache {
	if ttl <= 0 {
		ttl = DefaultSignalTTL
	}
	return &SignalCache{store: s, ttl: ttl, logger: logger}
}

// Get returns the cached signals for a description hash. ok is false on a
// miss, a corrupt entry, or a degraded backend.
func (c *SignalCache) Get(ctx context.Context, descriptionHash string) (types.Signals, bool) {
	var signals types.Signals
	if c == nil || c.store == nil {
		return signals, false
	}

	data, ok, err := c.store.Get(ctx, SignalKeyPrefix+descriptionHash)
	if err != nil {
		c.warn("Signal cache read failed, treating as miss", err, descriptionHash)
		return signals, false
	}
	if !ok {
		return signals, false
	}

	if err := json.Unmarshal(data, &signals); err != nil {
		c.warn("Signal cache entry is corrupt, treating as miss", err, descriptionHash)
		return types.Signals{}, false
	}
	return signals, true
}

// Set stores signals under a description hash with the configured TTL.
// Failures are logged and the write is dropped.
func (c *SignalCache) Set(ctx context.Context, descriptionHash string, signals types.Signals) {
	if c == nil || c.store == nil {
		return
	}

	data, err := json.Marshal(signals)
	if err != nil {
		c.warn("Signal cache encode failed, result not cached", err, descriptionHash)
		return
	}
	if err := c.store.Set(ctx, SignalKeyPrefix+descriptionHash, data, c.ttl); err != nil {
		c.warn("Signal cache write failed, result not cached", err, descriptionHash)
	}
}

func (c *SignalCache) warn(msg string, err error, descriptionHash string) {
	if c.logger != nil {
		c.logger.Warn(msg, "error", err.Error(), "description_hash", descriptionHash)
	}
}
