package cache

import (
	"context"
	"encoding/json"
	"time"

	"bulletsmith/internal/errors"
	"bulletsmith/internal/store"
	"bulletsmith/internal/types"
)

// ResultKeyPrefix namespaces idempotency entries in the shared store
const ResultKeyPrefix = "job_result:"

// ResultStore persists completed JobOutputs under their idempotency key so
// that identical inputs are served from cache instead of being reprocessed.
// Like the signal cache it degrades on backend failure: idempotency is an
// optimization, never a correctness requirement.
type ResultStore struct {
	store  store.Store
	ttl    time.Duration // zero means cached results never expire
	logger *errors.Logger
}

// NewResultStore wraps a store with the idempotency-entry contract
func NewResultStore(s store.Store, ttl time.Duration, logger *errors.Logger) *ResultStore {
	return &ResultStore{store: s, ttl: ttl, logger: logger}
}

// Get returns the cached output for an idempotency key. ok is false on a
// miss, a corrupt entry, or a degraded backend.
func (r *ResultStore) Get(ctx context.Context, key string) (types.JobOutput, bool) {
	var output types.JobOutput
	if r == nil || r.store == nil {
		return output, false
	}

	data, ok, err := r.store.Get(ctx, ResultKeyPrefix+key)
	if err != nil {
		r.warn("Idempotency read failed, treating as miss", err, key)
		return output, false
	}
	if !ok {
		return output, false
	}

	if err := json.Unmarshal(data, &output); err != nil {
		r.warn("Idempotency entry is corrupt, treating as miss", err, key)
		return types.JobOutput{}, false
	}
	return output, true
}

// Set stores a completed output under its idempotency key. Failures are
// logged and the write is dropped.
func (r *ResultStore) Set(ctx context.Context, key string, output types.JobOutput) {
	if r == nil || r.store == nil {
		return
	}

	data, err := json.Marshal(output)
	if err != nil {
		r.warn("Idempotency encode failed, result not cached", err, key)
		return
	}
	if err := r.store.Set(ctx, ResultKeyPrefix+key, data, r.ttl); err != nil {
		r.warn("Idempotency write failed, result not cached", err, key)
	}
}

func (r *ResultStore) warn(msg string, err error, key string) {
	if r.logger != nil {
		r.logger.Warn(msg, "error", err.Error(), "idempotency_key", key)
	}
}
