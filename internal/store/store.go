package store

import (
	"context"
	"fmt"
	"time"

	"bulletsmith/internal/errors"
)

// Store is a key-value store with optional per-entry TTL. A zero TTL means
// the entry never expires. Get reports a clean miss as (nil, false, nil);
// a non-nil error means the backend itself failed, which callers may treat
// as a degraded cache rather than a job failure.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted in configuration
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Options selects and configures a backend
type Options struct {
	Backend string
	Dir     string       // file backend: directory holding one file per entry
	Redis   RedisOptions // redis backend connection settings
}

// Open creates the store named by opts.Backend. An empty backend name means
// in-memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemory(), nil
	case BackendFile:
		return NewFile(opts.Dir)
	case BackendRedis:
		return NewRedis(ctx, opts.Redis)
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported store backend: %s", opts.Backend), nil)
	}
}
