package store

import (
	"context"
	"time"

	"bulletsmith/internal/errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis, for deployments where several
// replicas must share one cache.
type RedisStore struct {
	client *redis.Client
}

// RedisOptions configures the redis backend connection
type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// NewRedis connects to the Redis instance named by opts.Addr and verifies
// the connection with a ping.
func NewRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"Redis address is required", nil)
	}

	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.NewNetworkError(errors.ErrCodeStoreUnavailable,
			"Redis is unreachable", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewNetworkError(errors.ErrCodeStoreUnavailable,
			"Redis get failed", err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.NewNetworkError(errors.ErrCodeStoreUnavailable,
			"Redis set failed", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.NewNetworkError(errors.ErrCodeStoreUnavailable,
			"Redis delete failed", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
