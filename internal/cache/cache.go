package cache

import (
	"context"
	"errors"
	"time"
)

// Cache stores encoded summaries under string keys
type Cache interface {
	// Get returns ErrCacheMiss when the key is absent or expired
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value; a ttl of zero keeps it until deleted
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// DeleteByPattern removes every key matching a Redis-style glob
	DeleteByPattern(ctx context.Context, pattern string) error

	Ping(ctx context.Context) error

	Close() error
}

// ErrCacheMiss is returned when a key is not found in the cache
var ErrCacheMiss = errors.New("cache miss")
