package storage

import (
	"context"
	"time"
)

// Storage defines the interface for the cache file store
type Storage interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) (int, error)
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, prefix string, limit int) ([]string, error)

	// Lifecycle
	Checkpoint(ctx context.Context, path string) error
	Restore(ctx context.Context, path string) error
	Close() error
}
