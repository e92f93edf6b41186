// Package cache keeps time-bounded copies of quest snapshots in a key-value
// store and repopulates them from the source of truth on a miss.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by a KV when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// KV is the key-value store behind the cache. Any method may fail with a
// transient error.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
