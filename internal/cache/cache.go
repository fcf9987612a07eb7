// Package cache stores provider responses between runs.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Cache is a TTL key-value cache with msgpack-encoded values.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

func marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func unmarshal(data []byte, dest any) error { return msgpack.Unmarshal(data, dest) }
