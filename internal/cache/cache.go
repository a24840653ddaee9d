// Package cache provides the byte-level key/value store that sits in front of
// the discount store.
package cache

import (
	"context"
	"time"
)

// Cache is a TTL key/value store. A missing or expired key is reported as
// found == false with a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
