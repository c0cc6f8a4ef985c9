// Package cache stores short-lived admin sessions and armed commands.
package cache

import (
	"context"
	"time"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string)
	// Take returns the value and removes it in one step; a second Take of
	// the same key misses.
	Take(ctx context.Context, key string) ([]byte, bool)
}
