// Package cache holds the cache contracts used by services. The redis
// implementation lives in rediscache.
package cache

import (
	"context"
	"time"
)

// Ключи кэша.
const (
	KeyLatestSnapshot = "delaywatch:snapshot:latest"
)

type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Limiter counts hits per key in a fixed window and reports whether the
// limit still holds.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}
