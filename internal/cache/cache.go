// Package cache provides the key/value store with per-entry TTLs that backs
// the grid-based issue cache. Entries are derived state: losing them never
// loses information, only performance.
package cache

import (
	"context"
	"errors"
)

// ErrNotFound indicates the key is absent or its TTL has elapsed.
var ErrNotFound = errors.New("cache: key not found")

// Store is the contract the grid cache consumes. Values are opaque bytes;
// callers own serialization (JSON-encoded id lists and issue summaries).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}
