// Package cache stores raw bytes fetched during acquisition so repeated runs
// against the same search results don't hit the network twice.
//
// Only transport-level data is cached: search result lists and downloaded
// image bytes. Candidate sets, layouts and canvases are never persisted; a
// collage run starts from scratch every time.
//
// Backends:
//   - [FileCache]: one JSON file per entry under ~/.cache/poissonfields/ (CLI default)
//   - [RedisCache]: shared cache for the HTTP server and multiple workers
//   - [NullCache]: caching disabled
package cache

import (
	"context"
	"time"
)

// Default time-to-live per entry kind.
const (
	// TTLSearch bounds how long a term's search results are reused.
	TTLSearch = 24 * time.Hour

	// TTLAsset bounds how long downloaded image bytes are reused.
	TTLAsset = 7 * 24 * time.Hour
)

// Key types reported to observability hooks.
const (
	KeyTypeSearch = "search"
	KeyTypeAsset  = "asset"
)

// Cache is a byte store with per-entry expiration.
//
// Get returns (nil, false, nil) on a miss. Implementations must be safe for
// concurrent use: the candidate pool fetches assets in parallel.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
