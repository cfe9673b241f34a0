package cache

import (
	"context"
	"time"

	"github.com/matzehuels/poissonfields/pkg/observability"
)

// Observed wraps a Cache and reports hits, misses and writes to the
// registered [observability.CacheHooks] under a fixed key type.
type Observed struct {
	Cache
	keyType string
}

// NewObserved wraps c. keyType is one of the KeyType constants.
func NewObserved(c Cache, keyType string) *Observed {
	return &Observed{Cache: c, keyType: keyType}
}

// Get forwards to the wrapped cache and records the outcome.
func (o *Observed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, hit, err := o.Cache.Get(ctx, key)
	if err == nil {
		if hit {
			observability.Cache().OnCacheHit(ctx, o.keyType)
		} else {
			observability.Cache().OnCacheMiss(ctx, o.keyType)
		}
	}
	return data, hit, err
}

// Set forwards to the wrapped cache and records the write size.
func (o *Observed) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := o.Cache.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, o.keyType, len(data))
	return nil
}
