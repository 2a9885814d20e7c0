// Short-lived cache for data that is expensive to refetch from the session,
// mainly group rosters. Values are stored as JSON strings with a fixed TTL;
// callers must tolerate stale reads within the TTL.
package cachestore

import (
	"context"
)

type CacheStore interface {
	// Get returns the cached value, or "" on a miss.
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}
