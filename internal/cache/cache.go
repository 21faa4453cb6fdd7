// Package cache implements the typed key-value cache every service shares:
// plain get/set/delete, hash maps for the "active" sets (signals, orders,
// order blocks), and sorted sets scored by epoch-ms for candle history.
// Values are JSON-encoded on write and decoded on read; a miss is a nil
// return, not an error.
package cache

import (
	"context"
	"time"
)

// Cache is the key-value store abstraction every service builds on.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get decodes the JSON value stored at key into dst. Returns (false,
	// nil) on a cache miss.
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	// Set JSON-encodes value and stores it at key. ttl of zero means no
	// expiry.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Keys returns every key matching pattern (Redis glob syntax).
	Keys(ctx context.Context, pattern string) ([]string, error)

	// HashSet stores value (JSON-encoded) under field in the hash named
	// name.
	HashSet(ctx context.Context, name, field string, value interface{}) error
	// HashGet decodes the value under field in hash name into dst.
	// Returns (false, nil) on miss.
	HashGet(ctx context.Context, name, field string, dst interface{}) (bool, error)
	// HashDelete removes field from hash name.
	HashDelete(ctx context.Context, name, field string) error
	// HashKeys returns every field name present in hash name.
	HashKeys(ctx context.Context, name string) ([]string, error)

	// SortedSetAdd adds member (JSON-encoded) to the sorted set name with
	// the given score (conventionally epoch-ms).
	SortedSetAdd(ctx context.Context, name string, score float64, member interface{}) error
	// SortedSetRange returns members in name between the given score
	// bounds, inclusive, ascending order.
	SortedSetRange(ctx context.Context, name string, minScore, maxScore float64) ([]string, error)
}
