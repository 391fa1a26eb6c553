package cache

import (
	"context"
	"time"
)

// WeightedCache is a sharded, in-memory, weight-bounded key/value cache
// interface. All methods are safe for concurrent use by multiple
// goroutines.
//
// Typical complexity for operations is amortized O(1):
// a map lookup plus constant-time list adjustments under a shard lock.
type WeightedCache[K comparable, V any] interface {
	// Add inserts k→v only if k is not present.
	// It uses the cache's DefaultTTL (if any).
	// Returns false if the key already exists (no update is performed).
	Add(k K, v V) bool

	// Set inserts or updates k→v.
	// It uses the cache's DefaultTTL (if any), and promotes the entry
	// according to the active eviction policy (e.g., LRU).
	Set(k K, v V)

	// Get returns the value for k and a boolean flag indicating presence.
	// On hit, the entry is promoted according to the policy.
	Get(k K) (V, bool)

	// GetIfPresent behaves exactly like Get, including promotion of a hit
	// according to the policy; callers that only care about presence use
	// this name.
	GetIfPresent(k K) (V, bool)

	// Remove deletes k if present and returns true on success. Like a
	// capacity- or TTL-driven removal, Remove fires the eviction hook
	// exactly once (reason EvictExplicit).
	Remove(k K) bool

	// Clear removes every entry, firing the eviction hook once per entry
	// with reason EvictExplicit.
	Clear()

	// Len returns the total number of resident entries across all shards.
	Len() int

	// Close stops background workers (if any) and marks the cache closed.
	// Current implementation is a soft close and returns nil.
	Close() error

	// SetWithTTL inserts or updates k→v with a per-key TTL (relative duration).
	// A non-positive ttl disables expiration for this entry.
	SetWithTTL(k K, v V, ttl time.Duration)

	// GetOrLoad returns the value for k, loading it via Options.Loader on miss.
	// Concurrent loads for the same key are coalesced (singleflight).
	// If no Loader was configured, returns ErrNoLoader.
	GetOrLoad(ctx context.Context, k K) (V, error)

	// GetOrCompute is GetOrLoad with a per-call loader instead of the
	// cache-wide Options.Loader. Concurrent callers racing on the same
	// missing key still coalesce onto a single loader invocation. If
	// loader returns an error, nothing is admitted into the cache.
	GetOrCompute(ctx context.Context, k K, loader func(context.Context) (V, error)) (V, error)
}
