// Package cache provides a fast, generic, sharded, weight-bounded
// in-memory cache with pluggable eviction policies (LRU by default),
// per-entry TTL, singleflight loading (both cache-wide via GetOrLoad and
// per-call via GetOrCompute), lightweight metrics hooks, and weight-based
// capacity. It is the engine blockcache.BlockCache is built on: a
// BlockCache stores erased Ref[any] values in one of these caches keyed by
// BlockKey, using GetOrCompute as its block-loading singleton and OnEvict
// as its pack-lifetime coupling hook.
//
// Design
//
//   - Concurrency: the cache is split into shards, each protected by an
//     RWMutex. The default shard count is 2*GOMAXPROCS rounded up to a
//     power of two. Picking shards reduces
//     contention while keeping memory overhead small.
//
//   - Storage: each shard keeps a map[K]*node for lookups and an intrusive
//     MRU↔LRU doubly linked list for ordering. All operations are O(1) expected.
//
//   - Policies: eviction policy is pluggable via the policy package.
//     LRU is the default. A 2Q policy is provided (resists scan pollution).
//     More policies (e.g. WTinyLFU) can be added without changing the shard.
//
//   - TTL: entries can have per-item deadlines (UnixNano). Expiration is lazy
//     on read; trimming a shard to its limits evicts by policy order and
//     does not check deadlines.
//
//   - Weigher/MaxWeight: besides entry count (Capacity), you may account a
//     user-defined weight per value (Options.Weigher) and enforce a global
//     MaxWeight. Shards split the MaxWeight budget evenly. Admission of an
//     entry whose own weight exceeds the shard's share is still permitted;
//     it simply evicts everything else in that shard.
//
//   - GetOrLoad / GetOrCompute: both coalesce concurrent loads for the same
//     key using singleflight. GetOrLoad uses the cache-wide Options.Loader
//     (returns ErrNoLoader if unset); GetOrCompute takes a loader per call,
//     for callers (like blockcache) whose "how to load" varies by key.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals.
//     By default NoopMetrics is used; plug a Prometheus adapter to export metrics.
//
//   - Callbacks: Options.OnEvict(k, v, reason) is called exactly once for
//     every physical removal, including an explicit Remove/Clear (reason
//     is one of EvictPolicy, EvictTTL, EvictCapacity, EvictExplicit).
//
// Basic usage
//
//	// Create an LRU cache with capacity for 10k entries.
//	c := cache.New[string, []byte](cache.Options[string, []byte]{Capacity: 10_000})
//	c.Set("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v // use value
//	}
//	c.Remove("a")
//
// With TTL
//
//	c := cache.New[string, string](cache.Options[string, string]{Capacity: 1024})
//	c.SetWithTTL("tmp", "v", 200*time.Millisecond)
//	time.Sleep(300*time.Millisecond)
//	_, ok := c.Get("tmp") // ok == false (expired)
//
// With GetOrCompute (per-call loader, singleflight)
//
//	c := cache.New[string, string](cache.Options[string, string]{Capacity: 1024})
//	v, err := c.GetOrCompute(ctx, "key", func(ctx context.Context) (string, error) {
//	    return fetch(ctx, "key")
//	})
//
// Using an alternative policy (2Q)
//
//	c := cache.New[string, string](cache.Options[string, string]{
//	    Capacity: 50_000,
//	    Shards:   1, // twoq sizes are per shard
//	    Policy:   twoq.New[string, string](12_500 /* A1in ≈ 25% */, 25_000 /* ghosts */),
//	})
//
// Exporting metrics (example Prometheus adapter)
//
//	m := prom.New(nil, "cachex", "demo", nil) // implements Metrics
//	c := cache.New[string, []byte](cache.Options[string, []byte]{
//	    Capacity: 10_000,
//	    Metrics:  m,
//	})
//
// Thread-safety & complexity
//
// All methods on WeightedCache are safe for concurrent use. Typical
// operation cost is O(1) expected time: one map access and a constant
// amount of pointer fixes. Eviction work is also O(1) per removed item.
//
// See package cache/options.go for all available Options fields and package
// policy for the Policy/Hooks interfaces used to implement custom strategies.
package cache
