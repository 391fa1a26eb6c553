// Package blockcache provides a content-addressed block cache sitting
// in front of a pack-file-based object store. It memoizes both
// fixed-size, aligned blocks of pack data and opaque index artifacts
// under one weight budget, acts as the factory for the per-description
// pack handle, and couples eviction of a pack's last cached block (or
// any index artifact) to closing that handle.
package blockcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/packdfs/blockcache/cache"
	"github.com/packdfs/blockcache/pack"
)

// maxStaleRetries bounds GetOrLoad's retry loop. The algorithm should
// converge within two iterations under normal operation (the retry sees
// the pack's current identity); a third miss in a row means something
// keeps reporting cached blocks as stale and is treated as fatal rather
// than risking a livelock.
const maxStaleRetries = 2

// ErrStaleRetryExhausted is returned by GetOrLoad when a loaded block
// fails its own contains() check more than maxStaleRetries times in a
// row for the same request.
var ErrStaleRetryExhausted = errors.New("blockcache: exceeded stale-retry bound")

// BlockCache is the facade: get_or_create_pack, get_or_load, put, get,
// contains, remove, clean_up, and should_stream_through, parameterized
// over D, the caller's pack-description type.
type BlockCache[D comparable] struct {
	cfg      Config
	registry *pack.Registry[D]
	factory  pack.Factory[D]
	blocks   cache.WeightedCache[BlockKey, Ref[any]]
	logger   *slog.Logger
}

// New validates cfg and constructs a BlockCache. factory is invoked by
// GetOrCreatePack to build a fresh pack.PackFile[D] whenever the
// registry needs one: construction of the actual handle is the caller's
// concern, not the cache's.
func New[D comparable](cfg Config, factory pack.Factory[D]) (*BlockCache[D], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, &ConfigError{Field: "factory", Msg: "must not be nil"}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bc := &BlockCache[D]{
		cfg:      cfg,
		registry: pack.NewRegistry[D](),
		factory:  factory,
		logger:   logger,
	}

	bc.blocks = cache.New[BlockKey, Ref[any]](cache.Options[BlockKey, Ref[any]]{
		Capacity:  capacityHint(cfg.MaxBytes, cfg.BlockSize),
		Shards:    cfg.Shards,
		Policy:    cfg.Policy,
		Weigher:   weigher,
		MaxWeight: cfg.MaxBytes,
		Metrics:   cfg.Metrics,
		Clock:     cfg.Clock,
		OnEvict:   bc.onEvict,
	})

	return bc, nil
}

// onEvict is the lifetime-coupling hook: evicting an index artifact
// evicts its pack outright; evicting a block debits the pack's
// cached-bytes counter and evicts the pack once that counter reaches
// zero. It must tolerate re-entry (another goroutine may be evicting a
// sibling entry concurrently) and must be idempotent against a racing
// explicit Remove — both are satisfied by Registry.DropByKey itself
// being idempotent.
func (bc *BlockCache[D]) onEvict(k BlockKey, ref Ref[any], _ cache.EvictReason) {
	if k.IsIndexArtifact() {
		bc.registry.DropByKey(k.Key())
		return
	}
	if remaining := k.Key().AddCachedBytes(-ref.Size()); remaining <= 0 {
		bc.registry.DropByKey(k.Key())
	}
}

// ShouldStreamThrough reports whether a payload of length bytes is
// small enough to be read and cached normally, as opposed to being
// streamed directly without going through the cache.
func (bc *BlockCache[D]) ShouldStreamThrough(length int64) bool {
	threshold := float64(bc.cfg.MaxBytes) * bc.cfg.StreamRatio
	return float64(length) <= threshold
}

// BlockSize returns the configured native block size.
func (bc *BlockCache[D]) BlockSize() int64 { return bc.cfg.BlockSize }

// GetOrCreatePack returns the live PackFile for desc, building one via
// the configured factory if none exists yet or the existing one has
// gone invalid. keyHint, when non-nil, preserves a specific pack's
// identity across a cache rebuild instead of allocating a fresh Key.
func (bc *BlockCache[D]) GetOrCreatePack(desc D, keyHint *pack.Key) (pack.PackFile[D], error) {
	return bc.registry.GetOrCreate(desc, keyHint, bc.factory)
}

// GetOrLoad returns the Block covering pos, aligned to the pack's block
// boundary, loading it through reader on a miss. Concurrent callers for
// the same block coalesce onto one pf.ReadOneBlock invocation. If the
// cached entry fails its own staleness check (the pack was re-opened
// under conditions the payload itself detects), the entry is invalidated
// and the load retried, bounded by maxStaleRetries.
func (bc *BlockCache[D]) GetOrLoad(ctx context.Context, pf pack.PackFile[D], pos int64, reader pack.Reader) (pack.Block, error) {
	requested := pos
	key := pf.Key()

	for attempt := 0; ; attempt++ {
		if attempt > maxStaleRetries {
			bc.logger.Error("blockcache: stale-retry bound exceeded", "position", requested)
			return nil, ErrStaleRetryExhausted
		}

		aligned := pf.AlignToBlock(requested)
		bk := NewBlockKey(key, aligned)

		ref, err := bc.blocks.GetOrCompute(ctx, bk, func(ctx context.Context) (Ref[any], error) {
			blk, err := pf.ReadOneBlock(aligned, reader)
			if err != nil {
				return Ref[any]{}, err
			}
			key.AddCachedBytes(blk.Size())
			return newRef[any](key, aligned, blk.Size(), blk), nil
		})
		if err != nil {
			return nil, fmt.Errorf("blockcache: read block at %d: %w", aligned, err)
		}

		blk, _ := ref.Value().(pack.Block)
		if blk != nil && blk.Contains(key, aligned) {
			return blk, nil
		}

		bc.logger.Debug("blockcache: stale block, invalidating and retrying", "position", aligned, "attempt", attempt)
		bc.blocks.Remove(bk)
	}
}

// Put inserts value at (key, pos) with the given weight, replacing any
// existing entry there. pos >= 0 credits size to key's cached-bytes
// counter (debiting any size it replaces first); pos < 0 (an index
// artifact) never touches the counter.
func (bc *BlockCache[D]) Put(key *pack.Key, pos int64, size int64, value any) Ref[any] {
	bk := NewBlockKey(key, pos)
	if !bk.IsIndexArtifact() {
		if old, ok := bc.blocks.GetIfPresent(bk); ok {
			key.AddCachedBytes(-old.Size())
		}
		key.AddCachedBytes(size)
	}
	ref := newRef[any](key, pos, size, value)
	bc.blocks.Set(bk, ref)
	return ref
}

// Get returns the payload cached at (key, pos), if any.
func (bc *BlockCache[D]) Get(key *pack.Key, pos int64) (any, bool) {
	ref, ok := bc.blocks.GetIfPresent(NewBlockKey(key, pos))
	if !ok {
		return nil, false
	}
	return ref.Value(), true
}

// Contains reports whether (key, pos) is currently cached.
func (bc *BlockCache[D]) Contains(key *pack.Key, pos int64) bool {
	_, ok := bc.blocks.GetIfPresent(NewBlockKey(key, pos))
	return ok
}

// Remove drops pf from the registry, closes it, and zeroes its cached
// bytes. Idempotent: removing an already-removed PackFile is a no-op.
// Cached Refs for pf's Key are not proactively invalidated; they are
// left for ordinary eviction to reclaim.
func (bc *BlockCache[D]) Remove(pf pack.PackFile[D]) {
	bc.registry.DropByKey(pf.Key())
}

// CleanUp clears every cached block and index artifact and drops every
// registered pack, closing each one.
func (bc *BlockCache[D]) CleanUp() {
	bc.blocks.Clear()
	bc.registry.Clear()
}
