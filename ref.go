package blockcache

import "github.com/packdfs/blockcache/pack"

// fixedOverhead approximates the bookkeeping cost of an entry (key plus
// cache/list node headers) that a pure payload-size weigher would miss.
const fixedOverhead = 60

// Ref wraps a cached payload together with the identity and weight
// metadata the block cache needs to enforce its invariants: which pack
// it belongs to, its position, and its eviction weight. Immutable after
// construction.
type Ref[T any] struct {
	key   *pack.Key
	pos   int64
	size  int64
	value T
}

func newRef[T any](key *pack.Key, pos int64, size int64, value T) Ref[T] {
	return Ref[T]{key: key, pos: pos, size: size, value: value}
}

// Key returns the owning pack's identity token.
func (r Ref[T]) Key() *pack.Key { return r.key }

// Position returns the block or index-artifact position this Ref was
// stored at.
func (r Ref[T]) Position() int64 { return r.pos }

// Size is the eviction weight of the wrapped payload, in bytes, not
// counting the cache's own fixed per-entry overhead.
func (r Ref[T]) Size() int64 { return r.size }

// Value returns the wrapped payload.
func (r Ref[T]) Value() T { return r.value }

// weigher is the cache.Options.Weigher for the Ref[any]-valued block
// cache: fixed overhead plus the payload's reported size.
func weigher(r Ref[any]) int64 {
	return fixedOverhead + r.size
}
