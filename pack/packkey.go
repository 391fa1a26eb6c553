// Package pack holds the external collaborator contracts (PackFile,
// Block, Reader) and the pack-file registry: the mapping from a stable
// external description to the single live handle the block cache reads
// through, plus the identity token (Key) that handle's cached blocks
// carry.
package pack

import (
	"math/rand"
	"sync/atomic"
)

// Key is the internal identity token allocated the first time a
// description is registered with a Registry. Two Keys are equal iff
// they are the same allocation: comparison is always by pointer
// identity, never by value, so a Key is only ever handed out as *Key.
type Key struct {
	hash uint32

	cachedBytes atomic.Int64
}

// newKey allocates a fresh Key. hash seeds BlockKey sharding and needs
// only to be well distributed, not globally unique or secret.
func newKey() *Key {
	return &Key{hash: rand.Uint32()}
}

// Hash returns the key's sharding hash, fixed at allocation.
func (k *Key) Hash() uint32 { return k.hash }

// CachedBytes returns the sum of sizes of all blocks currently resident
// in the block cache under this key. It is only guaranteed accurate at
// quiescence: it may transiently overshoot during admission or
// undershoot during eviction.
func (k *Key) CachedBytes() int64 { return k.cachedBytes.Load() }

// AddCachedBytes adjusts the counter by delta (positive on block
// admission, negative on block eviction) and returns the updated value.
func (k *Key) AddCachedBytes(delta int64) int64 { return k.cachedBytes.Add(delta) }

// ResetCachedBytes zeroes the counter. Called when the owning PackFile
// is dropped from the registry: Refs for the superseded key are left to
// be reclaimed by ordinary cache eviction rather than proactively
// invalidated (a deliberate cheap-remove, lazy-cleanup trade-off).
func (k *Key) ResetCachedBytes() { k.cachedBytes.Store(0) }
