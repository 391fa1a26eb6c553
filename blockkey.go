package blockcache

import (
	"encoding/binary"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/packdfs/blockcache/pack"
)

// BlockKey is the composite identity of a cached entry: a pack's Key
// together with a position. Position >= 0 addresses a pack-data block;
// position < 0 addresses an index-artifact slot — the sign bit
// discriminates the two kinds of payload sharing one cache.
type BlockKey struct {
	key *pack.Key
	pos int64
}

// NewBlockKey builds the identity for a block or index-artifact slot.
func NewBlockKey(key *pack.Key, pos int64) BlockKey {
	return BlockKey{key: key, pos: pos}
}

// Key returns the pack identity half of the composite key.
func (b BlockKey) Key() *pack.Key { return b.key }

// Position returns the position half; negative denotes an index artifact.
func (b BlockKey) Position() int64 { return b.pos }

// IsIndexArtifact reports whether this key addresses an index-artifact
// slot rather than a pack-data block.
func (b BlockKey) IsIndexArtifact() bool { return b.pos < 0 }

// Hash combines the pack key's sharding hash with the position via
// xxhash, over the key's fixed 12-byte shape.
func (b BlockKey) Hash() uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:4], b.key.Hash())
	binary.LittleEndian.PutUint64(buf[4:12], uint64(b.pos))
	return xxhash.Sum64(buf[:])
}

// String renders Hash as a compact base-36 string. cache.WeightedCache's
// generic key hasher only special-cases a handful of built-in shapes
// plus fmt.Stringer for everything else; this lets BlockKey shard
// through that existing path using the xxhash-derived identity above
// rather than adding a one-off hasher option to the cache package.
func (b BlockKey) String() string {
	return strconv.FormatUint(b.Hash(), 36)
}
