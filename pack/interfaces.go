package pack

// Reader is an opaque I/O context threaded through to PackFile's
// ReadOneBlock. Neither the registry nor the block cache inspects it;
// it exists purely to be handed back to the external collaborator.
type Reader = any

// Block is the opaque payload for pack data held in the block cache.
type Block interface {
	// Size reports the eviction weight of the block, in bytes.
	Size() int64
	// Contains reports whether this block satisfies a lookup for
	// (key, pos). It must hold for any Block returned from a
	// successful load, and is how the cache detects entries left
	// stale by a pack having been re-opened under a new Key.
	Contains(key *Key, pos int64) bool
}

// PackFile is the external collaborator the registry holds one live
// instance of per description D. The cache drives pack I/O only through
// this contract; the on-disk format and the actual block reads are
// outside its scope.
type PackFile[D comparable] interface {
	// ReadOneBlock performs the actual block I/O at pos using reader.
	ReadOneBlock(pos int64, reader Reader) (Block, error)
	// AlignToBlock rounds pos down to a multiple of the file's native
	// block size, which must divide the cache's configured block size.
	AlignToBlock(pos int64) int64
	// Key returns this pack's identity token.
	Key() *Key
	// Description returns the external name this file was opened for.
	Description() D
	// Invalid reports whether this handle has been superseded (e.g. by
	// a concurrent re-open) and must no longer be returned from
	// Registry.GetOrCreate.
	Invalid() bool
	// Close releases any OS-level resources held by the handle.
	Close() error
}

// Factory constructs a fresh PackFile for desc once the registry has
// allocated, or been handed, the Key it should carry.
type Factory[D comparable] func(desc D, key *Key) (PackFile[D], error)
