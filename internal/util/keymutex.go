package util

import "sync"

// KeyMutex is a sharded set of mutexes keyed by a 64-bit hash, giving
// per-key critical sections without allocating one lock per key. Two
// different keys that happen to hash into the same shard serialize
// against each other; this is a correctness-preserving (if occasionally
// pessimistic) approximation of a true per-key lock.
//
// Intended for short critical sections guarding "check, maybe construct,
// install" sequences (e.g. a registry's get-or-create path), not for
// holding locks across blocking I/O.
type KeyMutex struct {
	shards []sync.Mutex
	mask   uint64
	pow2   bool
	n      uint64
}

// NewKeyMutex builds a KeyMutex with a practical default shard count
// derived from ReasonableShardCount.
func NewKeyMutex() *KeyMutex {
	return NewKeyMutexSize(ReasonableShardCount())
}

// NewKeyMutexSize builds a KeyMutex with exactly n shards (n < 1 is
// treated as 1).
func NewKeyMutexSize(n int) *KeyMutex {
	if n < 1 {
		n = 1
	}
	km := &KeyMutex{shards: make([]sync.Mutex, n), n: uint64(n)}
	km.pow2 = IsPowerOfTwo(uint64(n))
	km.mask = uint64(n) - 1
	return km
}

func (km *KeyMutex) index(hash uint64) uint64 {
	if km.pow2 {
		return hash & km.mask
	}
	return hash % km.n
}

// Lock acquires the mutex shard for hash.
func (km *KeyMutex) Lock(hash uint64) { km.shards[km.index(hash)].Lock() }

// Unlock releases the mutex shard for hash.
func (km *KeyMutex) Unlock(hash uint64) { km.shards[km.index(hash)].Unlock() }

// With runs fn while holding the critical section for hash.
func (km *KeyMutex) With(hash uint64, fn func()) {
	km.Lock(hash)
	defer km.Unlock(hash)
	fn()
}
