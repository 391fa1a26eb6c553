package pack

import (
	"sync"

	"github.com/packdfs/blockcache/internal/util"
)

// Registry maintains the two coupled mappings a pack-file factory needs:
// byDescription (the externally stable name to its live handle) and
// byKey (a handle's identity back to that name). At most one non-invalid
// PackFile exists per description at any moment; both maps are updated
// together under a per-description critical section, so a concurrent
// reader of either map never observes one updated without the other.
//
// The registry itself is not a bounded cache: pack handles are cheap,
// and their lifetime is governed entirely by the cached-bytes lifetime
// coupling (DropByKey), not by a size limit of its own.
type Registry[D comparable] struct {
	mu            sync.RWMutex
	byDescription map[D]PackFile[D]
	byKey         map[*Key]D

	locks *util.KeyMutex
}

// NewRegistry constructs an empty Registry.
func NewRegistry[D comparable]() *Registry[D] {
	return &Registry[D]{
		byDescription: make(map[D]PackFile[D]),
		byKey:         make(map[*Key]D),
		locks:         util.NewKeyMutex(),
	}
}

// descHash selects the per-description lock shard. D is typically a
// string, integer, or fmt.Stringer external name; see util.Fnv64a for
// the supported key shapes.
func descHash[D comparable](desc D) uint64 {
	return util.Fnv64a(desc)
}

// GetOrCreate returns the live PackFile for desc, building one with
// factory if none exists yet or the existing one has gone Invalid.
// keyHint, when non-nil, is installed as the new PackFile's Key instead
// of allocating a fresh one — used when a caller wants a pack's identity
// preserved across a cache rebuild.
//
// The check-then-construct-then-install sequence runs inside desc's
// lock shard, so two concurrent GetOrCreate calls for the same desc
// never both construct a PackFile; a losing call simply waits and then
// observes the winner's installed entry instead of building its own.
func (r *Registry[D]) GetOrCreate(desc D, keyHint *Key, factory Factory[D]) (PackFile[D], error) {
	var result PackFile[D]
	var ferr error

	r.locks.With(descHash(desc), func() {
		r.mu.RLock()
		existing, ok := r.byDescription[desc]
		r.mu.RUnlock()
		if ok && !existing.Invalid() {
			result = existing
			return
		}

		key := keyHint
		if key == nil {
			key = newKey()
		}

		pf, err := factory(desc, key)
		if err != nil {
			ferr = err
			return
		}

		r.mu.Lock()
		if ok {
			delete(r.byKey, existing.Key())
		}
		r.byDescription[desc] = pf
		r.byKey[pf.Key()] = desc
		r.mu.Unlock()

		result = pf
	})

	return result, ferr
}

// DropByKey removes the entry whose Key is key, if one still exists,
// closing its PackFile and zeroing its cached-bytes counter. Idempotent:
// dropping a key with no live entry (already removed by a prior call, or
// never installed) is a no-op. This is what makes a lingering eviction
// hook re-entry on an already-removed pack harmless, and what makes
// remove(pack); remove(pack) equivalent to a single remove.
func (r *Registry[D]) DropByKey(key *Key) {
	r.mu.Lock()
	desc, ok := r.byKey[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	pf := r.byDescription[desc]
	delete(r.byKey, key)
	delete(r.byDescription, desc)
	r.mu.Unlock()

	key.ResetCachedBytes()
	if pf != nil {
		_ = pf.Close()
	}
}

// DropByDescription removes the entry for desc, if one still exists,
// closing its PackFile and zeroing its cached-bytes counter.
func (r *Registry[D]) DropByDescription(desc D) {
	r.mu.Lock()
	pf, ok := r.byDescription[desc]
	if !ok {
		r.mu.Unlock()
		return
	}
	key := pf.Key()
	delete(r.byDescription, desc)
	delete(r.byKey, key)
	r.mu.Unlock()

	key.ResetCachedBytes()
	_ = pf.Close()
}

// Lookup returns the live PackFile for desc without constructing one.
func (r *Registry[D]) Lookup(desc D) (PackFile[D], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pf, ok := r.byDescription[desc]
	return pf, ok
}

// Len reports the number of live pack handles.
func (r *Registry[D]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byDescription)
}

// Clear drops every entry, closing each PackFile and zeroing its
// cached-bytes counter, leaving both maps empty.
func (r *Registry[D]) Clear() {
	r.mu.Lock()
	entries := make([]PackFile[D], 0, len(r.byDescription))
	for _, pf := range r.byDescription {
		entries = append(entries, pf)
	}
	r.byDescription = make(map[D]PackFile[D])
	r.byKey = make(map[*Key]D)
	r.mu.Unlock()

	for _, pf := range entries {
		pf.Key().ResetCachedBytes()
		_ = pf.Close()
	}
}
