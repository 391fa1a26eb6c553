package blockcache

import "sync/atomic"

// Instance is the process-wide holder's view of an active BlockCache[D]
// for whichever D a process chose: just enough surface (CleanUp) for
// Replace to tear down the outgoing cache without needing to know D.
type Instance interface {
	CleanUp()
}

var current atomic.Pointer[Instance]

// Current returns the process-wide active cache, or nil if none has
// been installed yet. The read is lock-free.
func Current() Instance {
	p := current.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Replace atomically installs next as the process-wide active cache and
// tears down the previous one, if any, by calling its CleanUp. Callers
// parameterize over a single D for the process and are responsible for
// installing the first instance at startup — the holder itself has no
// default configuration to fall back on, since D is caller-defined.
func Replace(next Instance) {
	old := current.Swap(&next)
	if old != nil && *old != nil {
		(*old).CleanUp()
	}
}
