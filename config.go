package blockcache

import (
	"fmt"
	"log/slog"

	"github.com/packdfs/blockcache/cache"
	"github.com/packdfs/blockcache/policy"
)

// ConfigError reports a configuration validation failure raised at
// construction time. Construction returns this error rather than
// panicking, since the offending values are typically caller-supplied
// numbers from outside the process (unlike cache.WeightedCache's
// Options, which is a library-internal construction path and keeps the
// teacher's panic-on-misuse convention).
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("blockcache: invalid %s: %s", e.Field, e.Msg)
}

// Config holds the validated parameters a BlockCache is built from.
type Config struct {
	// BlockSize is the native block size; must be a power of two >= 512.
	BlockSize int64

	// MaxBytes is the maximum total cache weight in bytes; must be > 0.
	MaxBytes int64

	// StreamRatio gates ShouldStreamThrough: a payload of length <=
	// MaxBytes*StreamRatio is small enough to read through the cache;
	// larger payloads should stream directly. Must be within [0, 1].
	StreamRatio float64

	// Shards, Policy, Metrics, and Clock are passed straight through to
	// the underlying cache.WeightedCache.
	Shards  int
	Policy  policy.Policy[BlockKey, Ref[any]]
	Metrics cache.Metrics
	Clock   cache.Clock

	// Logger receives the stale-entry invalidation (debug) and stale-retry
	// exhaustion (error) log lines this package emits; nil => slog.Default().
	Logger *slog.Logger
}

func (c Config) validate() error {
	if c.BlockSize < 512 || !isPow2(c.BlockSize) {
		return &ConfigError{Field: "BlockSize", Msg: "must be a power of two >= 512"}
	}
	if c.MaxBytes <= 0 {
		return &ConfigError{Field: "MaxBytes", Msg: "must be > 0"}
	}
	if c.StreamRatio < 0 || c.StreamRatio > 1 {
		return &ConfigError{Field: "StreamRatio", Msg: "must be within [0, 1]"}
	}
	return nil
}

func isPow2(x int64) bool { return x > 0 && x&(x-1) == 0 }

// capacityHint derives a generous entry-count cap for the underlying
// cache.WeightedCache (which requires Capacity > 0 independent of weight
// limiting) from the configured byte budget and block size.
func capacityHint(maxBytes, blockSize int64) int {
	n := int(maxBytes/blockSize) + 64
	if n < 64 {
		n = 64
	}
	return n
}
