package cache

// EvictReason explains why an object left the cache.
type EvictReason int

const (
	// EvictPolicy: chosen by the eviction policy.
	EvictPolicy EvictReason = iota
	// EvictTTL: expired, found on lookup.
	EvictTTL
	// EvictRemove: explicit Remove by the caller.
	EvictRemove
)

// Metrics exposes cache-level observability hooks. Only the top-level
// cache reports; inner caches of composite policies get NoopMetrics.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(objects int64, bytes int64)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is the default when no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()              {}
func (NoopMetrics) Miss()             {}
func (NoopMetrics) Evict(EvictReason) {}
func (NoopMetrics) Size(int64, int64) {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}
