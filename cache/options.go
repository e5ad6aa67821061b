package cache

import (
	"go.uber.org/zap"

	"github.com/IvanBrykalov/cachesim/internal/util"
)

// DefaultObjectOverhead is charged per object when TrackMetadata is set and
// ObjectOverhead is zero.
const DefaultObjectOverhead = 48

// DefaultHashPower sizes the id index of a new cache (1<<16 entries).
const DefaultHashPower = 16

// Params are the settings shared by every policy. Zero values are safe;
// defaults are applied in New():
//   - HashPower <= 0  => DefaultHashPower
//   - nil Logger      => zap.NewNop()
//   - nil Metrics     => NoopMetrics
type Params struct {
	// Capacity is the cache size in bytes. Must be > 0.
	Capacity int64

	// DefaultTTL in seconds for requests that carry none (0 = no TTL).
	DefaultTTL int64

	// HashPower is log2 of the initial id index size.
	HashPower int

	// TrackMetadata charges ObjectOverhead bytes against Capacity for every
	// resident object.
	TrackMetadata  bool
	ObjectOverhead int64

	// Seed drives the cache's private PRNG. Equal seeds give equal runs.
	Seed uint64

	Logger  *zap.Logger
	Metrics Metrics
}

func (p Params) withDefaults() Params {
	if p.HashPower <= 0 {
		p.HashPower = DefaultHashPower
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Metrics == nil {
		p.Metrics = NoopMetrics{}
	}
	if p.TrackMetadata && p.ObjectOverhead <= 0 {
		p.ObjectOverhead = DefaultObjectOverhead
	}
	return p
}

func (p Params) overhead() int64 {
	if !p.TrackMetadata {
		return 0
	}
	return p.ObjectOverhead
}

// Sub derives the parameters of an inner cache named role with the given
// capacity. Inner caches log under role, report no metrics and get their
// own PRNG stream.
func (p Params) Sub(role string, capacity int64) Params {
	q := p
	q.Capacity = max(capacity, 1)
	q.Metrics = nil
	q.Seed = p.Seed ^ util.Fnv64a(role)
	if p.Logger != nil {
		q.Logger = p.Logger.Named(role)
	}
	return q
}

// Ghost derives the parameters of a history cache: like Sub, but no
// per-object overhead is charged since only ids are tracked.
func (p Params) Ghost(role string, capacity int64) Params {
	q := p.Sub(role, capacity)
	q.TrackMetadata = false
	q.ObjectOverhead = 0
	return q
}
