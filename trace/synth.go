package trace

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/util"
)

// ZipfOptions configure a synthetic workload: Requests draws over Objects
// ids with popularity rank^-Alpha, optionally interrupted by scans of
// one-time ids.
type ZipfOptions struct {
	Objects  uint64
	Requests int64
	// Alpha is the skew; 0 is uniform. Any value >= 0 is accepted.
	Alpha float64

	// Object sizes are drawn once per id, uniformly in [MinSize, MaxSize].
	// Zero values mean size 1.
	MinSize, MaxSize int64

	// Every ScanEvery requests a scan of ScanLength never-repeated ids is
	// emitted. Scan requests count towards Requests.
	ScanEvery, ScanLength int64

	Seed uint64
}

func (o ZipfOptions) validate() error {
	switch {
	case o.Objects == 0:
		return fmt.Errorf("zipf: objects must be > 0")
	case o.Requests < 0:
		return fmt.Errorf("zipf: requests must be >= 0")
	case o.Alpha < 0 || math.IsNaN(o.Alpha):
		return fmt.Errorf("zipf: alpha must be >= 0")
	case o.MaxSize < o.MinSize:
		return fmt.Errorf("zipf: max size %d below min size %d", o.MaxSize, o.MinSize)
	case o.ScanEvery < 0 || o.ScanLength < 0:
		return fmt.Errorf("zipf: scan parameters must be >= 0")
	}
	return nil
}

// Zipf generates requests on the fly.
type Zipf struct {
	opt  ZipfOptions
	rng  *rand.Rand
	cdf  []float64
	n    int64
	scan int64 // remaining scan requests
	next uint64
}

var _ Reader = (*Zipf)(nil)

// NewZipf returns a generator for o.
func NewZipf(o ZipfOptions) (*Zipf, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	if o.MinSize <= 0 {
		o.MinSize = 1
	}
	o.MaxSize = max(o.MaxSize, o.MinSize)
	cdf := make([]float64, o.Objects)
	sum := 0.0
	for i := range cdf {
		sum += math.Pow(float64(i+1), -o.Alpha)
		cdf[i] = sum
	}
	for i := range cdf {
		cdf[i] /= sum
	}
	return &Zipf{
		opt:  o,
		rng:  rand.New(rand.NewPCG(o.Seed, o.Seed^0x5851f42d4c957f2d)),
		cdf:  cdf,
		next: o.Objects + 1,
	}, nil
}

func (z *Zipf) size(id uint64) int64 {
	span := uint64(z.opt.MaxSize - z.opt.MinSize + 1)
	return z.opt.MinSize + int64(util.Fnv64a(id^z.opt.Seed)%span)
}

func (z *Zipf) Read(req *cache.Request) error {
	if z.n >= z.opt.Requests {
		return io.EOF
	}
	z.n++
	if z.scan == 0 && z.opt.ScanEvery > 0 && z.n%z.opt.ScanEvery == 0 {
		z.scan = z.opt.ScanLength
	}
	var id uint64
	if z.scan > 0 {
		z.scan--
		id = z.next
		z.next++
	} else {
		u := z.rng.Float64()
		id = uint64(sort.SearchFloat64s(z.cdf, u)) + 1
		id = min(id, z.opt.Objects)
	}
	*req = cache.Request{
		ID:              id,
		Size:            z.size(id),
		ClockTime:       z.n,
		NextAccessVTime: cache.NoLookahead,
	}
	return nil
}

func (z *Zipf) Close() error { return nil }
