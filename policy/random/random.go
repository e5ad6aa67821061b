// Package random implements sampling-based eviction: Random evicts a
// uniformly chosen object; RandomTwo and RandomLRU sample k objects and
// evict the one with the oldest last access.
//
// All sampling draws from the cache's seeded PRNG, so a fixed Params.Seed
// and a fixed request sequence always evict the same objects.
package random

import "github.com/IvanBrykalov/cachesim/cache"

// Registry names.
const (
	Name       = "Random"
	NameTwo    = "RandomTwo"
	NameLRU    = "RandomLRU"
	maxSamples = 64
)

type sampler struct {
	c        *cache.Cache
	nSamples int
	desc     string

	// victim chosen by ToEvict, reused by the Evict of the same request
	peek      cache.Handle
	peekVTime int64
}

// New constructs a Random cache. Random takes no parameters.
func New(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	return build(Name, p, args, 1)
}

// NewTwo constructs a RandomTwo cache. RandomTwo takes no parameters.
func NewTwo(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	return build(NameTwo, p, args, 2)
}

// NewLRU constructs a RandomLRU cache.
//
// Parameters:
//   - n-samples: objects sampled per eviction, 1..64 (default 16)
func NewLRU(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	n := args.Int("n-samples", 16)
	args.Check(n >= 1 && n <= maxSamples, "n-samples", "must be in [1, 64]")
	return build(NameLRU, p, args, int(n))
}

func build(name string, p cache.Params, args *cache.Args, n int) (*cache.Cache, error) {
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(name, p, func(c *cache.Cache) (cache.Policy, error) {
		return &sampler{c: c, nSamples: n, desc: args.Effective()}, nil
	})
}

func (s *sampler) Find(req *cache.Request, update bool) *cache.Object {
	obj := s.c.Lookup(req, update)
	if update {
		s.peek = 0
	}
	return obj
}

func (s *sampler) Insert(req *cache.Request) *cache.Object {
	s.peek = 0
	return s.c.InsertObject(req)
}

// choose samples nSamples objects and returns the least recently accessed.
func (s *sampler) choose() *cache.Object {
	st := s.c.Store()
	victim := st.Random(s.c.Rand())
	for i := 1; i < s.nSamples && victim != nil; i++ {
		if o := st.Random(s.c.Rand()); o.LastAccessVTime < victim.LastAccessVTime {
			victim = o
		}
	}
	return victim
}

// ToEvict draws the victim and remembers it, so the Evict that follows for
// the same request removes exactly this object.
func (s *sampler) ToEvict(req *cache.Request) *cache.Object {
	if s.peek != 0 && s.peekVTime == req.VTime {
		return s.c.Store().Get(s.peek)
	}
	victim := s.choose()
	if victim != nil {
		s.peek, s.peekVTime = victim.Handle(), req.VTime
	}
	return victim
}

func (s *sampler) Evict(req *cache.Request) {
	victim := s.ToEvict(req)
	cache.Assert(victim != nil, "random evict on an empty cache")
	s.peek = 0
	s.c.RemoveObject(victim)
}

func (s *sampler) Remove(id uint64) bool {
	obj := s.c.Store().Find(id)
	if obj == nil {
		return false
	}
	s.peek = 0
	s.c.RemoveObject(obj)
	return true
}

func (s *sampler) Describe() string { return s.desc }
