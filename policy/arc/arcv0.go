package arc

import (
	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/policy/lru"
)

// NameV0 is the registry name of the sub-cache variant.
const NameV0 = "ARCv0"

// arcV0 is ARC over four LRU caches. History caches hold ids only and are
// sized 2c so that the T1+B1 <= c and total <= 2c trims are the only bound.
type arcV0 struct {
	c              *cache.Cache
	t1, t2, b1, b2 *cache.Cache
	p              float64
	route          cache.Routing

	nGhost1Hit int64
	nGhost2Hit int64
}

// NewV0 constructs an ARCv0 cache. ARCv0 takes no parameters.
func NewV0(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(NameV0, p, func(c *cache.Cache) (cache.Policy, error) {
		cp, capacity := c.Params(), c.Capacity()
		a := &arcV0{c: c}
		var err error
		if a.t1, err = lru.New(cp.Sub("t1", capacity), nil); err != nil {
			return nil, err
		}
		if a.t2, err = lru.New(cp.Sub("t2", capacity), nil); err != nil {
			return nil, err
		}
		if a.b1, err = lru.New(cp.Ghost("b1", 2*capacity), nil); err != nil {
			return nil, err
		}
		if a.b2, err = lru.New(cp.Ghost("b2", 2*capacity), nil); err != nil {
			return nil, err
		}
		return a, nil
	})
}

func (a *arcV0) Find(req *cache.Request, update bool) *cache.Object {
	if !update {
		if obj := a.t1.Find(req, false); obj != nil {
			return obj
		}
		return a.t2.Find(req, false)
	}

	a.route.Reset()
	if obj := a.t1.Find(req, true); obj != nil {
		moved := *req
		obj.CopyTo(&moved)
		a.t1.Remove(obj.ID)
		return a.t2.Insert(&moved)
	}
	if obj := a.t2.Find(req, true); obj != nil {
		return obj
	}
	if g := a.b1.Find(req, false); g != nil {
		a.nGhost1Hit++
		delta := ratio(a.b2.OccupiedBytes(), a.b1.OccupiedBytes()) * float64(g.Size)
		a.p = min(a.p+delta, float64(a.c.Capacity()))
		a.route.Set(req, cache.RouteGhost1)
		return nil
	}
	if g := a.b2.Find(req, false); g != nil {
		a.nGhost2Hit++
		delta := ratio(a.b1.OccupiedBytes(), a.b2.OccupiedBytes()) * float64(g.Size)
		a.p = max(a.p-delta, 0)
		a.route.Set(req, cache.RouteGhost2)
	}
	return nil
}

func (a *arcV0) Insert(req *cache.Request) *cache.Object {
	seen := a.route.Take(req) != cache.RouteMiss
	// Evictions for this request may already have pushed the entry out.
	if a.b1.Remove(req.ID) || a.b2.Remove(req.ID) {
		seen = true
	}
	var obj *cache.Object
	if seen {
		obj = a.t2.Insert(req)
	} else {
		obj = a.t1.Insert(req)
	}
	a.trimHistory(req)
	return obj
}

func (a *arcV0) source(req *cache.Request) (from, ghost *cache.Cache) {
	t1 := float64(a.t1.OccupiedBytes())
	if a.t1.ObjectCount() > 0 && (a.t2.ObjectCount() == 0 || t1 > a.p ||
		(t1 == a.p && a.route.Peek(req) == cache.RouteGhost2)) {
		return a.t1, a.b1
	}
	return a.t2, a.b2
}

func (a *arcV0) ToEvict(req *cache.Request) *cache.Object {
	from, _ := a.source(req)
	return from.ToEvict(req)
}

func (a *arcV0) Evict(req *cache.Request) {
	from, ghost := a.source(req)
	victim := from.ToEvict(req)
	cache.Assert(victim != nil, "ARCv0 evict on an empty cache")
	g := cache.Request{ClockTime: req.ClockTime, VTime: req.VTime}
	victim.CopyTo(&g)
	from.Remove(victim.ID)
	ghost.Admit(&g)
	a.trimHistory(req)
}

func (a *arcV0) trimHistory(req *cache.Request) {
	capacity := a.c.Capacity()
	for a.b1.ObjectCount() > 0 && a.t1.OccupiedBytes()+a.b1.OccupiedBytes() > capacity {
		a.b1.Evict(req)
	}
	for a.b2.ObjectCount() > 0 &&
		a.t1.OccupiedBytes()+a.t2.OccupiedBytes()+a.b1.OccupiedBytes()+a.b2.OccupiedBytes() > 2*capacity {
		a.b2.Evict(req)
	}
}

func (a *arcV0) Remove(id uint64) bool {
	a.b1.Remove(id)
	a.b2.Remove(id)
	return a.t1.Remove(id) || a.t2.Remove(id)
}

func (a *arcV0) OccupiedBytes() int64 { return a.t1.OccupiedBytes() + a.t2.OccupiedBytes() }
func (a *arcV0) ObjectCount() int64   { return a.t1.ObjectCount() + a.t2.ObjectCount() }

func (a *arcV0) SubCaches() []*cache.Cache { return []*cache.Cache{a.t1, a.t2} }

func (a *arcV0) Counters() map[string]int64 {
	return map[string]int64{
		"n_ghost1_hit": a.nGhost1Hit,
		"n_ghost2_hit": a.nGhost2Hit,
		"p_bytes":      int64(a.p),
	}
}

func (a *arcV0) Close() error {
	for _, sub := range []*cache.Cache{a.t1, a.t2, a.b1, a.b2} {
		if err := sub.Close(); err != nil {
			return err
		}
	}
	return nil
}

// P returns the current target size of T1 in bytes.
func (a *arcV0) P() float64 { return a.p }
