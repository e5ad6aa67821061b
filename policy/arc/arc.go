// Package arc implements the Adaptive Replacement Cache and two variants.
//
// ARC keeps two resident LRU lists, T1 (seen once recently) and T2 (seen at
// least twice), and two history lists of evicted ids, B1 and B2. A hit in
// B1 means T1 was too small, so the target size p of T1 grows; a hit in B2
// shrinks it. Eviction takes the LRU end of T1 when T1 is above p and of
// T2 otherwise.
//
// ARC keeps all four lists in one store, history entries included; ARCv0
// builds the same thing from four LRU sub-caches. LP_ARC is ARC with lazy
// promotion: a hit only marks the object, and the move to T2 happens when
// the eviction hand reaches it.
package arc

import (
	"github.com/IvanBrykalov/cachesim/cache"
)

// Registry names.
const (
	Name   = "ARC"
	NameLP = "LP_ARC"
)

// Object.Seg values.
const (
	inT1 int32 = iota + 1
	inT2
	inB1
	inB2
)

// Object.Flags bit set by a hit under lazy promotion.
const referenced uint32 = 1

// ARC is exported so callers can observe the adaptation target.
type ARC struct {
	c    *cache.Cache
	name string
	lazy bool

	t1, t2, b1, b2 cache.List // head = MRU
	p              float64    // target bytes of T1
	route          cache.Routing

	nGhost1Hit   int64
	nGhost2Hit   int64
	nLazyPromote int64
}

var (
	_ cache.Policy        = (*ARC)(nil)
	_ cache.Sizer         = (*ARC)(nil)
	_ cache.CounterSource = (*ARC)(nil)
	_ cache.Verifier      = (*ARC)(nil)
)

// New constructs an ARC cache. ARC takes no parameters.
func New(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	return build(Name, p, args, false)
}

// NewLP constructs an LP_ARC cache. LP_ARC takes no parameters.
func NewLP(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	return build(NameLP, p, args, true)
}

func build(name string, p cache.Params, args *cache.Args, lazy bool) (*cache.Cache, error) {
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(name, p, func(c *cache.Cache) (cache.Policy, error) {
		return &ARC{
			c:    c,
			name: name,
			lazy: lazy,
			t1:   cache.NewList(),
			t2:   cache.NewList(),
			b1:   cache.NewList(),
			b2:   cache.NewList(),
		}, nil
	})
}

// P returns the current target size of T1 in bytes.
func (a *ARC) P() float64 { return a.p }

func resident(obj *cache.Object) bool { return obj.Seg == inT1 || obj.Seg == inT2 }

func (a *ARC) list(seg int32) *cache.List {
	switch seg {
	case inT1:
		return &a.t1
	case inT2:
		return &a.t2
	case inB1:
		return &a.b1
	case inB2:
		return &a.b2
	}
	panic("arc: object in no list")
}

// ratio is max(x/y, 1), the ARC adaptation step per byte.
func ratio(x, y int64) float64 {
	if y <= 0 || x <= y {
		return 1
	}
	return float64(x) / float64(y)
}

func (a *ARC) Find(req *cache.Request, update bool) *cache.Object {
	s := a.c.Store()
	if !update {
		obj := s.Find(req.ID)
		if obj == nil || !resident(obj) {
			return nil
		}
		return obj
	}

	a.route.Reset()
	obj := a.c.Lookup(req, true)
	if obj == nil {
		return nil
	}
	switch obj.Seg {
	case inT1:
		if a.lazy {
			obj.Flags |= referenced
			break
		}
		a.t1.Remove(s, obj)
		obj.Seg = inT2
		a.t2.PushFront(s, obj)
	case inT2:
		if a.lazy {
			obj.Flags |= referenced
			break
		}
		a.t2.MoveToFront(s, obj)
	case inB1:
		a.nGhost1Hit++
		delta := ratio(a.b2.Bytes(), a.b1.Bytes()) * float64(obj.Size)
		a.p = min(a.p+delta, float64(a.c.Capacity()))
		a.route.Set(req, cache.RouteGhost1)
		return nil
	case inB2:
		a.nGhost2Hit++
		delta := ratio(a.b1.Bytes(), a.b2.Bytes()) * float64(obj.Size)
		a.p = max(a.p-delta, 0)
		a.route.Set(req, cache.RouteGhost2)
		return nil
	}
	return obj
}

// Insert admits req into T1, or into T2 when its id is remembered by a
// history list.
func (a *ARC) Insert(req *cache.Request) *cache.Object {
	s := a.c.Store()
	// The evictions for this request may have trimmed the history entry
	// Find saw; the route still remembers it.
	seen := a.route.Take(req) != cache.RouteMiss
	if g := s.Find(req.ID); g != nil {
		cache.Assert(!resident(g), "ARC insert of a resident object")
		a.drop(g)
		seen = true
	}

	obj := a.c.InsertObject(req)
	if seen {
		obj.Seg = inT2
		a.t2.PushFront(s, obj)
	} else {
		obj.Seg = inT1
		a.t1.PushFront(s, obj)
	}
	a.trimHistory()
	return obj
}

// victims picks the resident list the next eviction comes from.
func (a *ARC) victims(req *cache.Request) *cache.List {
	t1 := float64(a.t1.Bytes())
	if a.t1.Len() > 0 && (a.t2.Len() == 0 || t1 > a.p ||
		(t1 == a.p && a.route.Peek(req) == cache.RouteGhost2)) {
		return &a.t1
	}
	return &a.t2
}

func (a *ARC) ToEvict(req *cache.Request) *cache.Object {
	if a.lazy {
		cache.Unsupported(a.name, "ToEvict")
	}
	return a.victims(req).Tail(a.c.Store())
}

func (a *ARC) Evict(req *cache.Request) {
	s := a.c.Store()
	for {
		l := a.victims(req)
		obj := l.Tail(s)
		cache.Assert(obj != nil, "ARC evict on an empty cache")
		if obj.Flags&referenced == 0 {
			a.demote(obj)
			return
		}
		obj.Flags &^= referenced
		a.nLazyPromote++
		l.Remove(s, obj)
		obj.Seg = inT2
		a.t2.PushFront(s, obj)
	}
}

// demote turns a resident object into a history entry.
func (a *ARC) demote(obj *cache.Object) {
	s := a.c.Store()
	a.list(obj.Seg).Remove(s, obj)
	obj.Flags = 0
	if obj.Seg == inT1 {
		obj.Seg = inB1
		a.b1.PushFront(s, obj)
	} else {
		obj.Seg = inB2
		a.b2.PushFront(s, obj)
	}
	a.trimHistory()
}

// trimHistory bounds the lists to T1+B1 <= c and T1+T2+B1+B2 <= 2c.
func (a *ARC) trimHistory() {
	s := a.c.Store()
	capacity := a.c.Capacity()
	for a.b1.Len() > 0 && a.t1.Bytes()+a.b1.Bytes() > capacity {
		a.drop(a.b1.Tail(s))
	}
	for a.b2.Len() > 0 && a.t1.Bytes()+a.t2.Bytes()+a.b1.Bytes()+a.b2.Bytes() > 2*capacity {
		a.drop(a.b2.Tail(s))
	}
}

func (a *ARC) drop(obj *cache.Object) {
	a.list(obj.Seg).Remove(a.c.Store(), obj)
	a.c.RemoveObject(obj)
}

// Remove drops id from the cache and from the history lists. It reports
// whether id was resident.
func (a *ARC) Remove(id uint64) bool {
	obj := a.c.Store().Find(id)
	if obj == nil {
		return false
	}
	was := resident(obj)
	a.drop(obj)
	return was
}

func (a *ARC) OccupiedBytes() int64 {
	return a.t1.Bytes() + a.t2.Bytes() + a.c.Overhead()*int64(a.t1.Len()+a.t2.Len())
}

func (a *ARC) ObjectCount() int64 { return int64(a.t1.Len() + a.t2.Len()) }

// Verify checks that every object in the store sits in exactly one of the
// four lists.
func (a *ARC) Verify() {
	s := a.c.Store()
	n := 0
	for _, l := range []*cache.List{&a.t1, &a.t2, &a.b1, &a.b2} {
		l.Verify(s)
		n += l.Len()
	}
	cache.Assertf(n == s.Len(), "%s: lists hold %d objects, store %d", a.name, n, s.Len())
}

func (a *ARC) Counters() map[string]int64 {
	m := map[string]int64{
		"n_ghost1_hit": a.nGhost1Hit,
		"n_ghost2_hit": a.nGhost2Hit,
		"p_bytes":      int64(a.p),
		"t1_bytes":     a.t1.Bytes(),
		"t2_bytes":     a.t2.Bytes(),
	}
	if a.lazy {
		m["n_lazy_promote"] = a.nLazyPromote
	}
	return m
}
