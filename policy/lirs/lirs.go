// Package lirs implements the LIRS (Low Inter-reference Recency Set)
// replacement policy.
//
// Objects are LIR (hot, always resident) or HIR (resident or not). Stack S
// orders recently seen objects, LIR and HIR alike, by recency; queue Q
// holds the resident HIR objects in eviction order. An HIR object hit while
// still in S has a shorter reuse distance than the oldest LIR object, so
// the two swap status. S is pruned so that its bottom is always LIR.
//
// Non-resident HIR entries stay in S until pruned; they are also kept on a
// FIFO bounded by the cache size so history cannot grow without limit.
package lirs

import (
	"github.com/IvanBrykalov/cachesim/cache"
)

// Name is the registry name of the policy.
const Name = "LIRS"

// Object.Seg values.
const (
	lir int32 = iota + 1
	hirResident
	hirGhost
)

// LIRS is exported for its invariant check.
type LIRS struct {
	c *cache.Cache

	s      cache.List // primary links, head = most recent
	q      cache.List // aux links, resident HIR, head = newest
	ghosts cache.List // aux links, non-resident HIR, head = newest

	lirLimit  int64
	lirBytes  int64
	hirBytes  int64
	nResident int64
	desc      string

	nGhostHit int64
	nPromote  int64
	nDemote   int64
}

var (
	_ cache.Policy = (*LIRS)(nil)
	_ cache.Sizer  = (*LIRS)(nil)
)

// New constructs a LIRS cache.
//
// Parameters:
//   - hir-ratio: share of capacity for resident HIR objects (default 0.01)
func New(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	ratio := args.Float("hir-ratio", 0.01)
	args.Check(ratio > 0 && ratio < 1, "hir-ratio", "must be in (0, 1)")
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(Name, p, func(c *cache.Cache) (cache.Policy, error) {
		hir := max(int64(float64(c.Capacity())*ratio), 1)
		return &LIRS{
			c:        c,
			s:        cache.NewList(),
			q:        cache.NewAuxList(),
			ghosts:   cache.NewAuxList(),
			lirLimit: max(c.Capacity()-hir, 1),
			desc:     args.Effective(),
		}, nil
	})
}

func (l *LIRS) charge(obj *cache.Object) int64 { return obj.Size + l.c.Overhead() }

func (l *LIRS) Find(req *cache.Request, update bool) *cache.Object {
	st := l.c.Store()
	if !update {
		obj := st.Find(req.ID)
		if obj == nil || obj.Seg == hirGhost {
			return nil
		}
		return obj
	}

	obj := l.c.Lookup(req, true)
	if obj == nil {
		return nil
	}
	switch obj.Seg {
	case lir:
		l.s.MoveToFront(st, obj)
		l.prune()
	case hirResident:
		if l.s.Linked(obj) {
			l.q.Remove(st, obj)
			l.hirBytes -= l.charge(obj)
			obj.Seg = lir
			l.lirBytes += l.charge(obj)
			l.s.MoveToFront(st, obj)
			l.nPromote++
			l.shrinkLIR()
		} else {
			l.s.PushFront(st, obj)
			l.q.MoveToFront(st, obj)
		}
	case hirGhost:
		l.nGhostHit++
		return nil
	}
	return obj
}

// Insert admits a new object. An id still in S as a non-resident HIR entry
// has a short reuse distance and comes back as LIR.
func (l *LIRS) Insert(req *cache.Request) *cache.Object {
	st := l.c.Store()
	hot := false
	if g := st.Find(req.ID); g != nil {
		cache.Assert(g.Seg == hirGhost, "LIRS insert of a resident object")
		hot = l.s.Linked(g)
		l.forget(g)
	}

	obj := l.c.InsertObject(req)
	l.nResident++
	l.s.PushFront(st, obj)
	switch {
	case hot || l.lirBytes+l.charge(obj) <= l.lirLimit:
		obj.Seg = lir
		l.lirBytes += l.charge(obj)
		l.shrinkLIR()
	default:
		obj.Seg = hirResident
		l.hirBytes += l.charge(obj)
		l.q.PushFront(st, obj)
	}
	l.prune()
	return obj
}

// shrinkLIR demotes bottom LIR objects to resident HIR until the LIR set
// fits its budget.
func (l *LIRS) shrinkLIR() {
	st := l.c.Store()
	for l.lirBytes > l.lirLimit {
		l.prune()
		l.demote(l.s.Tail(st))
	}
	l.prune()
}

func (l *LIRS) demote(obj *cache.Object) {
	st := l.c.Store()
	cache.Assert(obj != nil && obj.Seg == lir, "LIRS stack bottom is not LIR")
	l.s.Remove(st, obj)
	obj.Seg = hirResident
	l.lirBytes -= l.charge(obj)
	l.hirBytes += l.charge(obj)
	l.q.PushFront(st, obj)
	l.nDemote++
}

// prune pops HIR entries off the bottom of S; non-resident ones are
// forgotten.
func (l *LIRS) prune() {
	st := l.c.Store()
	for obj := l.s.Tail(st); obj != nil && obj.Seg != lir; obj = l.s.Tail(st) {
		if obj.Seg == hirGhost {
			l.forget(obj)
			continue
		}
		l.s.Remove(st, obj)
	}
}

// forget drops a non-resident entry completely.
func (l *LIRS) forget(obj *cache.Object) {
	st := l.c.Store()
	if l.s.Linked(obj) {
		l.s.Remove(st, obj)
	}
	l.ghosts.Remove(st, obj)
	l.c.RemoveObject(obj)
}

func (l *LIRS) ToEvict(*cache.Request) *cache.Object {
	st := l.c.Store()
	if obj := l.q.Tail(st); obj != nil {
		return obj
	}
	return l.s.Tail(st)
}

// Evict drops the oldest resident HIR object. When Q is empty the bottom
// LIR object is demoted first.
func (l *LIRS) Evict(*cache.Request) {
	st := l.c.Store()
	if l.q.Len() == 0 {
		l.demote(l.s.Tail(st))
		l.prune()
	}
	obj := l.q.Tail(st)
	cache.Assert(obj != nil, "LIRS evict on an empty cache")
	l.q.Remove(st, obj)
	l.hirBytes -= l.charge(obj)
	l.nResident--

	if !l.s.Linked(obj) {
		l.c.RemoveObject(obj)
		return
	}
	obj.Seg = hirGhost
	l.ghosts.PushFront(st, obj)
	for l.ghosts.Bytes() > l.c.Capacity() {
		l.forget(l.ghosts.Tail(st))
	}
	l.prune()
}

func (l *LIRS) Remove(id uint64) bool {
	st := l.c.Store()
	obj := st.Find(id)
	if obj == nil {
		return false
	}
	switch obj.Seg {
	case hirGhost:
		l.forget(obj)
		return false
	case lir:
		l.lirBytes -= l.charge(obj)
	case hirResident:
		l.hirBytes -= l.charge(obj)
		l.q.Remove(st, obj)
	}
	if l.s.Linked(obj) {
		l.s.Remove(st, obj)
	}
	l.nResident--
	l.c.RemoveObject(obj)
	l.prune()
	return true
}

// CheckStack reports whether the bottom of S is LIR (or S is empty).
func (l *LIRS) CheckStack() bool {
	obj := l.s.Tail(l.c.Store())
	return obj == nil || obj.Seg == lir
}

// IsLIR reports whether id is a resident LIR object.
func (l *LIRS) IsLIR(id uint64) bool {
	obj := l.c.Store().Find(id)
	return obj != nil && obj.Seg == lir
}

func (l *LIRS) OccupiedBytes() int64 { return l.lirBytes + l.hirBytes }
func (l *LIRS) ObjectCount() int64   { return l.nResident }
func (l *LIRS) Describe() string     { return l.desc }

func (l *LIRS) Counters() map[string]int64 {
	return map[string]int64{
		"n_ghost_hit": l.nGhostHit,
		"n_promote":   l.nPromote,
		"n_demote":    l.nDemote,
		"lir_bytes":   l.lirBytes,
		"hir_bytes":   l.hirBytes,
	}
}
