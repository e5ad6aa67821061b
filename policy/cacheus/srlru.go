package cacheus

import (
	"github.com/IvanBrykalov/cachesim/cache"
)

// NameSRLRU is the registry name of SR-LRU.
const NameSRLRU = "SR-LRU"

// SRLRU is exported so callers can observe the SR target.
type SRLRU struct {
	c     *cache.Cache
	lists srLists
	hist  cache.List // evicted ids, head = newest

	histCap int64
	desc    string
	route   cache.Routing

	nGhostHit   int64
	nDemotedHit int64
}

var (
	_ cache.Policy        = (*SRLRU)(nil)
	_ cache.Sizer         = (*SRLRU)(nil)
	_ cache.CounterSource = (*SRLRU)(nil)
	_ cache.Verifier      = (*SRLRU)(nil)
)

// NewSRLRU constructs an SR-LRU cache.
//
// Parameters:
//   - sr-size-ratio:      initial SR target as a share of capacity (default 0.5)
//   - history-size-ratio: bytes of evicted ids remembered, as a share of capacity (default 1)
func NewSRLRU(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	ratio := args.Float("sr-size-ratio", 0.5)
	args.Check(ratio > 0 && ratio < 1, "sr-size-ratio", "must be in (0, 1)")
	hist := args.Float("history-size-ratio", 1)
	args.Check(hist > 0 && hist <= 4, "history-size-ratio", "must be in (0, 4]")
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(NameSRLRU, p, func(c *cache.Cache) (cache.Policy, error) {
		return &SRLRU{
			c:       c,
			lists:   newSRLists(c, ratio),
			hist:    cache.NewList(),
			histCap: max(int64(float64(c.Capacity())*hist), 1),
			desc:    args.Effective(),
		}, nil
	})
}

// SRTarget returns the current SR target in bytes.
func (l *SRLRU) SRTarget() float64 { return l.lists.target }

// Reused reports whether id is resident in R.
func (l *SRLRU) Reused(id uint64) bool {
	obj := l.c.Store().Find(id)
	return obj != nil && obj.Seg == inR
}

func (l *SRLRU) Find(req *cache.Request, update bool) *cache.Object {
	s := l.c.Store()
	if !update {
		obj := s.Find(req.ID)
		if obj == nil || !resident(obj) {
			return nil
		}
		return obj
	}

	l.route.Reset()
	obj := l.c.Lookup(req, true)
	if obj == nil {
		return nil
	}
	if resident(obj) {
		if demotedHit(obj) {
			l.nDemotedHit++
			l.lists.shrink(obj.Size)
		}
		l.lists.hit(obj)
		return obj
	}

	l.nGhostHit++
	if obj.Flags&demoted != 0 {
		l.lists.shrink(obj.Size)
	} else {
		l.lists.grow(obj.Size)
	}
	// Forget the id now: evictions for this request push into the same
	// history and could otherwise drop it before Insert.
	l.drop(obj)
	l.route.Set(req, cache.RouteGhost1)
	return nil
}

// Insert admits req into SR, or into R when Find saw the id in the history.
func (l *SRLRU) Insert(req *cache.Request) *cache.Object {
	seen := l.route.Take(req) == cache.RouteGhost1
	// An inner cache may be handed an object without a Find first.
	if g := l.c.Store().Find(req.ID); g != nil {
		cache.Assert(!resident(g), "SR-LRU insert of a resident object")
		l.drop(g)
		seen = true
	}
	obj := l.c.InsertObject(req)
	l.lists.add(obj, seen)
	return obj
}

func (l *SRLRU) ToEvict(*cache.Request) *cache.Object { return l.lists.victim() }

func (l *SRLRU) Evict(req *cache.Request) {
	obj := l.lists.victim()
	cache.Assert(obj != nil, "SR-LRU evict on an empty cache")
	s := l.c.Store()
	l.lists.unlink(obj)
	obj.Seg = inHist
	obj.Aux = req.VTime
	l.hist.PushFront(s, obj)
	for l.hist.Bytes() > l.histCap {
		l.drop(l.hist.Tail(s))
	}
}

func (l *SRLRU) drop(obj *cache.Object) {
	if resident(obj) {
		l.lists.unlink(obj)
	} else {
		l.hist.Remove(l.c.Store(), obj)
	}
	l.c.RemoveObject(obj)
}

// Remove drops id from the cache and the history. It reports whether id
// was resident.
func (l *SRLRU) Remove(id uint64) bool {
	obj := l.c.Store().Find(id)
	if obj == nil {
		return false
	}
	was := resident(obj)
	l.drop(obj)
	return was
}

func (l *SRLRU) OccupiedBytes() int64 {
	return l.lists.bytes() + l.c.Overhead()*int64(l.lists.len())
}

func (l *SRLRU) ObjectCount() int64 { return int64(l.lists.len()) }

func (l *SRLRU) Describe() string { return l.desc }

func (l *SRLRU) Verify() {
	s := l.c.Store()
	l.lists.verify()
	l.hist.Verify(s)
	n := l.lists.len() + l.hist.Len()
	cache.Assertf(n == s.Len(), "SR-LRU: lists hold %d objects, store %d", n, s.Len())
}

func (l *SRLRU) Counters() map[string]int64 {
	return map[string]int64{
		"n_ghost_hit":   l.nGhostHit,
		"n_demoted_hit": l.nDemotedHit,
		"n_demote":      l.lists.nDemote,
		"sr_target":     int64(l.lists.target),
		"sr_bytes":      l.lists.sr.Bytes(),
		"r_bytes":       l.lists.r.Bytes(),
	}
}
