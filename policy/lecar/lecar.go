// Package lecar implements LeCaR: eviction decided by two experts, LRU and
// LFU, mixed by weights learned from regrets.
//
// Each eviction draws one expert according to the weights and evicts that
// expert's victim. The evicted id is kept in the expert's history; when it
// is requested again while still there, the expert made a mistake and its
// weight is multiplied by exp(-learning-rate · discount^age), where age is
// the number of requests since the eviction. LeCaRv0 penalizes without the
// discount.
//
// Resident objects and both histories share one store, like ARC.
package lecar

import (
	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/experts"
	"github.com/IvanBrykalov/cachesim/internal/pqueue"
)

// Registry names.
const (
	Name   = "LeCaR"
	NameV0 = "LeCaRv0"
)

// Object.Seg values.
const (
	resident int32 = iota + 1
	inHistLRU
	inHistLFU
)

const (
	expertLRU = 0
	expertLFU = 1
)

// vtimeBits is the share of the LFU key holding the last access time.
const vtimeBits = 40

// LeCaR is exported so callers can observe the learned weights.
type LeCaR struct {
	c          *cache.Cache
	name       string
	discounted bool

	lru     cache.List // resident, head = MRU
	lfu     *pqueue.Heap[cache.Handle, int64]
	hist    [2]cache.List // evicted on each expert's advice, head = newest
	histCap int64

	mix      experts.Mix
	lr       float64
	discount float64 // 0 derives it from the resident count
	desc     string

	next experts.Pick

	// route and carried hand a history hit's access count from Find to
	// Insert.
	route   cache.Routing
	carried int64

	nRegret [2]int64
	nEvict  [2]int64
}

var (
	_ cache.Policy        = (*LeCaR)(nil)
	_ cache.Sizer         = (*LeCaR)(nil)
	_ cache.CounterSource = (*LeCaR)(nil)
	_ cache.Verifier      = (*LeCaR)(nil)
)

// New constructs a LeCaR cache.
//
// Parameters:
//   - learning-rate:      weight update step (default 0.45)
//   - discount-rate:      per-request regret discount in (0, 1]; 0 uses
//     0.005^(1/n) for n resident objects (default 0)
//   - history-size-ratio: bytes of each history as a share of capacity (default 0.5)
func New(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	return build(Name, p, args, true)
}

// NewV0 constructs a LeCaRv0 cache: LeCaR without the regret discount.
// It takes learning-rate and history-size-ratio.
func NewV0(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	return build(NameV0, p, args, false)
}

func build(name string, p cache.Params, args *cache.Args, discounted bool) (*cache.Cache, error) {
	lr := args.Float("learning-rate", 0.45)
	args.Check(lr > 0, "learning-rate", "must be > 0")
	var discount float64
	if discounted {
		discount = args.Float("discount-rate", 0)
		args.Check(discount >= 0 && discount <= 1, "discount-rate", "must be in [0, 1]")
	}
	hist := args.Float("history-size-ratio", 0.5)
	args.Check(hist > 0 && hist <= 4, "history-size-ratio", "must be in (0, 4]")
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(name, p, func(c *cache.Cache) (cache.Policy, error) {
		s := c.Store()
		return &LeCaR{
			c:          c,
			name:       name,
			discounted: discounted,
			lru:        cache.NewList(),
			lfu:        pqueue.NewMin[cache.Handle, int64](1024, func(h cache.Handle, i int) { s.Get(h).HeapIndex = i }),
			hist:       [2]cache.List{cache.NewList(), cache.NewList()},
			histCap:    max(int64(float64(c.Capacity())*hist), 1),
			mix:        experts.NewMix(0),
			lr:         lr,
			discount:   discount,
			desc:       args.Effective(),
		}, nil
	})
}

// Weights returns the current weights of the LRU and LFU experts.
func (l *LeCaR) Weights() (lru, lfu float64) {
	return l.mix.Weight(expertLRU), l.mix.Weight(expertLFU)
}

// lfuKey orders by access count, then by last access.
func lfuKey(obj *cache.Object) int64 {
	return obj.Freq<<vtimeBits | obj.LastAccessVTime&(1<<vtimeBits-1)
}

func histSeg(expert int) int32 {
	if expert == expertLRU {
		return inHistLRU
	}
	return inHistLFU
}

func (l *LeCaR) Find(req *cache.Request, update bool) *cache.Object {
	s := l.c.Store()
	if !update {
		obj := s.Find(req.ID)
		if obj == nil || obj.Seg != resident {
			return nil
		}
		return obj
	}

	l.route.Reset()
	obj := l.c.Lookup(req, true)
	if obj == nil {
		return nil
	}
	if obj.Seg == resident {
		l.lru.MoveToFront(s, obj)
		l.lfu.Update(obj.HeapIndex, lfuKey(obj))
		return obj
	}

	e := expertLRU
	if obj.Seg == inHistLFU {
		e = expertLFU
	}
	l.nRegret[e]++
	reward := 1.0
	if l.discounted {
		reward = experts.Reward(l.discountRate(), req.VTime-obj.Aux)
	}
	l.mix.Penalize(e, l.lr, reward)
	// The evictions for this request push into the histories; take the id
	// out first so its count survives until Insert.
	l.carried = obj.Freq
	l.drop(obj)
	l.route.Set(req, cache.RouteGhost1)
	return nil
}

func (l *LeCaR) discountRate() float64 {
	if l.discount > 0 {
		return l.discount
	}
	return experts.DefaultDiscount(l.ObjectCount())
}

// Insert admits req. An id Find took out of a history keeps its access
// count.
func (l *LeCaR) Insert(req *cache.Request) *cache.Object {
	s := l.c.Store()
	var freq int64
	if l.route.Take(req) == cache.RouteGhost1 {
		freq = l.carried
	}
	if g := s.Find(req.ID); g != nil {
		cache.Assert(g.Seg != resident, "LeCaR insert of a resident object")
		freq = g.Freq
		l.drop(g)
	}
	obj := l.c.InsertObject(req)
	obj.Freq = freq
	obj.Seg = resident
	l.lru.PushFront(s, obj)
	l.lfu.Push(obj.Handle(), lfuKey(obj))
	return obj
}

func (l *LeCaR) choose(req *cache.Request) int {
	return l.next.Expert(req.VTime, &l.mix, l.c.Rand())
}

func (l *LeCaR) victim(expert int) *cache.Object {
	if expert == expertLRU {
		return l.lru.Tail(l.c.Store())
	}
	h, _, ok := l.lfu.Peek()
	if !ok {
		return nil
	}
	return l.c.Store().Get(h)
}

// ToEvict draws the expert for the coming eviction and returns its victim;
// the next Evict for the same request evicts that object.
func (l *LeCaR) ToEvict(req *cache.Request) *cache.Object {
	return l.victim(l.choose(req))
}

func (l *LeCaR) Evict(req *cache.Request) {
	e := l.choose(req)
	l.next.Consume()
	obj := l.victim(e)
	cache.Assert(obj != nil, "LeCaR evict on an empty cache")
	l.nEvict[e]++

	s := l.c.Store()
	l.lru.Remove(s, obj)
	l.lfu.Remove(obj.HeapIndex)
	obj.Seg = histSeg(e)
	obj.Aux = req.VTime
	l.hist[e].PushFront(s, obj)
	for l.hist[e].Bytes() > l.histCap {
		l.drop(l.hist[e].Tail(s))
	}
}

func (l *LeCaR) drop(obj *cache.Object) {
	s := l.c.Store()
	switch obj.Seg {
	case resident:
		l.lru.Remove(s, obj)
		l.lfu.Remove(obj.HeapIndex)
	case inHistLRU:
		l.hist[expertLRU].Remove(s, obj)
	case inHistLFU:
		l.hist[expertLFU].Remove(s, obj)
	}
	l.c.RemoveObject(obj)
}

// Remove drops id from the cache and the histories. It reports whether id
// was resident.
func (l *LeCaR) Remove(id uint64) bool {
	obj := l.c.Store().Find(id)
	if obj == nil {
		return false
	}
	was := obj.Seg == resident
	l.drop(obj)
	return was
}

func (l *LeCaR) OccupiedBytes() int64 {
	return l.lru.Bytes() + l.c.Overhead()*int64(l.lru.Len())
}

func (l *LeCaR) ObjectCount() int64 { return int64(l.lru.Len()) }

func (l *LeCaR) Describe() string { return l.desc }

func (l *LeCaR) Verify() {
	s := l.c.Store()
	n := 0
	for _, list := range []*cache.List{&l.lru, &l.hist[expertLRU], &l.hist[expertLFU]} {
		list.Verify(s)
		n += list.Len()
	}
	cache.Assertf(l.lru.Len() == l.lfu.Len(), "%s: %d objects in LRU order, %d in LFU order", l.name, l.lru.Len(), l.lfu.Len())
	cache.Assertf(n == s.Len(), "%s: lists hold %d objects, store %d", l.name, n, s.Len())
}

func (l *LeCaR) Counters() map[string]int64 {
	return map[string]int64{
		"n_regret_lru": l.nRegret[expertLRU],
		"n_regret_lfu": l.nRegret[expertLFU],
		"n_evict_lru":  l.nEvict[expertLRU],
		"n_evict_lfu":  l.nEvict[expertLFU],
		"w_lru_ppm":    int64(l.mix.Weight(expertLRU) * 1e6),
	}
}
