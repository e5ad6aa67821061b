package cacheus

import (
	"go.uber.org/zap"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/experts"
	"github.com/IvanBrykalov/cachesim/internal/pqueue"
)

// Name is the registry name of Cacheus.
const Name = "Cacheus"

const (
	expertSRLRU = 0
	expertCRLFU = 1
)

const (
	vtimeBits = 40
	vtimeMask = 1<<vtimeBits - 1

	weightFloor = 0.01
	lrMin       = 0.001
	lrMax       = 1.0
	lrStep      = 1.1
	// maxZeroWindows of hit-less windows reset the learning rate.
	maxZeroWindows = 10
	minWindow      = 64
)

// Cacheus is exported so callers can observe the learned state.
type Cacheus struct {
	c     *cache.Cache
	lists srLists
	lfu   *pqueue.Heap[cache.Handle, int64] // CR-LFU over residents
	hist  [2]cache.List                     // evicted on each expert's advice

	histCap int64
	desc    string

	// route and carried hand a history hit from Find to Insert.
	route   cache.Routing
	carried int64

	mix  experts.Mix
	next experts.Pick

	lr, lrInit float64
	lrDir      float64
	prevHR     float64
	winReqs    int64
	winHits    int64
	nZero      int

	nRegret [2]int64
	nEvict  [2]int64
}

var (
	_ cache.Policy        = (*Cacheus)(nil)
	_ cache.Sizer         = (*Cacheus)(nil)
	_ cache.CounterSource = (*Cacheus)(nil)
	_ cache.Verifier      = (*Cacheus)(nil)
)

// New constructs a Cacheus cache.
//
// Parameters:
//   - learning-rate:      initial learning rate (default 0.1)
//   - sr-size-ratio:      initial SR target of the SR-LRU expert (default 0.5)
//   - history-size-ratio: bytes of each expert's history as a share of capacity (default 0.5)
func New(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	lr := args.Float("learning-rate", 0.1)
	args.Check(lr >= lrMin && lr <= lrMax, "learning-rate", "must be in [0.001, 1]")
	ratio := args.Float("sr-size-ratio", 0.5)
	args.Check(ratio > 0 && ratio < 1, "sr-size-ratio", "must be in (0, 1)")
	hist := args.Float("history-size-ratio", 0.5)
	args.Check(hist > 0 && hist <= 4, "history-size-ratio", "must be in (0, 4]")
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(Name, p, func(c *cache.Cache) (cache.Policy, error) {
		s := c.Store()
		return &Cacheus{
			c:       c,
			lists:   newSRLists(c, ratio),
			lfu:     pqueue.NewMin[cache.Handle, int64](1024, func(h cache.Handle, i int) { s.Get(h).HeapIndex = i }),
			hist:    [2]cache.List{cache.NewList(), cache.NewList()},
			histCap: max(int64(float64(c.Capacity())*hist), 1),
			desc:    args.Effective(),
			mix:     experts.NewMix(weightFloor),
			lr:      lr,
			lrInit:  lr,
			lrDir:   1,
		}, nil
	})
}

// Weights returns the current weights of the SR-LRU and CR-LFU experts.
func (cs *Cacheus) Weights() (srlru, crlfu float64) {
	return cs.mix.Weight(expertSRLRU), cs.mix.Weight(expertCRLFU)
}

// LearningRate returns the current learning rate.
func (cs *Cacheus) LearningRate() float64 { return cs.lr }

// crlfuKey orders by access count, then evicts the most recent first.
func crlfuKey(obj *cache.Object) int64 {
	return obj.Freq<<vtimeBits | (vtimeMask - obj.LastAccessVTime&vtimeMask)
}

func (cs *Cacheus) Find(req *cache.Request, update bool) *cache.Object {
	s := cs.c.Store()
	if !update {
		obj := s.Find(req.ID)
		if obj == nil || !resident(obj) {
			return nil
		}
		return obj
	}

	defer cs.tick()
	cs.winReqs++
	cs.route.Reset()
	obj := cs.c.Lookup(req, true)
	if obj == nil {
		return nil
	}
	if resident(obj) {
		cs.winHits++
		if demotedHit(obj) {
			cs.lists.shrink(obj.Size)
		}
		cs.lists.hit(obj)
		cs.lfu.Update(obj.HeapIndex, crlfuKey(obj))
		return obj
	}

	e := expertSRLRU
	if obj.Seg == inHistLFU {
		e = expertCRLFU
	} else if obj.Flags&demoted != 0 {
		cs.lists.shrink(obj.Size)
	} else {
		cs.lists.grow(obj.Size)
	}
	cs.nRegret[e]++
	discount := experts.DefaultDiscount(cs.ObjectCount())
	cs.mix.Penalize(e, cs.lr, experts.Reward(discount, req.VTime-obj.Aux))
	cs.carried = obj.Freq
	cs.drop(obj)
	cs.route.Set(req, cache.RouteGhost1)
	return nil
}

// tick closes a request window once it spans the resident object count.
func (cs *Cacheus) tick() {
	if cs.winReqs < max(cs.ObjectCount(), minWindow) {
		return
	}
	cs.adapt()
}

// adapt tunes the learning rate by hill climbing: keep moving it in the
// same direction while the window hit ratio improves, turn around when it
// drops, and start over after a run of windows without hits.
func (cs *Cacheus) adapt() {
	hr := float64(cs.winHits) / float64(cs.winReqs)
	switch d := hr - cs.prevHR; {
	case d < 0:
		cs.lrDir = -cs.lrDir
		fallthrough
	case d > 0:
		if cs.lrDir > 0 {
			cs.lr = min(cs.lr*lrStep, lrMax)
		} else {
			cs.lr = max(cs.lr/lrStep, lrMin)
		}
	}
	if hr == 0 {
		cs.nZero++
		if cs.nZero >= maxZeroWindows {
			cs.c.Logger().Debug("learning rate reset", zap.Float64("lr", cs.lr), zap.Float64("initial", cs.lrInit))
			cs.lr, cs.lrDir, cs.nZero = cs.lrInit, 1, 0
		}
	} else {
		cs.nZero = 0
	}
	cs.prevHR = hr
	cs.winReqs, cs.winHits = 0, 0
}

// Insert admits req. An id Find took out of a history keeps its access
// count and enters R.
func (cs *Cacheus) Insert(req *cache.Request) *cache.Object {
	var freq int64
	seen := cs.route.Take(req) == cache.RouteGhost1
	if seen {
		freq = cs.carried
	}
	// An inner cache may be handed an object without a Find first.
	if g := cs.c.Store().Find(req.ID); g != nil {
		cache.Assert(!resident(g), "Cacheus insert of a resident object")
		freq = g.Freq
		cs.drop(g)
		seen = true
	}
	obj := cs.c.InsertObject(req)
	obj.Freq = freq
	cs.lists.add(obj, seen)
	cs.lfu.Push(obj.Handle(), crlfuKey(obj))
	return obj
}

func (cs *Cacheus) choose(req *cache.Request) int {
	return cs.next.Expert(req.VTime, &cs.mix, cs.c.Rand())
}

func (cs *Cacheus) victim(expert int) *cache.Object {
	if expert == expertSRLRU {
		return cs.lists.victim()
	}
	h, _, ok := cs.lfu.Peek()
	if !ok {
		return nil
	}
	return cs.c.Store().Get(h)
}

// ToEvict draws the expert for the coming eviction and returns its victim;
// the next Evict for the same request evicts that object.
func (cs *Cacheus) ToEvict(req *cache.Request) *cache.Object {
	return cs.victim(cs.choose(req))
}

func (cs *Cacheus) Evict(req *cache.Request) {
	e := cs.choose(req)
	cs.next.Consume()
	obj := cs.victim(e)
	cache.Assert(obj != nil, "Cacheus evict on an empty cache")
	cs.nEvict[e]++

	s := cs.c.Store()
	cs.lists.unlink(obj)
	cs.lfu.Remove(obj.HeapIndex)
	obj.Seg = inHist
	if e == expertCRLFU {
		obj.Seg = inHistLFU
	}
	obj.Aux = req.VTime
	cs.hist[e].PushFront(s, obj)
	for cs.hist[e].Bytes() > cs.histCap {
		cs.drop(cs.hist[e].Tail(s))
	}
}

func (cs *Cacheus) drop(obj *cache.Object) {
	s := cs.c.Store()
	switch obj.Seg {
	case inSR, inR:
		cs.lists.unlink(obj)
		cs.lfu.Remove(obj.HeapIndex)
	case inHist:
		cs.hist[expertSRLRU].Remove(s, obj)
	case inHistLFU:
		cs.hist[expertCRLFU].Remove(s, obj)
	}
	cs.c.RemoveObject(obj)
}

// Remove drops id from the cache and the histories. It reports whether id
// was resident.
func (cs *Cacheus) Remove(id uint64) bool {
	obj := cs.c.Store().Find(id)
	if obj == nil {
		return false
	}
	was := resident(obj)
	cs.drop(obj)
	return was
}

func (cs *Cacheus) OccupiedBytes() int64 {
	return cs.lists.bytes() + cs.c.Overhead()*int64(cs.lists.len())
}

func (cs *Cacheus) ObjectCount() int64 { return int64(cs.lists.len()) }

func (cs *Cacheus) Describe() string { return cs.desc }

func (cs *Cacheus) Verify() {
	s := cs.c.Store()
	cs.lists.verify()
	cs.hist[expertSRLRU].Verify(s)
	cs.hist[expertCRLFU].Verify(s)
	cache.Assertf(cs.lists.len() == cs.lfu.Len(), "Cacheus: %d objects in SR/R, %d in CR-LFU order", cs.lists.len(), cs.lfu.Len())
	n := cs.lists.len() + cs.hist[0].Len() + cs.hist[1].Len()
	cache.Assertf(n == s.Len(), "Cacheus: lists hold %d objects, store %d", n, s.Len())
}

func (cs *Cacheus) Counters() map[string]int64 {
	return map[string]int64{
		"n_regret_srlru": cs.nRegret[expertSRLRU],
		"n_regret_crlfu": cs.nRegret[expertCRLFU],
		"n_evict_srlru":  cs.nEvict[expertSRLRU],
		"n_evict_crlfu":  cs.nEvict[expertCRLFU],
		"n_demote":       cs.lists.nDemote,
		"sr_target":      int64(cs.lists.target),
		"w_srlru_ppm":    int64(cs.mix.Weight(expertSRLRU) * 1e6),
		"lr_ppm":         int64(cs.lr * 1e6),
	}
}
