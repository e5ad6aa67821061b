// Package twoq implements the 2Q eviction policy.
//
// Resident queues:
//   - Ain (younger queue): FIFO, admits first-time objects
//   - Am  (mature queue):  LRU, holds objects seen again after leaving Ain
//
// Ghost Aout: ids only, remembers recent Ain evictions so that a quick
// second request bypasses Ain and goes straight to Am.
package twoq

import (
	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/policy/fifo"
	"github.com/IvanBrykalov/cachesim/policy/lru"
)

// Name is the registry name of the policy.
const Name = "TwoQ"

type twoQ struct {
	c   *cache.Cache
	ain *cache.Cache // FIFO
	am  *cache.Cache // LRU
	out *cache.Cache // FIFO of ids

	desc  string
	route cache.Routing

	nGhostHit int64
}

var (
	_ cache.Policy        = (*twoQ)(nil)
	_ cache.Sizer         = (*twoQ)(nil)
	_ cache.Describer     = (*twoQ)(nil)
	_ cache.CounterSource = (*twoQ)(nil)
	_ cache.Nested        = (*twoQ)(nil)
)

// New constructs a 2Q cache.
//
// Parameters:
//   - ain-size-ratio:  share of capacity for Ain (default 0.25)
//   - aout-size-ratio: Aout history size relative to capacity (default 0.5)
func New(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	inRatio := args.Float("ain-size-ratio", 0.25)
	args.Check(inRatio > 0 && inRatio < 1, "ain-size-ratio", "must be in (0, 1)")
	outRatio := args.Float("aout-size-ratio", 0.5)
	args.Check(outRatio > 0, "aout-size-ratio", "must be > 0")
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(Name, p, func(c *cache.Cache) (cache.Policy, error) {
		cp, capacity := c.Params(), c.Capacity()
		inCap := int64(float64(capacity) * inRatio)
		q := &twoQ{c: c, desc: args.Effective()}
		var err error
		if q.ain, err = fifo.New(cp.Sub("ain", inCap), nil); err != nil {
			return nil, err
		}
		if q.am, err = lru.New(cp.Sub("am", capacity-inCap), nil); err != nil {
			return nil, err
		}
		if q.out, err = fifo.New(cp.Ghost("aout", int64(float64(capacity)*outRatio)), nil); err != nil {
			return nil, err
		}
		return q, nil
	})
}

// Find looks in Ain (no reordering, it is a FIFO) and then Am. An Aout
// hit is a miss: the id leaves Aout at once, so the evictions that make
// room for it cannot push it out, and Insert routes it to Am.
func (q *twoQ) Find(req *cache.Request, update bool) *cache.Object {
	if !update {
		if obj := q.ain.Find(req, false); obj != nil {
			return obj
		}
		return q.am.Find(req, false)
	}
	q.route.Reset()
	if obj := q.ain.Find(req, true); obj != nil {
		return obj
	}
	if obj := q.am.Find(req, true); obj != nil {
		return obj
	}
	if q.out.Remove(req.ID) {
		q.nGhostHit++
		q.route.Set(req, cache.RouteGhost1)
	}
	return nil
}

// Insert:
//   - an id that Find took out of Aout skips Ain and enters Am
//   - anything else enters Ain
func (q *twoQ) Insert(req *cache.Request) *cache.Object {
	if q.route.Take(req) == cache.RouteGhost1 {
		return q.am.Insert(req)
	}
	return q.ain.Insert(req)
}

// source is Ain while it is over its share (or Am is empty), else Am.
func (q *twoQ) source() *cache.Cache {
	if q.ain.ObjectCount() > 0 && (q.ain.OccupiedBytes() > q.ain.Capacity() || q.am.ObjectCount() == 0) {
		return q.ain
	}
	return q.am
}

func (q *twoQ) ToEvict(req *cache.Request) *cache.Object { return q.source().ToEvict(req) }

// Evict drops from Ain into Aout, or drops the LRU end of Am.
func (q *twoQ) Evict(req *cache.Request) {
	from := q.source()
	if from == q.am {
		q.am.Evict(req)
		return
	}
	victim := q.ain.ToEvict(req)
	cache.Assert(victim != nil, "TwoQ evict on an empty cache")
	g := cache.Request{ClockTime: req.ClockTime, VTime: req.VTime}
	victim.CopyTo(&g)
	q.ain.Evict(req)
	q.out.Admit(&g)
}

// Remove drops id from both queues and from Aout.
func (q *twoQ) Remove(id uint64) bool {
	q.out.Remove(id)
	return q.ain.Remove(id) || q.am.Remove(id)
}

func (q *twoQ) OccupiedBytes() int64 { return q.ain.OccupiedBytes() + q.am.OccupiedBytes() }
func (q *twoQ) ObjectCount() int64   { return q.ain.ObjectCount() + q.am.ObjectCount() }
func (q *twoQ) Describe() string     { return q.desc }

func (q *twoQ) SubCaches() []*cache.Cache { return []*cache.Cache{q.ain, q.am} }

func (q *twoQ) Counters() map[string]int64 {
	return map[string]int64{
		"n_ghost_hit": q.nGhostHit,
		"ain_bytes":   q.ain.OccupiedBytes(),
		"am_bytes":    q.am.OccupiedBytes(),
	}
}

func (q *twoQ) Close() error {
	for _, sub := range []*cache.Cache{q.ain, q.am, q.out} {
		if err := sub.Close(); err != nil {
			return err
		}
	}
	return nil
}
