// Package s3fifo implements S3-FIFO: a small probationary FIFO, a main
// cache and a ghost FIFO of ids evicted from the small queue.
//
// New objects enter the small queue. When the small queue evicts, objects
// that were hit at least move-to-main-threshold times move to the main
// cache and the rest leave, their ids going to the ghost. A miss whose id
// is in the ghost goes straight to main. With a FIFO main (the default)
// main evictions give objects with a non-zero 2-bit counter another lap
// with the counter decremented.
//
// The dynamic variants resize the small queue at run time from the hit
// rates of the small ghost and of a second ghost fed by main evictions.
// The same machinery with a different default main cache is QDLP, see
// package qdlp.
package s3fifo

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/policy/clock"
	"github.com/IvanBrykalov/cachesim/policy/fifo"
	"github.com/IvanBrykalov/cachesim/policy/lru"
)

// Registry names.
const (
	Name    = "S3FIFO"
	NameD   = "S3FIFOd"
	NameDv2 = "S3FIFOdv2"
)

const maxCounter = 3

// Mode selects how the small queue is resized.
type Mode int

const (
	// Static keeps the configured split.
	Static Mode = iota
	// Additive moves a fixed share of capacity per decision.
	Additive
	// Multiplicative scales the small queue by Grow or Shrink per decision.
	Multiplicative
)

// Options configure the shared S3-FIFO/QDLP machinery.
type Options struct {
	SmallRatio float64
	GhostRatio float64
	Threshold  int32
	Main       string

	Mode     Mode
	Interval int64   // requests between resize decisions
	MinRatio float64 // bounds of the small queue share
	MaxRatio float64
	Step     float64 // Additive: share of capacity per decision
	Grow     float64 // Multiplicative factors
	Shrink   float64
	MinStep  int64 // smallest resize in bytes
}

// Defaults returns the S3-FIFO defaults for mode.
func Defaults(mode Mode) Options {
	return Options{
		SmallRatio: 0.1,
		GhostRatio: 0.9,
		Threshold:  1,
		Main:       fifo.Name,
		Mode:       mode,
		Interval:   1000,
		MinRatio:   0.01,
		MaxRatio:   0.5,
		Step:       0.01,
		Grow:       1.2,
		Shrink:     0.8,
		MinStep:    1,
	}
}

// ParseOptions reads the parameters over def. Resize parameters are only
// accepted when def.Mode is not Static.
//
// Parameters:
//   - small-size-ratio:        share of capacity for the small queue
//   - ghost-size-ratio:        ghost size relative to capacity
//   - move-to-main-threshold:  hits in the small queue needed for main, 1..3
//   - main-cache:              policy name of the main cache
//   - rebalance-interval, min-small-ratio, max-small-ratio, min-step
//   - step-ratio (Additive), grow-factor and shrink-factor (Multiplicative)
func ParseOptions(args *cache.Args, def Options) Options {
	o := def
	o.SmallRatio = args.Float("small-size-ratio", def.SmallRatio)
	args.Check(o.SmallRatio > 0 && o.SmallRatio < 1, "small-size-ratio", "must be in (0, 1)")
	o.GhostRatio = args.Float("ghost-size-ratio", def.GhostRatio)
	args.Check(o.GhostRatio > 0, "ghost-size-ratio", "must be > 0")
	th := args.Int("move-to-main-threshold", int64(def.Threshold))
	args.Check(th >= 1 && th <= maxCounter, "move-to-main-threshold", "must be in [1, 3]")
	o.Threshold = int32(th)
	o.Main = args.String("main-cache", def.Main)

	if def.Mode == Static {
		return o
	}
	o.Interval = args.Int("rebalance-interval", def.Interval)
	args.Check(o.Interval > 0, "rebalance-interval", "must be > 0")
	o.MinRatio = args.Float("min-small-ratio", def.MinRatio)
	o.MaxRatio = args.Float("max-small-ratio", def.MaxRatio)
	args.Check(o.MinRatio > 0 && o.MinRatio <= o.MaxRatio && o.MaxRatio < 1, "max-small-ratio",
		"need 0 < min-small-ratio <= max-small-ratio < 1")
	o.MinStep = args.Int("min-step", def.MinStep)
	args.Check(o.MinStep >= 0, "min-step", "must be >= 0")
	switch def.Mode {
	case Additive:
		o.Step = args.Float("step-ratio", def.Step)
		args.Check(o.Step > 0 && o.Step < 1, "step-ratio", "must be in (0, 1)")
	case Multiplicative:
		o.Grow = args.Float("grow-factor", def.Grow)
		args.Check(o.Grow > 1, "grow-factor", "must be > 1")
		o.Shrink = args.Float("shrink-factor", def.Shrink)
		args.Check(o.Shrink > 0 && o.Shrink < 1, "shrink-factor", "must be in (0, 1)")
	}
	return o
}

// New constructs an S3FIFO cache; f resolves main-cache and may be nil,
// in which case FIFO, Clock and LRU are available.
func New(p cache.Params, args *cache.Args, f cache.Factory) (*cache.Cache, error) {
	return Build(Name, p, args, f, ParseOptions(args, Defaults(Static)))
}

// NewD constructs an S3FIFOd cache (additive resizing).
func NewD(p cache.Params, args *cache.Args, f cache.Factory) (*cache.Cache, error) {
	return Build(NameD, p, args, f, ParseOptions(args, Defaults(Additive)))
}

// NewDv2 constructs an S3FIFOdv2 cache (multiplicative resizing).
func NewDv2(p cache.Params, args *cache.Args, f cache.Factory) (*cache.Cache, error) {
	return Build(NameDv2, p, args, f, ParseOptions(args, Defaults(Multiplicative)))
}

// leaves resolves main caches when no factory is given.
var leaves = cache.FactoryFunc(func(name string, p cache.Params, args string) (*cache.Cache, error) {
	a, err := cache.ParseArgs(name, args)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.EqualFold(name, fifo.Name):
		return fifo.New(p, a)
	case strings.EqualFold(name, clock.Name):
		return clock.New(p, a)
	case strings.EqualFold(name, lru.Name):
		return lru.New(p, a)
	}
	return nil, fmt.Errorf("%w: %q", cache.ErrUnknownPolicy, name)
})

// Build constructs a cache named name from o. args must already have been
// read by ParseOptions.
func Build(name string, p cache.Params, args *cache.Args, f cache.Factory, o Options) (*cache.Cache, error) {
	if err := args.Err(); err != nil {
		return nil, err
	}
	if f == nil {
		f = leaves
	}
	return cache.New(name, p, func(c *cache.Cache) (cache.Policy, error) {
		cp, capacity := c.Params(), c.Capacity()
		smallCap := max(int64(float64(capacity)*o.SmallRatio), 1)
		ghostCap := max(int64(float64(capacity)*o.GhostRatio), 1)
		s := &s3fifo{c: c, name: name, opt: o, desc: args.Effective()}
		var err error
		if s.small, err = fifo.New(cp.Sub("small", smallCap), nil); err != nil {
			return nil, err
		}
		if s.main, err = f.New(o.Main, cp.Sub("main", capacity-smallCap), ""); err != nil {
			return nil, fmt.Errorf("main cache: %w", err)
		}
		if s.ghost, err = fifo.New(cp.Ghost("ghost", ghostCap), nil); err != nil {
			return nil, err
		}
		if o.Mode != Static {
			if s.mainGhost, err = fifo.New(cp.Ghost("main-ghost", ghostCap), nil); err != nil {
				return nil, err
			}
			s.nextRebalance = o.Interval
		}
		s.reinsert = s.main.Name() == fifo.Name
		return s, nil
	})
}

type s3fifo struct {
	c    *cache.Cache
	name string
	opt  Options
	desc string

	small     *cache.Cache
	main      *cache.Cache
	ghost     *cache.Cache
	mainGhost *cache.Cache // dynamic modes only
	reinsert  bool
	route     cache.Routing

	// decayed ghost hit counts driving resizing
	smallGhostHits float64
	mainGhostHits  float64
	nextRebalance  int64

	nGhostHit       int64
	nMainGhostHit   int64
	nMoveToMain     int64
	nByteMoveToMain int64
	nReinsert       int64
	nByteReinsert   int64
	nGrow           int64
	nShrink         int64
}

var (
	_ cache.Policy   = (*s3fifo)(nil)
	_ cache.Admitter = (*s3fifo)(nil)
	_ cache.Sizer    = (*s3fifo)(nil)
	_ cache.Nested   = (*s3fifo)(nil)
)

func bump(obj *cache.Object) {
	if obj.Counter < maxCounter {
		obj.Counter++
	}
}

func (s *s3fifo) Find(req *cache.Request, update bool) *cache.Object {
	if !update {
		if obj := s.small.Find(req, false); obj != nil {
			return obj
		}
		return s.main.Find(req, false)
	}

	s.route.Reset()
	defer s.maybeRebalance(req)
	if obj := s.small.Find(req, true); obj != nil {
		bump(obj)
		return obj
	}
	if obj := s.main.Find(req, true); obj != nil {
		if s.reinsert {
			bump(obj)
		}
		return obj
	}
	switch {
	case s.ghost.Remove(req.ID):
		s.nGhostHit++
		s.smallGhostHits++
		s.route.Set(req, cache.RouteGhost1)
	case s.mainGhost != nil && s.mainGhost.Remove(req.ID):
		s.nMainGhostHit++
		s.mainGhostHits++
		s.route.Set(req, cache.RouteGhost2)
	}
	return nil
}

// CanInsert admits anything that fits the larger of the two queues.
func (s *s3fifo) CanInsert(req *cache.Request) bool {
	need := req.Size + s.c.Overhead()
	return need <= s.c.Capacity() && (need <= s.small.Capacity() || need <= s.main.Capacity())
}

// Insert puts ghost hits and objects too large for the small queue into
// main, everything else into the small queue.
func (s *s3fifo) Insert(req *cache.Request) *cache.Object {
	if s.route.Take(req) == cache.RouteGhost1 || req.Size+s.small.Overhead() > s.small.Capacity() {
		return s.main.Insert(req)
	}
	return s.small.Insert(req)
}

func (s *s3fifo) evictFromMain() bool {
	return s.main.ObjectCount() > 0 &&
		(s.main.OccupiedBytes() > s.main.Capacity() || s.small.ObjectCount() == 0)
}

// ToEvict previews the victim when no object would change queues on the
// way; otherwise it is unsupported.
func (s *s3fifo) ToEvict(req *cache.Request) *cache.Object {
	if !s.evictFromMain() {
		if obj := s.small.ToEvict(req); obj != nil {
			if obj.Counter >= s.opt.Threshold {
				cache.Unsupported(s.name, "ToEvict while the small queue is promoting")
			}
			return obj
		}
	}
	obj := s.main.ToEvict(req)
	if s.reinsert && obj != nil && obj.Counter > 0 {
		cache.Unsupported(s.name, "ToEvict while main is reinserting")
	}
	return obj
}

func (s *s3fifo) Evict(req *cache.Request) {
	if s.evictFromMain() || !s.evictSmall(req) {
		s.evictMain(req)
	}
}

// evictSmall drains the small queue tail until one object really leaves.
// It reports false when every object moved to main instead.
func (s *s3fifo) evictSmall(req *cache.Request) bool {
	for s.small.ObjectCount() > 0 {
		victim := s.small.ToEvict(req)
		moved := cache.Request{ClockTime: req.ClockTime, VTime: req.VTime}
		victim.CopyTo(&moved)
		hits := victim.Counter
		s.small.Evict(req)

		if hits >= s.opt.Threshold {
			s.main.Insert(&moved)
			s.nMoveToMain++
			s.nByteMoveToMain += moved.Size
			continue
		}
		if s.ghost.Find(&moved, false) == nil {
			s.ghost.Admit(&moved)
		}
		return true
	}
	return false
}

func (s *s3fifo) evictMain(req *cache.Request) {
	if !s.reinsert && s.mainGhost == nil {
		s.main.Evict(req)
		return
	}
	for {
		victim := s.main.ToEvict(req)
		cache.Assert(victim != nil, "S3FIFO evict on an empty cache")
		moved := cache.Request{ClockTime: req.ClockTime, VTime: req.VTime}
		victim.CopyTo(&moved)
		hits := victim.Counter
		s.main.Evict(req)

		if s.reinsert && hits > 0 {
			s.main.Insert(&moved).Counter = min(hits, maxCounter) - 1
			s.nReinsert++
			s.nByteReinsert += moved.Size
			continue
		}
		if s.mainGhost != nil && s.mainGhost.Find(&moved, false) == nil {
			s.mainGhost.Admit(&moved)
		}
		return
	}
}

// maybeRebalance resizes the small queue toward whichever ghost has been
// hit more since the last decision.
func (s *s3fifo) maybeRebalance(req *cache.Request) {
	o := s.opt
	if o.Mode == Static || req.VTime < s.nextRebalance {
		return
	}
	s.nextRebalance = req.VTime + o.Interval

	capacity := s.c.Capacity()
	cur := s.small.Capacity()
	want := cur
	switch {
	case s.smallGhostHits > s.mainGhostHits:
		if o.Mode == Additive {
			want = cur + int64(o.Step*float64(capacity))
		} else {
			want = int64(float64(cur) * o.Grow)
		}
		want = max(want, cur+o.MinStep)
	case s.mainGhostHits > s.smallGhostHits:
		if o.Mode == Additive {
			want = cur - int64(o.Step*float64(capacity))
		} else {
			want = int64(float64(cur) * o.Shrink)
		}
		want = min(want, cur-o.MinStep)
	}
	lo := max(int64(o.MinRatio*float64(capacity)), 1)
	hi := max(int64(o.MaxRatio*float64(capacity)), lo)
	want = min(max(want, lo), hi)

	switch {
	case want > cur:
		s.nGrow++
	case want < cur:
		s.nShrink++
	}
	s.small.SetCapacity(want)
	s.main.SetCapacity(capacity - want)
	s.smallGhostHits /= 2
	s.mainGhostHits /= 2
	s.c.Logger().Debug("rebalanced small queue",
		zap.Int64("vtime", req.VTime),
		zap.Int64("small_capacity", want),
		zap.Int64("main_capacity", capacity-want))
}

func (s *s3fifo) Remove(id uint64) bool {
	s.ghost.Remove(id)
	if s.mainGhost != nil {
		s.mainGhost.Remove(id)
	}
	return s.small.Remove(id) || s.main.Remove(id)
}

func (s *s3fifo) OccupiedBytes() int64 { return s.small.OccupiedBytes() + s.main.OccupiedBytes() }
func (s *s3fifo) ObjectCount() int64   { return s.small.ObjectCount() + s.main.ObjectCount() }
func (s *s3fifo) Describe() string     { return s.desc }

func (s *s3fifo) SubCaches() []*cache.Cache { return []*cache.Cache{s.small, s.main} }

// SmallCapacity returns the current byte budget of the small queue.
func (s *s3fifo) SmallCapacity() int64 { return s.small.Capacity() }

func (s *s3fifo) Counters() map[string]int64 {
	m := map[string]int64{
		"n_ghost_hit":         s.nGhostHit,
		"n_obj_move_to_main":  s.nMoveToMain,
		"n_byte_move_to_main": s.nByteMoveToMain,
		"n_obj_reinsert":      s.nReinsert,
		"n_byte_reinsert":     s.nByteReinsert,
		"small_bytes":         s.small.OccupiedBytes(),
		"main_bytes":          s.main.OccupiedBytes(),
	}
	if s.opt.Mode != Static {
		m["n_main_ghost_hit"] = s.nMainGhostHit
		m["n_grow"] = s.nGrow
		m["n_shrink"] = s.nShrink
		m["small_capacity"] = s.small.Capacity()
	}
	return m
}

func (s *s3fifo) Close() error {
	subs := []*cache.Cache{s.small, s.main, s.ghost}
	if s.mainGhost != nil {
		subs = append(subs, s.mainGhost)
	}
	for _, sub := range subs {
		if err := sub.Close(); err != nil {
			return err
		}
	}
	return nil
}
