// Package wtinylfu implements W-TinyLFU: a small LRU window in front of a
// main cache guarded by a frequency sketch.
//
// Every request is counted in a counting Bloom filter. New objects enter
// the window; an object pushed out of the window competes with the main
// cache's next victim and only the one with the higher estimated frequency
// stays. The sketch is halved every sample-ratio × (main capacity in
// objects) requests so that old popularity fades.
//
// WTinyLFUv0 has no window: a miss is only admitted when it beats the main
// victim. WTinyLFUv1 puts a one-bit doorkeeper in front of the sketch, so
// ids seen once only cost a bit.
package wtinylfu

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/bloom"
	"github.com/IvanBrykalov/cachesim/policy/lru"
	"github.com/IvanBrykalov/cachesim/policy/slru"
)

// Registry names.
const (
	Name   = "WTinyLFU"
	NameV0 = "WTinyLFUv0"
	NameV1 = "WTinyLFUv1"
)

const (
	sketchFPRate = 0.01
	sketchBits   = 4
)

type tinyLFU struct {
	c      *cache.Cache
	name   string
	window *cache.Cache // LRU, nil without a window
	main   *cache.Cache
	sketch *bloom.Counting
	door   *bloom.Filter // nil without a doorkeeper
	desc   string

	sampleRatio int64
	nSince      int64 // requests since the last decay
	nReq        int64
	sizeSum     int64

	nAdmit  int64
	nReject int64
	nDecay  int64
}

var (
	_ cache.Policy   = (*tinyLFU)(nil)
	_ cache.Admitter = (*tinyLFU)(nil)
	_ cache.Sizer    = (*tinyLFU)(nil)
	_ cache.Nested   = (*tinyLFU)(nil)
)

// New constructs a W-TinyLFU cache; f resolves main-cache and may be nil,
// in which case LRU and SLRU are available.
//
// Parameters:
//   - window-size-ratio: share of capacity for the LRU window (default 0.01)
//   - main-cache:        policy name of the main cache (default SLRU)
//   - sample-ratio:      sketch decay period in main capacities (default 32)
//   - sketch-entries:    sketch sizing (default: capacity, clamped to [1Ki, 1Mi])
func New(p cache.Params, args *cache.Args, f cache.Factory) (*cache.Cache, error) {
	return build(Name, p, args, f, true, false)
}

// NewV0 constructs a WTinyLFUv0 cache: no window. Parameters are those of
// WTinyLFU without window-size-ratio.
func NewV0(p cache.Params, args *cache.Args, f cache.Factory) (*cache.Cache, error) {
	return build(NameV0, p, args, f, false, false)
}

// NewV1 constructs a WTinyLFUv1 cache: W-TinyLFU with a doorkeeper.
func NewV1(p cache.Params, args *cache.Args, f cache.Factory) (*cache.Cache, error) {
	return build(NameV1, p, args, f, true, true)
}

var leaves = cache.FactoryFunc(func(name string, p cache.Params, args string) (*cache.Cache, error) {
	a, err := cache.ParseArgs(name, args)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.EqualFold(name, slru.Name):
		return slru.New(p, a)
	case strings.EqualFold(name, lru.Name):
		return lru.New(p, a)
	}
	return nil, fmt.Errorf("%w: %q", cache.ErrUnknownPolicy, name)
})

func build(name string, p cache.Params, args *cache.Args, f cache.Factory, windowed, doorkeeper bool) (*cache.Cache, error) {
	var ratio float64
	if windowed {
		ratio = args.Float("window-size-ratio", 0.01)
		args.Check(ratio > 0 && ratio < 1, "window-size-ratio", "must be in (0, 1)")
	}
	mainName := args.String("main-cache", slru.Name)
	sample := args.Int("sample-ratio", 32)
	args.Check(sample > 0, "sample-ratio", "must be > 0")
	entries := args.Int("sketch-entries", min(max(p.Capacity, 1<<10), 1<<20))
	args.Check(entries > 0, "sketch-entries", "must be > 0")
	if err := args.Err(); err != nil {
		return nil, err
	}
	if f == nil {
		f = leaves
	}
	return cache.New(name, p, func(c *cache.Cache) (cache.Policy, error) {
		cp, capacity := c.Params(), c.Capacity()
		w := &tinyLFU{
			c:           c,
			name:        name,
			sketch:      bloom.NewCounting(int(entries), sketchFPRate, sketchBits),
			sampleRatio: sample,
			desc:        args.Effective(),
		}
		mainCap := capacity
		if windowed {
			winCap := max(int64(float64(capacity)*ratio), 1)
			mainCap = max(capacity-winCap, 1)
			win, err := lru.New(cp.Sub("window", winCap), nil)
			if err != nil {
				return nil, err
			}
			w.window = win
		}
		if doorkeeper {
			w.door = bloom.NewFilter(int(entries), sketchFPRate)
		}
		main, err := f.New(mainName, cp.Sub("main", mainCap), "")
		if err != nil {
			return nil, fmt.Errorf("main cache: %w", err)
		}
		w.main = main
		return w, nil
	})
}

// record counts one request for id and decays the sketch when a sample
// period has elapsed.
func (w *tinyLFU) record(req *cache.Request) {
	switch {
	case w.door == nil:
		w.sketch.Add(req.ID)
	case w.door.Add(req.ID):
		w.sketch.Add(req.ID)
	}
	w.nReq++
	w.sizeSum += max(req.Size, 1)
	w.nSince++
	if w.nSince < w.samplePeriod() {
		return
	}
	w.nSince = 0
	w.nDecay++
	w.sketch.Decay()
	if w.door != nil {
		w.door.Reset()
	}
	w.c.Logger().Debug("sketch decayed", zap.Int64("vtime", req.VTime), zap.Int64("n_decay", w.nDecay))
}

// samplePeriod is sample-ratio times the main capacity in objects, using
// the mean request size seen so far.
func (w *tinyLFU) samplePeriod() int64 {
	mean := float64(max(w.sizeSum, 1)) / float64(max(w.nReq, 1))
	objects := max(int64(float64(w.main.Capacity())/mean), 1)
	return w.sampleRatio * objects
}

func (w *tinyLFU) estimate(id uint64) int {
	n := int(w.sketch.Estimate(id))
	if w.door != nil && w.door.Contains(id) {
		n++
	}
	return n
}

func (w *tinyLFU) Find(req *cache.Request, update bool) *cache.Object {
	if update {
		w.record(req)
	}
	if w.window != nil {
		if obj := w.window.Find(req, update); obj != nil {
			return obj
		}
	}
	return w.main.Find(req, update)
}

// CanInsert applies the frequency filter directly when there is no window.
func (w *tinyLFU) CanInsert(req *cache.Request) bool {
	if req.Size+w.c.Overhead() > w.c.Capacity() {
		return false
	}
	if w.window != nil {
		return true
	}
	if !w.main.CanInsert(req) {
		return false
	}
	if w.main.OccupiedBytes()+req.Size+w.main.Overhead() <= w.main.Capacity() {
		return true
	}
	victim := w.main.ToEvict(req)
	return victim == nil || w.estimate(req.ID) > w.estimate(victim.ID)
}

func (w *tinyLFU) Insert(req *cache.Request) *cache.Object {
	if w.window == nil {
		w.nAdmit++
		return w.main.Insert(req)
	}
	return w.window.Insert(req)
}

// windowFull reports whether admitting req must push objects out of the
// window first.
func (w *tinyLFU) windowFull(req *cache.Request) bool {
	return w.window != nil && w.window.ObjectCount() > 0 &&
		w.window.OccupiedBytes()+req.Size+w.window.Overhead() > w.window.Capacity()
}

func (w *tinyLFU) ToEvict(req *cache.Request) *cache.Object {
	if !w.windowFull(req) {
		if w.main.ObjectCount() > 0 || w.window == nil {
			return w.main.ToEvict(req)
		}
		return w.window.ToEvict(req)
	}
	cand := w.window.ToEvict(req)
	if w.fitsMain(cand.Size) {
		cache.Unsupported(w.name, "ToEvict while the window drains into free main space")
	}
	if victim := w.main.ToEvict(req); victim != nil && w.estimate(cand.ID) > w.estimate(victim.ID) {
		return victim
	}
	return cand
}

func (w *tinyLFU) fitsMain(size int64) bool {
	return w.main.OccupiedBytes()+size+w.main.Overhead() <= w.main.Capacity()
}

// Evict lets window overflow compete for main; otherwise main evicts.
func (w *tinyLFU) Evict(req *cache.Request) {
	for w.windowFull(req) {
		cand := w.window.ToEvict(req)
		moved := cache.Request{ClockTime: req.ClockTime, VTime: req.VTime}
		cand.CopyTo(&moved)
		w.window.Evict(req)

		if !w.main.CanInsert(&moved) {
			w.nReject++
			return
		}
		if w.fitsMain(moved.Size) {
			w.main.Insert(&moved)
			continue
		}
		victim := w.main.ToEvict(req)
		if victim != nil && w.estimate(moved.ID) > w.estimate(victim.ID) {
			w.main.Evict(req)
			w.main.Admit(&moved)
			w.nAdmit++
		} else {
			w.nReject++
		}
		return
	}
	if w.main.ObjectCount() > 0 {
		w.main.Evict(req)
		return
	}
	w.window.Evict(req)
}

func (w *tinyLFU) Remove(id uint64) bool {
	if w.window != nil && w.window.Remove(id) {
		return true
	}
	return w.main.Remove(id)
}

func (w *tinyLFU) OccupiedBytes() int64 {
	if w.window == nil {
		return w.main.OccupiedBytes()
	}
	return w.window.OccupiedBytes() + w.main.OccupiedBytes()
}

func (w *tinyLFU) ObjectCount() int64 {
	if w.window == nil {
		return w.main.ObjectCount()
	}
	return w.window.ObjectCount() + w.main.ObjectCount()
}

func (w *tinyLFU) SubCaches() []*cache.Cache {
	if w.window == nil {
		return []*cache.Cache{w.main}
	}
	return []*cache.Cache{w.window, w.main}
}

func (w *tinyLFU) Describe() string { return w.desc }

func (w *tinyLFU) Counters() map[string]int64 {
	m := map[string]int64{
		"n_admit":    w.nAdmit,
		"n_reject":   w.nReject,
		"n_decay":    w.nDecay,
		"main_bytes": w.main.OccupiedBytes(),
	}
	if w.window != nil {
		m["window_bytes"] = w.window.OccupiedBytes()
	}
	return m
}

func (w *tinyLFU) Close() error {
	if w.window != nil {
		if err := w.window.Close(); err != nil {
			return err
		}
	}
	return w.main.Close()
}
