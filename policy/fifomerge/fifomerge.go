// Package fifomerge implements FIFO-Merge, the segment-merge eviction of
// log-structured caches.
//
// Objects sit in one FIFO queue. Eviction works in batches: the n-exam
// objects at the tail are scored by a retention metric, the better half is
// moved back to the head and the worse half is evicted, one object per
// Evict call, before the next batch is examined. Evict therefore removes
// the next object of a batch chosen earlier, not necessarily the current
// worst object, and ToEvict is not supported.
package fifomerge

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/IvanBrykalov/cachesim/cache"
)

// Name is the registry name of the policy.
const Name = "FIFO_Merge"

// Metric scores an object for retention; higher scores are kept.
type Metric int

const (
	// Frequency keeps objects with more hits; a random fraction breaks ties.
	Frequency Metric = iota
	// Recency keeps recently accessed objects.
	Recency
	// Belady keeps objects that will be accessed soonest. Requests must
	// carry next-access times.
	Belady
)

var metricNames = []string{"freq", "recency", "belady"}

func (m Metric) String() string { return metricNames[m] }

// ParseMetric resolves a retain-metric name.
func ParseMetric(s string) (Metric, error) {
	for i, n := range metricNames {
		if strings.EqualFold(n, s) {
			return Metric(i), nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q (want %s)", s, strings.Join(metricNames, ", "))
}

type scored struct {
	h     cache.Handle
	score float64
}

type fifoMerge struct {
	c      *cache.Cache
	q      cache.List // head = newest
	metric Metric
	nExam  int
	keep   float64
	desc   string

	batch  []scored
	doomed []cache.Handle // worse part of the last batch, lowest score first
	pos    int

	nMerge  int64
	nRetain int64
}

var (
	_ cache.Policy        = (*fifoMerge)(nil)
	_ cache.CounterSource = (*fifoMerge)(nil)
)

// New constructs a FIFO_Merge cache.
//
// Parameters:
//   - n-exam:        objects scored per batch (default 100)
//   - retain-ratio:  share of each batch moved back to the head (default 0.5)
//   - retain-metric: freq, recency or belady (default freq)
func New(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	nExam := args.Int("n-exam", 100)
	args.Check(nExam >= 2 && nExam <= 1<<16, "n-exam", "must be in [2, 65536]")
	keep := args.Float("retain-ratio", 0.5)
	args.Check(keep >= 0 && keep < 1, "retain-ratio", "must be in [0, 1)")
	metricName := args.String("retain-metric", Frequency.String())
	metric, err := ParseMetric(metricName)
	args.Check(err == nil, "retain-metric", fmt.Sprint(err))
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(Name, p, func(c *cache.Cache) (cache.Policy, error) {
		return &fifoMerge{
			c:      c,
			q:      cache.NewList(),
			metric: metric,
			nExam:  int(nExam),
			keep:   keep,
			desc:   args.Effective(),
			batch:  make([]scored, 0, nExam),
		}, nil
	})
}

func (f *fifoMerge) Find(req *cache.Request, update bool) *cache.Object {
	return f.c.Lookup(req, update)
}

func (f *fifoMerge) Insert(req *cache.Request) *cache.Object {
	obj := f.c.InsertObject(req)
	f.q.PushFront(f.c.Store(), obj)
	return obj
}

func (f *fifoMerge) ToEvict(*cache.Request) *cache.Object {
	cache.Unsupported(Name, "ToEvict")
	return nil
}

func (f *fifoMerge) score(obj *cache.Object, now int64) float64 {
	switch f.metric {
	case Recency:
		return float64(obj.LastAccessVTime)
	case Belady:
		if obj.NextAccessVTime == cache.NoLookahead {
			panic(fmt.Sprintf("fifomerge: object %d has no next-access time; annotate the trace first", obj.ID))
		}
		return -float64(obj.NextAccessVTime - now)
	default:
		return float64(obj.Freq) + f.c.Rand().Float64()
	}
}

// merge scores the tail batch, moves the survivors to the head and queues
// the rest for eviction.
func (f *fifoMerge) merge(req *cache.Request) {
	s := f.c.Store()
	f.batch = f.batch[:0]
	for obj := f.q.Tail(s); obj != nil && len(f.batch) < f.nExam; obj = f.q.Prev(s, obj) {
		f.batch = append(f.batch, scored{h: obj.Handle(), score: f.score(obj, req.VTime)})
	}
	slices.SortStableFunc(f.batch, func(a, b scored) int { return cmp.Compare(b.score, a.score) })

	n := len(f.batch)
	nKeep := min(int(float64(n)*f.keep), n-1)
	// Survivors go to the head lowest score first, so the best ends up newest.
	for i := nKeep - 1; i >= 0; i-- {
		f.q.MoveToFront(s, s.Get(f.batch[i].h))
	}
	// The rest is evicted worst first.
	f.doomed = f.doomed[:0]
	for i := n - 1; i >= nKeep; i-- {
		f.doomed = append(f.doomed, f.batch[i].h)
	}
	f.pos = 0
	f.nMerge++
	f.nRetain += int64(nKeep)
}

// Evict removes the next object queued by the last merge, merging a new
// batch when none is left.
func (f *fifoMerge) Evict(req *cache.Request) {
	s := f.c.Store()
	for {
		for f.pos < len(f.doomed) {
			h := f.doomed[f.pos]
			f.pos++
			if !s.Valid(h) {
				continue
			}
			obj := s.Get(h)
			f.q.Remove(s, obj)
			f.c.RemoveObject(obj)
			return
		}
		cache.Assert(f.q.Len() > 0, "FIFO_Merge evict on an empty cache")
		f.merge(req)
	}
}

func (f *fifoMerge) Remove(id uint64) bool {
	obj := f.c.Store().Find(id)
	if obj == nil {
		return false
	}
	f.q.Remove(f.c.Store(), obj)
	f.c.RemoveObject(obj)
	return true
}

func (f *fifoMerge) Describe() string { return f.desc }

func (f *fifoMerge) Counters() map[string]int64 {
	return map[string]int64{
		"n_merge":  f.nMerge,
		"n_retain": f.nRetain,
		"n_queued": int64(len(f.doomed) - f.pos),
	}
}
