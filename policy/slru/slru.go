// Package slru implements segmented LRU and its FIFO sibling.
//
// The cache is split into n equal segments, 0 being the lowest. New objects
// enter segment 0. A hit moves an object one segment up; at the top it is
// refreshed in place (SLRU) or left alone (SFIFO). A segment that grows
// past its share demotes its tail to the head of the segment below, and so
// on down to segment 0, which is where evictions come from.
//
// SLRU and SFIFO keep every segment as a list in one store. SLRUv0 builds
// the same thing from one LRU sub-cache per segment.
package slru

import (
	"github.com/IvanBrykalov/cachesim/cache"
)

// Registry names.
const (
	Name     = "SLRU"
	NameFIFO = "SFIFO"
)

type slru struct {
	c     *cache.Cache
	fifo  bool
	segs  []cache.List // head = MRU
	limit []int64
	desc  string

	nPromote int64
	nDemote  int64
}

// New constructs an SLRU cache.
//
// Parameters:
//   - n-seg: number of segments, 1..16 (default 4)
func New(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	return build(Name, p, args, false)
}

// NewFIFO constructs an SFIFO cache. Parameters are those of SLRU.
func NewFIFO(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	return build(NameFIFO, p, args, true)
}

func segments(args *cache.Args) int {
	n := args.Int("n-seg", 4)
	args.Check(n >= 1 && n <= 16, "n-seg", "must be in [1, 16]")
	return int(max(n, 1))
}

// limits splits capacity into n shares; the top segment takes the remainder.
func limits(capacity int64, n int) []int64 {
	per := max(capacity/int64(n), 1)
	l := make([]int64, n)
	for i := range l {
		l[i] = per
	}
	l[n-1] = max(capacity-per*int64(n-1), 1)
	return l
}

func build(name string, p cache.Params, args *cache.Args, fifo bool) (*cache.Cache, error) {
	n := segments(args)
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(name, p, func(c *cache.Cache) (cache.Policy, error) {
		s := &slru{
			c:     c,
			fifo:  fifo,
			segs:  make([]cache.List, n),
			limit: limits(c.Capacity(), n),
			desc:  args.Effective(),
		}
		for i := range s.segs {
			s.segs[i] = cache.NewList()
		}
		return s, nil
	})
}

func (s *slru) bytes(i int) int64 {
	return s.segs[i].Bytes() + s.c.Overhead()*int64(s.segs[i].Len())
}

// CanInsert rejects objects that do not fit a single segment.
func (s *slru) CanInsert(req *cache.Request) bool {
	return req.Size+s.c.Overhead() <= s.limit[0]
}

func (s *slru) Find(req *cache.Request, update bool) *cache.Object {
	obj := s.c.Lookup(req, update)
	if obj == nil || !update {
		return obj
	}
	st := s.c.Store()
	i := int(obj.Seg)
	top := len(s.segs) - 1
	if i == top {
		if !s.fifo {
			s.segs[i].MoveToFront(st, obj)
		}
		return obj
	}
	s.segs[i].Remove(st, obj)
	obj.Seg = int32(i + 1)
	s.segs[i+1].PushFront(st, obj)
	s.nPromote++
	s.cool(i + 1)
	return obj
}

// cool demotes tails from segment from downwards until every segment
// above 0 is within its share.
func (s *slru) cool(from int) {
	st := s.c.Store()
	for j := from; j >= 1; j-- {
		for s.bytes(j) > s.limit[j] {
			obj := s.segs[j].Tail(st)
			s.segs[j].Remove(st, obj)
			obj.Seg = int32(j - 1)
			s.segs[j-1].PushFront(st, obj)
			s.nDemote++
		}
	}
}

func (s *slru) Insert(req *cache.Request) *cache.Object {
	obj := s.c.InsertObject(req)
	obj.Seg = 0
	s.segs[0].PushFront(s.c.Store(), obj)
	return obj
}

// lowest returns the lowest non-empty segment, or -1.
func (s *slru) lowest() int {
	for i := range s.segs {
		if s.segs[i].Len() > 0 {
			return i
		}
	}
	return -1
}

func (s *slru) ToEvict(*cache.Request) *cache.Object {
	i := s.lowest()
	if i < 0 {
		return nil
	}
	return s.segs[i].Tail(s.c.Store())
}

func (s *slru) Evict(req *cache.Request) {
	obj := s.ToEvict(req)
	cache.Assert(obj != nil, "SLRU evict on an empty cache")
	s.segs[obj.Seg].Remove(s.c.Store(), obj)
	s.c.RemoveObject(obj)
}

func (s *slru) Remove(id uint64) bool {
	obj := s.c.Store().Find(id)
	if obj == nil {
		return false
	}
	s.segs[obj.Seg].Remove(s.c.Store(), obj)
	s.c.RemoveObject(obj)
	return true
}

// Segment reports which segment holds id, or -1.
func (s *slru) Segment(id uint64) int {
	obj := s.c.Store().Find(id)
	if obj == nil {
		return -1
	}
	return int(obj.Seg)
}

func (s *slru) Describe() string { return s.desc }

func (s *slru) Counters() map[string]int64 {
	return map[string]int64{
		"n_promote": s.nPromote,
		"n_demote":  s.nDemote,
	}
}
