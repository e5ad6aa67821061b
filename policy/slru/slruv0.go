package slru

import (
	"fmt"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/policy/lru"
)

// NameV0 is the registry name of the sub-cache variant.
const NameV0 = "SLRUv0"

type slruV0 struct {
	c    *cache.Cache
	segs []*cache.Cache
	desc string

	nPromote int64
	nDemote  int64
}

// NewV0 constructs an SLRUv0 cache. Parameters are those of SLRU.
func NewV0(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	n := segments(args)
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(NameV0, p, func(c *cache.Cache) (cache.Policy, error) {
		s := &slruV0{c: c, segs: make([]*cache.Cache, n), desc: args.Effective()}
		for i, l := range limits(c.Capacity(), n) {
			seg, err := lru.New(c.Params().Sub(fmt.Sprintf("seg%d", i), l), nil)
			if err != nil {
				return nil, err
			}
			s.segs[i] = seg
		}
		return s, nil
	})
}

func (s *slruV0) CanInsert(req *cache.Request) bool {
	return req.Size+s.c.Overhead() <= s.segs[0].Capacity()
}

func (s *slruV0) Find(req *cache.Request, update bool) *cache.Object {
	top := len(s.segs) - 1
	for i, seg := range s.segs {
		obj := seg.Find(req, update)
		if obj == nil {
			continue
		}
		if !update || i == top {
			return obj
		}
		moved := *req
		obj.CopyTo(&moved)
		seg.Remove(obj.ID)
		obj = s.segs[i+1].Insert(&moved)
		s.nPromote++
		s.cool(req, i+1)
		return obj
	}
	return nil
}

func (s *slruV0) cool(req *cache.Request, from int) {
	for j := from; j >= 1; j-- {
		seg := s.segs[j]
		for seg.OccupiedBytes() > seg.Capacity() {
			victim := seg.ToEvict(req)
			moved := cache.Request{ClockTime: req.ClockTime, VTime: req.VTime}
			victim.CopyTo(&moved)
			seg.Remove(victim.ID)
			s.segs[j-1].Insert(&moved)
			s.nDemote++
		}
	}
}

func (s *slruV0) Insert(req *cache.Request) *cache.Object { return s.segs[0].Insert(req) }

func (s *slruV0) lowest() *cache.Cache {
	for _, seg := range s.segs {
		if seg.ObjectCount() > 0 {
			return seg
		}
	}
	return nil
}

func (s *slruV0) ToEvict(req *cache.Request) *cache.Object {
	if seg := s.lowest(); seg != nil {
		return seg.ToEvict(req)
	}
	return nil
}

func (s *slruV0) Evict(req *cache.Request) {
	seg := s.lowest()
	cache.Assert(seg != nil, "SLRUv0 evict on an empty cache")
	seg.Evict(req)
}

func (s *slruV0) Remove(id uint64) bool {
	for _, seg := range s.segs {
		if seg.Remove(id) {
			return true
		}
	}
	return false
}

func (s *slruV0) OccupiedBytes() int64 {
	var n int64
	for _, seg := range s.segs {
		n += seg.OccupiedBytes()
	}
	return n
}

func (s *slruV0) ObjectCount() int64 {
	var n int64
	for _, seg := range s.segs {
		n += seg.ObjectCount()
	}
	return n
}

// Segment reports which segment holds id, or -1.
func (s *slruV0) Segment(id uint64) int {
	for i, seg := range s.segs {
		if seg.Find(&cache.Request{ID: id}, false) != nil {
			return i
		}
	}
	return -1
}

func (s *slruV0) Describe() string { return s.desc }

func (s *slruV0) Counters() map[string]int64 {
	return map[string]int64{
		"n_promote": s.nPromote,
		"n_demote":  s.nDemote,
	}
}

func (s *slruV0) Close() error {
	for _, seg := range s.segs {
		if err := seg.Close(); err != nil {
			return err
		}
	}
	return nil
}
