// Package lfu implements least-frequently-used eviction and its
// dynamic-aging variant LFUDA.
//
// Objects are grouped into buckets by priority; each bucket is a FIFO list
// and the non-empty buckets sit in a min-heap, so eviction takes the oldest
// object of the lowest bucket. For LFU the priority is the access count.
// For LFUDA it is the access count plus the cache age L, where L is raised
// to the lowest non-empty priority after every eviction; objects that stay
// cached keep the age they were last accessed at, so a burst of old
// popularity decays relative to newcomers.
package lfu

import (
	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/pqueue"
)

// Registry names.
const (
	Name   = "LFU"
	NameDA = "LFUDA"
)

type bucket struct {
	key int64
	q   cache.List
	idx int
}

type lfu struct {
	c       *cache.Cache
	aging   bool
	age     int64 // L for LFUDA
	buckets map[int64]*bucket
	heap    *pqueue.Heap[*bucket, int64]
}

// New constructs an LFU cache. LFU takes no parameters.
func New(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	return build(Name, p, args, false)
}

// NewDA constructs an LFUDA cache. LFUDA takes no parameters.
func NewDA(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	return build(NameDA, p, args, true)
}

func build(name string, p cache.Params, args *cache.Args, aging bool) (*cache.Cache, error) {
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(name, p, func(c *cache.Cache) (cache.Policy, error) {
		return &lfu{
			c:       c,
			aging:   aging,
			buckets: make(map[int64]*bucket),
			heap:    pqueue.NewMin[*bucket, int64](64, func(b *bucket, i int) { b.idx = i }),
		}, nil
	})
}

// priority of obj after its accesses so far; obj.Freq counts hits.
func (l *lfu) priority(obj *cache.Object) int64 {
	p := obj.Freq + 1
	if l.aging {
		p += l.age
	}
	return p
}

func (l *lfu) link(obj *cache.Object) {
	key := l.priority(obj)
	b := l.buckets[key]
	if b == nil {
		b = &bucket{key: key, q: cache.NewList()}
		l.buckets[key] = b
		l.heap.Push(b, key)
	}
	obj.Aux = key
	b.q.PushFront(l.c.Store(), obj)
}

func (l *lfu) unlink(obj *cache.Object) {
	b := l.buckets[obj.Aux]
	cache.Assert(b != nil, "LFU object points at a missing bucket")
	b.q.Remove(l.c.Store(), obj)
	if b.q.Len() == 0 {
		l.heap.Remove(b.idx)
		delete(l.buckets, b.key)
	}
}

func (l *lfu) Find(req *cache.Request, update bool) *cache.Object {
	obj := l.c.Lookup(req, update)
	if obj != nil && update {
		l.unlink(obj)
		l.link(obj)
	}
	return obj
}

func (l *lfu) Insert(req *cache.Request) *cache.Object {
	obj := l.c.InsertObject(req)
	l.link(obj)
	return obj
}

func (l *lfu) ToEvict(*cache.Request) *cache.Object {
	b, _, ok := l.heap.Peek()
	if !ok {
		return nil
	}
	return b.q.Tail(l.c.Store())
}

func (l *lfu) Evict(req *cache.Request) {
	obj := l.ToEvict(req)
	cache.Assert(obj != nil, "LFU evict on an empty cache")
	evicted := obj.Aux
	l.unlink(obj)
	l.c.RemoveObject(obj)
	if l.aging {
		l.age = evicted
		if _, low, ok := l.heap.Peek(); ok {
			l.age = low
		}
	}
}

func (l *lfu) Remove(id uint64) bool {
	obj := l.c.Store().Find(id)
	if obj == nil {
		return false
	}
	l.unlink(obj)
	l.c.RemoveObject(obj)
	return true
}

// MinFreq returns the lowest non-empty bucket priority (0 when empty).
func (l *lfu) MinFreq() int64 {
	if _, low, ok := l.heap.Peek(); ok {
		return low
	}
	return 0
}
