// Package lru implements least-recently-used eviction: a hit moves the
// object to the head of the queue and the tail is evicted.
package lru

import "github.com/IvanBrykalov/cachesim/cache"

// Name is the registry name of the policy.
const Name = "LRU"

// LRU is exported so composite policies can walk its queue.
type LRU struct {
	c *cache.Cache
	q cache.List // head = MRU, tail = LRU
}

// New constructs an LRU cache. LRU takes no parameters.
func New(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(Name, p, func(c *cache.Cache) (cache.Policy, error) {
		return &LRU{c: c, q: cache.NewList()}, nil
	})
}

// Find promotes the object to MRU when update is set.
func (l *LRU) Find(req *cache.Request, update bool) *cache.Object {
	obj := l.c.Lookup(req, update)
	if obj != nil && update {
		l.q.MoveToFront(l.c.Store(), obj)
	}
	return obj
}

// Insert admits the object at MRU.
func (l *LRU) Insert(req *cache.Request) *cache.Object {
	obj := l.c.InsertObject(req)
	l.q.PushFront(l.c.Store(), obj)
	return obj
}

// ToEvict returns the LRU object.
func (l *LRU) ToEvict(*cache.Request) *cache.Object { return l.q.Tail(l.c.Store()) }

// Evict drops the LRU object.
func (l *LRU) Evict(*cache.Request) {
	obj := l.q.Tail(l.c.Store())
	cache.Assert(obj != nil, "LRU evict on an empty cache")
	l.q.Remove(l.c.Store(), obj)
	l.c.RemoveObject(obj)
}

// Remove drops id if present.
func (l *LRU) Remove(id uint64) bool {
	obj := l.c.Store().Find(id)
	if obj == nil {
		return false
	}
	l.q.Remove(l.c.Store(), obj)
	l.c.RemoveObject(obj)
	return true
}

// Walk calls fn from MRU to LRU until fn returns false.
func (l *LRU) Walk(fn func(*cache.Object) bool) {
	s := l.c.Store()
	for obj := l.q.Head(s); obj != nil; obj = l.q.Next(s, obj) {
		if !fn(obj) {
			return
		}
	}
}
