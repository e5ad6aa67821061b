// Package fifo implements first-in first-out eviction: objects leave in
// insertion order and hits do not reorder them.
package fifo

import "github.com/IvanBrykalov/cachesim/cache"

// Name is the registry name of the policy.
const Name = "FIFO"

type fifo struct {
	c *cache.Cache
	q cache.List // head = newest, tail = next victim
}

// New constructs a FIFO cache. FIFO takes no parameters.
func New(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(Name, p, func(c *cache.Cache) (cache.Policy, error) {
		return &fifo{c: c, q: cache.NewList()}, nil
	})
}

func (f *fifo) Find(req *cache.Request, update bool) *cache.Object {
	return f.c.Lookup(req, update)
}

func (f *fifo) Insert(req *cache.Request) *cache.Object {
	obj := f.c.InsertObject(req)
	f.q.PushFront(f.c.Store(), obj)
	return obj
}

func (f *fifo) ToEvict(*cache.Request) *cache.Object { return f.q.Tail(f.c.Store()) }

func (f *fifo) Evict(*cache.Request) {
	obj := f.q.Tail(f.c.Store())
	cache.Assert(obj != nil, "FIFO evict on an empty cache")
	f.q.Remove(f.c.Store(), obj)
	f.c.RemoveObject(obj)
}

func (f *fifo) Remove(id uint64) bool {
	obj := f.c.Store().Find(id)
	if obj == nil {
		return false
	}
	f.q.Remove(f.c.Store(), obj)
	f.c.RemoveObject(obj)
	return true
}
