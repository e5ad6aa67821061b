// Package size implements size-based eviction: the largest resident object
// is evicted first.
package size

import (
	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/pqueue"
)

// Name is the registry name of the policy.
const Name = "Size"

type sizePolicy struct {
	c    *cache.Cache
	heap *pqueue.Heap[cache.Handle, int64] // max-heap on object size
}

// New constructs a Size cache. Size takes no parameters.
func New(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(Name, p, func(c *cache.Cache) (cache.Policy, error) {
		s := c.Store()
		return &sizePolicy{
			c:    c,
			heap: pqueue.NewMax[cache.Handle, int64](1024, func(h cache.Handle, i int) { s.Get(h).HeapIndex = i }),
		}, nil
	})
}

func (p *sizePolicy) Find(req *cache.Request, update bool) *cache.Object {
	return p.c.Lookup(req, update)
}

func (p *sizePolicy) Insert(req *cache.Request) *cache.Object {
	obj := p.c.InsertObject(req)
	p.heap.Push(obj.Handle(), obj.Size)
	return obj
}

func (p *sizePolicy) ToEvict(*cache.Request) *cache.Object {
	h, _, ok := p.heap.Peek()
	if !ok {
		return nil
	}
	return p.c.Store().Get(h)
}

func (p *sizePolicy) Evict(*cache.Request) {
	h, _, ok := p.heap.Pop()
	cache.Assert(ok, "Size evict on an empty cache")
	p.c.RemoveObject(p.c.Store().Get(h))
}

func (p *sizePolicy) Remove(id uint64) bool {
	obj := p.c.Store().Find(id)
	if obj == nil {
		return false
	}
	p.heap.Remove(obj.HeapIndex)
	p.c.RemoveObject(obj)
	return true
}
