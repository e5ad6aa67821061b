// Package belady implements the offline optimal policy: evict the object
// whose next access lies furthest in the future (or never comes).
// Requests must carry NextAccessVTime; see trace.AnnotateNextAccess.
package belady

import (
	"fmt"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/pqueue"
)

// Name is the registry name of the policy.
const Name = "Belady"

type belady struct {
	c    *cache.Cache
	heap *pqueue.Heap[cache.Handle, int64] // max-heap on next access vtime
}

// New constructs a Belady cache. Belady takes no parameters.
func New(p cache.Params, args *cache.Args) (*cache.Cache, error) {
	if err := args.Err(); err != nil {
		return nil, err
	}
	return cache.New(Name, p, func(c *cache.Cache) (cache.Policy, error) {
		b := &belady{c: c}
		s := c.Store()
		b.heap = pqueue.NewMax[cache.Handle, int64](1024, func(h cache.Handle, i int) { s.Get(h).HeapIndex = i })
		return b, nil
	})
}

func nextAccess(req *cache.Request) int64 {
	if req.NextAccessVTime == cache.NoLookahead {
		panic(fmt.Sprintf("belady: request for object %d has no next-access time; annotate the trace first", req.ID))
	}
	return req.NextAccessVTime
}

func (b *belady) Find(req *cache.Request, update bool) *cache.Object {
	obj := b.c.Lookup(req, update)
	if obj != nil && update {
		b.heap.Update(obj.HeapIndex, nextAccess(req))
	}
	return obj
}

func (b *belady) Insert(req *cache.Request) *cache.Object {
	next := nextAccess(req)
	obj := b.c.InsertObject(req)
	b.heap.Push(obj.Handle(), next)
	return obj
}

func (b *belady) ToEvict(*cache.Request) *cache.Object {
	h, _, ok := b.heap.Peek()
	if !ok {
		return nil
	}
	return b.c.Store().Get(h)
}

func (b *belady) Evict(*cache.Request) {
	h, _, ok := b.heap.Pop()
	cache.Assert(ok, "Belady evict on an empty cache")
	b.c.RemoveObject(b.c.Store().Get(h))
}

func (b *belady) Remove(id uint64) bool {
	obj := b.c.Store().Find(id)
	if obj == nil {
		return false
	}
	b.heap.Remove(obj.HeapIndex)
	b.c.RemoveObject(obj)
	return true
}
