package cache

import (
	"fmt"
	"math/rand/v2"
)

const (
	chunkBits = 12
	chunkSize = 1 << chunkBits
	chunkMask = chunkSize - 1
)

// Store is the object arena and id index of one Cache.
//
// Objects are allocated in fixed-size chunks so pointers stay valid while
// the arena grows. A deleted slot bumps its generation, so any handle still
// pointing at it panics on use instead of silently reading a recycled
// object.
type Store struct {
	index  map[uint64]Handle
	chunks [][]Object
	free   []uint32
	next   uint32
	live   []Handle // dense set of live handles for uniform sampling
}

// NewStore returns a store whose index is pre-sized to 1<<hashPower entries.
func NewStore(hashPower int) *Store {
	if hashPower < 0 {
		hashPower = 0
	}
	if hashPower > 26 {
		hashPower = 26
	}
	return &Store{index: make(map[uint64]Handle, 1<<hashPower)}
}

// Len returns the number of live objects.
func (s *Store) Len() int { return len(s.live) }

func (s *Store) slot(idx uint32) *Object {
	return &s.chunks[idx>>chunkBits][idx&chunkMask]
}

func (s *Store) alloc() uint32 {
	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		return idx
	}
	idx := s.next
	if idx&chunkMask == 0 && int(idx>>chunkBits) == len(s.chunks) {
		s.chunks = append(s.chunks, make([]Object, chunkSize))
	}
	s.next++
	return idx
}

// Insert creates a new object for id. Inserting an id that is already
// present is a programming error and panics.
func (s *Store) Insert(id uint64, size int64) *Object {
	if h, ok := s.index[id]; ok {
		panic(fmt.Sprintf("cache: duplicate insert of object %d (handle %s)", id, h))
	}
	idx := s.alloc()
	obj := s.slot(idx)
	gen := obj.gen
	if gen == 0 {
		gen = 1
	}
	*obj = Object{ID: id, Size: size, gen: gen, HeapIndex: -1}
	obj.self = makeHandle(idx, gen)
	obj.livePos = int32(len(s.live))
	s.live = append(s.live, obj.self)
	s.index[id] = obj.self
	return obj
}

// Find returns the object for id, or nil.
func (s *Store) Find(id uint64) *Object {
	h, ok := s.index[id]
	if !ok {
		return nil
	}
	return s.Get(h)
}

// Get resolves a handle. The nil handle resolves to nil; a stale handle
// panics.
func (s *Store) Get(h Handle) *Object {
	if h == 0 {
		return nil
	}
	idx := h.index()
	if idx >= s.next {
		panic(fmt.Sprintf("cache: handle %s out of range", h))
	}
	obj := s.slot(idx)
	if obj.self != h {
		panic(fmt.Sprintf("cache: stale handle %s (slot holds %s)", h, obj.self))
	}
	return obj
}

// Valid reports whether h still refers to a live object.
func (s *Store) Valid(h Handle) bool {
	if h == 0 || h.index() >= s.next {
		return false
	}
	return s.slot(h.index()).self == h
}

// Delete frees obj's slot in O(1). The object must already be unlinked
// from every List; deleting a linked object panics.
func (s *Store) Delete(obj *Object) {
	if obj.self == 0 {
		panic("cache: delete of a dead object")
	}
	if obj.linked != 0 {
		panic(fmt.Sprintf("cache: object %d deleted while still linked", obj.ID))
	}
	delete(s.index, obj.ID)

	pos := obj.livePos
	last := s.live[len(s.live)-1]
	s.live[pos] = last
	s.slot(last.index()).livePos = pos
	s.live = s.live[:len(s.live)-1]

	idx := obj.self.index()
	gen := obj.gen + 1
	if gen == 0 {
		gen = 1
	}
	*obj = Object{gen: gen}
	s.free = append(s.free, idx)
}

// Random returns a uniformly sampled live object, or nil when empty.
func (s *Store) Random(r *rand.Rand) *Object {
	if len(s.live) == 0 {
		return nil
	}
	return s.Get(s.live[r.IntN(len(s.live))])
}

// Range calls fn for every live object until fn returns false.
// fn must not insert or delete objects.
func (s *Store) Range(fn func(*Object) bool) {
	for _, h := range s.live {
		if !fn(s.Get(h)) {
			return
		}
	}
}
