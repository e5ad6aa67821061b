// Package pqueue is a binary heap with position tracking, so entries can be
// removed or re-prioritized in O(log n) given their index.
package pqueue

import "cmp"

type entry[T any, P cmp.Ordered] struct {
	val T
	pri P
}

// Heap orders values by priority: smallest first for NewMin, largest first
// for NewMax. Ties are broken by heap position, not insertion order.
//
// onMove is called with a value and its new index whenever the value moves,
// and with -1 when it leaves the heap; callers store the index to pass to
// Remove and Update later.
type Heap[T any, P cmp.Ordered] struct {
	items  []entry[T, P]
	max    bool
	onMove func(T, int)
}

// NewMin returns a min-heap with room for hint entries.
func NewMin[T any, P cmp.Ordered](hint int, onMove func(T, int)) *Heap[T, P] {
	return &Heap[T, P]{items: make([]entry[T, P], 0, hint), onMove: onMove}
}

// NewMax returns a max-heap with room for hint entries.
func NewMax[T any, P cmp.Ordered](hint int, onMove func(T, int)) *Heap[T, P] {
	h := NewMin[T, P](hint, onMove)
	h.max = true
	return h
}

// Len returns the number of entries.
func (h *Heap[T, P]) Len() int { return len(h.items) }

// Push adds v with priority p.
func (h *Heap[T, P]) Push(v T, p P) {
	h.items = append(h.items, entry[T, P]{val: v, pri: p})
	i := len(h.items) - 1
	h.moved(i)
	h.up(i)
}

// Peek returns the top entry without removing it.
func (h *Heap[T, P]) Peek() (v T, p P, ok bool) {
	if len(h.items) == 0 {
		return v, p, false
	}
	return h.items[0].val, h.items[0].pri, true
}

// Pop removes and returns the top entry.
func (h *Heap[T, P]) Pop() (v T, p P, ok bool) {
	if len(h.items) == 0 {
		return v, p, false
	}
	e := h.items[0]
	h.Remove(0)
	return e.val, e.pri, true
}

// Remove deletes the entry at index i and returns its value.
func (h *Heap[T, P]) Remove(i int) T {
	if i < 0 || i >= len(h.items) {
		panic("pqueue: index out of range")
	}
	e := h.items[i]
	last := len(h.items) - 1
	if i != last {
		h.swap(i, last)
	}
	h.items = h.items[:last]
	if h.onMove != nil {
		h.onMove(e.val, -1)
	}
	if i != last {
		if !h.down(i) {
			h.up(i)
		}
	}
	return e.val
}

// Update changes the priority of the entry at index i.
func (h *Heap[T, P]) Update(i int, p P) {
	if i < 0 || i >= len(h.items) {
		panic("pqueue: index out of range")
	}
	h.items[i].pri = p
	if !h.down(i) {
		h.up(i)
	}
}

// Priority returns the priority of the entry at index i.
func (h *Heap[T, P]) Priority(i int) P { return h.items[i].pri }

// Value returns the value at index i.
func (h *Heap[T, P]) Value(i int) T { return h.items[i].val }

func (h *Heap[T, P]) before(i, j int) bool {
	if h.max {
		return h.items[i].pri > h.items[j].pri
	}
	return h.items[i].pri < h.items[j].pri
}

func (h *Heap[T, P]) moved(i int) {
	if h.onMove != nil {
		h.onMove(h.items[i].val, i)
	}
}

func (h *Heap[T, P]) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.moved(i)
	h.moved(j)
}

func (h *Heap[T, P]) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.before(i, parent) {
			return
		}
		h.swap(i, parent)
		i = parent
	}
}

// down sifts i towards the leaves and reports whether it moved.
func (h *Heap[T, P]) down(i int) bool {
	start := i
	n := len(h.items)
	for {
		l := 2*i + 1
		if l >= n {
			break
		}
		best := l
		if r := l + 1; r < n && h.before(r, l) {
			best = r
		}
		if !h.before(best, i) {
			break
		}
		h.swap(i, best)
		i = best
	}
	return i > start
}
