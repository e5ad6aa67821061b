package cache

import "fmt"

// List is an intrusive doubly linked list of objects in one Store.
// Head is the most recently inserted (or promoted) end; Tail is where
// policies take their eviction candidates from.
//
// Every object carries two independent link pairs, so an object can sit
// in one primary list (NewList) and one auxiliary list (NewAuxList) at the
// same time. Pushing an object that is already in a list of the same kind,
// or removing one that is not, panics.
type List struct {
	head, tail Handle
	n          int
	bytes      int64
	aux        bool
}

// NewList returns an empty list using the primary link pair.
func NewList() List { return List{} }

// NewAuxList returns an empty list using the auxiliary link pair.
func NewAuxList() List { return List{aux: true} }

// Len returns the number of objects in the list.
func (l *List) Len() int { return l.n }

// Bytes returns the summed object sizes in the list.
func (l *List) Bytes() int64 { return l.bytes }

// Head returns the object at the head, or nil.
func (l *List) Head(s *Store) *Object { return s.Get(l.head) }

// Tail returns the object at the tail, or nil.
func (l *List) Tail(s *Store) *Object { return s.Get(l.tail) }

func (l *List) bit() uint8 {
	if l.aux {
		return linkAux
	}
	return linkMain
}

func (l *List) links(o *Object) (prev, next *Handle) {
	if l.aux {
		return &o.auxPrev, &o.auxNext
	}
	return &o.prev, &o.next
}

// Next returns the neighbour of o towards the tail, or nil.
func (l *List) Next(s *Store, o *Object) *Object {
	_, next := l.links(o)
	return s.Get(*next)
}

// Prev returns the neighbour of o towards the head, or nil.
func (l *List) Prev(s *Store, o *Object) *Object {
	prev, _ := l.links(o)
	return s.Get(*prev)
}

// PushFront inserts o at the head.
func (l *List) PushFront(s *Store, o *Object) {
	if o.linked&l.bit() != 0 {
		panic(fmt.Sprintf("cache: object %d pushed while already linked", o.ID))
	}
	prev, next := l.links(o)
	*prev = 0
	*next = l.head
	if l.head != 0 {
		hp, _ := l.links(s.Get(l.head))
		*hp = o.self
	} else {
		l.tail = o.self
	}
	l.head = o.self
	l.attach(o)
}

// PushBack inserts o at the tail.
func (l *List) PushBack(s *Store, o *Object) {
	if o.linked&l.bit() != 0 {
		panic(fmt.Sprintf("cache: object %d pushed while already linked", o.ID))
	}
	prev, next := l.links(o)
	*next = 0
	*prev = l.tail
	if l.tail != 0 {
		_, tn := l.links(s.Get(l.tail))
		*tn = o.self
	} else {
		l.head = o.self
	}
	l.tail = o.self
	l.attach(o)
}

func (l *List) attach(o *Object) {
	o.linked |= l.bit()
	l.n++
	l.bytes += o.Size
}

// Remove unlinks o from the list.
func (l *List) Remove(s *Store, o *Object) {
	if o.linked&l.bit() == 0 {
		panic(fmt.Sprintf("cache: object %d removed from a list it is not in", o.ID))
	}
	prev, next := l.links(o)
	if *prev != 0 {
		_, pn := l.links(s.Get(*prev))
		*pn = *next
	} else {
		if l.head != o.self {
			panic(fmt.Sprintf("cache: object %d is not the head of this list", o.ID))
		}
		l.head = *next
	}
	if *next != 0 {
		np, _ := l.links(s.Get(*next))
		*np = *prev
	} else {
		if l.tail != o.self {
			panic(fmt.Sprintf("cache: object %d is not the tail of this list", o.ID))
		}
		l.tail = *prev
	}
	*prev, *next = 0, 0
	o.linked &^= l.bit()
	l.n--
	l.bytes -= o.Size
}

// MoveToFront moves o, already in the list, to the head.
func (l *List) MoveToFront(s *Store, o *Object) {
	if l.head == o.self {
		return
	}
	l.Remove(s, o)
	l.PushFront(s, o)
}

// MoveToBack moves o, already in the list, to the tail.
func (l *List) MoveToBack(s *Store, o *Object) {
	if l.tail == o.self {
		return
	}
	l.Remove(s, o)
	l.PushBack(s, o)
}

// Linked reports whether o currently sits in a list of l's kind.
func (l *List) Linked(o *Object) bool { return o.linked&l.bit() != 0 }
