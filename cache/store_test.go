package cache

import (
	"math/rand/v2"
	"strings"
	"testing"
)

func mustPanic(t *testing.T, want string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic containing %q", want)
		}
		if msg, ok := r.(string); ok && !strings.Contains(msg, want) {
			t.Fatalf("panic %q, want it to contain %q", msg, want)
		}
	}()
	fn()
}

func TestStore_InsertFindDelete(t *testing.T) {
	t.Parallel()

	s := NewStore(4)
	a := s.Insert(1, 10)
	b := s.Insert(2, 20)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if got := s.Find(1); got != a {
		t.Fatalf("Find(1) = %p, want %p", got, a)
	}
	if got := s.Get(b.Handle()); got.ID != 2 || got.Size != 20 {
		t.Fatalf("Get(b) = %+v", got)
	}
	s.Delete(a)
	if s.Find(1) != nil {
		t.Fatal("Find(1) after Delete must be nil")
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	if s.Find(2) != b {
		t.Fatal("deleting 1 must not disturb 2")
	}
}

func TestStore_StaleHandlePanics(t *testing.T) {
	t.Parallel()

	s := NewStore(4)
	a := s.Insert(1, 1)
	h := a.Handle()
	s.Delete(a)
	// The slot is reused with a new generation.
	c := s.Insert(3, 1)
	if c.Handle() == h {
		t.Fatal("reused slot must get a fresh generation")
	}
	mustPanic(t, "stale handle", func() { s.Get(h) })
}

func TestStore_DuplicateInsertPanics(t *testing.T) {
	t.Parallel()

	s := NewStore(4)
	s.Insert(7, 1)
	mustPanic(t, "duplicate insert", func() { s.Insert(7, 1) })
}

func TestStore_DeleteLinkedPanics(t *testing.T) {
	t.Parallel()

	s := NewStore(4)
	l := NewList()
	o := s.Insert(1, 1)
	l.PushFront(s, o)
	mustPanic(t, "still linked", func() { s.Delete(o) })
}

func TestStore_PointersStableAcrossGrowth(t *testing.T) {
	t.Parallel()

	s := NewStore(0)
	first := s.Insert(0, 1)
	for i := uint64(1); i < 3*chunkSize; i++ {
		s.Insert(i, 1)
	}
	if first.ID != 0 || s.Find(0) != first {
		t.Fatal("object moved while the arena grew")
	}
}

func TestStore_RandomIsUniformOverLive(t *testing.T) {
	t.Parallel()

	s := NewStore(4)
	for i := uint64(0); i < 8; i++ {
		s.Insert(i, 1)
	}
	// Delete the odd ids; only even ids may be sampled.
	for i := uint64(1); i < 8; i += 2 {
		s.Delete(s.Find(i))
	}
	r := rand.New(rand.NewPCG(1, 2))
	seen := map[uint64]int{}
	for i := 0; i < 4000; i++ {
		o := s.Random(r)
		if o.ID%2 != 0 {
			t.Fatalf("sampled deleted object %d", o.ID)
		}
		seen[o.ID]++
	}
	for id := uint64(0); id < 8; id += 2 {
		if seen[id] < 800 || seen[id] > 1200 {
			t.Fatalf("object %d sampled %d times out of 4000, want ~1000", id, seen[id])
		}
	}
}

func TestStore_RandomEmpty(t *testing.T) {
	t.Parallel()

	if o := NewStore(1).Random(rand.New(rand.NewPCG(1, 1))); o != nil {
		t.Fatalf("Random() on empty store = %v, want nil", o)
	}
}

func TestStore_Range(t *testing.T) {
	t.Parallel()

	s := NewStore(4)
	for i := uint64(0); i < 5; i++ {
		s.Insert(i, int64(i))
	}
	var total int64
	s.Range(func(o *Object) bool { total += o.Size; return true })
	if total != 10 {
		t.Fatalf("sum of sizes = %d, want 10", total)
	}
	n := 0
	s.Range(func(*Object) bool { n++; return n < 2 })
	if n != 2 {
		t.Fatalf("Range must stop when fn returns false, visited %d", n)
	}
}
