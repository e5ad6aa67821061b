package cache

import (
	"errors"
	"testing"
)

// fifoPolicy is a minimal FIFO used to exercise the Cache orchestration.
type fifoPolicy struct {
	c *Cache
	q List
}

func newFIFO(t *testing.T, p Params) *Cache {
	t.Helper()
	c, err := New("testfifo", p, func(c *Cache) (Policy, error) {
		return &fifoPolicy{c: c, q: NewList()}, nil
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func (f *fifoPolicy) Find(req *Request, update bool) *Object { return f.c.Lookup(req, update) }

func (f *fifoPolicy) Insert(req *Request) *Object {
	o := f.c.InsertObject(req)
	f.q.PushFront(f.c.Store(), o)
	return o
}

func (f *fifoPolicy) Evict(*Request) {
	o := f.q.Tail(f.c.Store())
	f.q.Remove(f.c.Store(), o)
	f.c.RemoveObject(o)
}

func (f *fifoPolicy) ToEvict(*Request) *Object { return f.q.Tail(f.c.Store()) }

func (f *fifoPolicy) Remove(id uint64) bool {
	o := f.c.Store().Find(id)
	if o == nil {
		return false
	}
	f.q.Remove(f.c.Store(), o)
	f.c.RemoveObject(o)
	return true
}

type countingMetrics struct{ hits, misses, evicts, ttl int }

func (m *countingMetrics) Hit()  { m.hits++ }
func (m *countingMetrics) Miss() { m.misses++ }
func (m *countingMetrics) Evict(r EvictReason) {
	if r == EvictTTL {
		m.ttl++
		return
	}
	m.evicts++
}
func (m *countingMetrics) Size(int64, int64) {}

func TestCache_GetHitMissAndEviction(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	c := newFIFO(t, Params{Capacity: 3, Metrics: m})

	var got []bool
	for _, id := range []uint64{1, 2, 3, 1, 4} {
		got = append(got, c.Get(&Request{ID: id, Size: 1}))
	}
	want := []bool{false, false, false, true, false}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("hit sequence = %v, want %v", got, want)
		}
	}
	if c.Store().Find(1) != nil {
		t.Fatal("FIFO must evict 1 despite its hit")
	}
	if c.OccupiedBytes() != 3 || c.ObjectCount() != 3 {
		t.Fatalf("occupied/count = %d/%d, want 3/3", c.OccupiedBytes(), c.ObjectCount())
	}
	st := c.Stats()
	if st.Requests != 5 || st.Hits != 1 || st.Misses != 4 || st.Evictions != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if m.hits != 1 || m.misses != 4 || m.evicts != 1 {
		t.Fatalf("metrics = %+v", m)
	}
	if c.NumRequests() != 5 {
		t.Fatalf("NumRequests() = %d, want 5", c.NumRequests())
	}
}

func TestCache_GetStampsVTime(t *testing.T) {
	t.Parallel()

	c := newFIFO(t, Params{Capacity: 10})
	req := &Request{ID: 1, Size: 1}
	c.Get(req)
	c.Get(&Request{ID: 2, Size: 1})
	c.Get(req)
	if req.VTime != 3 {
		t.Fatalf("VTime = %d, want 3", req.VTime)
	}
	if o := c.Store().Find(1); o.CreateVTime != 1 || o.LastAccessVTime != 3 || o.Freq != 1 {
		t.Fatalf("object metadata = %+v", o)
	}
}

func TestCache_OversizeIsPassThrough(t *testing.T) {
	t.Parallel()

	c := newFIFO(t, Params{Capacity: 10})
	c.Get(&Request{ID: 1, Size: 4})
	if c.Get(&Request{ID: 2, Size: 11}) {
		t.Fatal("oversize request must miss")
	}
	if c.ObjectCount() != 1 || c.OccupiedBytes() != 4 {
		t.Fatal("oversize request must not change state")
	}
	if c.Stats().Oversize != 1 {
		t.Fatalf("Oversize = %d, want 1", c.Stats().Oversize)
	}
}

func TestCache_MetadataOverheadCounts(t *testing.T) {
	t.Parallel()

	c := newFIFO(t, Params{Capacity: 100, TrackMetadata: true, ObjectOverhead: 10})
	for id := uint64(1); id <= 5; id++ {
		c.Get(&Request{ID: id, Size: 15})
	}
	// 25 bytes per object: four fit.
	if c.ObjectCount() != 4 || c.OccupiedBytes() != 100 {
		t.Fatalf("count/occupied = %d/%d, want 4/100", c.ObjectCount(), c.OccupiedBytes())
	}
	if c.CanInsert(&Request{Size: 91}) {
		t.Fatal("91+10 bytes must not be admissible in 100")
	}
}

func TestCache_TTLExpiresOnLookup(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	c := newFIFO(t, Params{Capacity: 10, DefaultTTL: 5, Metrics: m})
	c.Get(&Request{ID: 1, Size: 1, ClockTime: 100})
	if !c.Get(&Request{ID: 1, Size: 1, ClockTime: 105}) {
		t.Fatal("object within TTL must hit")
	}
	if c.Get(&Request{ID: 1, Size: 1, ClockTime: 106}) {
		t.Fatal("expired object must miss")
	}
	if c.Stats().Expired != 1 || m.ttl != 1 {
		t.Fatalf("Expired = %d, ttl metric = %d, want 1/1", c.Stats().Expired, m.ttl)
	}
	// The miss re-admitted it with a fresh deadline.
	if o := c.Store().Find(1); o == nil || o.ExpireTime != 111 {
		t.Fatalf("re-admitted object = %+v", o)
	}
}

func TestCache_FindWithoutUpdateDoesNotMutate(t *testing.T) {
	t.Parallel()

	c := newFIFO(t, Params{Capacity: 10})
	c.Get(&Request{ID: 1, Size: 1})
	o := c.Find(&Request{ID: 1, VTime: 99}, false)
	if o == nil || o.Freq != 0 || o.LastAccessVTime != 1 {
		t.Fatalf("peek mutated object: %+v", o)
	}
}

func TestCache_RemoveAndClose(t *testing.T) {
	t.Parallel()

	c := newFIFO(t, Params{Capacity: 10})
	c.Get(&Request{ID: 1, Size: 2})
	if c.Remove(2) {
		t.Fatal("Remove of an absent id must be false")
	}
	if !c.Remove(1) || c.OccupiedBytes() != 0 {
		t.Fatal("Remove(1) must release its bytes")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.Get(&Request{ID: 1, Size: 1}) {
		t.Fatal("closed cache must miss")
	}
}

func TestCache_ZeroCapacityIsConfigError(t *testing.T) {
	t.Parallel()

	_, err := New("x", Params{}, func(c *Cache) (Policy, error) { return &fifoPolicy{c: c}, nil })
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}

func TestCache_EvictWithoutProgressPanics(t *testing.T) {
	t.Parallel()

	c, err := New("stuck", Params{Capacity: 2}, func(c *Cache) (Policy, error) {
		return &stuckPolicy{fifoPolicy{c: c}}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	c.Get(&Request{ID: 1, Size: 2})
	mustPanic(t, "no progress", func() { c.Get(&Request{ID: 2, Size: 1}) })
}

type stuckPolicy struct{ fifoPolicy }

func (*stuckPolicy) Evict(*Request) {}

func TestCache_VerifyCatchesAccountingDrift(t *testing.T) {
	t.Parallel()

	c := newFIFO(t, Params{Capacity: 4})
	for id := uint64(1); id <= 6; id++ {
		c.Get(&Request{ID: id, Size: 1})
	}
	c.Verify()

	c.occupied++
	mustPanic(t, "accounted", c.Verify)
}

func TestParams_SubAndGhost(t *testing.T) {
	t.Parallel()

	p := Params{Capacity: 100, TrackMetadata: true, ObjectOverhead: 8, Seed: 42, Metrics: &countingMetrics{}}
	sub := p.Sub("small", 10)
	if sub.Capacity != 10 || sub.Metrics != nil || sub.Seed == p.Seed || !sub.TrackMetadata {
		t.Fatalf("Sub = %+v", sub)
	}
	if g := p.Ghost("ghost", 0); g.Capacity != 1 || g.TrackMetadata {
		t.Fatalf("Ghost = %+v", g)
	}
}

func TestRouting_StaleDecisionIgnored(t *testing.T) {
	t.Parallel()

	var r Routing
	r.Set(&Request{VTime: 5}, RouteGhost1)
	if got := r.Peek(&Request{VTime: 6}); got != RouteMiss {
		t.Fatalf("Peek for another request = %v, want miss", got)
	}
	if got := r.Take(&Request{VTime: 5}); got != RouteGhost1 {
		t.Fatalf("Take = %v, want ghost1", got)
	}
	if got := r.Take(&Request{VTime: 5}); got != RouteMiss {
		t.Fatalf("second Take = %v, want miss", got)
	}
}

func TestRouting_OtherObjectSameRequest(t *testing.T) {
	t.Parallel()

	var r Routing
	r.Set(&Request{ID: 7, VTime: 3}, RouteGhost2)
	if got := r.Peek(&Request{ID: 8, VTime: 3}); got != RouteMiss {
		t.Fatalf("Peek for object 8 = %v, want miss", got)
	}
	if got := r.Take(&Request{ID: 7, VTime: 3}); got != RouteGhost2 {
		t.Fatalf("Take = %v, want ghost2", got)
	}
}

func TestUnsupportedPanicsWithSentinel(t *testing.T) {
	t.Parallel()

	defer func() {
		err, ok := recover().(error)
		if !ok || !errors.Is(err, ErrUnsupported) {
			t.Fatalf("recovered %v, want ErrUnsupported", err)
		}
	}()
	Unsupported("FIFO_Merge", "ToEvict")
}
