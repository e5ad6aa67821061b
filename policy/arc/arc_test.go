package arc

import (
	"testing"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/policytest"
)

type adaptive interface{ P() float64 }

func target(c *cache.Cache) float64 { return c.Policy().(adaptive).P() }

func TestARC_GhostHitGrowsT1Target(t *testing.T) {
	t.Parallel()

	for name, ctor := range map[string]policytest.Constructor{Name: New, NameV0: NewV0} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := policytest.New(t, ctor, cache.Params{Capacity: 2}, "")
			// 1 reaches T2; 3 pushes 2 out of T1 into B1.
			policytest.ExpectHits(t, c, []uint64{1, 2, 1, 3}, []bool{false, false, true, false})
			policytest.ExpectResident(t, c, []uint64{1, 3}, []uint64{2})
			if p := target(c); p != 0 {
				t.Fatalf("p = %v before any history hit, want 0", p)
			}

			// 2 is a B1 hit: p grows, T1 is now at target, so T2 gives up 1.
			policytest.ExpectHits(t, c, []uint64{2}, []bool{false})
			if p := target(c); p != 1 {
				t.Fatalf("p = %v after a B1 hit, want 1", p)
			}
			policytest.ExpectResident(t, c, []uint64{2, 3}, []uint64{1})

			// 1 is a B2 hit: p shrinks back.
			policytest.ExpectHits(t, c, []uint64{1}, []bool{false})
			if p := target(c); p != 0 {
				t.Fatalf("p = %v after a B2 hit, want 0", p)
			}
		})
	}
}

func TestARC_TargetStaysInRange(t *testing.T) {
	t.Parallel()

	const capacity = 200
	c := policytest.New(t, New, cache.Params{Capacity: capacity}, "")
	reqs := policytest.Workload(7, 30_000, 1_000, 1)
	var prevHits int64
	prevP := 0.0
	for i := range reqs {
		req := reqs[i]
		c.Get(&req)
		p := target(c)
		if p < 0 || p > capacity {
			t.Fatalf("request %d: p = %v out of [0, %d]", i, p, capacity)
		}
		hits := c.Counters()["n_ghost1_hit"]
		if hits > prevHits && p < prevP {
			t.Fatalf("request %d: B1 hit decreased p from %v to %v", i, prevP, p)
		}
		prevHits, prevP = hits, p
	}
}

// With unit sizes the single-store and the sub-cache versions make the
// same decisions.
func TestARC_V0Agrees(t *testing.T) {
	t.Parallel()

	a := policytest.New(t, New, cache.Params{Capacity: 50}, "")
	b := policytest.New(t, NewV0, cache.Params{Capacity: 50}, "")
	reqs := policytest.Workload(3, 20_000, 400, 1)
	for i := range reqs {
		ra, rb := reqs[i], reqs[i]
		if ha, hb := a.Get(&ra), b.Get(&rb); ha != hb {
			t.Fatalf("request %d (id %d): ARC hit = %v, ARCv0 hit = %v", i, reqs[i].ID, ha, hb)
		}
	}
	if target(a) != target(b) {
		t.Fatalf("p diverged: %v vs %v", target(a), target(b))
	}
}

func TestARC_Capacity(t *testing.T) {
	t.Parallel()

	for name, ctor := range map[string]policytest.Constructor{Name: New, NameV0: NewV0, NameLP: NewLP} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := policytest.New(t, ctor, cache.Params{Capacity: 4_000, TrackMetadata: true, ObjectOverhead: 8}, "")
			hits := policytest.CheckCapacity(t, c, policytest.Workload(11, 20_000, 2_000, 100))
			if hits == 0 {
				t.Fatal("no hits on a skewed workload")
			}
		})
	}
}

func TestARC_ToEvictMatchesEvict(t *testing.T) {
	t.Parallel()

	c := policytest.New(t, New, cache.Params{Capacity: 3}, "")
	policytest.Access(c, 1, 2, 3, 1)
	req := &cache.Request{VTime: c.NumRequests() + 1}
	v := c.ToEvict(req)
	if v == nil || v.ID != 2 {
		t.Fatalf("ToEvict() = %v, want object 2 (LRU end of T1)", v)
	}
	c.Evict(req)
	policytest.ExpectResident(t, c, []uint64{1, 3}, []uint64{2})
}

func TestLPARC_LazyPromotion(t *testing.T) {
	t.Parallel()

	c := policytest.New(t, NewLP, cache.Params{Capacity: 2}, "")
	// The hit on 1 only marks it; 2 is evicted when 3 arrives and 1 moves
	// to T2 on the way.
	policytest.ExpectHits(t, c, []uint64{1, 2, 1, 3}, []bool{false, false, true, false})
	policytest.ExpectResident(t, c, []uint64{1, 3}, []uint64{2})
	if n := c.Counters()["n_lazy_promote"]; n != 1 {
		t.Fatalf("n_lazy_promote = %d, want 1", n)
	}
}

func TestLPARC_ToEvictUnsupported(t *testing.T) {
	t.Parallel()

	c := policytest.New(t, NewLP, cache.Params{Capacity: 2}, "")
	policytest.Access(c, 1)
	defer func() {
		if recover() == nil {
			t.Fatal("ToEvict on LP_ARC must panic")
		}
	}()
	c.ToEvict(&cache.Request{})
}

func TestARC_RemoveForgetsHistory(t *testing.T) {
	t.Parallel()

	c := policytest.New(t, New, cache.Params{Capacity: 2}, "")
	policytest.Access(c, 1, 2, 3) // 1 moves to B1
	if c.Remove(1) {
		t.Fatal("Remove of a history entry must report false")
	}
	if !c.Remove(3) {
		t.Fatal("Remove of a resident object must report true")
	}
	// 1 is a plain miss now: p stays put.
	policytest.Access(c, 1)
	if p := target(c); p != 0 {
		t.Fatalf("p = %v, want 0", p)
	}
}

func TestARC_RejectsParams(t *testing.T) {
	t.Parallel()

	_, err := New(cache.Params{Capacity: 10}, cache.MustParseArgs(Name, "p=3"))
	if err == nil {
		t.Fatal("unknown parameter must fail")
	}
}
