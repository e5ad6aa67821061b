package slru

import (
	"testing"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/policytest"
	"github.com/IvanBrykalov/cachesim/policy/lru"
)

type segmented interface{ Segment(id uint64) int }

func segment(c *cache.Cache, id uint64) int { return c.Policy().(segmented).Segment(id) }

func TestSLRU_PromotionAndCooling(t *testing.T) {
	t.Parallel()

	for name, ctor := range map[string]policytest.Constructor{Name: New, NameV0: NewV0, NameFIFO: NewFIFO} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := policytest.New(t, ctor, cache.Params{Capacity: 4}, "n-seg=2")
			// Everything enters segment 0; three hits overflow segment 1
			// and its tail (1) is demoted.
			policytest.ExpectHits(t, c, []uint64{1, 2, 3, 4, 1, 2, 3},
				[]bool{false, false, false, false, true, true, true})
			for id, want := range map[uint64]int{1: 0, 2: 1, 3: 1, 4: 0} {
				if got := segment(c, id); got != want {
					t.Fatalf("object %d in segment %d, want %d", id, got, want)
				}
			}
			if cs := c.Counters(); cs["n_promote"] != 3 || cs["n_demote"] != 1 {
				t.Fatalf("counters = %v, want 3 promotions and 1 demotion", cs)
			}

			// Evictions come from segment 0.
			policytest.Access(c, 5)
			policytest.ExpectResident(t, c, []uint64{1, 2, 3, 5}, []uint64{4})
		})
	}
}

// SLRU refreshes hits in the top segment, SFIFO does not, so they demote
// different objects.
func TestSLRU_TopSegmentOrder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ctor    policytest.Constructor
		demoted uint64
	}{
		{New, 3},
		{NewFIFO, 2},
	}
	for _, tc := range cases {
		c := policytest.New(t, tc.ctor, cache.Params{Capacity: 4}, "n-seg=2")
		policytest.Access(c, 1, 2, 3, 4, 1, 2, 3) // segment 1: 3, 2
		policytest.Access(c, 2, 1)                 // 2 refreshed (SLRU only), 1 promoted
		if got := segment(c, tc.demoted); got != 0 {
			t.Fatalf("%s: object %d in segment %d, want 0", c.Name(), tc.demoted, got)
		}
	}
}

func TestSLRU_RejectsObjectsLargerThanASegment(t *testing.T) {
	t.Parallel()

	for _, ctor := range []policytest.Constructor{New, NewV0} {
		c := policytest.New(t, ctor, cache.Params{Capacity: 100}, "n-seg=4")
		if c.Get(&cache.Request{ID: 1, Size: 30}) {
			t.Fatal("first request cannot hit")
		}
		if c.ObjectCount() != 0 || c.Stats().Rejected != 1 {
			t.Fatalf("%s: count = %d, stats = %+v; object larger than a segment must bypass", c.Name(), c.ObjectCount(), c.Stats())
		}
		c.Get(&cache.Request{ID: 2, Size: 25})
		if c.ObjectCount() != 1 {
			t.Fatalf("%s: object of exactly one segment must be admitted", c.Name())
		}
	}
}

// With unit sizes the sub-cache variant makes the same decisions.
func TestSLRU_V0Agrees(t *testing.T) {
	t.Parallel()

	a := policytest.New(t, New, cache.Params{Capacity: 64}, "")
	b := policytest.New(t, NewV0, cache.Params{Capacity: 64}, "")
	reqs := policytest.Workload(9, 20_000, 500, 1)
	for i := range reqs {
		ra, rb := reqs[i], reqs[i]
		if ha, hb := a.Get(&ra), b.Get(&rb); ha != hb {
			t.Fatalf("request %d: SLRU hit = %v, SLRUv0 hit = %v", i, ha, hb)
		}
	}
}

// One segment is plain LRU.
func TestSLRU_OneSegmentIsLRU(t *testing.T) {
	t.Parallel()

	a := policytest.New(t, New, cache.Params{Capacity: 32}, "n-seg=1")
	b := policytest.New(t, lru.New, cache.Params{Capacity: 32}, "")
	reqs := policytest.Workload(4, 10_000, 200, 1)
	for i := range reqs {
		ra, rb := reqs[i], reqs[i]
		if ha, hb := a.Get(&ra), b.Get(&rb); ha != hb {
			t.Fatalf("request %d: SLRU hit = %v, LRU hit = %v", i, ha, hb)
		}
	}
}

func TestSLRU_Capacity(t *testing.T) {
	t.Parallel()

	for name, ctor := range map[string]policytest.Constructor{Name: New, NameV0: NewV0, NameFIFO: NewFIFO} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := policytest.New(t, ctor, cache.Params{Capacity: 8_000, TrackMetadata: true, ObjectOverhead: 16}, "n-seg=3")
			if hits := policytest.CheckCapacity(t, c, policytest.Workload(2, 20_000, 2_000, 100)); hits == 0 {
				t.Fatal("no hits on a skewed workload")
			}
		})
	}
}

func TestSLRU_ParamValidation(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"n-seg=0", "n-seg=17", "n-seg=x", "segments=2"} {
		if _, err := New(cache.Params{Capacity: 10}, cache.MustParseArgs(Name, s)); err == nil {
			t.Fatalf("%q must be rejected", s)
		}
	}
}
