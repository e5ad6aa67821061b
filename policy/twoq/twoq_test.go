package twoq

import (
	"testing"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/policytest"
)

// --- helpers ---

func newTwoQ(t *testing.T, capacity int64) *cache.Cache {
	t.Helper()
	return policytest.New(t, New, cache.Params{Capacity: capacity}, "")
}

// --- tests ---

// First-time objects fill Ain; the oldest one goes to Aout when space runs out.
func TestTwoQ_AinEvictsToGhost(t *testing.T) {
	t.Parallel()

	c := newTwoQ(t, 4) // Ain 1, Am 3, Aout 2
	policytest.Access(c, 1, 2, 3, 4, 5)
	policytest.ExpectResident(t, c, []uint64{2, 3, 4, 5}, []uint64{1})
	if got := c.Counters()["am_bytes"]; got != 0 {
		t.Fatalf("Am holds %d bytes, want 0", got)
	}
}

// A quick second request for an Aout id is a miss that admits into Am.
func TestTwoQ_GhostHitGoesToAm(t *testing.T) {
	t.Parallel()

	c := newTwoQ(t, 4)
	policytest.ExpectHits(t, c, []uint64{1, 2, 3, 4, 5, 1, 1},
		[]bool{false, false, false, false, false, false, true})
	policytest.ExpectResident(t, c, []uint64{1, 3, 4, 5}, []uint64{2})

	cs := c.Counters()
	if cs["n_ghost_hit"] != 1 || cs["am_bytes"] != 1 {
		t.Fatalf("counters = %v, want one history hit and 1 byte in Am", cs)
	}
}

// The evictions that make room for an Aout hit push new ids into Aout; the
// hit must still reach Am when it was the oldest id there.
func TestTwoQ_GhostHitOnOldestAoutEntry(t *testing.T) {
	t.Parallel()

	c := newTwoQ(t, 4)
	policytest.Access(c, 1, 2, 3, 4, 5, 6) // Aout: 2, 1
	policytest.ExpectHits(t, c, []uint64{1}, []bool{false})
	policytest.ExpectResident(t, c, []uint64{1, 4, 5, 6}, []uint64{2, 3})

	cs := c.Counters()
	if cs["n_ghost_hit"] != 1 || cs["am_bytes"] != 1 || cs["ain_bytes"] != 3 {
		t.Fatalf("counters = %v, want one history hit, 1 byte in Am, 3 in Ain", cs)
	}
}

// A one-time scan churns Ain and leaves Am alone.
func TestTwoQ_ScanResistant(t *testing.T) {
	t.Parallel()

	c := newTwoQ(t, 4)
	policytest.Access(c, 1, 2, 3, 4, 5, 1)
	for id := uint64(100); id < 200; id++ {
		policytest.Access(c, id)
	}
	policytest.ExpectResident(t, c, []uint64{1}, nil)
}

func TestTwoQ_RemoveAndToEvict(t *testing.T) {
	t.Parallel()

	c := newTwoQ(t, 4)
	policytest.Access(c, 1, 2, 3, 4)
	if v := c.ToEvict(&cache.Request{}); v == nil || v.ID != 1 {
		t.Fatalf("ToEvict() = %v, want object 1 (oldest in Ain)", v)
	}
	if !c.Remove(1) || c.Remove(1) {
		t.Fatal("Remove must succeed once")
	}
	if c.ObjectCount() != 3 || c.OccupiedBytes() != 3 {
		t.Fatalf("count/bytes = %d/%d, want 3/3", c.ObjectCount(), c.OccupiedBytes())
	}
}

func TestTwoQ_Capacity(t *testing.T) {
	t.Parallel()

	c := policytest.New(t, New, cache.Params{Capacity: 5_000, TrackMetadata: true},
		"ain-size-ratio=0.3,aout-size-ratio=1")
	if hits := policytest.CheckCapacity(t, c, policytest.Workload(5, 20_000, 3_000, 50)); hits == 0 {
		t.Fatal("no hits on a skewed workload")
	}
	if d := c.Describe(); d != "ain-size-ratio=0.3,aout-size-ratio=1" {
		t.Fatalf("Describe() = %q", d)
	}
}

func TestTwoQ_ParamValidation(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"ain-size-ratio=1.5", "aout-size-ratio=0", "kin=0.1"} {
		if _, err := New(cache.Params{Capacity: 10}, cache.MustParseArgs(Name, s)); err == nil {
			t.Fatalf("%q must be rejected", s)
		}
	}
}
