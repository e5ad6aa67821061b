package lfu

import (
	"testing"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/policytest"
)

func TestLFU_EvictsLeastFrequent(t *testing.T) {
	t.Parallel()

	c := policytest.New(t, New, cache.Params{Capacity: 3}, "")
	policytest.Access(c, 1, 1, 1, 2, 2, 3, 4)
	policytest.ExpectResident(t, c, []uint64{1, 2, 4}, []uint64{3})
	policytest.Access(c, 5)
	policytest.ExpectResident(t, c, []uint64{1, 2, 5}, []uint64{4})
}

func TestLFU_FIFOWithinBucket(t *testing.T) {
	t.Parallel()

	c := policytest.New(t, New, cache.Params{Capacity: 2}, "")
	policytest.Access(c, 1, 2, 3)
	policytest.ExpectResident(t, c, []uint64{2, 3}, []uint64{1})
}

// Under plain LFU the old favourite 1 stays forever; under LFUDA the
// cache age catches up with it.
func TestLFUDA_AgingDisplacesStalePopularity(t *testing.T) {
	t.Parallel()

	seq := []uint64{1, 1, 1, 1, 1, 2, 3, 4}

	plain := policytest.New(t, New, cache.Params{Capacity: 2}, "")
	policytest.Access(plain, seq...)
	policytest.ExpectResident(t, plain, []uint64{1, 4}, []uint64{2, 3})

	aged := policytest.New(t, NewDA, cache.Params{Capacity: 2}, "")
	policytest.Access(aged, seq...)
	policytest.ExpectResident(t, aged, []uint64{3, 4}, []uint64{1, 2})
	if got := aged.Policy().(*lfu).MinFreq(); got != 6 {
		t.Fatalf("MinFreq() = %d, want 6", got)
	}
}

func TestLFU_RemoveEmptiesBucket(t *testing.T) {
	t.Parallel()

	c := policytest.New(t, New, cache.Params{Capacity: 3}, "")
	policytest.Access(c, 1, 2, 2)
	c.Remove(1)
	if got := c.Policy().(*lfu).MinFreq(); got != 2 {
		t.Fatalf("MinFreq() = %d, want 2", got)
	}
	if v := c.ToEvict(&cache.Request{}); v.ID != 2 {
		t.Fatalf("ToEvict() = %d, want 2", v.ID)
	}
}

func TestLFU_CapacityInvariant(t *testing.T) {
	t.Parallel()

	for name, ctor := range map[string]policytest.Constructor{Name: New, NameDA: NewDA} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			c := policytest.New(t, ctor, cache.Params{Capacity: 350}, "")
			policytest.CheckCapacity(t, c, policytest.Workload(17, 6000, 300, 25))
		})
	}
}
