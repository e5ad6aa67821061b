package size

import (
	"testing"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/policytest"
)

func TestSize_EvictsLargest(t *testing.T) {
	t.Parallel()

	c := policytest.New(t, New, cache.Params{Capacity: 10}, "")
	for _, r := range []cache.Request{{ID: 1, Size: 5}, {ID: 2, Size: 3}, {ID: 3, Size: 2}} {
		c.Get(&r)
	}
	if v := c.ToEvict(&cache.Request{}); v.ID != 1 {
		t.Fatalf("ToEvict() = %d, want 1", v.ID)
	}
	c.Get(&cache.Request{ID: 4, Size: 4})
	policytest.ExpectResident(t, c, []uint64{2, 3, 4}, []uint64{1})
	if c.Remove(3) != true || c.OccupiedBytes() != 7 {
		t.Fatalf("after Remove(3): occupied %d, want 7", c.OccupiedBytes())
	}
}

func TestSize_CapacityInvariant(t *testing.T) {
	t.Parallel()

	c := policytest.New(t, New, cache.Params{Capacity: 200}, "")
	policytest.CheckCapacity(t, c, policytest.Workload(23, 5000, 300, 40))
}
