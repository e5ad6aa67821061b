package clock

import (
	"testing"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/policytest"
)

func TestClock_SecondChance(t *testing.T) {
	t.Parallel()

	c := policytest.New(t, New, cache.Params{Capacity: 3}, "")
	policytest.Access(c, 1, 2, 3, 1)
	if v := c.ToEvict(&cache.Request{}); v.ID != 2 {
		t.Fatalf("ToEvict() = %d, want 2", v.ID)
	}
	policytest.Access(c, 4)
	policytest.ExpectResident(t, c, []uint64{1, 3, 4}, []uint64{2})
	if got := c.Counters()["n_obj_rewritten"]; got != 1 {
		t.Fatalf("n_obj_rewritten = %d, want 1", got)
	}
	// 1 spent its chance; the hand now reaches 3.
	policytest.Access(c, 5)
	policytest.ExpectResident(t, c, []uint64{1, 4, 5}, []uint64{3})
}

func TestClock_PreviewWrapsAround(t *testing.T) {
	t.Parallel()

	c := policytest.New(t, New, cache.Params{Capacity: 2}, "")
	policytest.Access(c, 1, 2, 1, 2)
	v := c.ToEvict(&cache.Request{})
	if v == nil || v.ID != 1 {
		t.Fatalf("ToEvict() = %v, want 1", v)
	}
	c.Evict(&cache.Request{})
	policytest.ExpectResident(t, c, []uint64{2}, []uint64{1})
}

func TestClock_MultiBitCounterSaturates(t *testing.T) {
	t.Parallel()

	c := policytest.New(t, New, cache.Params{Capacity: 2}, "n-bit-counter=2")
	policytest.Access(c, 1, 1, 1, 1, 1, 1)
	if o := c.Find(&cache.Request{ID: 1}, false); o.Counter != 3 {
		t.Fatalf("counter = %d, want saturation at 3", o.Counter)
	}
}

func TestClock_ParamValidation(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"n-bit-counter=0", "n-bit-counter=17", "init-freq=2", "hand=1"} {
		if _, err := New(cache.Params{Capacity: 1}, cache.MustParseArgs(Name, in)); err == nil {
			t.Errorf("New(%q) must fail", in)
		}
	}
}

func TestClock_CapacityInvariant(t *testing.T) {
	t.Parallel()

	c := policytest.New(t, New, cache.Params{Capacity: 400}, "n-bit-counter=3,init-freq=1")
	policytest.CheckCapacity(t, c, policytest.Workload(9, 6000, 300, 25))
}
