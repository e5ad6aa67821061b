package lru

import (
	"math/rand/v2"
	"testing"

	hlru "github.com/hashicorp/golang-lru/v2"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/policytest"
)

func newLRU(t *testing.T, capacity int64) *cache.Cache {
	t.Helper()
	c, err := New(cache.Params{Capacity: capacity}, nil)
	return policytest.Must(t, c, err)
}

// 1 is refreshed before 4 arrives, so 2 is the LRU victim.
func TestLRU_RefreshedObjectSurvives(t *testing.T) {
	t.Parallel()

	c := newLRU(t, 3)
	policytest.ExpectHits(t, c, []uint64{1, 2, 3, 1, 4}, []bool{false, false, false, true, false})
	policytest.ExpectResident(t, c, []uint64{1, 3, 4}, []uint64{2})
}

func TestLRU_ToEvictMatchesEvict(t *testing.T) {
	t.Parallel()

	c := newLRU(t, 3)
	policytest.Access(c, 1, 2, 3, 1)
	if v := c.ToEvict(&cache.Request{}); v == nil || v.ID != 2 {
		t.Fatalf("ToEvict() = %v, want object 2", v)
	}
	// Preview must not change anything.
	if v := c.ToEvict(&cache.Request{}); v.ID != 2 {
		t.Fatalf("second ToEvict() = %d, want 2", v.ID)
	}
	c.Evict(&cache.Request{})
	policytest.ExpectResident(t, c, []uint64{1, 3}, []uint64{2})
}

func TestLRU_Remove(t *testing.T) {
	t.Parallel()

	c := newLRU(t, 3)
	policytest.Access(c, 1, 2, 3)
	if !c.Remove(2) || c.Remove(2) {
		t.Fatal("Remove must succeed once")
	}
	policytest.ExpectHits(t, c, []uint64{4, 1}, []bool{false, true})
	policytest.ExpectResident(t, c, []uint64{1, 3, 4}, nil)
}

// Unit-size objects make the byte cache an entry-count LRU, which must
// agree with hashicorp/golang-lru on every request.
func TestLRU_MatchesReferenceImplementation(t *testing.T) {
	t.Parallel()

	const capacity = 64
	ref, err := hlru.New[uint64, struct{}](capacity)
	if err != nil {
		t.Fatal(err)
	}
	c := newLRU(t, capacity)

	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20_000; i++ {
		id := r.Uint64N(200)
		_, want := ref.Get(id)
		if !want {
			ref.Add(id, struct{}{})
		}
		got := c.Get(&cache.Request{ID: id, Size: 1})
		if got != want {
			t.Fatalf("request %d (id %d): hit = %v, reference = %v", i, id, got, want)
		}
	}
	if int(c.ObjectCount()) != ref.Len() {
		t.Fatalf("ObjectCount() = %d, reference Len() = %d", c.ObjectCount(), ref.Len())
	}
}

func TestLRU_CapacityInvariant(t *testing.T) {
	t.Parallel()

	c := newLRU(t, 500)
	policytest.CheckCapacity(t, c, policytest.Workload(3, 5000, 300, 40))
}

func TestLRU_WalkOrder(t *testing.T) {
	t.Parallel()

	c := newLRU(t, 4)
	policytest.Access(c, 1, 2, 3, 1)
	var got []uint64
	c.Policy().(*LRU).Walk(func(o *cache.Object) bool { got = append(got, o.ID); return true })
	want := []uint64{1, 3, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Walk order = %v, want %v", got, want)
		}
	}
}

func TestLRU_RejectsParams(t *testing.T) {
	t.Parallel()

	if _, err := New(cache.Params{Capacity: 1}, cache.MustParseArgs(Name, "x=1")); err == nil {
		t.Fatal("unknown parameter must fail")
	}
}
