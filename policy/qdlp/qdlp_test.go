package qdlp

import (
	"strings"
	"testing"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/policytest"
)

func newQDLP(p cache.Params, args *cache.Args) (*cache.Cache, error)   { return New(p, args, nil) }
func newQDLPv2(p cache.Params, args *cache.Args) (*cache.Cache, error) { return NewV2(p, args, nil) }

// Clock in main gives the object hit in main a second chance, the same
// outcome S3-FIFO reaches by reinsertion.
func TestQDLP_LazyPromotionInMain(t *testing.T) {
	t.Parallel()

	c := policytest.New(t, newQDLP, cache.Params{Capacity: 4}, "small-size-ratio=0.25")
	policytest.Access(c, 1, 1, 2, 2, 3, 3, 4, 5, 1, 6, 7, 7, 8)
	policytest.ExpectResident(t, c, []uint64{1, 3, 7, 8}, []uint64{2, 4, 5, 6})

	cs := c.Counters()
	if cs["n_obj_reinsert"] != 0 || cs["n_obj_move_to_main"] != 4 {
		t.Fatalf("counters = %v", cs)
	}
	if d := c.Describe(); !strings.Contains(d, "main-cache=Clock") {
		t.Fatalf("Describe() = %q, want Clock as the main cache", d)
	}
}

func TestQDLP_Capacity(t *testing.T) {
	t.Parallel()

	for name, ctor := range map[string]policytest.Constructor{Name: newQDLP, NameV2: newQDLPv2} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := policytest.New(t, ctor, cache.Params{Capacity: 5_000}, "")
			if c.Name() != name {
				t.Fatalf("Name() = %q, want %q", c.Name(), name)
			}
			if hits := policytest.CheckCapacity(t, c, policytest.Workload(8, 20_000, 2_500, 30)); hits == 0 {
				t.Fatal("no hits on a skewed workload")
			}
		})
	}
}

func TestQDLP_V2AcceptsResizeParams(t *testing.T) {
	t.Parallel()

	if _, err := New(cache.Params{Capacity: 100}, cache.MustParseArgs(Name, "step-ratio=0.05"), nil); err == nil {
		t.Fatal("QDLP has no resize parameters")
	}
	if _, err := NewV2(cache.Params{Capacity: 100}, cache.MustParseArgs(NameV2, "step-ratio=0.05"), nil); err != nil {
		t.Fatalf("QDLPv2: %v", err)
	}
}
