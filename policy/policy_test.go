package policy

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/internal/policytest"
)

func TestRegistry_EveryPolicyHoldsCapacity(t *testing.T) {
	t.Parallel()

	reqs := policytest.Workload(3, 8_000, 800, 20)
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c, err := New(name, cache.Params{Capacity: 1_500, TrackMetadata: true, ObjectOverhead: 4, Seed: 9}, "")
			c = policytest.Must(t, c, err)
			if c.Name() != name {
				t.Fatalf("Name() = %q, want %q", c.Name(), name)
			}
			if hits := policytest.CheckCapacity(t, c, reqs); hits == 0 {
				t.Fatal("no hits on a skewed workload")
			}
			st := c.Stats()
			if st.Requests != int64(len(reqs)) || st.Hits+st.Misses != st.Requests {
				t.Fatalf("stats = %+v", st)
			}
		})
	}
}

func TestRegistry_NamesAreCaseInsensitive(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"lru":        "LRU",
		" Lru ":      "LRU",
		"s3fifo":     "S3FIFO",
		"S3-FIFO":    "S3FIFO",
		"2q":         "TwoQ",
		"lparc":      "LP_ARC",
		"w-tinylfu":  "WTinyLFU",
		"sr_lru":     "SR-LRU",
		"FifoMerge":  "FIFO_Merge",
		"lecarv0":    "LeCaRv0",
		"wtinylfuv1": "WTinyLFUv1",
	} {
		got, ok := Default.Lookup(in)
		if !ok || got != want {
			t.Fatalf("Lookup(%q) = %q, %v; want %q", in, got, ok, want)
		}
		c, err := New(in, cache.Params{Capacity: 100}, "")
		if err != nil {
			t.Fatalf("New(%q): %v", in, err)
		}
		if c.Name() != want {
			t.Fatalf("New(%q).Name() = %q, want %q", in, c.Name(), want)
		}
	}
}

func TestRegistry_Names(t *testing.T) {
	t.Parallel()

	names := Names()
	for _, want := range []string{"ARC", "Belady", "Cacheus", "Clock", "FIFO", "FIFO_Merge", "LeCaR", "LFU", "LIRS", "LRU", "QDLP", "S3FIFO", "SLRU", "TwoQ", "WTinyLFU"} {
		if !slices.Contains(names, want) {
			t.Fatalf("Names() = %v, missing %q", names, want)
		}
	}
	if !slices.IsSortedFunc(names, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	}) {
		t.Fatalf("Names() not sorted: %v", names)
	}
}

func TestRegistry_UnknownPolicy(t *testing.T) {
	t.Parallel()

	_, err := New("MRU", cache.Params{Capacity: 100}, "")
	if !errors.Is(err, cache.ErrUnknownPolicy) {
		t.Fatalf("err = %v, want ErrUnknownPolicy", err)
	}
	if _, ok := Default.Lookup("MRU"); ok {
		t.Fatal("Lookup(MRU) must fail")
	}
}

func TestRegistry_ConfigErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, args, key string
	}{
		{"LRU", "bogus=1", "bogus"},
		{"LeCaR", "learning-rate=abc", "learning-rate"},
		{"S3FIFO", "small-size-ratio=0.1,small-size-ratio=0.2", "small-size-ratio"},
		{"ARC", "noequals", "noequals"},
	}
	for _, tc := range cases {
		_, err := New(tc.name, cache.Params{Capacity: 100}, tc.args)
		var ce *cache.ConfigError
		if !errors.As(err, &ce) || !errors.Is(err, cache.ErrConfig) {
			t.Fatalf("%s %q: err = %v, want a ConfigError", tc.name, tc.args, err)
		}
		if ce.Key != tc.key {
			t.Fatalf("%s %q: key = %q, want %q", tc.name, tc.args, ce.Key, tc.key)
		}
	}
	if _, err := New("LRU", cache.Params{}, ""); !errors.Is(err, cache.ErrConfig) {
		t.Fatalf("zero capacity: err = %v, want ErrConfig", err)
	}
}

func TestRegistry_Print(t *testing.T) {
	t.Parallel()

	_, err := New("lecar", cache.Params{Capacity: 100}, "learning-rate=0.3,x=print")
	var pe *cache.PrintParamsError
	if !errors.As(err, &pe) || !errors.Is(err, cache.ErrPrintParams) {
		t.Fatalf("err = %v, want a PrintParamsError", err)
	}
	if pe.Policy != "LeCaR" || !strings.Contains(pe.Params, "learning-rate=0.3") {
		t.Fatalf("print = %+v", pe)
	}

	for _, name := range Names() {
		if _, err := Default.Params(name); err != nil {
			t.Fatalf("Params(%s): %v", name, err)
		}
	}
	got, err := Default.Params("S3FIFO")
	if err != nil || !strings.Contains(got, "main-cache=FIFO") {
		t.Fatalf("Params(S3FIFO) = %q, %v", got, err)
	}
}

func TestRegistry_CompositeMainFromRegistry(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ name, args string }{
		{"S3FIFO", "main-cache=ARC"},
		{"QDLP", "main-cache=lfu"},
		{"WTinyLFU", "main-cache=TwoQ"},
		{"S3FIFOd", "main-cache=lru"},
	} {
		c, err := New(tc.name, cache.Params{Capacity: 2_000, Seed: 4}, tc.args)
		c = policytest.Must(t, c, err)
		if hits := policytest.CheckCapacity(t, c, policytest.Workload(8, 10_000, 1_000, 10)); hits == 0 {
			t.Fatalf("%s %s: no hits", tc.name, tc.args)
		}
	}

	_, err := New("S3FIFO", cache.Params{Capacity: 100}, "main-cache=nope")
	if !errors.Is(err, cache.ErrUnknownPolicy) {
		t.Fatalf("err = %v, want ErrUnknownPolicy", err)
	}
}

func TestRegistry_DuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Register("A", nil, "alias")
	defer func() {
		if recover() == nil {
			t.Fatal("registering an alias twice must panic")
		}
	}()
	r.Register("ALIAS", nil)
}

// FuzzRegistry_Capacity replays arbitrary request sequences against every
// policy and checks the byte budget after each request.
func FuzzRegistry_Capacity(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{1, 2, 3, 1, 2, 3, 4, 5, 6})
	f.Add([]byte("the quick brown fox jumps over the lazy dog"))
	f.Add(slices.Repeat([]byte{7, 200, 7, 13}, 64))

	f.Fuzz(func(t *testing.T, data []byte) {
		const limit = 1 << 12
		if len(data) > limit {
			data = data[:limit]
		}
		reqs := make([]cache.Request, len(data))
		for i, b := range data {
			id := uint64(b%48) + 1
			reqs[i] = cache.Request{ID: id, Size: int64(id%9) + 1}
		}
		next := make(map[uint64]int64)
		for i := len(reqs) - 1; i >= 0; i-- {
			if v, ok := next[reqs[i].ID]; ok {
				reqs[i].NextAccessVTime = v
			} else {
				reqs[i].NextAccessVTime = cache.NeverAccessed
			}
			next[reqs[i].ID] = int64(i + 1)
		}

		for _, name := range Names() {
			c, err := New(name, cache.Params{Capacity: 64, Seed: 1}, "")
			if err != nil {
				t.Fatalf("New(%s): %v", name, err)
			}
			policytest.CheckCapacity(t, c, reqs)
		}
	})
}
