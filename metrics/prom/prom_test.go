package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/IvanBrykalov/cachesim/cache"
	"github.com/IvanBrykalov/cachesim/policy/lru"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string][]*dto.Metric {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	out := make(map[string][]*dto.Metric, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = mf.GetMetric()
	}
	return out
}

func TestAdapter_CountsCacheActivity(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg, "cachesim", "", prometheus.Labels{"policy": "LRU"})
	c, err := lru.New(cache.Params{Capacity: 2, Metrics: m}, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []uint64{1, 2, 1, 3, 4} {
		c.Get(&cache.Request{ID: id, Size: 1})
	}
	c.Remove(4)

	got := gather(t, reg)
	if v := got["cachesim_hits_total"][0].GetCounter().GetValue(); v != 1 {
		t.Fatalf("hits = %v, want 1", v)
	}
	if v := got["cachesim_misses_total"][0].GetCounter().GetValue(); v != 4 {
		t.Fatalf("misses = %v, want 4", v)
	}
	reasons := map[string]float64{}
	for _, mt := range got["cachesim_evictions_total"] {
		for _, lp := range mt.GetLabel() {
			if lp.GetName() == "reason" {
				reasons[lp.GetValue()] = mt.GetCounter().GetValue()
			}
		}
	}
	if reasons["policy"] != 2 || reasons["remove"] != 1 {
		t.Fatalf("evictions = %v, want 2 by policy and 1 removed", reasons)
	}
	if v := got["cachesim_occupied_bytes"][0].GetGauge().GetValue(); v != 2 {
		t.Fatalf("occupied bytes = %v, want 2", v)
	}
	if v := got["cachesim_objects"][0].GetGauge().GetValue(); v != 2 {
		t.Fatalf("objects = %v, want 2", v)
	}
}

func TestAdapter_LabelsSeparateSeries(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a := New(reg, "sim", "cache", prometheus.Labels{"policy": "A"})
	b := New(reg, "sim", "cache", prometheus.Labels{"policy": "B"})
	again := New(reg, "sim", "cache", prometheus.Labels{"policy": "A"})
	a.Hit()
	b.Hit()
	again.Hit()

	series := gather(t, reg)["sim_cache_hits_total"]
	if len(series) != 2 {
		t.Fatalf("%d hit series, want 2", len(series))
	}
	for _, mt := range series {
		want := 1.0
		if mt.GetLabel()[0].GetValue() == "A" {
			want = 2
		}
		if v := mt.GetCounter().GetValue(); v != want {
			t.Fatalf("policy %s hits = %v, want %v", mt.GetLabel()[0].GetValue(), v, want)
		}
	}
}
