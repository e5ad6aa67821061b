// Package prom exports simulated cache activity to Prometheus.
package prom

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/cachesim/cache"
)

// Adapter implements cache.Metrics on Prometheus counters and gauges.
// It may be shared by caches running in different goroutines.
type Adapter struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	evicts  *prometheus.CounterVec
	objects prometheus.Gauge
	bytes   prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
//
// Simulations of several caches share metric names and tell their series
// apart by constLabels (e.g. policy and cache size). Building a second
// adapter with the same labels reuses the registered collectors.
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels}
	}
	gauge := func(name, help string) prometheus.GaugeOpts {
		return prometheus.GaugeOpts{Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels}
	}
	return &Adapter{
		hits:    register(reg, prometheus.NewCounter(counter("hits_total", "Simulated cache hits"))),
		misses:  register(reg, prometheus.NewCounter(counter("misses_total", "Simulated cache misses"))),
		evicts:  register(reg, prometheus.NewCounterVec(counter("evictions_total", "Objects leaving the cache by reason"), []string{"reason"})),
		objects: register(reg, prometheus.NewGauge(gauge("objects", "Number of resident objects"))),
		bytes:   register(reg, prometheus.NewGauge(gauge("occupied_bytes", "Bytes charged against capacity, metadata included"))),
	}
}

// register adds c to reg, or returns the collector already registered
// under the same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(reason(r)).Inc()
}

// Size updates the occupancy gauges.
func (a *Adapter) Size(objects, bytes int64) {
	a.objects.Set(float64(objects))
	a.bytes.Set(float64(bytes))
}

// reason maps EvictReason to a stable label value.
func reason(r cache.EvictReason) string {
	switch r {
	case cache.EvictTTL:
		return "ttl"
	case cache.EvictRemove:
		return "remove"
	default:
		return "policy"
	}
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
