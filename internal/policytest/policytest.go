// Package policytest holds helpers shared by the policy tests: scripted
// request sequences, residency checks, a capacity-invariant driver and a
// small name-keyed factory for composite policies.
package policytest

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/IvanBrykalov/cachesim/cache"
)

// Constructor is the signature every leaf policy exports.
type Constructor func(p cache.Params, args *cache.Args) (*cache.Cache, error)

// Factory returns a cache.Factory over ctors, keyed case-insensitively.
func Factory(ctors map[string]Constructor) cache.Factory {
	return cache.FactoryFunc(func(name string, p cache.Params, args string) (*cache.Cache, error) {
		for k, ctor := range ctors {
			if strings.EqualFold(k, name) {
				a, err := cache.ParseArgs(name, args)
				if err != nil {
					return nil, err
				}
				return ctor(p, a)
			}
		}
		return nil, cache.ErrUnknownPolicy
	})
}

// Must fails the test on err.
func Must(t testing.TB, c *cache.Cache, err error) *cache.Cache {
	t.Helper()
	if err != nil {
		t.Fatalf("constructing cache: %v", err)
	}
	return c
}

// New builds a cache with ctor from an args string, failing the test on
// error.
func New(t testing.TB, ctor Constructor, p cache.Params, args string) *cache.Cache {
	t.Helper()
	a, err := cache.ParseArgs("test", args)
	if err != nil {
		t.Fatalf("parsing %q: %v", args, err)
	}
	c, err := ctor(p, a)
	return Must(t, c, err)
}

// Access requests every id with size 1 and returns the hit sequence.
func Access(c *cache.Cache, ids ...uint64) []bool {
	hits := make([]bool, len(ids))
	for i, id := range ids {
		hits[i] = c.Get(&cache.Request{ID: id, Size: 1, NextAccessVTime: cache.NeverAccessed})
	}
	return hits
}

// Resident reports which of ids are currently cached (peek only).
func Resident(c *cache.Cache, ids ...uint64) []bool {
	out := make([]bool, len(ids))
	for i, id := range ids {
		out[i] = c.Find(&cache.Request{ID: id}, false) != nil
	}
	return out
}

// ExpectHits fails unless Access(c, ids...) yields want.
func ExpectHits(t testing.TB, c *cache.Cache, ids []uint64, want []bool) {
	t.Helper()
	got := Access(c, ids...)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("hits for %v = %v, want %v", ids, got, want)
		}
	}
}

// ExpectResident fails unless exactly the ids in in are resident among
// in and out.
func ExpectResident(t testing.TB, c *cache.Cache, in, out []uint64) {
	t.Helper()
	for _, id := range in {
		if c.Find(&cache.Request{ID: id}, false) == nil {
			t.Fatalf("object %d must be resident", id)
		}
	}
	for _, id := range out {
		if c.Find(&cache.Request{ID: id}, false) != nil {
			t.Fatalf("object %d must not be resident", id)
		}
	}
}

// Workload returns n requests over a Zipf-like id space with sizes in
// [1, maxSize], each annotated with its next access vtime.
func Workload(seed uint64, n int, ids uint64, maxSize int64) []cache.Request {
	r := rand.New(rand.NewPCG(seed, seed+1))
	reqs := make([]cache.Request, n)
	sizes := make(map[uint64]int64)
	for i := range reqs {
		// Skew: square a uniform draw so low ids are hot.
		u := r.Float64()
		id := uint64(u*u*float64(ids)) + 1
		sz, ok := sizes[id]
		if !ok {
			sz = r.Int64N(maxSize) + 1
			sizes[id] = sz
		}
		reqs[i] = cache.Request{ID: id, Size: sz, ClockTime: int64(i)}
	}
	next := make(map[uint64]int64)
	for i := n - 1; i >= 0; i-- {
		vt := int64(i + 1)
		if v, ok := next[reqs[i].ID]; ok {
			reqs[i].NextAccessVTime = v
		} else {
			reqs[i].NextAccessVTime = cache.NeverAccessed
		}
		next[reqs[i].ID] = vt
	}
	return reqs
}

// CheckCapacity replays reqs and fails as soon as the cache holds more
// bytes than its capacity after a Get. It returns the hit count.
func CheckCapacity(t testing.TB, c *cache.Cache, reqs []cache.Request) int {
	t.Helper()
	hits := 0
	for i := range reqs {
		req := reqs[i]
		if c.Get(&req) {
			hits++
		}
		if occ := c.OccupiedBytes(); occ > c.Capacity() || occ < 0 {
			t.Fatalf("request %d: occupied %d bytes, capacity %d", i, occ, c.Capacity())
		}
		if c.ObjectCount() < 0 {
			t.Fatalf("request %d: negative object count", i)
		}
		if i%499 == 0 {
			c.Verify()
		}
	}
	c.Verify()
	return hits
}
