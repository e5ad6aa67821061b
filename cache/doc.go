// Package cache is the substrate every simulated eviction policy runs on:
// requests, the object arena, intrusive lists, and the Cache type that
// drives a Policy through the hit/miss/evict cycle.
//
// Design
//
//   - Storage: each Cache owns a Store, an arena of Object slots indexed by
//     object id. Objects are addressed by Handle, a slot index plus a
//     generation. Deleting an object bumps the slot generation, so a list
//     that still refers to it panics on the next traversal rather than
//     reading a recycled object.
//
//   - Lists: List is an intrusive doubly linked list over Handles. Every
//     Object has two independent link pairs (primary and auxiliary), which
//     lets a policy keep an object in, say, a recency stack and a
//     frequency bucket at once. Objects still linked cannot be deleted.
//
//   - Policies: a Policy implements Find/Insert/Evict/ToEvict/Remove and is
//     bound to its Cache at construction (Builder). Cache.Get is the only
//     entry point a driver needs: it advances the logical clock (vtime),
//     calls Find, and on a miss evicts until the object fits and inserts.
//
//   - Composite policies own further Cache values as sub-caches and
//     history ("ghost") lists. They call Find/Insert/Evict on those caches
//     directly, never Get, so the top-level vtime is the one clock every
//     layer compares against. A decision made in Find and needed by the
//     following Insert travels in a Routing value stamped with the
//     request's vtime.
//
//   - Errors: construction problems are *ConfigError (wrapping ErrConfig).
//     Corrupt state, duplicate inserts, stale handles and unsupported
//     operations panic; a simulation with broken accounting has no useful
//     output.
//
// Basic usage
//
//	c, err := lru.New(cache.Params{Capacity: 1 << 30}, nil)
//	if err != nil {
//	    return err
//	}
//	for _, req := range requests {
//	    hit := c.Get(&req)
//	    _ = hit
//	}
//	fmt.Println(c.Stats().MissRatio())
//
// Building with -tags cachesim_debug turns on expensive structural checks
// (Debug) inside policies.
package cache
