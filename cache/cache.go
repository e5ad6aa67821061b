package cache

import (
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"
)

// Stats are the per-cache request counters maintained by Get.
type Stats struct {
	Requests  int64
	Hits      int64
	Misses    int64
	Evictions int64
	// Oversize counts misses that bypassed the cache because the object is
	// larger than the whole cache.
	Oversize int64
	// Rejected counts misses the policy refused although the object would
	// fit the cache: segment limits and admission filters.
	Rejected int64
	Expired  int64
	Removed  int64
}

// MissRatio returns Misses/Requests, or 0 before the first request.
func (s Stats) MissRatio() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Misses) / float64(s.Requests)
}

// Cache is one simulated cache: a policy plus the object store, the byte
// accounting and the request clock it operates on. Composite policies own
// further Cache values as their sub-caches.
//
// A Cache is not safe for concurrent use; run independent simulations in
// independent Cache trees.
type Cache struct {
	name     string
	params   Params
	capacity int64
	overhead int64

	occupied int64
	count    int64
	nReq     int64

	store    *Store
	policy   Policy
	admitter Admitter
	sizer    Sizer

	log     *zap.Logger
	metrics Metrics
	rng     *rand.Rand

	stats      Stats
	warnedSize bool
	closed     bool
}

// New constructs a cache named name and binds the policy returned by build.
// Capacity must be positive.
func New(name string, p Params, build Builder) (*Cache, error) {
	if p.Capacity <= 0 {
		return nil, &ConfigError{Policy: name, Key: "capacity", Value: fmt.Sprint(p.Capacity), Reason: "must be > 0"}
	}
	p = p.withDefaults()
	c := &Cache{
		name:     name,
		params:   p,
		capacity: p.Capacity,
		overhead: p.overhead(),
		store:    NewStore(p.HashPower),
		log:      p.Logger,
		metrics:  p.Metrics,
		rng:      rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15)),
	}
	pol, err := build(c)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", name, err)
	}
	c.policy = pol
	c.admitter, _ = pol.(Admitter)
	c.sizer, _ = pol.(Sizer)
	c.log.Debug("cache created",
		zap.String("policy", name),
		zap.Int64("capacity", c.capacity),
		zap.String("params", c.Describe()))
	return c, nil
}

// ---- accessors ----

func (c *Cache) Name() string        { return c.name }
func (c *Cache) Capacity() int64     { return c.capacity }
func (c *Cache) Overhead() int64     { return c.overhead }
func (c *Cache) Params() Params      { return c.params }
func (c *Cache) Logger() *zap.Logger { return c.log }
func (c *Cache) Rand() *rand.Rand    { return c.rng }
func (c *Cache) Store() *Store       { return c.store }
func (c *Cache) Policy() Policy      { return c.policy }
func (c *Cache) Stats() Stats        { return c.stats }

// SetCapacity changes the byte budget. Composite policies use it to move
// capacity between their sub-caches; shrinking does not evict by itself.
func (c *Cache) SetCapacity(n int64) {
	if n < 1 {
		n = 1
	}
	c.capacity = n
}

// NumRequests returns the logical clock: the number of Get calls so far.
func (c *Cache) NumRequests() int64 { return c.nReq }

// OccupiedBytes returns resident bytes including per-object overhead.
func (c *Cache) OccupiedBytes() int64 {
	if c.sizer != nil {
		return c.sizer.OccupiedBytes()
	}
	return c.occupied
}

// ObjectCount returns the number of resident objects.
func (c *Cache) ObjectCount() int64 {
	if c.sizer != nil {
		return c.sizer.ObjectCount()
	}
	return c.count
}

// Describe returns the effective policy parameters.
func (c *Cache) Describe() string {
	if d, ok := c.policy.(Describer); ok {
		return d.Describe()
	}
	return ""
}

// Counters returns policy-specific counters, or nil.
func (c *Cache) Counters() map[string]int64 {
	if cs, ok := c.policy.(CounterSource); ok {
		return cs.Counters()
	}
	return nil
}

// String returns "name(capacity)".
func (c *Cache) String() string { return fmt.Sprintf("%s(%d)", c.name, c.capacity) }

// ---- driver entry point ----

// Get simulates one request and reports whether it hit.
//
// On a miss the object is admitted if CanInsert allows it: policies evict
// until it fits, then insert. An object that cannot be admitted is a
// pass-through miss with no state change.
func (c *Cache) Get(req *Request) bool {
	if c.closed {
		return false
	}
	c.nReq++
	req.VTime = c.nReq
	c.stats.Requests++

	if c.Find(req, true) != nil {
		c.stats.Hits++
		c.metrics.Hit()
		if Debug {
			c.Verify()
		}
		return true
	}
	c.stats.Misses++
	c.metrics.Miss()

	if !c.CanInsert(req) {
		c.reject(req)
		return false
	}
	c.Admit(req)
	if occ := c.OccupiedBytes(); occ > c.capacity {
		panic(fmt.Sprintf("cache: %s occupies %d bytes, capacity %d", c.name, occ, c.capacity))
	}
	c.metrics.Size(c.ObjectCount(), c.OccupiedBytes())
	if Debug {
		c.Verify()
	}
	return false
}

// Admit runs the miss path without touching the request clock or the
// hit/miss counters: evict until req fits, then insert. It returns nil when
// the object cannot be admitted. Composite policies use it to feed history
// caches.
func (c *Cache) Admit(req *Request) *Object {
	if !c.CanInsert(req) {
		return nil
	}
	need := req.Size + c.overhead
	for c.OccupiedBytes()+need > c.capacity {
		before, n := c.OccupiedBytes(), c.ObjectCount()
		c.Evict(req)
		if c.OccupiedBytes() >= before && c.ObjectCount() >= n {
			panic(fmt.Sprintf("cache: %s evict made no progress (%d bytes, %d objects)", c.name, before, n))
		}
	}
	return c.Insert(req)
}

func (c *Cache) reject(req *Request) {
	if req.Size+c.overhead <= c.capacity {
		c.stats.Rejected++
		return
	}
	c.stats.Oversize++
	fields := []zap.Field{
		zap.String("policy", c.name),
		zap.Uint64("obj_id", req.ID),
		zap.Int64("size", req.Size),
		zap.Int64("capacity", c.capacity),
	}
	if !c.warnedSize {
		c.warnedSize = true
		c.log.Warn("object cannot be admitted, bypassing cache (further occurrences logged at debug)", fields...)
		return
	}
	c.log.Debug("object cannot be admitted, bypassing cache", fields...)
}

// ---- policy dispatch ----

// Find looks req up. With update=true the policy refreshes its metadata;
// an expired object is removed and reported as absent.
func (c *Cache) Find(req *Request, update bool) *Object {
	obj := c.policy.Find(req, update)
	if obj == nil || !update || obj.ExpireTime == 0 || obj.ExpireTime >= req.ClockTime {
		return obj
	}
	c.policy.Remove(obj.ID)
	c.stats.Expired++
	c.metrics.Evict(EvictTTL)
	return nil
}

// Insert admits req. Capacity must already be available.
func (c *Cache) Insert(req *Request) *Object { return c.policy.Insert(req) }

// Evict removes the policy's next victim.
func (c *Cache) Evict(req *Request) {
	c.policy.Evict(req)
	c.stats.Evictions++
	c.metrics.Evict(EvictPolicy)
}

// ToEvict previews the next victim. Policies that cannot preview panic
// with ErrUnsupported.
func (c *Cache) ToEvict(req *Request) *Object { return c.policy.ToEvict(req) }

// Remove drops id if present.
func (c *Cache) Remove(id uint64) bool {
	ok := c.policy.Remove(id)
	if ok {
		c.stats.Removed++
		c.metrics.Evict(EvictRemove)
	}
	return ok
}

// CanInsert reports whether req may be admitted at all.
func (c *Cache) CanInsert(req *Request) bool {
	if c.admitter != nil {
		return c.admitter.CanInsert(req)
	}
	return req.Size+c.overhead <= c.capacity
}

// Close releases the store. Get on a closed cache reports a miss and does
// nothing else.
func (c *Cache) Close() error {
	c.closed = true
	if cl, ok := c.policy.(interface{ Close() error }); ok {
		if err := cl.Close(); err != nil {
			return err
		}
	}
	c.store = nil
	return nil
}

// ---- helpers for policy implementations ----

// Lookup is the base find: it resolves req.ID in the store and, when
// update is set, refreshes the access metadata common to all policies.
func (c *Cache) Lookup(req *Request, update bool) *Object {
	obj := c.store.Find(req.ID)
	if obj != nil && update {
		obj.Freq++
		obj.LastAccessVTime = req.VTime
		obj.NextAccessVTime = req.NextAccessVTime
	}
	return obj
}

// InsertObject is the base insert: it creates the object in the store and
// charges it against the cache. The caller links it into its own lists.
func (c *Cache) InsertObject(req *Request) *Object {
	obj := c.store.Insert(req.ID, req.Size)
	obj.CreateVTime = req.VTime
	obj.LastAccessVTime = req.VTime
	obj.NextAccessVTime = req.NextAccessVTime
	switch {
	case req.expireTime != 0:
		obj.ExpireTime = req.expireTime
	case req.TTL > 0:
		obj.ExpireTime = req.ClockTime + req.TTL
	case c.params.DefaultTTL > 0:
		obj.ExpireTime = req.ClockTime + c.params.DefaultTTL
	}
	c.occupied += req.Size + c.overhead
	c.count++
	return obj
}

// RemoveObject is the base delete: it releases obj's bytes and frees its
// slot. obj must already be unlinked from the policy's lists.
func (c *Cache) RemoveObject(obj *Object) {
	c.occupied -= obj.Size + c.overhead
	c.count--
	if c.occupied < 0 || c.count < 0 {
		panic(fmt.Sprintf("cache: %s accounting underflow (%d bytes, %d objects)", c.name, c.occupied, c.count))
	}
	c.store.Delete(obj)
}
