package cache

// Policy is the per-instance eviction logic bound to one Cache.
// A Cache owns exactly one Policy; policies get their Cache at construction
// (see Builder) and use it for storage, accounting and logging.
//
// Semantics:
//   - Find with update=false must not change any state. Composite policies
//     use it to look across their sub-caches without counting hits twice.
//   - Insert may assume capacity has already been made available.
//   - Evict removes at least one resident object (batch policies may
//     remove more).
//   - ToEvict previews the next victim without side effects. Policies that
//     cannot preview call Unsupported.
//   - Remove returns false when id is absent.
type Policy interface {
	Find(req *Request, update bool) *Object
	Insert(req *Request) *Object
	Evict(req *Request)
	ToEvict(req *Request) *Object
	Remove(id uint64) bool
}

// Admitter overrides the default admission predicate (size fits capacity).
type Admitter interface {
	CanInsert(req *Request) bool
}

// Sizer is implemented by composite policies whose resident bytes live in
// inner caches rather than in their own store.
type Sizer interface {
	OccupiedBytes() int64
	ObjectCount() int64
}

// Describer reports the effective policy parameters as "k=v,k=v".
type Describer interface {
	Describe() string
}

// CounterSource exposes policy-specific read-only counters (bytes admitted
// per tier, reinsertions) for benchmark harnesses.
type CounterSource interface {
	Counters() map[string]int64
}

// Builder binds a policy to a freshly created cache.
type Builder func(c *Cache) (Policy, error)

// Factory builds caches by policy name. Composite policies receive one so
// their pluggable inner caches can be any registered policy.
type Factory interface {
	New(name string, p Params, args string) (*Cache, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(name string, p Params, args string) (*Cache, error)

// New calls f.
func (f FactoryFunc) New(name string, p Params, args string) (*Cache, error) {
	return f(name, p, args)
}
