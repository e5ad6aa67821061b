package cache

import "fmt"

// Handle is a generation-checked reference to an Object slot in a Store.
// The low 32 bits index the slot, the high 32 bits hold the slot
// generation. The zero Handle refers to nothing.
type Handle uint64

func makeHandle(idx, gen uint32) Handle { return Handle(uint64(gen)<<32 | uint64(idx)) }

func (h Handle) index() uint32 { return uint32(h) }
func (h Handle) gen() uint32   { return uint32(h >> 32) }

// IsNil reports whether h refers to nothing.
func (h Handle) IsNil() bool { return h == 0 }

func (h Handle) String() string {
	if h == 0 {
		return "nil"
	}
	return fmt.Sprintf("%d@%d", h.index(), h.gen())
}

// link slot bits in Object.linked.
const (
	linkMain uint8 = 1 << iota
	linkAux
)

// Object is the cached metadata for one object id. Objects live in a
// Store arena and are referenced by Handle; lists only ever hold handles.
//
// The policy-owned fields (Counter, Seg, Flags, Score, Aux, HeapIndex) mean
// whatever the owning policy says they mean: a clock counter, a segment
// number, a ghost bit, a heap position, a priority.
type Object struct {
	ID   uint64
	Size int64

	self    Handle
	gen     uint32
	livePos int32
	linked  uint8

	// primary list links
	prev, next Handle
	// auxiliary list links
	auxPrev, auxNext Handle

	CreateVTime     int64
	LastAccessVTime int64
	NextAccessVTime int64
	// ExpireTime is an absolute trace time in seconds; zero means no TTL.
	ExpireTime int64
	// Freq counts accesses since insertion into this cache (maintained by
	// Cache.Lookup).
	Freq int64

	Counter   int32
	Seg       int32
	Flags     uint32
	HeapIndex int
	Score     float64
	Aux       int64
}

// Handle returns the object's own handle.
func (o *Object) Handle() Handle { return o.self }

// CopyTo fills req with the identity of o so the object can be recreated in
// another cache after it is removed from this one. Timing fields of req
// (VTime, ClockTime) are left as they are.
func (o *Object) CopyTo(req *Request) {
	req.ID = o.ID
	req.Size = o.Size
	req.NextAccessVTime = o.NextAccessVTime
	req.TTL = 0
	req.expireTime = o.ExpireTime
}
