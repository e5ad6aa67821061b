package cache

import "math"

const (
	// NoLookahead marks a request from a trace that carries no future-access
	// information.
	NoLookahead int64 = -2
	// NeverAccessed marks an object that is not requested again in the trace.
	NeverAccessed int64 = math.MaxInt64
)

// Request is one access read from a trace.
//
// VTime is stamped by the top-level Cache.Get with the cache's request
// counter and is the logical clock every policy compares against.
// Inner caches of a composite policy never stamp it; they see the
// top-level value.
type Request struct {
	ID   uint64
	Size int64

	// ClockTime is the trace timestamp in seconds (used for TTL only).
	ClockTime int64
	// VTime is the logical request counter (n_req) at the time of access.
	VTime int64
	// NextAccessVTime is the vtime of the next request for the same object,
	// NeverAccessed when there is none, NoLookahead when unknown.
	NextAccessVTime int64
	// TTL in seconds; zero falls back to Params.DefaultTTL.
	TTL int64

	// expireTime carries an absolute expiration when an object is moved
	// between sub-caches (see Object.CopyTo).
	expireTime int64
}
