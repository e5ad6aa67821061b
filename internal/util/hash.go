// Package util contains internal helpers: id hashing and power-of-two sizing.
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

// Key is what trace readers and caches hash: textual trace keys, raw
// bytes, or numeric ids mixed with a seed.
type Key interface {
	string | []byte | uint64
}

const (
	fnvOffset64 = 1469598103934665603
	fnvPrime64  = 1099511628211
)

// Fnv64a returns the 64-bit FNV-1a hash of k. Numeric ids are hashed as
// their 8 little-endian bytes, so Fnv64a(uint64(x)) is stable across
// platforms and matches hashing the encoded record field.
func Fnv64a[K Key](k K) uint64 {
	h := uint64(fnvOffset64)
	switch v := any(k).(type) {
	case uint64:
		for range 8 {
			h = (h ^ (v & 0xff)) * fnvPrime64
			v >>= 8
		}
		return h
	case string:
		for i := 0; i < len(v); i++ {
			h = (h ^ uint64(v[i])) * fnvPrime64
		}
		return h
	case []byte:
		for _, c := range v {
			h = (h ^ uint64(c)) * fnvPrime64
		}
		return h
	}
	panic("unreachable")
}
