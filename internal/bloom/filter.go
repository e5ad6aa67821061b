package bloom

import (
	"math"

	"github.com/IvanBrykalov/cachesim/internal/util"
)

// Filter is a one-bit Bloom filter. W-TinyLFU uses it as a doorkeeper in
// front of the counting filter so one-hit wonders never reach the counters.
type Filter struct {
	bits []uint64
	k    uint64
	mask uint64
}

// NewFilter sizes a filter for entries keys at the given false-positive rate.
func NewFilter(entries int, fpRate float64) *Filter {
	if entries < 1 {
		entries = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}
	bpe := -math.Log(fpRate) / (math.Ln2 * math.Ln2)
	k := uint64(math.Ceil(math.Ln2 * bpe))
	m := uint64(math.Ceil(float64(entries) * bpe))
	m = util.NextPow2(max(m, 64))
	return &Filter{bits: make([]uint64, m/64), k: k, mask: m - 1}
}

// Add sets key and reports whether it was already (probably) present.
func (f *Filter) Add(key uint64) bool {
	h1, h2 := hashes(key)
	present := true
	for i := uint64(0); i < f.k; i++ {
		pos := (h1 + i*h2) & f.mask
		w, b := pos/64, uint64(1)<<(pos%64)
		if f.bits[w]&b == 0 {
			present = false
			f.bits[w] |= b
		}
	}
	return present
}

// Contains reports whether key is (probably) present.
func (f *Filter) Contains(key uint64) bool {
	h1, h2 := hashes(key)
	for i := uint64(0); i < f.k; i++ {
		pos := (h1 + i*h2) & f.mask
		if f.bits[pos/64]&(uint64(1)<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// Reset clears the filter.
func (f *Filter) Reset() { clear(f.bits) }
