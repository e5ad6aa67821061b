// Package bloom provides the frequency sketches used by admission
// policies: a counting Bloom filter with conservative update, and a plain
// one-bit filter used as a doorkeeper.
package bloom

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/IvanBrykalov/cachesim/internal/util"
)

// Counting is a counting Bloom filter. Add increments only the counters
// that currently hold the minimum of the key's k counters (conservative
// update); Estimate returns that minimum. Counters saturate at their width.
type Counting struct {
	counters []uint8
	k        uint64
	mask     uint64
	max      uint8
}

// NewCounting sizes a filter for entries keys at the given false-positive
// rate with bits-wide counters (1..8). bits outside that range become 4.
// The counter count is rounded up to a power of two.
func NewCounting(entries int, fpRate float64, bits uint) *Counting {
	if entries < 1 {
		entries = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}
	if bits < 1 || bits > 8 {
		bits = 4
	}
	bpe := -math.Log(fpRate) / (math.Ln2 * math.Ln2)
	k := uint64(math.Ceil(math.Ln2 * bpe))
	m := uint64(math.Ceil(float64(entries) * bpe))
	m = util.NextPow2(max(m, 2*k))
	return &Counting{
		counters: make([]uint8, m),
		k:        k,
		mask:     m - 1,
		max:      uint8(1<<bits - 1),
	}
}

// K returns the number of hash functions.
func (c *Counting) K() int { return int(c.k) }

// M returns the number of counters.
func (c *Counting) M() int { return len(c.counters) }

func hashes(key uint64) (h1, h2 uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], key)
	h := xxhash.Sum64(b[:])
	return h & 0xffffffff, h>>32 | 1
}

// Add records one occurrence of key and returns its new estimate.
func (c *Counting) Add(key uint64) uint8 {
	h1, h2 := hashes(key)
	low := c.max
	for i := uint64(0); i < c.k; i++ {
		if v := c.counters[(h1+i*h2)&c.mask]; v < low {
			low = v
		}
	}
	if low == c.max {
		return low
	}
	for i := uint64(0); i < c.k; i++ {
		pos := (h1 + i*h2) & c.mask
		if c.counters[pos] == low {
			c.counters[pos]++
		}
	}
	return low + 1
}

// Estimate returns the approximate count of key.
func (c *Counting) Estimate(key uint64) uint8 {
	h1, h2 := hashes(key)
	low := c.max
	for i := uint64(0); i < c.k; i++ {
		if v := c.counters[(h1+i*h2)&c.mask]; v < low {
			low = v
		}
	}
	return low
}

// Decay halves every counter.
func (c *Counting) Decay() {
	for i := range c.counters {
		c.counters[i] >>= 1
	}
}

// Reset zeroes every counter.
func (c *Counting) Reset() { clear(c.counters) }
