// Package experts mixes two eviction experts with multiplicative weights,
// the learning scheme shared by LeCaR and Cacheus.
//
// When an id evicted on an expert's advice comes back while still in that
// expert's history, the expert is penalized: its weight is multiplied by
// exp(-lr·r) with r = discount^age (age = requests the id spent in the
// history), and both weights are renormalized to sum to 1.
package experts

import (
	"math"
	"math/rand/v2"
)

// Mix holds the weights of two experts.
type Mix struct {
	w     [2]float64
	floor float64
}

// NewMix returns equal weights. Weights never drop below floor (0 allows
// any positive weight); floor must be < 0.5.
func NewMix(floor float64) Mix {
	return Mix{w: [2]float64{0.5, 0.5}, floor: floor}
}

// Weight returns the weight of expert i.
func (m *Mix) Weight(i int) float64 { return m.w[i] }

// Choose draws an expert according to the weights.
func (m *Mix) Choose(r *rand.Rand) int {
	if r.Float64() < m.w[0] {
		return 0
	}
	return 1
}

// Penalize lowers the weight of expert i by exp(-lr·reward).
func (m *Mix) Penalize(i int, lr, reward float64) {
	m.w[i] *= math.Exp(-lr * reward)
	sum := m.w[0] + m.w[1]
	if sum <= 0 || math.IsNaN(sum) {
		m.w = [2]float64{0.5, 0.5}
		return
	}
	m.w[0] /= sum
	m.w[1] /= sum
	for j := range m.w {
		if m.w[j] < m.floor {
			m.w[j] = m.floor
			m.w[1-j] = 1 - m.floor
		}
	}
}

// Reward is discount^age, the penalty weight of a regret detected age
// requests after the eviction.
func Reward(discount float64, age int64) float64 {
	if age <= 0 {
		return 1
	}
	return math.Pow(discount, float64(age))
}

// DefaultDiscount is 0.005^(1/n): a regret loses most of its weight once
// the history has turned over about once. n is the cache size in objects.
func DefaultDiscount(n int64) float64 {
	return math.Pow(0.005, 1/float64(max(n, 1)))
}

// Pick remembers the expert drawn for the eviction of one request, so that
// a ToEvict preview and the Evict that follows agree.
type Pick struct {
	vtime  int64
	expert int
	valid  bool
}

// Expert returns the expert for the request at vtime, drawing it from m on
// first use.
func (p *Pick) Expert(vtime int64, m *Mix, r *rand.Rand) int {
	if !p.valid || p.vtime != vtime {
		*p = Pick{vtime: vtime, expert: m.Choose(r), valid: true}
	}
	return p.expert
}

// Force fixes the expert for the request at vtime.
func (p *Pick) Force(vtime int64, expert int) {
	*p = Pick{vtime: vtime, expert: expert, valid: true}
}

// Consume forgets the drawn expert once its eviction has run.
func (p *Pick) Consume() { p.valid = false }
