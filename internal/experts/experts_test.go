package experts

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestMix_PenalizeShiftsWeight(t *testing.T) {
	t.Parallel()

	m := NewMix(0)
	m.Penalize(0, 0.45, 1)
	if m.Weight(0) >= 0.5 || m.Weight(1) <= 0.5 {
		t.Fatalf("weights = %v, %v; want expert 0 below 0.5", m.Weight(0), m.Weight(1))
	}
	if s := m.Weight(0) + m.Weight(1); math.Abs(s-1) > 1e-12 {
		t.Fatalf("weights sum to %v, want 1", s)
	}
	want := math.Exp(-0.45) / (math.Exp(-0.45) + 1)
	if math.Abs(m.Weight(0)-want) > 1e-12 {
		t.Fatalf("Weight(0) = %v, want %v", m.Weight(0), want)
	}
}

func TestMix_Floor(t *testing.T) {
	t.Parallel()

	m := NewMix(0.01)
	for i := 0; i < 200; i++ {
		m.Penalize(1, 1, 1)
	}
	if m.Weight(1) != 0.01 || math.Abs(m.Weight(0)-0.99) > 1e-12 {
		t.Fatalf("weights = %v, %v; want clamped to 0.99, 0.01", m.Weight(0), m.Weight(1))
	}
}

func TestMix_ChooseFollowsWeights(t *testing.T) {
	t.Parallel()

	m := NewMix(0)
	for i := 0; i < 5; i++ {
		m.Penalize(1, 1, 1)
	}
	r := rand.New(rand.NewPCG(1, 2))
	n := 0
	for i := 0; i < 10_000; i++ {
		if m.Choose(r) == 0 {
			n++
		}
	}
	got := float64(n) / 10_000
	if math.Abs(got-m.Weight(0)) > 0.03 {
		t.Fatalf("expert 0 chosen %.3f of the time, weight %.3f", got, m.Weight(0))
	}
}

func TestReward(t *testing.T) {
	t.Parallel()

	d := DefaultDiscount(100)
	if got := Reward(d, 100); math.Abs(got-0.005) > 1e-9 {
		t.Fatalf("Reward(d, n) = %v, want 0.005", got)
	}
	if Reward(d, 0) != 1 {
		t.Fatal("an immediate regret must have reward 1")
	}
}

func TestPick_StableWithinRequest(t *testing.T) {
	t.Parallel()

	m := NewMix(0)
	r := rand.New(rand.NewPCG(4, 4))
	var p Pick
	first := p.Expert(10, &m, r)
	for i := 0; i < 20; i++ {
		if got := p.Expert(10, &m, r); got != first {
			t.Fatalf("Expert(10) = %d, then %d", first, got)
		}
	}
	p.Force(11, 1)
	if p.Expert(11, &m, r) != 1 {
		t.Fatal("a forced expert must be returned for its request")
	}
	p.Consume()
	p.Force(12, 0)
	if p.Expert(12, &m, r) != 0 {
		t.Fatal("Force after Consume must take effect")
	}
}
