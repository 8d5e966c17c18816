package fundamental

import (
	"math/rand"
	"testing"

	"marketsim/pkg/ticks"
)

func TestDeterministicPerSeed(t *testing.T) {
	a := New(100_000, 0.05, 1e6, 0.2, rand.New(rand.NewSource(42)))
	b := New(100_000, 0.05, 1e6, 0.2, rand.New(rand.NewSource(42)))
	for tick := ticks.Time(0); tick <= 500; tick++ {
		if av, bv := a.ValueAt(tick), b.ValueAt(tick); av != bv {
			t.Fatalf("processes diverge at %v: %v vs %v", tick, av, bv)
		}
	}
}

func TestLazyAndEagerAgree(t *testing.T) {
	lazy := New(100_000, 0.05, 1e6, 0.2, rand.New(rand.NewSource(7)))
	eager := New(100_000, 0.05, 1e6, 0.2, rand.New(rand.NewSource(7)))

	// Jump ahead, then read back; cached values must match a front-to-back walk.
	lazy.ValueAt(300)
	for tick := ticks.Time(0); tick <= 300; tick++ {
		if lv, ev := lazy.ValueAt(tick), eager.ValueAt(tick); lv != ev {
			t.Fatalf("cached value at %v = %v, sequential walk = %v", tick, lv, ev)
		}
	}
}

func TestZeroShockProbabilityHoldsExactly(t *testing.T) {
	p := New(100_000, 0.2, 1e6, 0, rand.New(rand.NewSource(3)))
	first := p.ValueAt(0)
	for tick := ticks.Time(1); tick <= 200; tick++ {
		if v := p.ValueAt(tick); v != first {
			t.Fatalf("value moved to %v at %v with zero shock probability", v, tick)
		}
	}
}

func TestFullReversionCentersOnMean(t *testing.T) {
	// kappa=1 makes each jump an independent draw around the mean.
	const mean = 100_000
	p := New(mean, 1, 1e6, 1, rand.New(rand.NewSource(11)))
	var sum float64
	const n = 2000
	for tick := ticks.Time(0); tick < n; tick++ {
		sum += float64(p.ValueAt(tick))
	}
	avg := sum / n
	if avg < mean-200 || avg > mean+200 {
		t.Errorf("average value %v, want near %d", avg, mean)
	}
}

func TestValueNeverNegative(t *testing.T) {
	// Mean near zero with large shocks; raw series goes negative, reads must not.
	p := New(10, 0, 1e8, 1, rand.New(rand.NewSource(5)))
	for tick := ticks.Time(0); tick <= 1000; tick++ {
		if v := p.ValueAt(tick); v < 0 {
			t.Fatalf("value at %v = %v", tick, v)
		}
	}
}

func TestClampDoesNotFeedBack(t *testing.T) {
	// Two processes with identical seeds; reading one early and often must
	// not change what either reports later.
	a := New(10, 0, 1e8, 1, rand.New(rand.NewSource(5)))
	b := New(10, 0, 1e8, 1, rand.New(rand.NewSource(5)))
	for tick := ticks.Time(0); tick <= 500; tick++ {
		a.ValueAt(tick)
		a.ValueAt(tick / 2)
	}
	for tick := ticks.Time(0); tick <= 500; tick++ {
		if av, bv := a.ValueAt(tick), b.ValueAt(tick); av != bv {
			t.Fatalf("re-reads changed the series at %v: %v vs %v", tick, av, bv)
		}
	}
}

func TestSeriesMatchesValueAt(t *testing.T) {
	p := New(100_000, 0.1, 1e6, 0.5, rand.New(rand.NewSource(13)))
	series := p.Series(100)
	if len(series) != 101 {
		t.Fatalf("series length = %d, want 101", len(series))
	}
	for tick := ticks.Time(0); tick <= 100; tick++ {
		if series[tick] != p.ValueAt(tick) {
			t.Fatalf("series[%v] = %v, ValueAt = %v", tick, series[tick], p.ValueAt(tick))
		}
	}
}

func TestCertainJumpAlwaysMoves(t *testing.T) {
	p := New(100_000, 0.5, 1e6, 1, rand.New(rand.NewSource(9)))
	var holds int
	prev := p.ValueAt(0)
	for tick := ticks.Time(1); tick <= 500; tick++ {
		v := p.ValueAt(tick)
		if v == prev {
			holds++
		}
		prev = v
	}
	// Exact repeats of a continuous draw rounded to int are possible but rare.
	if holds > 5 {
		t.Errorf("%d holds out of 500 ticks with certain jumps", holds)
	}
}
