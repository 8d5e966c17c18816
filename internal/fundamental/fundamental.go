// Package fundamental generates the latent value of the traded asset: a
// mean-reverting jump process. At each tick the value jumps with a fixed
// probability; a jump pulls the value toward the long-run mean by kappa
// and adds Gaussian noise, and between jumps the value holds exactly.
package fundamental

import (
	"fmt"
	"math"
	"math/rand"

	"marketsim/pkg/ticks"
)

// Process is one realization of the fundamental series, generated lazily
// and cached so every observer of tick t sees the same value. Not safe
// for concurrent use.
type Process struct {
	mean      float64
	kappa     float64
	shockStd  float64
	shockProb float64
	rng       *rand.Rand
	series    []ticks.Price
}

// New builds a process. mean is the long-run level, kappa in [0, 1] the
// reversion weight (1 reverts fully each jump, 0 never reverts), shockVar
// the variance of the jump noise and of the initial draw around mean, and
// shockProb the per-tick jump probability.
func New(mean ticks.Price, kappa, shockVar, shockProb float64, rng *rand.Rand) *Process {
	if kappa < 0 || kappa > 1 {
		panic(fmt.Sprintf("fundamental: kappa %v outside [0, 1]", kappa))
	}
	if shockProb < 0 || shockProb > 1 {
		panic(fmt.Sprintf("fundamental: shock probability %v outside [0, 1]", shockProb))
	}
	return &Process{
		mean:      float64(mean),
		kappa:     kappa,
		shockStd:  math.Sqrt(shockVar),
		shockProb: shockProb,
		rng:       rng,
	}
}

// ValueAt returns the fundamental value at tick t, clamped to zero from
// below. The stored series keeps the raw value so clamping never feeds
// back into the process.
func (p *Process) ValueAt(t ticks.Time) ticks.Price {
	if t < 0 {
		panic(fmt.Sprintf("fundamental: value requested at %v", t))
	}
	p.extend(int(t.Ticks()))
	return p.series[t.Ticks()].Nonnegative()
}

// Series returns a copy of the clamped values for ticks [0, t].
func (p *Process) Series(t ticks.Time) []ticks.Price {
	if t < 0 {
		panic(fmt.Sprintf("fundamental: series requested through %v", t))
	}
	p.extend(int(t.Ticks()))
	out := make([]ticks.Price, t.Ticks()+1)
	for i := range out {
		out[i] = p.series[i].Nonnegative()
	}
	return out
}

// EstimateFinal returns the expected value at horizon conditional on the
// value at t: a weighted pull toward the mean, with the per-tick weight
// discounted by the jump probability since ticks without a jump do not
// revert.
func (p *Process) EstimateFinal(t, horizon ticks.Time) ticks.Price {
	if horizon.Before(t) {
		panic(fmt.Sprintf("fundamental: horizon %v before %v", horizon, t))
	}
	current := float64(p.ValueAt(t))
	w := math.Pow(1-p.kappa*p.shockProb, float64(horizon.Ticks()-t.Ticks()))
	return ticks.NewPrice(w*current + (1-w)*p.mean).Nonnegative()
}

func (p *Process) extend(idx int) {
	if len(p.series) == 0 {
		v := p.mean + p.shockStd*p.rng.NormFloat64()
		p.series = append(p.series, ticks.NewPrice(v))
	}
	for len(p.series) <= idx {
		prev := p.series[len(p.series)-1]
		next := prev
		// At probability one the draw is skipped, not just certain, so a
		// jump-every-tick process consumes the generator identically
		// regardless of how the probability was specified.
		if p.shockProb >= 1 || p.rng.Float64() < p.shockProb {
			v := p.mean*p.kappa + (1-p.kappa)*float64(prev) + p.shockStd*p.rng.NormFloat64()
			next = ticks.NewPrice(v)
		}
		p.series = append(p.series, next)
	}
}
