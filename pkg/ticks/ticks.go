// Package ticks holds the integer time and price primitives shared by the
// whole simulator. Both are plain int64 newtypes so comparisons and map keys
// stay cheap; all rounding happens at construction.
package ticks

import (
	"fmt"
	"math"

	"marketsim/pkg/safe"
)

// Time is a simulated clock value in integer ticks. It is never a wall-clock
// time; one tick is the finest granularity the simulation can distinguish.
type Time int64

const (
	// Immediate sorts before every concrete Time. It marks work that must
	// happen without a queue round-trip and is never a valid delay target.
	Immediate Time = -1
	// TimeZero is the start of every simulation.
	TimeZero Time = 0
)

// NewTime builds a Time from raw ticks. Negative values collapse to
// Immediate.
func NewTime(t int64) Time {
	if t < 0 {
		return Immediate
	}
	return Time(t)
}

// Add returns the time d ticks later.
func (t Time) Add(d Time) Time {
	return NewTime(safe.AddSat(int64(t), int64(d)))
}

// Sub returns the time d ticks earlier, clamping at Immediate.
func (t Time) Sub(d Time) Time {
	return NewTime(safe.SubSat(int64(t), int64(d)))
}

// Before reports whether t is strictly earlier than o.
func (t Time) Before(o Time) bool { return t < o }

// After reports whether t is strictly later than o.
func (t Time) After(o Time) bool { return t > o }

// IsImmediate reports whether t is the Immediate sentinel.
func (t Time) IsImmediate() bool { return t == Immediate }

// Ticks returns the raw tick count.
func (t Time) Ticks() int64 { return int64(t) }

func (t Time) String() string {
	if t.IsImmediate() {
		return "immediate"
	}
	return fmt.Sprintf("%dt", int64(t))
}

// Price is an integer tick price. Transient negatives are allowed; call
// Nonnegative before handing a price to anything that assumes a real market
// price.
type Price int64

const (
	// PriceInf and PriceNegInf bound every concrete price and double as the
	// "no ask" / "no bid" values in quotes, so min/max aggregation needs no
	// nil checks. PriceNegInf is MinInt64+1 so -PriceNegInf == PriceInf.
	PriceInf    Price = math.MaxInt64
	PriceNegInf Price = math.MinInt64 + 1
	ZeroPrice   Price = 0
)

// NewPrice rounds a float to the nearest tick, saturating at PriceInf.
func NewPrice(v float64) Price {
	if v >= float64(math.MaxInt64) {
		return PriceInf
	}
	if v <= float64(math.MinInt64+1) {
		return PriceNegInf
	}
	return Price(math.RoundToEven(v))
}

// Add returns the price d ticks higher, saturating at the sentinels.
func (p Price) Add(d int64) Price {
	return clampPrice(safe.AddSat(int64(p), d))
}

// Sub returns the price d ticks lower, saturating at the sentinels.
func (p Price) Sub(d int64) Price {
	return clampPrice(safe.SubSat(int64(p), d))
}

// clampPrice pins a raw int64 back into [PriceNegInf, PriceInf]. Saturating
// arithmetic bottoms out at MinInt64, one below the lower sentinel.
func clampPrice(v int64) Price {
	if v < int64(PriceNegInf) {
		return PriceNegInf
	}
	return Price(v)
}

// Nonnegative clamps the price at zero.
func (p Price) Nonnegative() Price {
	if p < ZeroPrice {
		return ZeroPrice
	}
	return p
}

// Quantize rounds the price to the nearest multiple of quanta, ties to even.
// Sentinel prices pass through unchanged.
func (p Price) Quantize(quanta int64) Price {
	if quanta <= 1 || p == PriceInf || p == PriceNegInf {
		return p
	}
	steps := math.RoundToEven(float64(p) / float64(quanta))
	return clampPrice(safe.MulChecked(int64(steps), quanta))
}

// Ticks returns the raw tick count.
func (p Price) Ticks() int64 { return int64(p) }

// Defined reports whether p is a concrete price rather than a boundary
// sentinel.
func (p Price) Defined() bool { return p != PriceInf && p != PriceNegInf }

func (p Price) String() string {
	switch p {
	case PriceInf:
		return "+inf"
	case PriceNegInf:
		return "-inf"
	default:
		return fmt.Sprintf("$%d", int64(p))
	}
}

// MinPrice returns the smaller of two prices.
func MinPrice(a, b Price) Price {
	if a < b {
		return a
	}
	return b
}

// MaxPrice returns the larger of two prices.
func MaxPrice(a, b Price) Price {
	if a > b {
		return a
	}
	return b
}
