package safe

import (
	"math"
)

// AddSat performs int64 addition saturating at the int64 bounds instead of
// wrapping. Price sentinels sit at the bounds, so boundary arithmetic must
// stay there.
func AddSat(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}

// SubSat performs int64 subtraction saturating at the int64 bounds.
func SubSat(a, b int64) int64 {
	if b < 0 && a > math.MaxInt64+b {
		return math.MaxInt64
	}
	if b > 0 && a < math.MinInt64+b {
		return math.MinInt64
	}
	return a - b
}

// MulChecked performs int64 multiplication and panics on overflow. Used by
// tick quantization where an overflow means a corrupt price, not a boundary
// value.
func MulChecked(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > 0 {
		if b > 0 {
			if a > math.MaxInt64/b {
				panic("safe: mul overflow")
			}
		} else {
			if b < math.MinInt64/a {
				panic("safe: mul overflow")
			}
		}
	} else {
		if b > 0 {
			if a < math.MinInt64/b {
				panic("safe: mul overflow")
			}
		} else {
			if a < math.MaxInt64/b {
				panic("safe: mul overflow")
			}
		}
	}
	return a * b
}

// DivChecked performs int64 division and panics on division by zero or the
// MinInt64/-1 overflow case.
func DivChecked(a, b int64) int64 {
	if b == 0 {
		panic("safe: div by zero")
	}
	if a == math.MinInt64 && b == -1 {
		panic("safe: div overflow")
	}
	return a / b
}
