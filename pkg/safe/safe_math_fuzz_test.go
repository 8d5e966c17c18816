package safe

import (
	"math/big"
	"testing"
)

// FuzzAddSat checks saturation against big.Int reference arithmetic.
func FuzzAddSat(f *testing.F) {
	f.Add(int64(0), int64(0))
	f.Add(int64(1), int64(2))
	f.Add(int64(-1), int64(1))
	f.Add(int64(9223372036854775807), int64(1))  // MaxInt64
	f.Add(int64(-9223372036854775808), int64(-1)) // MinInt64

	f.Fuzz(func(t *testing.T, a, b int64) {
		got := AddSat(a, b)
		ref := new(big.Int).Add(big.NewInt(a), big.NewInt(b))
		if ref.IsInt64() {
			if got != ref.Int64() {
				t.Errorf("AddSat(%d, %d) = %d, want %d", a, b, got, ref.Int64())
			}
		} else if ref.Sign() > 0 && got != int64(9223372036854775807) {
			t.Errorf("AddSat(%d, %d) = %d, want MaxInt64", a, b, got)
		} else if ref.Sign() < 0 && got != int64(-9223372036854775808) {
			t.Errorf("AddSat(%d, %d) = %d, want MinInt64", a, b, got)
		}
	})
}

// FuzzSubSat checks saturation against big.Int reference arithmetic.
func FuzzSubSat(f *testing.F) {
	f.Add(int64(0), int64(0))
	f.Add(int64(10), int64(5))
	f.Add(int64(-9223372036854775808), int64(1))

	f.Fuzz(func(t *testing.T, a, b int64) {
		got := SubSat(a, b)
		ref := new(big.Int).Sub(big.NewInt(a), big.NewInt(b))
		if ref.IsInt64() && got != ref.Int64() {
			t.Errorf("SubSat(%d, %d) = %d, want %d", a, b, got, ref.Int64())
		}
	})
}

// FuzzMulChecked confirms overflow always panics rather than wrapping.
func FuzzMulChecked(f *testing.F) {
	f.Add(int64(0), int64(0))
	f.Add(int64(2), int64(3))
	f.Add(int64(-2), int64(3))
	f.Add(int64(1000000), int64(1000000))

	f.Fuzz(func(t *testing.T, a, b int64) {
		defer func() { recover() }() // overflow panic is the contract
		got := MulChecked(a, b)
		ref := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
		if !ref.IsInt64() {
			t.Errorf("MulChecked(%d, %d) = %d, expected panic", a, b, got)
		} else if got != ref.Int64() {
			t.Errorf("MulChecked(%d, %d) = %d, want %d", a, b, got, ref.Int64())
		}
	})
}
