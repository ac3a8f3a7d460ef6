// Package calculator holds the ledger's arithmetic. Every operation is
// overflow-checked and reports models.ErrArithmeticOverflow instead of wrapping.
package calculator

import (
	"math"

	"github.com/mmynk/ajo/internal/models"
)

// AddInt64 returns a + b.
func AddInt64(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, models.ErrArithmeticOverflow
	}
	return a + b, nil
}

// SubInt64 returns a - b.
func SubInt64(a, b int64) (int64, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, models.ErrArithmeticOverflow
	}
	return a - b, nil
}

// MulInt64 returns a * b.
func MulInt64(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, models.ErrArithmeticOverflow
	}
	c := a * b
	if c/b != a {
		return 0, models.ErrArithmeticOverflow
	}
	return c, nil
}

// IncUint32 returns n + 1.
func IncUint32(n uint32) (uint32, error) {
	if n == math.MaxUint32 {
		return 0, models.ErrArithmeticOverflow
	}
	return n + 1, nil
}

// PayoutAmount computes the pool for one cycle: the number of contribution
// markers actually recorded times the fixed contribution amount.
func PayoutAmount(contributions int, contributionAmount int64) (int64, error) {
	if contributions < 0 {
		return 0, models.ErrArithmeticOverflow
	}
	return MulInt64(int64(contributions), contributionAmount)
}

// CycleEndTime returns cycleStart + cycleLength.
func CycleEndTime(cycleStart, cycleLength int64) (int64, error) {
	return AddInt64(cycleStart, cycleLength)
}
