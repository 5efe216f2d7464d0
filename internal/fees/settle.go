// Package fees reconciles pool fee-growth accumulators into per-position
// owed balances.
package fees

import (
	"math/big"

	"github.com/holiman/uint256"

	"positionRegistry/internal/model"
)

// q128 scales fee growth from per-unit-of-liquidity X128 fixed point.
var q128 = new(big.Int).Lsh(big.NewInt(1), 128)

// Settle folds the accrual since the last snapshot into the position's owed
// balances and rewrites the snapshots to the fresh accumulator values. It
// must run before every liquidity change or collect; the accrual uses the
// liquidity held before the change.
func Settle(pos *model.Position, fg0Now, fg1Now *uint256.Int) {
	pos.TokensOwed0.Add(pos.TokensOwed0, accrued(pos.Liquidity, pos.FeeGrowthInside0LastX128, fg0Now))
	pos.TokensOwed1.Add(pos.TokensOwed1, accrued(pos.Liquidity, pos.FeeGrowthInside1LastX128, fg1Now))
	pos.FeeGrowthInside0LastX128.Set(fg0Now)
	pos.FeeGrowthInside1LastX128.Set(fg1Now)
}

// accrued computes liquidity * (now - last) / 2^128.
//
// The subtraction wraps modulo 2^256: the accumulator legitimately overflows
// its width over time, and the wrapped difference is still the true per-unit
// accrual. The product is taken at full width before the scale-down so no
// truncation happens mid-computation.
func accrued(liquidity, last, now *uint256.Int) *uint256.Int {
	if liquidity.IsZero() {
		return uint256.NewInt(0)
	}
	delta := new(uint256.Int).Sub(now, last)
	if delta.IsZero() {
		return uint256.NewInt(0)
	}

	wide := new(big.Int).Mul(liquidity.ToBig(), delta.ToBig())
	wide.Div(wide, q128)

	out, overflow := uint256.FromBig(wide)
	if overflow {
		// only reachable with liquidity above 2^128; saturate
		out = new(uint256.Int).SetAllOne()
	}
	return out
}
