// Package pool defines the adapter surface the registry consumes. The
// pool's own swap/tick/curve math lives behind these interfaces; adapter
// failures propagate to callers unchanged.
package pool

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"positionRegistry/internal/model"
)

// Pool is one pool's mutation surface.
type Pool interface {
	// Initialize sets the starting price; fails if already initialized.
	Initialize(sqrtPriceX96 *uint256.Int) error
	Initialized() bool
	// AddLiquidity mints delta units into the range and reports the token
	// amounts the pool requires in exchange.
	AddLiquidity(tickLower, tickUpper int32, delta *uint256.Int) (amount0, amount1 *uint256.Int, err error)
	// RemoveLiquidity burns delta units from the range and reports the token
	// amounts released.
	RemoveLiquidity(tickLower, tickUpper int32, delta *uint256.Int) (amount0, amount1 *uint256.Int, err error)
	// FeeGrowthInside returns the current inside-range fee-growth
	// accumulators (X128 fixed point, wrapping).
	FeeGrowthInside(tickLower, tickUpper int32) (fg0, fg1 *uint256.Int, err error)
	// Collect pays the requested token amounts to the recipient.
	Collect(recipient common.Address, amount0, amount1 *uint256.Int) (paid0, paid1 *uint256.Int, err error)
}

// Factory resolves and creates pools by key.
type Factory interface {
	Get(key model.PoolKey) (Pool, bool)
	Create(key model.PoolKey) (Pool, error)
}
