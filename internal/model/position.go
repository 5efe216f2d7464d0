package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Position is one liquidity claim against a pool's tick range.
// TickLower/TickUpper never change after creation. The fee-growth snapshots
// record the pool's inside-range accumulators at the last settlement and
// accrue modulo 2^256.
type Position struct {
	TokenID                  uint64
	Pool                     PoolKey
	TickLower                int32
	TickUpper                int32
	Liquidity                *uint256.Int
	FeeGrowthInside0LastX128 *uint256.Int
	FeeGrowthInside1LastX128 *uint256.Int
	TokensOwed0              *uint256.Int
	TokensOwed1              *uint256.Int
	Nonce                    uint64
	Operator                 common.Address
}

// NewPosition builds a freshly minted position with zero owed balances and
// fee-growth snapshots taken at creation.
func NewPosition(tokenID uint64, key PoolKey, tickLower, tickUpper int32, liquidity, fg0, fg1 *uint256.Int) *Position {
	return &Position{
		TokenID:                  tokenID,
		Pool:                     key,
		TickLower:                tickLower,
		TickUpper:                tickUpper,
		Liquidity:                liquidity.Clone(),
		FeeGrowthInside0LastX128: fg0.Clone(),
		FeeGrowthInside1LastX128: fg1.Clone(),
		TokensOwed0:              uint256.NewInt(0),
		TokensOwed1:              uint256.NewInt(0),
	}
}

// Clone deep-copies the position, including its uint256 fields.
func (p *Position) Clone() *Position {
	return &Position{
		TokenID:                  p.TokenID,
		Pool:                     p.Pool,
		TickLower:                p.TickLower,
		TickUpper:                p.TickUpper,
		Liquidity:                p.Liquidity.Clone(),
		FeeGrowthInside0LastX128: p.FeeGrowthInside0LastX128.Clone(),
		FeeGrowthInside1LastX128: p.FeeGrowthInside1LastX128.Clone(),
		TokensOwed0:              p.TokensOwed0.Clone(),
		TokensOwed1:              p.TokensOwed1.Clone(),
		Nonce:                    p.Nonce,
		Operator:                 p.Operator,
	}
}

// Cleared reports whether the position may be burned.
func (p *Position) Cleared() bool {
	return p.Liquidity.IsZero() && p.TokensOwed0.IsZero() && p.TokensOwed1.IsZero()
}

// Descriptor is the read-only metadata view of a position.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
