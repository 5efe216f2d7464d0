package model

import "github.com/ethereum/go-ethereum/common"

// OperationRecord is the JSONL journal line written after each executed batch
// sub-operation.
type OperationRecord struct {
	Batch      uint64 `json:"batch"`
	Index      int    `json:"index"`
	Method     string `json:"method"`
	Caller     string `json:"caller"`
	TokenID    uint64 `json:"token_id,omitempty"`
	Amount0    string `json:"amount0,omitempty"`
	Amount1    string `json:"amount1,omitempty"`
	Error      string `json:"error,omitempty"`
	ExecutedAt string `json:"executed_at"`
}

// PositionSnapshot is the persisted flat view of a position; big values are
// decimal strings so they survive any storage width.
type PositionSnapshot struct {
	TokenID     uint64 `json:"token_id"`
	Owner       string `json:"owner"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint32 `json:"fee"`
	TickLower   int32  `json:"tick_lower"`
	TickUpper   int32  `json:"tick_upper"`
	Liquidity   string `json:"liquidity"`
	FeeGrowth0  string `json:"fee_growth_inside0_last_x128"`
	FeeGrowth1  string `json:"fee_growth_inside1_last_x128"`
	TokensOwed0 string `json:"tokens_owed0"`
	TokensOwed1 string `json:"tokens_owed1"`
	Nonce       uint64 `json:"nonce"`
	Operator    string `json:"operator,omitempty"`
}

// Snapshot flattens a position for the journal and the Postgres store.
func (p *Position) Snapshot(owner string) PositionSnapshot {
	snap := PositionSnapshot{
		TokenID:     p.TokenID,
		Owner:       owner,
		Token0:      p.Pool.Token0.Hex(),
		Token1:      p.Pool.Token1.Hex(),
		Fee:         p.Pool.Fee,
		TickLower:   p.TickLower,
		TickUpper:   p.TickUpper,
		Liquidity:   p.Liquidity.Dec(),
		FeeGrowth0:  p.FeeGrowthInside0LastX128.Dec(),
		FeeGrowth1:  p.FeeGrowthInside1LastX128.Dec(),
		TokensOwed0: p.TokensOwed0.Dec(),
		TokensOwed1: p.TokensOwed1.Dec(),
		Nonce:       p.Nonce,
	}
	if p.Operator != (common.Address{}) {
		snap.Operator = p.Operator.Hex()
	}
	return snap
}
