package model

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// PoolKey identifies a pool by its token pair and fee tier.
// Token0 < Token1 always holds; use NewPoolKey to canonicalize.
type PoolKey struct {
	Token0 common.Address `json:"token0"`
	Token1 common.Address `json:"token1"`
	Fee    uint32         `json:"fee"`
}

// NewPoolKey builds a canonical pool key, ordering the token pair.
func NewPoolKey(tokenA, tokenB common.Address, fee uint32) (PoolKey, error) {
	if tokenA == tokenB {
		return PoolKey{}, fmt.Errorf("identical tokens: %s", tokenA.Hex())
	}
	if bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) > 0 {
		tokenA, tokenB = tokenB, tokenA
	}
	return PoolKey{Token0: tokenA, Token1: tokenB, Fee: fee}, nil
}

func (k PoolKey) String() string {
	return fmt.Sprintf("%s/%s@%d", k.Token0.Hex(), k.Token1.Hex(), k.Fee)
}
