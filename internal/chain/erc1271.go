package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const isValidSignatureJSON = `[
  {"inputs": [{"type": "bytes32"}, {"type": "bytes"}], "name": "isValidSignature", "outputs": [{"type": "bytes4"}], "stateMutability": "view", "type": "function"}
]`

// The accepting return value doubles as the method selector (EIP-1271).
var erc1271Magic = [4]byte{0x16, 0x26, 0xba, 0x7e}

var isValidSignatureABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(isValidSignatureJSON))
})

type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// VerifySignature asks the owner contract whether it accepts the signature
// over the digest (EIP-1271 isValidSignature). Satisfies the permit
// subsystem's ContractVerifier.
func (c *Client) VerifySignature(owner common.Address, digest common.Hash, sig []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return checkSignature(ctx, c, owner, digest, sig)
}

func checkSignature(ctx context.Context, caller contractCaller, owner common.Address, digest common.Hash, sig []byte) error {
	parsed, err := isValidSignatureABI()
	if err != nil {
		return fmt.Errorf("parse erc1271 abi: %w", err)
	}
	data, err := parsed.Pack("isValidSignature", [32]byte(digest), sig)
	if err != nil {
		return fmt.Errorf("pack isValidSignature: %w", err)
	}

	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &owner, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("call isValidSignature on %s: %w", owner.Hex(), err)
	}
	values, err := parsed.Unpack("isValidSignature", resp)
	if err != nil {
		return fmt.Errorf("unpack isValidSignature: %w", err)
	}
	magic, ok := values[0].([4]byte)
	if !ok || magic != erc1271Magic {
		return fmt.Errorf("contract %s rejected the signature", owner.Hex())
	}
	return nil
}
