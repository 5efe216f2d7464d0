package erc20

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Two metadata ABI variants exist in the wild: modern tokens return string
// symbol/name, a few early ones return bytes32.
const (
	abiStringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

	abiBytes32JSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`
)

func parseOnce(raw string) func() (abi.ABI, error) {
	return sync.OnceValues(func() (abi.ABI, error) {
		return abi.JSON(strings.NewReader(raw))
	})
}

var (
	abiStringInstance  = parseOnce(abiStringJSON)
	abiBytes32Instance = parseOnce(abiBytes32JSON)
)
