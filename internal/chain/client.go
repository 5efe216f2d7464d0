package chain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps go-ethereum RPC for the calls the registry needs: contract
// code lookups for permit dispatch and eth_call for token metadata.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	mu        sync.RWMutex
	codeCache map[common.Address]bool
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		codeCache: make(map[common.Address]bool),
	}, nil
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// IsContract reports whether the address holds code, using an in-memory
// cache. Satisfies the permit subsystem's CodeResolver.
func (c *Client) IsContract(addr common.Address) (bool, error) {
	c.mu.RLock()
	isContract, ok := c.codeCache[addr]
	c.mu.RUnlock()
	if ok {
		return isContract, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	code, err := c.ethClient.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, err
	}

	isContract = len(code) > 0
	c.mu.Lock()
	c.codeCache[addr] = isContract
	c.mu.Unlock()

	return isContract, nil
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}
