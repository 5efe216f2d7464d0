package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"positionRegistry/internal/model"
	"positionRegistry/internal/tokens"
)

type tickRange struct {
	Lower int32
	Upper int32
}

// SimPool is an in-process stand-in for a concentrated-liquidity pool. It
// tracks per-range liquidity and a single pair of inside-range fee-growth
// accumulators, advanced explicitly with AccrueFees. Token amounts scale
// linearly with liquidity via RateNum/RateDen.
type SimPool struct {
	key          model.PoolKey
	vault        common.Address
	ledger       *tokens.Ledger
	sqrtPriceX96 *uint256.Int
	liquidity    map[tickRange]*uint256.Int
	feeGrowth0   *uint256.Int
	feeGrowth1   *uint256.Int

	// amount-per-liquidity ratio applied symmetrically to both tokens
	RateNum uint64
	RateDen uint64
}

func newSimPool(key model.PoolKey, vault common.Address, ledger *tokens.Ledger) *SimPool {
	return &SimPool{
		key:          key,
		vault:        vault,
		ledger:       ledger,
		sqrtPriceX96: uint256.NewInt(0),
		liquidity:    make(map[tickRange]*uint256.Int),
		feeGrowth0:   uint256.NewInt(0),
		feeGrowth1:   uint256.NewInt(0),
		RateNum:      1,
		RateDen:      1,
	}
}

func (p *SimPool) Initialize(sqrtPriceX96 *uint256.Int) error {
	if !p.sqrtPriceX96.IsZero() {
		return fmt.Errorf("pool %s: %w", p.key, model.ErrPoolAlreadyInitialized)
	}
	if sqrtPriceX96.IsZero() {
		return fmt.Errorf("pool %s: zero initial price", p.key)
	}
	p.sqrtPriceX96.Set(sqrtPriceX96)
	return nil
}

func (p *SimPool) Initialized() bool {
	return !p.sqrtPriceX96.IsZero()
}

func (p *SimPool) AddLiquidity(tickLower, tickUpper int32, delta *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if err := p.checkRange(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}
	if !p.Initialized() {
		return nil, nil, fmt.Errorf("pool %s: %w", p.key, model.ErrPoolNotInitialized)
	}
	r := tickRange{tickLower, tickUpper}
	if cur, ok := p.liquidity[r]; ok {
		cur.Add(cur, delta)
	} else {
		p.liquidity[r] = delta.Clone()
	}
	amount := p.amountFor(delta)
	return amount, amount.Clone(), nil
}

func (p *SimPool) RemoveLiquidity(tickLower, tickUpper int32, delta *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	if err := p.checkRange(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}
	r := tickRange{tickLower, tickUpper}
	cur, ok := p.liquidity[r]
	if !ok || cur.Lt(delta) {
		return nil, nil, fmt.Errorf("pool %s range [%d,%d): insufficient pool depth", p.key, tickLower, tickUpper)
	}
	cur.Sub(cur, delta)
	amount := p.amountFor(delta)
	return amount, amount.Clone(), nil
}

func (p *SimPool) FeeGrowthInside(tickLower, tickUpper int32) (*uint256.Int, *uint256.Int, error) {
	if err := p.checkRange(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}
	return p.feeGrowth0.Clone(), p.feeGrowth1.Clone(), nil
}

func (p *SimPool) Collect(recipient common.Address, amount0, amount1 *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	// the sim pool stands in for a collaborator that always holds what it
	// owes: pay from the vault and mint any shortfall
	if err := p.payOut(p.key.Token0, recipient, amount0); err != nil {
		return nil, nil, err
	}
	if err := p.payOut(p.key.Token1, recipient, amount1); err != nil {
		return nil, nil, err
	}
	return amount0.Clone(), amount1.Clone(), nil
}

func (p *SimPool) payOut(token, recipient common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	held := p.ledger.BalanceOf(token, p.vault)
	if held.Lt(amount) {
		p.ledger.Mint(token, p.vault, new(uint256.Int).Sub(amount, held))
	}
	return p.ledger.Transfer(token, p.vault, recipient, amount)
}

// AccrueFees advances the inside-range fee-growth accumulators. The adds
// wrap modulo 2^256, same as a live accumulator rolling over.
func (p *SimPool) AccrueFees(fg0Delta, fg1Delta *uint256.Int) {
	p.feeGrowth0.Add(p.feeGrowth0, fg0Delta)
	p.feeGrowth1.Add(p.feeGrowth1, fg1Delta)
}

// Vault returns the account the pool's deposits are held under.
func (p *SimPool) Vault() common.Address {
	return p.vault
}

func (p *SimPool) amountFor(delta *uint256.Int) *uint256.Int {
	amount := new(uint256.Int).Mul(delta, uint256.NewInt(p.RateNum))
	if p.RateDen > 1 {
		amount.Div(amount, uint256.NewInt(p.RateDen))
	}
	return amount
}

func (p *SimPool) checkRange(tickLower, tickUpper int32) error {
	if tickLower >= tickUpper {
		return fmt.Errorf("pool %s: tick range [%d,%d) is empty", p.key, tickLower, tickUpper)
	}
	return nil
}

func (p *SimPool) clone() *SimPool {
	liquidity := make(map[tickRange]*uint256.Int, len(p.liquidity))
	for r, l := range p.liquidity {
		liquidity[r] = l.Clone()
	}
	return &SimPool{
		key:          p.key,
		vault:        p.vault,
		ledger:       p.ledger,
		sqrtPriceX96: p.sqrtPriceX96.Clone(),
		liquidity:    liquidity,
		feeGrowth0:   p.feeGrowth0.Clone(),
		feeGrowth1:   p.feeGrowth1.Clone(),
		RateNum:      p.RateNum,
		RateDen:      p.RateDen,
	}
}

// SimFactory creates SimPools sharing one ledger and vault account.
type SimFactory struct {
	ledger *tokens.Ledger
	vault  common.Address
	pools  map[model.PoolKey]*SimPool
}

func NewSimFactory(ledger *tokens.Ledger, vault common.Address) *SimFactory {
	return &SimFactory{
		ledger: ledger,
		vault:  vault,
		pools:  make(map[model.PoolKey]*SimPool),
	}
}

func (f *SimFactory) Get(key model.PoolKey) (Pool, bool) {
	p, ok := f.pools[key]
	if !ok {
		return nil, false
	}
	return p, true
}

func (f *SimFactory) Create(key model.PoolKey) (Pool, error) {
	if _, ok := f.pools[key]; ok {
		return nil, fmt.Errorf("pool %s: %w", key, model.ErrExists)
	}
	p := newSimPool(key, f.vault, f.ledger)
	f.pools[key] = p
	return p, nil
}

// Sim returns the concrete pool for test and scenario fixtures.
func (f *SimFactory) Sim(key model.PoolKey) (*SimPool, bool) {
	p, ok := f.pools[key]
	return p, ok
}

// Snapshot captures every pool's state and returns a restore func.
func (f *SimFactory) Snapshot() func() {
	saved := make(map[model.PoolKey]*SimPool, len(f.pools))
	for key, p := range f.pools {
		saved[key] = p.clone()
	}
	return func() {
		// restore in place so handles held by the manager stay valid
		for key, snap := range saved {
			live, ok := f.pools[key]
			if !ok {
				f.pools[key] = snap
				continue
			}
			live.sqrtPriceX96.Set(snap.sqrtPriceX96)
			live.feeGrowth0.Set(snap.feeGrowth0)
			live.feeGrowth1.Set(snap.feeGrowth1)
			live.liquidity = snap.liquidity
			live.RateNum = snap.RateNum
			live.RateDen = snap.RateDen
		}
		for key := range f.pools {
			if _, ok := saved[key]; !ok {
				delete(f.pools, key)
			}
		}
	}
}
