// Package manager drives the position lifecycle: mint, increase, decrease,
// collect, burn, permit, transfer. Every operation is one atomic unit;
// failures restore the pre-operation state before returning.
package manager

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"positionRegistry/internal/auth"
	"positionRegistry/internal/fees"
	"positionRegistry/internal/model"
	"positionRegistry/internal/pool"
	"positionRegistry/internal/registry"
	"positionRegistry/internal/tokens"
)

// Config holds manager-wide settings.
type Config struct {
	// Vault is the account pool deposits are pulled into.
	Vault common.Address
	// Self is the registry's own account; attached native value is escrowed
	// here between batch start and refund.
	Self common.Address
	// WrappedNative, when set, is the token whose pulls may consume the
	// attached native-value budget.
	WrappedNative common.Address
	// ClearOperatorOnTransfer wipes a permit-set operator when ownership
	// moves. The single-token approval is cleared regardless.
	ClearOperatorOnTransfer bool
}

// Manager orchestrates the stores, the settlement engine, and the pool
// adapter. Callers are serialized by the surrounding execution environment;
// the manager itself does not interleave operations.
type Manager struct {
	cfg     Config
	store   *registry.Store
	owners  *registry.Ownership
	ledger  *tokens.Ledger
	factory pool.Factory
	permits *auth.Permits
	logger  *zap.Logger
	clock   func() time.Time

	valueOwner     common.Address
	valueRemaining *uint256.Int
}

// New wires a manager from its collaborators.
func New(cfg Config, store *registry.Store, owners *registry.Ownership, ledger *tokens.Ledger, factory pool.Factory, permits *auth.Permits, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:     cfg,
		store:   store,
		owners:  owners,
		ledger:  ledger,
		factory: factory,
		permits: permits,
		logger:  logger,
		clock:   time.Now,
	}
}

// WithClock overrides the manager clock for deterministic tests.
func (m *Manager) WithClock(clock func() time.Time) {
	if clock != nil {
		m.clock = clock
	}
}

// FirstMintParams parameterizes FirstMint.
type FirstMintParams struct {
	TokenA       common.Address
	TokenB       common.Address
	Fee          uint32
	SqrtPriceX96 *uint256.Int
	TickLower    int32
	TickUpper    int32
	Recipient    common.Address
	Amount       *uint256.Int
	Deadline     int64
}

// MintParams parameterizes Mint against an already-initialized pool.
type MintParams struct {
	TokenA     common.Address
	TokenB     common.Address
	Fee        uint32
	TickLower  int32
	TickUpper  int32
	Recipient  common.Address
	Amount     *uint256.Int
	Amount0Max *uint256.Int
	Amount1Max *uint256.Int
	Deadline   int64
}

// FirstMint creates (and initializes) the pool when absent, then mints the
// first position into it. Fails PoolAlreadyInitialized when the pool exists
// and is initialized; callers must use Mint then.
func (m *Manager) FirstMint(caller common.Address, params FirstMintParams) (uint64, error) {
	var tokenID uint64
	err := m.run(func() error {
		if err := m.checkDeadline(params.Deadline); err != nil {
			return err
		}
		key, err := model.NewPoolKey(params.TokenA, params.TokenB, params.Fee)
		if err != nil {
			return err
		}
		p, ok := m.factory.Get(key)
		if ok && p.Initialized() {
			return fmt.Errorf("pool %s: %w", key, model.ErrPoolAlreadyInitialized)
		}
		if !ok {
			p, err = m.factory.Create(key)
			if err != nil {
				return err
			}
		}
		if err := p.Initialize(params.SqrtPriceX96); err != nil {
			return err
		}
		tokenID, err = m.mintInto(caller, key, p, params.TickLower, params.TickUpper, params.Recipient, params.Amount, nil, nil)
		return err
	})
	if err != nil {
		return 0, err
	}
	m.logger.Info("first mint",
		zap.Uint64("token_id", tokenID),
		zap.String("recipient", params.Recipient.Hex()),
		zap.String("amount", params.Amount.Dec()),
	)
	return tokenID, nil
}

// Mint issues a position against an existing initialized pool, enforcing the
// caller's slippage caps.
func (m *Manager) Mint(caller common.Address, params MintParams) (uint64, error) {
	var tokenID uint64
	err := m.run(func() error {
		if err := m.checkDeadline(params.Deadline); err != nil {
			return err
		}
		key, err := model.NewPoolKey(params.TokenA, params.TokenB, params.Fee)
		if err != nil {
			return err
		}
		p, ok := m.factory.Get(key)
		if !ok {
			return fmt.Errorf("pool %s: %w", key, model.ErrPoolNotFound)
		}
		if !p.Initialized() {
			return fmt.Errorf("pool %s: %w", key, model.ErrPoolNotInitialized)
		}
		tokenID, err = m.mintInto(caller, key, p, params.TickLower, params.TickUpper, params.Recipient, params.Amount, params.Amount0Max, params.Amount1Max)
		return err
	})
	if err != nil {
		return 0, err
	}
	m.logger.Info("mint",
		zap.Uint64("token_id", tokenID),
		zap.String("recipient", params.Recipient.Hex()),
		zap.String("amount", params.Amount.Dec()),
	)
	return tokenID, nil
}

func (m *Manager) mintInto(caller common.Address, key model.PoolKey, p pool.Pool, tickLower, tickUpper int32, recipient common.Address, amount, amount0Max, amount1Max *uint256.Int) (uint64, error) {
	fg0, fg1, err := p.FeeGrowthInside(tickLower, tickUpper)
	if err != nil {
		return 0, err
	}
	amount0, amount1, err := p.AddLiquidity(tickLower, tickUpper, amount)
	if err != nil {
		return 0, err
	}
	if err := checkMaxima(amount0, amount1, amount0Max, amount1Max); err != nil {
		return 0, err
	}
	if err := m.pull(key.Token0, caller, amount0); err != nil {
		return 0, err
	}
	if err := m.pull(key.Token1, caller, amount1); err != nil {
		return 0, err
	}

	tokenID := m.store.NextTokenID()
	pos := model.NewPosition(tokenID, key, tickLower, tickUpper, amount, fg0, fg1)
	if err := m.store.Create(pos); err != nil {
		return 0, err
	}
	if err := m.owners.Mint(tokenID, recipient); err != nil {
		return 0, err
	}
	return tokenID, nil
}

// IncreaseLiquidity adds delta units to a position. Permissionless: the
// tokens come out of the caller's own balance, so anyone may top up any
// position.
func (m *Manager) IncreaseLiquidity(caller common.Address, tokenID uint64, delta, amount0Max, amount1Max *uint256.Int, deadline int64) (*uint256.Int, *uint256.Int, error) {
	var amount0, amount1 *uint256.Int
	err := m.run(func() error {
		if err := m.checkDeadline(deadline); err != nil {
			return err
		}
		if delta.IsZero() {
			return fmt.Errorf("increase token %d: %w", tokenID, model.ErrZeroAmountRequest)
		}
		pos, err := m.store.Get(tokenID)
		if err != nil {
			return err
		}
		p, err := m.poolOf(pos)
		if err != nil {
			return err
		}
		if err := m.settle(p, pos); err != nil {
			return err
		}
		amount0, amount1, err = p.AddLiquidity(pos.TickLower, pos.TickUpper, delta)
		if err != nil {
			return err
		}
		if err := checkMaxima(amount0, amount1, amount0Max, amount1Max); err != nil {
			return err
		}
		if err := m.pull(pos.Pool.Token0, caller, amount0); err != nil {
			return err
		}
		if err := m.pull(pos.Pool.Token1, caller, amount1); err != nil {
			return err
		}
		pos.Liquidity.Add(pos.Liquidity, delta)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	m.logger.Info("increase liquidity",
		zap.Uint64("token_id", tokenID),
		zap.String("delta", delta.Dec()),
		zap.String("amount0", amount0.Dec()),
		zap.String("amount1", amount1.Dec()),
	)
	return amount0, amount1, nil
}

// DecreaseLiquidity removes delta units; released amounts are credited to
// the position's owed balances, not transferred.
func (m *Manager) DecreaseLiquidity(caller common.Address, tokenID uint64, delta, amount0Min, amount1Min *uint256.Int, deadline int64) (*uint256.Int, *uint256.Int, error) {
	var amount0, amount1 *uint256.Int
	err := m.run(func() error {
		if err := m.checkDeadline(deadline); err != nil {
			return err
		}
		pos, err := m.store.Get(tokenID)
		if err != nil {
			return err
		}
		if !auth.Authorized(m.owners, pos, caller) {
			return fmt.Errorf("decrease token %d by %s: %w", tokenID, caller.Hex(), model.ErrNotApproved)
		}
		if delta.Gt(pos.Liquidity) {
			return fmt.Errorf("decrease token %d by %s of %s: %w", tokenID, delta.Dec(), pos.Liquidity.Dec(), model.ErrUnderflow)
		}
		p, err := m.poolOf(pos)
		if err != nil {
			return err
		}
		// settlement uses the liquidity held before the change
		if err := m.settle(p, pos); err != nil {
			return err
		}
		amount0, amount1, err = p.RemoveLiquidity(pos.TickLower, pos.TickUpper, delta)
		if err != nil {
			return err
		}
		if (amount0Min != nil && amount0.Lt(amount0Min)) || (amount1Min != nil && amount1.Lt(amount1Min)) {
			return fmt.Errorf("decrease token %d: %w", tokenID, model.ErrSlippageExceeded)
		}
		pos.TokensOwed0.Add(pos.TokensOwed0, amount0)
		pos.TokensOwed1.Add(pos.TokensOwed1, amount1)
		pos.Liquidity.Sub(pos.Liquidity, delta)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	m.logger.Info("decrease liquidity",
		zap.Uint64("token_id", tokenID),
		zap.String("delta", delta.Dec()),
		zap.String("amount0", amount0.Dec()),
		zap.String("amount1", amount1.Dec()),
	)
	return amount0, amount1, nil
}

// Collect pays out up to the requested maxima of the position's owed
// balances. A nil cap is unbounded; a collect that moves nothing is a
// successful no-op.
func (m *Manager) Collect(caller common.Address, tokenID uint64, recipient common.Address, amount0Max, amount1Max *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	var paid0, paid1 *uint256.Int
	err := m.run(func() error {
		if zeroCap(amount0Max) && zeroCap(amount1Max) {
			return fmt.Errorf("collect token %d: %w", tokenID, model.ErrZeroAmountRequest)
		}
		pos, err := m.store.Get(tokenID)
		if err != nil {
			return err
		}
		if !auth.Authorized(m.owners, pos, caller) {
			return fmt.Errorf("collect token %d by %s: %w", tokenID, caller.Hex(), model.ErrNotApproved)
		}
		p, err := m.poolOf(pos)
		if err != nil {
			return err
		}
		// settlement captures accrual even when liquidity is unchanged
		if err := m.settle(p, pos); err != nil {
			return err
		}
		want0 := cappedOwed(pos.TokensOwed0, amount0Max)
		want1 := cappedOwed(pos.TokensOwed1, amount1Max)
		if want0.IsZero() && want1.IsZero() {
			paid0, paid1 = uint256.NewInt(0), uint256.NewInt(0)
			return nil
		}
		paid0, paid1, err = p.Collect(recipient, want0, want1)
		if err != nil {
			return err
		}
		pos.TokensOwed0.Sub(pos.TokensOwed0, paid0)
		pos.TokensOwed1.Sub(pos.TokensOwed1, paid1)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	m.logger.Info("collect",
		zap.Uint64("token_id", tokenID),
		zap.String("recipient", recipient.Hex()),
		zap.String("amount0", paid0.Dec()),
		zap.String("amount1", paid1.Dec()),
	)
	return paid0, paid1, nil
}

// Burn deletes a fully cleared position and its ownership entry.
func (m *Manager) Burn(caller common.Address, tokenID uint64) error {
	err := m.run(func() error {
		pos, err := m.store.Get(tokenID)
		if err != nil {
			return err
		}
		if !auth.Authorized(m.owners, pos, caller) {
			return fmt.Errorf("burn token %d by %s: %w", tokenID, caller.Hex(), model.ErrNotApproved)
		}
		if !pos.Cleared() {
			return fmt.Errorf("burn token %d: liquidity=%s owed0=%s owed1=%s: %w",
				tokenID, pos.Liquidity.Dec(), pos.TokensOwed0.Dec(), pos.TokensOwed1.Dec(), model.ErrNotCleared)
		}
		if err := m.store.Delete(tokenID); err != nil {
			return err
		}
		return m.owners.Burn(tokenID)
	})
	if err != nil {
		return err
	}
	m.logger.Info("burn", zap.Uint64("token_id", tokenID))
	return nil
}

// Permit installs spender as the position's operator from a signed message.
// Any caller may relay a validly signed permit.
func (m *Manager) Permit(spender common.Address, tokenID uint64, deadline int64, sig []byte) error {
	err := m.run(func() error {
		pos, err := m.store.Get(tokenID)
		if err != nil {
			return err
		}
		owner, err := m.owners.OwnerOf(tokenID)
		if err != nil {
			return err
		}
		return m.permits.Permit(owner, spender, pos, deadline, m.clock().Unix(), sig)
	})
	if err != nil {
		return err
	}
	m.logger.Info("permit", zap.Uint64("token_id", tokenID), zap.String("operator", spender.Hex()))
	return nil
}

// TransferFrom moves ownership. The single-token approval is always
// cleared; a permit-set operator survives only when
// ClearOperatorOnTransfer is off.
func (m *Manager) TransferFrom(caller, from, to common.Address, tokenID uint64) error {
	err := m.run(func() error {
		pos, err := m.store.Get(tokenID)
		if err != nil {
			return err
		}
		if !auth.Authorized(m.owners, pos, caller) {
			return fmt.Errorf("transfer token %d by %s: %w", tokenID, caller.Hex(), model.ErrNotApproved)
		}
		if err := m.owners.Transfer(tokenID, from, to); err != nil {
			return err
		}
		if m.cfg.ClearOperatorOnTransfer {
			pos.Operator = common.Address{}
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.Info("transfer", zap.Uint64("token_id", tokenID), zap.String("from", from.Hex()), zap.String("to", to.Hex()))
	return nil
}

// Approve sets the single-token approved address; only the owner or an
// approved-for-all operator may grant it.
func (m *Manager) Approve(caller, spender common.Address, tokenID uint64) error {
	owner, err := m.owners.OwnerOf(tokenID)
	if err != nil {
		return err
	}
	if caller != owner && !m.owners.IsApprovedForAll(owner, caller) {
		return fmt.Errorf("approve token %d by %s: %w", tokenID, caller.Hex(), model.ErrNotApproved)
	}
	return m.owners.Approve(tokenID, spender)
}

// SetApprovalForAll grants or revokes caller-wide operator rights.
func (m *Manager) SetApprovalForAll(caller, operator common.Address, approve bool) {
	m.owners.SetApprovalForAll(caller, operator, approve)
}

// Positions returns the last-persisted snapshot of a position. Read-only;
// no settlement runs, so owed balances may lag the pool's accumulators.
func (m *Manager) Positions(tokenID uint64) (*model.Position, error) {
	pos, err := m.store.Get(tokenID)
	if err != nil {
		return nil, err
	}
	return pos.Clone(), nil
}

// OwnerOf reports the position's current owner.
func (m *Manager) OwnerOf(tokenID uint64) (common.Address, error) {
	return m.owners.OwnerOf(tokenID)
}

// Snapshot captures the whole engine state and returns a restore func; the
// batch executor brackets multicalls with it.
func (m *Manager) Snapshot() func() {
	restores := []func(){
		m.store.Snapshot(),
		m.owners.Snapshot(),
		m.ledger.Snapshot(),
		m.permits.Snapshot(),
	}
	if s, ok := m.factory.(interface{ Snapshot() func() }); ok {
		restores = append(restores, s.Snapshot())
	}
	valueOwner := m.valueOwner
	var valueRemaining *uint256.Int
	if m.valueRemaining != nil {
		valueRemaining = m.valueRemaining.Clone()
	}
	return func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
		m.valueOwner = valueOwner
		m.valueRemaining = valueRemaining
	}
}

// SetValue escrows native currency attached to a batch; pulls of the
// wrapped-native token consume it before touching the payer's balance.
func (m *Manager) SetValue(initiator common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := m.ledger.Transfer(tokens.Native, initiator, m.cfg.Self, amount); err != nil {
		return err
	}
	m.valueOwner = initiator
	m.valueRemaining = amount.Clone()
	return nil
}

// RefundValue returns any unconsumed native value to the batch initiator.
func (m *Manager) RefundValue() error {
	if m.valueRemaining == nil {
		return nil
	}
	remaining := m.valueRemaining
	owner := m.valueOwner
	m.valueRemaining = nil
	m.valueOwner = common.Address{}
	if remaining.IsZero() {
		return nil
	}
	return m.ledger.Transfer(tokens.Native, m.cfg.Self, owner, remaining)
}

// pull pays amount of token into the vault, drawing on the native budget
// first when the token is the wrapped native.
func (m *Manager) pull(token, payer common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	remaining := amount.Clone()
	if token == m.cfg.WrappedNative && token != (common.Address{}) && m.valueRemaining != nil && !m.valueRemaining.IsZero() {
		wrap := minU256(remaining, m.valueRemaining)
		// native escrowed at Self backs freshly wrapped units
		if err := m.ledger.Transfer(tokens.Native, m.cfg.Self, token, wrap); err != nil {
			return err
		}
		m.ledger.Mint(token, m.cfg.Vault, wrap)
		m.valueRemaining.Sub(m.valueRemaining, wrap)
		remaining.Sub(remaining, wrap)
	}
	if remaining.IsZero() {
		return nil
	}
	return m.ledger.Transfer(token, payer, m.cfg.Vault, remaining)
}

func (m *Manager) run(op func() error) error {
	restore := m.Snapshot()
	if err := op(); err != nil {
		restore()
		return err
	}
	return nil
}

func (m *Manager) settle(p pool.Pool, pos *model.Position) error {
	fg0, fg1, err := p.FeeGrowthInside(pos.TickLower, pos.TickUpper)
	if err != nil {
		return err
	}
	fees.Settle(pos, fg0, fg1)
	return nil
}

func (m *Manager) poolOf(pos *model.Position) (pool.Pool, error) {
	p, ok := m.factory.Get(pos.Pool)
	if !ok {
		return nil, fmt.Errorf("pool %s: %w", pos.Pool, model.ErrPoolNotFound)
	}
	return p, nil
}

func (m *Manager) checkDeadline(deadline int64) error {
	if now := m.clock().Unix(); now > deadline {
		return fmt.Errorf("now %d past %d: %w", now, deadline, model.ErrExpired)
	}
	return nil
}

func checkMaxima(amount0, amount1, amount0Max, amount1Max *uint256.Int) error {
	if amount0Max != nil && amount0.Gt(amount0Max) {
		return fmt.Errorf("amount0 %s over cap %s: %w", amount0.Dec(), amount0Max.Dec(), model.ErrSlippageExceeded)
	}
	if amount1Max != nil && amount1.Gt(amount1Max) {
		return fmt.Errorf("amount1 %s over cap %s: %w", amount1.Dec(), amount1Max.Dec(), model.ErrSlippageExceeded)
	}
	return nil
}

func zeroCap(c *uint256.Int) bool {
	return c != nil && c.IsZero()
}

func cappedOwed(owed, max *uint256.Int) *uint256.Int {
	if max == nil {
		return owed.Clone()
	}
	return minU256(owed, max)
}

func minU256(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a.Clone()
	}
	return b.Clone()
}
