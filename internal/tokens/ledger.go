// Package tokens holds the balance ledger the registry pulls payments
// through and pays collections from.
package tokens

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"positionRegistry/internal/model"
)

// Native is the ledger key for the native currency.
var Native = common.Address{}

// Ledger tracks per-token account balances.
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*uint256.Int
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[common.Address]map[common.Address]*uint256.Int)}
}

// Mint credits an account; used to seed genesis balances.
func (l *Ledger) Mint(token, account common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(token, account, amount)
}

// BalanceOf returns a copy of the account's balance for a token.
func (l *Ledger) BalanceOf(token, account common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.balances[token][account]; ok {
		return bal.Clone()
	}
	return uint256.NewInt(0)
}

// Transfer moves amount of token from one account to another.
func (l *Ledger) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.balances[token][from]
	if !ok || bal.Lt(amount) {
		return fmt.Errorf("transfer %s of %s from %s: %w", amount.Dec(), token.Hex(), from.Hex(), model.ErrInsufficientFunds)
	}
	bal.Sub(bal, amount)
	l.credit(token, to, amount)
	return nil
}

func (l *Ledger) credit(token, account common.Address, amount *uint256.Int) {
	accounts, ok := l.balances[token]
	if !ok {
		accounts = make(map[common.Address]*uint256.Int)
		l.balances[token] = accounts
	}
	if bal, ok := accounts[account]; ok {
		bal.Add(bal, amount)
	} else {
		accounts[account] = amount.Clone()
	}
}

// Snapshot captures all balances and returns a restore func.
func (l *Ledger) Snapshot() func() {
	l.mu.RLock()
	saved := make(map[common.Address]map[common.Address]*uint256.Int, len(l.balances))
	for token, accounts := range l.balances {
		copied := make(map[common.Address]*uint256.Int, len(accounts))
		for account, bal := range accounts {
			copied[account] = bal.Clone()
		}
		saved[token] = copied
	}
	l.mu.RUnlock()

	return func() {
		l.mu.Lock()
		l.balances = saved
		l.mu.Unlock()
	}
}
