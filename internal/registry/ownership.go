package registry

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"positionRegistry/internal/model"
)

// Ownership tracks the owner, the per-token approved address, and each
// owner's approved-for-all set. It is the collaborator the authorization
// subsystem consults; position data itself lives in Store.
type Ownership struct {
	mu       sync.RWMutex
	owners   map[uint64]common.Address
	approved map[uint64]common.Address
	allOf    map[common.Address]map[common.Address]bool
}

func NewOwnership() *Ownership {
	return &Ownership{
		owners:   make(map[uint64]common.Address),
		approved: make(map[uint64]common.Address),
		allOf:    make(map[common.Address]map[common.Address]bool),
	}
}

// Mint records the initial owner of a token.
func (o *Ownership) Mint(tokenID uint64, owner common.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.owners[tokenID]; ok {
		return fmt.Errorf("token %d: %w", tokenID, model.ErrExists)
	}
	o.owners[tokenID] = owner
	return nil
}

// Burn removes the ownership entry and its approval.
func (o *Ownership) Burn(tokenID uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.owners[tokenID]; !ok {
		return fmt.Errorf("token %d: %w", tokenID, model.ErrNotFound)
	}
	delete(o.owners, tokenID)
	delete(o.approved, tokenID)
	return nil
}

// OwnerOf returns the current owner.
func (o *Ownership) OwnerOf(tokenID uint64) (common.Address, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	owner, ok := o.owners[tokenID]
	if !ok {
		return common.Address{}, fmt.Errorf("token %d: %w", tokenID, model.ErrNotFound)
	}
	return owner, nil
}

// Approve sets the single-token approved address; the zero address clears it.
func (o *Ownership) Approve(tokenID uint64, spender common.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.owners[tokenID]; !ok {
		return fmt.Errorf("token %d: %w", tokenID, model.ErrNotFound)
	}
	if spender == (common.Address{}) {
		delete(o.approved, tokenID)
	} else {
		o.approved[tokenID] = spender
	}
	return nil
}

// Approved returns the single-token approved address, if any.
func (o *Ownership) Approved(tokenID uint64) (common.Address, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	spender, ok := o.approved[tokenID]
	return spender, ok
}

// SetApprovalForAll grants or revokes blanket operator rights over every
// token the owner holds.
func (o *Ownership) SetApprovalForAll(owner, operator common.Address, approve bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	set, ok := o.allOf[owner]
	if !ok {
		if !approve {
			return
		}
		set = make(map[common.Address]bool)
		o.allOf[owner] = set
	}
	if approve {
		set[operator] = true
	} else {
		delete(set, operator)
	}
}

// IsApprovedForAll reports membership in the owner's approved-for-all set.
func (o *Ownership) IsApprovedForAll(owner, operator common.Address) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.allOf[owner][operator]
}

// Transfer moves a token to a new owner. The single-token approval is always
// cleared.
func (o *Ownership) Transfer(tokenID uint64, from, to common.Address) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	owner, ok := o.owners[tokenID]
	if !ok {
		return fmt.Errorf("token %d: %w", tokenID, model.ErrNotFound)
	}
	if owner != from {
		return fmt.Errorf("token %d owned by %s, not %s: %w", tokenID, owner.Hex(), from.Hex(), model.ErrNotApproved)
	}
	o.owners[tokenID] = to
	delete(o.approved, tokenID)
	return nil
}

// Snapshot captures the ownership state and returns a restore func.
func (o *Ownership) Snapshot() func() {
	o.mu.RLock()
	owners := make(map[uint64]common.Address, len(o.owners))
	for id, owner := range o.owners {
		owners[id] = owner
	}
	approved := make(map[uint64]common.Address, len(o.approved))
	for id, spender := range o.approved {
		approved[id] = spender
	}
	allOf := make(map[common.Address]map[common.Address]bool, len(o.allOf))
	for owner, set := range o.allOf {
		copied := make(map[common.Address]bool, len(set))
		for op, v := range set {
			copied[op] = v
		}
		allOf[owner] = copied
	}
	o.mu.RUnlock()

	return func() {
		o.mu.Lock()
		o.owners = owners
		o.approved = approved
		o.allOf = allOf
		o.mu.Unlock()
	}
}
