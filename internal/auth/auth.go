// Package auth gates position mutations and verifies permit signatures.
package auth

import (
	"github.com/ethereum/go-ethereum/common"

	"positionRegistry/internal/model"
	"positionRegistry/internal/registry"
)

// Authorized reports whether caller may mutate the position: the owner, the
// single-token approved address, a member of the owner's approved-for-all
// set, or the position's permit operator.
func Authorized(own *registry.Ownership, pos *model.Position, caller common.Address) bool {
	owner, err := own.OwnerOf(pos.TokenID)
	if err != nil {
		return false
	}
	if caller == owner {
		return true
	}
	if approved, ok := own.Approved(pos.TokenID); ok && caller == approved {
		return true
	}
	if own.IsApprovedForAll(owner, caller) {
		return true
	}
	return pos.Operator != (common.Address{}) && caller == pos.Operator
}
