package auth

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"positionRegistry/internal/model"
	"positionRegistry/internal/registry"
)

var (
	alice    = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob      = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	carol    = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	stranger = common.HexToAddress("0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
)

func newAuthFixture(t *testing.T) (*registry.Ownership, *model.Position) {
	t.Helper()
	key, err := model.NewPoolKey(
		common.HexToAddress("0x1000000000000000000000000000000000000001"),
		common.HexToAddress("0x2000000000000000000000000000000000000002"),
		3000,
	)
	if err != nil {
		t.Fatalf("pool key: %v", err)
	}
	pos := model.NewPosition(1, key, -600, 600,
		uint256.NewInt(10), uint256.NewInt(0), uint256.NewInt(0))
	own := registry.NewOwnership()
	if err := own.Mint(1, alice); err != nil {
		t.Fatalf("mint: %v", err)
	}
	return own, pos
}

func TestAuthorizedOwner(t *testing.T) {
	own, pos := newAuthFixture(t)
	if !Authorized(own, pos, alice) {
		t.Fatalf("owner must be authorized")
	}
	if Authorized(own, pos, stranger) {
		t.Fatalf("stranger must not be authorized")
	}
}

func TestAuthorizedApproved(t *testing.T) {
	own, pos := newAuthFixture(t)
	if err := own.Approve(1, bob); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !Authorized(own, pos, bob) {
		t.Fatalf("approved address must be authorized")
	}
}

func TestAuthorizedApprovedForAll(t *testing.T) {
	own, pos := newAuthFixture(t)
	own.SetApprovalForAll(alice, carol, true)
	if !Authorized(own, pos, carol) {
		t.Fatalf("approved-for-all member must be authorized")
	}
	own.SetApprovalForAll(alice, carol, false)
	if Authorized(own, pos, carol) {
		t.Fatalf("revoked member must not be authorized")
	}
}

func TestAuthorizedOperator(t *testing.T) {
	own, pos := newAuthFixture(t)
	pos.Operator = bob
	if !Authorized(own, pos, bob) {
		t.Fatalf("operator must be authorized")
	}
	// the zero operator must never authorize the zero address
	pos.Operator = common.Address{}
	if Authorized(own, pos, common.Address{}) {
		t.Fatalf("zero address must not be authorized")
	}
}

func TestAuthorizedMissingOwnership(t *testing.T) {
	own, pos := newAuthFixture(t)
	if err := own.Burn(1); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if Authorized(own, pos, alice) {
		t.Fatalf("no one is authorized for an unowned token")
	}
}
