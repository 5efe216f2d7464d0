package auth

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"positionRegistry/internal/model"
)

var permitTypehash = crypto.Keccak256Hash(
	[]byte("Permit(address spender,uint256 tokenId,uint256 nonce,uint256 deadline)"),
)

// CodeResolver reports whether an address resolves to contract code. The
// permit path is picked once per call from this answer alone.
type CodeResolver interface {
	IsContract(addr common.Address) (bool, error)
}

// ContractVerifier validates a signature on behalf of a contract owner, the
// owner's own signature-validation capability.
type ContractVerifier interface {
	VerifySignature(owner common.Address, digest common.Hash, sig []byte) error
}

// Permits verifies signed operator delegations and enforces replay
// protection through the position nonce plus a consumed-digest set.
type Permits struct {
	domain   common.Hash
	resolver CodeResolver
	verifier ContractVerifier

	mu       sync.Mutex
	consumed map[common.Hash]struct{}
}

// NewPermits builds the permit subsystem. With a nil resolver every owner is
// treated as a plain signing account; with a resolver but no verifier,
// permits from contract owners are rejected outright.
func NewPermits(chainID uint64, resolver CodeResolver, verifier ContractVerifier) *Permits {
	return &Permits{
		domain: crypto.Keccak256Hash(
			[]byte("PositionRegistry"),
			[]byte("1"),
			wordBytes(chainID),
		),
		resolver: resolver,
		verifier: verifier,
		consumed: make(map[common.Hash]struct{}),
	}
}

// Digest computes the structured message binding (spender, tokenId, nonce,
// deadline) under this registry's domain.
func (p *Permits) Digest(spender common.Address, tokenID, nonce uint64, deadline int64) common.Hash {
	structHash := crypto.Keccak256(
		permitTypehash.Bytes(),
		common.LeftPadBytes(spender.Bytes(), 32),
		wordBytes(tokenID),
		wordBytes(nonce),
		wordBytes(uint64(deadline)),
	)
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, p.domain.Bytes(), structHash)
}

// Permit verifies the signature against the position's current nonce and, on
// success, installs spender as operator and advances the nonce by one. The
// deadline is an absolute unix instant compared against now once, here.
// Anyone may relay; no caller authorization applies.
func (p *Permits) Permit(owner, spender common.Address, pos *model.Position, deadline, now int64, sig []byte) error {
	if now > deadline {
		return fmt.Errorf("permit token %d: %w", pos.TokenID, model.ErrExpired)
	}

	digest := p.Digest(spender, pos.TokenID, pos.Nonce, deadline)

	p.mu.Lock()
	_, replayed := p.consumed[digest]
	p.mu.Unlock()
	if replayed {
		return fmt.Errorf("permit token %d: %w", pos.TokenID, model.ErrSignatureReplayed)
	}

	if err := p.verify(owner, digest, sig); err != nil {
		return fmt.Errorf("permit token %d: %w", pos.TokenID, err)
	}

	p.mu.Lock()
	p.consumed[digest] = struct{}{}
	p.mu.Unlock()

	pos.Operator = spender
	pos.Nonce++
	return nil
}

func (p *Permits) verify(owner common.Address, digest common.Hash, sig []byte) error {
	if p.resolver != nil {
		isContract, err := p.resolver.IsContract(owner)
		if err != nil {
			return fmt.Errorf("resolve owner code: %w", err)
		}
		if isContract {
			// a contract owner's signature must never fall through to ECDSA
			// recovery against the contract address
			if p.verifier == nil {
				return fmt.Errorf("%w: owner %s is a contract and no verifier is configured", model.ErrInvalidSignature, owner.Hex())
			}
			if err := p.verifier.VerifySignature(owner, digest, sig); err != nil {
				return fmt.Errorf("%w: %v", model.ErrInvalidSignature, err)
			}
			return nil
		}
	}
	return verifyECDSA(owner, digest, sig)
}

func verifyECDSA(owner common.Address, digest common.Hash, sig []byte) error {
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("%w: signature length %d", model.ErrInvalidSignature, len(sig))
	}
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidSignature, err)
	}
	if crypto.PubkeyToAddress(*pub) != owner {
		return fmt.Errorf("%w: signer is not owner", model.ErrInvalidSignature)
	}
	return nil
}

// Snapshot captures the consumed-digest set and returns a restore func.
func (p *Permits) Snapshot() func() {
	p.mu.Lock()
	saved := make(map[common.Hash]struct{}, len(p.consumed))
	for digest := range p.consumed {
		saved[digest] = struct{}{}
	}
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		p.consumed = saved
		p.mu.Unlock()
	}
}

func wordBytes(v uint64) []byte {
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], v)
	return common.LeftPadBytes(raw[:], 32)
}
