package chain

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

type fakeCaller struct {
	resp    []byte
	err     error
	gotTo   common.Address
	gotData []byte
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.gotTo = *msg.To
	f.gotData = msg.Data
	return f.resp, f.err
}

func word(prefix []byte) []byte {
	out := make([]byte, 32)
	copy(out, prefix)
	return out
}

func TestCheckSignatureAccepted(t *testing.T) {
	owner := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	digest := common.HexToHash("0x01")
	caller := &fakeCaller{resp: word(erc1271Magic[:])}

	if err := checkSignature(context.Background(), caller, owner, digest, []byte("sig")); err != nil {
		t.Fatalf("check: %v", err)
	}
	if caller.gotTo != owner {
		t.Fatalf("call target = %s, want %s", caller.gotTo, owner)
	}
	// the magic value is also the method selector
	if !bytes.Equal(caller.gotData[:4], erc1271Magic[:]) {
		t.Fatalf("selector = %x, want %x", caller.gotData[:4], erc1271Magic)
	}
}

func TestCheckSignatureRejected(t *testing.T) {
	owner := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	caller := &fakeCaller{resp: word(nil)}
	if err := checkSignature(context.Background(), caller, owner, common.Hash{}, []byte("sig")); err == nil {
		t.Fatalf("zero return value accepted")
	}
}

func TestCheckSignatureCallError(t *testing.T) {
	owner := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	caller := &fakeCaller{err: fmt.Errorf("execution reverted")}
	if err := checkSignature(context.Background(), caller, owner, common.Hash{}, []byte("sig")); err == nil {
		t.Fatalf("call error swallowed")
	}
}

func TestCheckSignatureShortResponse(t *testing.T) {
	owner := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	caller := &fakeCaller{resp: []byte{0x16}}
	if err := checkSignature(context.Background(), caller, owner, common.Hash{}, []byte("sig")); err == nil {
		t.Fatalf("truncated response accepted")
	}
}
