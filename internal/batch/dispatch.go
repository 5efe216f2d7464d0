package batch

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"positionRegistry/internal/manager"
)

// Wire shapes for sub-operation params; big values travel as decimal
// strings, addresses and signatures as hex.
type firstMintArgs struct {
	TokenA       string `json:"token_a"`
	TokenB       string `json:"token_b"`
	Fee          uint32 `json:"fee"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	TickLower    int32  `json:"tick_lower"`
	TickUpper    int32  `json:"tick_upper"`
	Recipient    string `json:"recipient"`
	Amount       string `json:"amount"`
	Deadline     int64  `json:"deadline"`
}

type mintArgs struct {
	TokenA     string `json:"token_a"`
	TokenB     string `json:"token_b"`
	Fee        uint32 `json:"fee"`
	TickLower  int32  `json:"tick_lower"`
	TickUpper  int32  `json:"tick_upper"`
	Recipient  string `json:"recipient"`
	Amount     string `json:"amount"`
	Amount0Max string `json:"amount0_max"`
	Amount1Max string `json:"amount1_max"`
	Deadline   int64  `json:"deadline"`
}

type liquidityArgs struct {
	TokenID    uint64 `json:"token_id"`
	Delta      string `json:"delta"`
	Amount0Cap string `json:"amount0_cap"`
	Amount1Cap string `json:"amount1_cap"`
	Deadline   int64  `json:"deadline"`
}

type collectArgs struct {
	TokenID    uint64 `json:"token_id"`
	Recipient  string `json:"recipient"`
	Amount0Max string `json:"amount0_max"`
	Amount1Max string `json:"amount1_max"`
}

type tokenArgs struct {
	TokenID uint64 `json:"token_id"`
}

type permitArgs struct {
	Spender   string `json:"spender"`
	TokenID   uint64 `json:"token_id"`
	Deadline  int64  `json:"deadline"`
	Signature string `json:"signature"`
}

type transferArgs struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID uint64 `json:"token_id"`
}

type approveArgs struct {
	Spender string `json:"spender"`
	TokenID uint64 `json:"token_id"`
}

type approveAllArgs struct {
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

type tokenIDResult struct {
	TokenID uint64 `json:"token_id"`
}

type amountsResult struct {
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

func (e *Executor) dispatch(caller common.Address, call Call) (json.RawMessage, error) {
	switch call.Method {
	case "firstMint":
		var args firstMintArgs
		if err := decode(call.Params, &args); err != nil {
			return nil, err
		}
		price, err := parseU256(args.SqrtPriceX96)
		if err != nil {
			return nil, err
		}
		amount, err := parseU256(args.Amount)
		if err != nil {
			return nil, err
		}
		tokenID, err := e.mgr.FirstMint(caller, manager.FirstMintParams{
			TokenA:       common.HexToAddress(args.TokenA),
			TokenB:       common.HexToAddress(args.TokenB),
			Fee:          args.Fee,
			SqrtPriceX96: price,
			TickLower:    args.TickLower,
			TickUpper:    args.TickUpper,
			Recipient:    common.HexToAddress(args.Recipient),
			Amount:       amount,
			Deadline:     args.Deadline,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(tokenIDResult{TokenID: tokenID})

	case "mint":
		var args mintArgs
		if err := decode(call.Params, &args); err != nil {
			return nil, err
		}
		amount, err := parseU256(args.Amount)
		if err != nil {
			return nil, err
		}
		max0, err := parseCap(args.Amount0Max)
		if err != nil {
			return nil, err
		}
		max1, err := parseCap(args.Amount1Max)
		if err != nil {
			return nil, err
		}
		tokenID, err := e.mgr.Mint(caller, manager.MintParams{
			TokenA:     common.HexToAddress(args.TokenA),
			TokenB:     common.HexToAddress(args.TokenB),
			Fee:        args.Fee,
			TickLower:  args.TickLower,
			TickUpper:  args.TickUpper,
			Recipient:  common.HexToAddress(args.Recipient),
			Amount:     amount,
			Amount0Max: max0,
			Amount1Max: max1,
			Deadline:   args.Deadline,
		})
		if err != nil {
			return nil, err
		}
		return json.Marshal(tokenIDResult{TokenID: tokenID})

	case "increaseLiquidity":
		var args liquidityArgs
		if err := decode(call.Params, &args); err != nil {
			return nil, err
		}
		delta, err := parseU256(args.Delta)
		if err != nil {
			return nil, err
		}
		max0, err := parseCap(args.Amount0Cap)
		if err != nil {
			return nil, err
		}
		max1, err := parseCap(args.Amount1Cap)
		if err != nil {
			return nil, err
		}
		amount0, amount1, err := e.mgr.IncreaseLiquidity(caller, args.TokenID, delta, max0, max1, args.Deadline)
		if err != nil {
			return nil, err
		}
		return json.Marshal(amountsResult{Amount0: amount0.Dec(), Amount1: amount1.Dec()})

	case "decreaseLiquidity":
		var args liquidityArgs
		if err := decode(call.Params, &args); err != nil {
			return nil, err
		}
		delta, min0, min1, err := parseU256Triple(args.Delta, args.Amount0Cap, args.Amount1Cap)
		if err != nil {
			return nil, err
		}
		amount0, amount1, err := e.mgr.DecreaseLiquidity(caller, args.TokenID, delta, min0, min1, args.Deadline)
		if err != nil {
			return nil, err
		}
		return json.Marshal(amountsResult{Amount0: amount0.Dec(), Amount1: amount1.Dec()})

	case "collect":
		var args collectArgs
		if err := decode(call.Params, &args); err != nil {
			return nil, err
		}
		max0, err := parseCap(args.Amount0Max)
		if err != nil {
			return nil, err
		}
		max1, err := parseCap(args.Amount1Max)
		if err != nil {
			return nil, err
		}
		amount0, amount1, err := e.mgr.Collect(caller, args.TokenID, common.HexToAddress(args.Recipient), max0, max1)
		if err != nil {
			return nil, err
		}
		return json.Marshal(amountsResult{Amount0: amount0.Dec(), Amount1: amount1.Dec()})

	case "burn":
		var args tokenArgs
		if err := decode(call.Params, &args); err != nil {
			return nil, err
		}
		if err := e.mgr.Burn(caller, args.TokenID); err != nil {
			return nil, err
		}
		return json.Marshal(struct{}{})

	case "permit":
		var args permitArgs
		if err := decode(call.Params, &args); err != nil {
			return nil, err
		}
		sig, err := hexutil.Decode(args.Signature)
		if err != nil {
			return nil, fmt.Errorf("decode signature: %w", err)
		}
		if err := e.mgr.Permit(common.HexToAddress(args.Spender), args.TokenID, args.Deadline, sig); err != nil {
			return nil, err
		}
		return json.Marshal(struct{}{})

	case "transferFrom":
		var args transferArgs
		if err := decode(call.Params, &args); err != nil {
			return nil, err
		}
		if err := e.mgr.TransferFrom(caller, common.HexToAddress(args.From), common.HexToAddress(args.To), args.TokenID); err != nil {
			return nil, err
		}
		return json.Marshal(struct{}{})

	case "approve":
		var args approveArgs
		if err := decode(call.Params, &args); err != nil {
			return nil, err
		}
		if err := e.mgr.Approve(caller, common.HexToAddress(args.Spender), args.TokenID); err != nil {
			return nil, err
		}
		return json.Marshal(struct{}{})

	case "setApprovalForAll":
		var args approveAllArgs
		if err := decode(call.Params, &args); err != nil {
			return nil, err
		}
		e.mgr.SetApprovalForAll(caller, common.HexToAddress(args.Operator), args.Approved)
		return json.Marshal(struct{}{})

	case "positions":
		var args tokenArgs
		if err := decode(call.Params, &args); err != nil {
			return nil, err
		}
		pos, err := e.mgr.Positions(args.TokenID)
		if err != nil {
			return nil, err
		}
		owner, err := e.mgr.OwnerOf(args.TokenID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(pos.Snapshot(owner.Hex()))

	case "describe":
		var args tokenArgs
		if err := decode(call.Params, &args); err != nil {
			return nil, err
		}
		desc, err := e.mgr.Describe(args.TokenID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(desc)

	default:
		return nil, fmt.Errorf("unknown method %q", call.Method)
	}
}

func decode(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing params")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}

func parseU256(value string) (*uint256.Int, error) {
	if value == "" {
		return uint256.NewInt(0), nil
	}
	parsed, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return parsed, nil
}

// parseCap treats an absent cap as unbounded rather than zero.
func parseCap(value string) (*uint256.Int, error) {
	if value == "" {
		return nil, nil
	}
	return parseU256(value)
}

func parseU256Triple(a, b, c string) (*uint256.Int, *uint256.Int, *uint256.Int, error) {
	x, err := parseU256(a)
	if err != nil {
		return nil, nil, nil, err
	}
	y, err := parseU256(b)
	if err != nil {
		return nil, nil, nil, err
	}
	z, err := parseU256(c)
	if err != nil {
		return nil, nil, nil, err
	}
	return x, y, z, nil
}
