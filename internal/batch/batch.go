// Package batch executes ordered sequences of registry operations as one
// atomic unit under the initiator's identity.
package batch

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"positionRegistry/internal/manager"
)

// Call is one encoded sub-operation.
type Call struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// AbortError wraps the first failing sub-operation's error; the whole batch
// was rolled back when it is returned.
type AbortError struct {
	Index  int
	Method string
	Err    error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("batch aborted at call %d (%s): %v", e.Index, e.Method, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// Executor dispatches encoded calls against the manager.
type Executor struct {
	mgr *manager.Manager
}

func NewExecutor(mgr *manager.Manager) *Executor {
	return &Executor{mgr: mgr}
}

// Execute runs the calls in order as one atomic unit. Any failure restores
// the pre-batch state and surfaces as an AbortError. Attached native value
// is available to every sub-operation; the unconsumed remainder is refunded
// to the initiator before returning.
func (e *Executor) Execute(initiator common.Address, value *uint256.Int, calls []Call) ([]json.RawMessage, error) {
	restore := e.mgr.Snapshot()

	abort := func(i int, method string, err error) ([]json.RawMessage, error) {
		restore()
		return nil, &AbortError{Index: i, Method: method, Err: err}
	}

	if value != nil && !value.IsZero() {
		if err := e.mgr.SetValue(initiator, value); err != nil {
			return abort(-1, "value", err)
		}
	}

	results := make([]json.RawMessage, 0, len(calls))
	for i, call := range calls {
		out, err := e.dispatch(initiator, call)
		if err != nil {
			return abort(i, call.Method, err)
		}
		results = append(results, out)
	}

	if err := e.mgr.RefundValue(); err != nil {
		return abort(len(calls), "refund", err)
	}
	return results, nil
}
