// Package scenario loads and executes operation scripts against a fresh
// registry wired to simulated pools.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"

	"positionRegistry/internal/batch"
)

// GenesisBalance seeds one ledger balance before execution.
type GenesisBalance struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// Batch is one atomic unit of the script.
type Batch struct {
	Caller string       `json:"caller"`
	Value  string       `json:"value,omitempty"`
	Calls  []batch.Call `json:"calls"`
}

// Scenario is a full operation script.
type Scenario struct {
	Genesis []GenesisBalance `json:"genesis"`
	Batches []Batch          `json:"batches"`
}

// Load parses a scenario file.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := json.Unmarshal(data, &sc); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if len(sc.Batches) == 0 {
		return Scenario{}, fmt.Errorf("scenario has no batches")
	}
	for i, b := range sc.Batches {
		if b.Caller == "" {
			return Scenario{}, fmt.Errorf("batch %d: caller is required", i)
		}
		if len(b.Calls) == 0 {
			return Scenario{}, fmt.Errorf("batch %d: no calls", i)
		}
	}
	return sc, nil
}
