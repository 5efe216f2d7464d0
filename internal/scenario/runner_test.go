package scenario

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"positionRegistry/internal/batch"
	"positionRegistry/internal/model"
)

type memJournal struct {
	records []model.OperationRecord
}

func (j *memJournal) PutOperationBatch(records []model.OperationRecord) error {
	j.records = append(j.records, records...)
	return nil
}

const (
	scnToken0 = "0x1000000000000000000000000000000000000001"
	scnToken1 = "0x2000000000000000000000000000000000000002"
	scnAlice  = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

func call(t *testing.T, method string, params any) batch.Call {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return batch.Call{Method: method, Params: raw}
}

func lifecycleScenario(t *testing.T) Scenario {
	t.Helper()
	type m = map[string]any
	return Scenario{
		Genesis: []GenesisBalance{
			{Token: scnToken0, Account: scnAlice, Amount: "1000"},
			{Token: scnToken1, Account: scnAlice, Amount: "1000"},
		},
		Batches: []Batch{
			{Caller: scnAlice, Calls: []batch.Call{
				call(t, "firstMint", m{
					"token_a": scnToken0, "token_b": scnToken1, "fee": 3000,
					"sqrt_price_x96": "1000000",
					"tick_lower":     -600, "tick_upper": 600,
					"recipient": scnAlice, "amount": "100",
					"deadline": 1<<62 - 1,
				}),
			}},
			{Caller: scnAlice, Calls: []batch.Call{
				call(t, "decreaseLiquidity", m{
					"token_id": 1, "delta": "100", "deadline": 1<<62 - 1,
				}),
				call(t, "collect", m{
					"token_id": 1, "recipient": scnAlice,
					"amount0_max": "100", "amount1_max": "100",
				}),
				call(t, "burn", m{"token_id": 1}),
			}},
			// the position is gone; this batch must abort and be recorded so
			{Caller: scnAlice, Calls: []batch.Call{
				call(t, "collect", m{
					"token_id": 1, "recipient": scnAlice,
					"amount0_max": "1", "amount1_max": "1",
				}),
			}},
		},
	}
}

func TestRunnerJournalsLifecycle(t *testing.T) {
	journal := &memJournal{}
	r := NewRunner(RunConfig{ChainID: 1}, journal, nil, nil, nil, nil)

	if err := r.Run(context.Background(), lifecycleScenario(t)); err != nil {
		t.Fatalf("run: %v", err)
	}

	// one record per call for the two good batches, one for the abort
	if len(journal.records) != 5 {
		t.Fatalf("records = %d, want 5", len(journal.records))
	}

	mint := journal.records[0]
	if mint.Method != "firstMint" || mint.TokenID != 1 || mint.Error != "" {
		t.Fatalf("mint record = %+v", mint)
	}
	collect := journal.records[2]
	if collect.Method != "collect" || collect.Amount0 != "100" || collect.Amount1 != "100" {
		t.Fatalf("collect record = %+v", collect)
	}
	burn := journal.records[3]
	if burn.Method != "burn" || burn.Batch != 1 || burn.Index != 2 {
		t.Fatalf("burn record = %+v", burn)
	}
	abort := journal.records[4]
	if abort.Batch != 2 || abort.Method != "collect" || abort.Error == "" {
		t.Fatalf("abort record = %+v", abort)
	}
	if !strings.Contains(abort.Error, "not found") {
		t.Fatalf("abort error = %q, want position not found", abort.Error)
	}
}

type fakeStore struct {
	upserts [][]model.PositionSnapshot
	deletes [][]uint64
	loads   []string
	saves   []uint64
}

func (s *fakeStore) UpsertPositions(_ context.Context, snapshots []model.PositionSnapshot) error {
	s.upserts = append(s.upserts, snapshots)
	return nil
}

func (s *fakeStore) DeletePositions(_ context.Context, tokenIDs []uint64) error {
	if len(tokenIDs) > 0 {
		s.deletes = append(s.deletes, tokenIDs)
	}
	return nil
}

func (s *fakeStore) LoadState(_ context.Context, name string) (uint64, bool, error) {
	s.loads = append(s.loads, name)
	return 7, true, nil
}

func (s *fakeStore) SaveState(_ context.Context, _ string, batchNo uint64) error {
	s.saves = append(s.saves, batchNo)
	return nil
}

func TestRunnerPersistsSnapshots(t *testing.T) {
	store := &fakeStore{}
	r := NewRunner(RunConfig{ChainID: 1}, &memJournal{}, store, nil, nil, nil)

	if err := r.Run(context.Background(), lifecycleScenario(t)); err != nil {
		t.Fatalf("run: %v", err)
	}

	// prior progress consulted once at startup, under the default name
	if len(store.loads) != 1 || store.loads[0] != "scenario" {
		t.Fatalf("loads = %v, want one load of %q", store.loads, "scenario")
	}
	// one persist per batch, aborted ones included
	if len(store.saves) != 3 || store.saves[2] != 2 {
		t.Fatalf("saves = %v, want batch numbers through 2", store.saves)
	}

	if len(store.upserts) != 3 {
		t.Fatalf("upserts = %d, want 3", len(store.upserts))
	}
	first := store.upserts[0]
	if len(first) != 1 || first[0].TokenID != 1 || first[0].Liquidity != "100" {
		t.Fatalf("first upsert = %+v", first)
	}
	if !strings.EqualFold(first[0].Owner, scnAlice) {
		t.Fatalf("owner = %s, want %s", first[0].Owner, scnAlice)
	}
	// the burn in batch 1 removes the row
	if len(store.deletes) != 1 || len(store.deletes[0]) != 1 || store.deletes[0][0] != 1 {
		t.Fatalf("deletes = %v, want [[1]]", store.deletes)
	}
}

func TestRunnerContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(RunConfig{ChainID: 1}, &memJournal{}, nil, nil, nil, nil)
	if err := r.Run(ctx, lifecycleScenario(t)); err != context.Canceled {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestRunnerRequiresJournal(t *testing.T) {
	r := NewRunner(RunConfig{ChainID: 1}, nil, nil, nil, nil, nil)
	if err := r.Run(context.Background(), Scenario{Batches: []Batch{{Caller: scnAlice}}}); err == nil {
		t.Fatalf("run without journal succeeded")
	}
}

func TestLoadValidation(t *testing.T) {
	dir := t.TempDir()

	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		return path
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("missing file accepted")
	}
	if _, err := Load(write("bad.json", "{")); err == nil {
		t.Fatalf("malformed json accepted")
	}
	if _, err := Load(write("empty.json", `{"batches":[]}`)); err == nil {
		t.Fatalf("empty scenario accepted")
	}
	if _, err := Load(write("nocaller.json", `{"batches":[{"calls":[{"method":"burn","params":{}}]}]}`)); err == nil {
		t.Fatalf("batch without caller accepted")
	}

	good := write("good.json", `{
		"genesis": [{"token": "`+scnToken0+`", "account": "`+scnAlice+`", "amount": "10"}],
		"batches": [{"caller": "`+scnAlice+`", "calls": [{"method": "burn", "params": {"token_id": 1}}]}]
	}`)
	sc, err := Load(good)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(sc.Genesis) != 1 || len(sc.Batches) != 1 {
		t.Fatalf("scenario = %+v", sc)
	}
}
