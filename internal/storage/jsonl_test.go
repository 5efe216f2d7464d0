package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"positionRegistry/internal/model"
)

func readLines(t *testing.T, path string) []model.OperationRecord {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer file.Close()

	var records []model.OperationRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec model.OperationRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("parse line: %v", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan journal: %v", err)
	}
	return records
}

func TestJsonlJournalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ops.jsonl")
	journal := NewJsonlJournal(path)

	first := []model.OperationRecord{
		{Batch: 0, Index: 0, Method: "firstMint", Caller: "0xaa", TokenID: 1},
		{Batch: 0, Index: 1, Method: "collect", Caller: "0xaa", TokenID: 1, Amount0: "30", Amount1: "100"},
	}
	if err := journal.PutOperationBatch(first); err != nil {
		t.Fatalf("put: %v", err)
	}
	second := []model.OperationRecord{
		{Batch: 1, Index: 1, Method: "burn", Caller: "0xbb", Error: "batch aborted"},
	}
	if err := journal.PutOperationBatch(second); err != nil {
		t.Fatalf("put second: %v", err)
	}

	got := readLines(t, path)
	if len(got) != 3 {
		t.Fatalf("lines = %d, want 3", len(got))
	}
	if got[1].Method != "collect" || got[1].Amount0 != "30" {
		t.Fatalf("record = %+v", got[1])
	}
	if got[2].Batch != 1 || got[2].Error != "batch aborted" {
		t.Fatalf("record = %+v", got[2])
	}
}

func TestJsonlJournalEmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.jsonl")
	if err := NewJsonlJournal(path).PutOperationBatch(nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty batch created the file")
	}
}
