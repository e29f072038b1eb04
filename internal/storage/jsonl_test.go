package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"liquidityEngine/internal/model"
)

func readSnapshotLog(t *testing.T, path string) []model.PoolSnapshot {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var got []model.PoolSnapshot
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var snapshot model.PoolSnapshot
		if err := json.Unmarshal(scanner.Bytes(), &snapshot); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		got = append(got, snapshot)
	}
	return got
}

func TestSnapshotLogAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "snapshots.jsonl")

	log, err := OpenSnapshotLog(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	first := model.PoolSnapshot{ID: 1, PoolID: 1, Reserve0: decimal.NewFromInt(10), IsLatest: true, CreatedAt: time.Unix(1700000000, 0).UTC()}
	if err := log.PutSnapshot(first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	log, err = OpenSnapshotLog(path)
	if err != nil {
		t.Fatalf("reopen log: %v", err)
	}
	defer log.Close()
	second := model.PoolSnapshot{ID: 2, PoolID: 2, Reserve0: decimal.NewFromInt(20), IsLatest: true, CreatedAt: time.Unix(1700000060, 0).UTC()}
	if err := log.PutSnapshot(second); err != nil {
		t.Fatalf("put second: %v", err)
	}

	got := readSnapshotLog(t, path)
	if len(got) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got))
	}
	if got[0].PoolID != 1 || got[1].PoolID != 2 {
		t.Fatalf("order mismatch: %+v", got)
	}
	if !got[1].Reserve0.Equal(decimal.NewFromInt(20)) || !got[1].CreatedAt.Equal(second.CreatedAt) {
		t.Fatalf("snapshot mismatch: %+v", got[1])
	}
}
