package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"liquidityEngine/internal/model"
)

// SnapshotLog appends every inserted pool snapshot to a JSONL audit file.
// The file stays open until Close.
type SnapshotLog struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// OpenSnapshotLog opens path for appending, creating it and its directory.
func OpenSnapshotLog(path string) (*SnapshotLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot log dir: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open snapshot log: %w", err)
	}
	return &SnapshotLog{file: file, enc: json.NewEncoder(file)}, nil
}

// PutSnapshot writes snapshot as one line.
func (l *SnapshotLog) PutSnapshot(snapshot model.PoolSnapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(snapshot); err != nil {
		return fmt.Errorf("append snapshot %d: %w", snapshot.ID, err)
	}
	return nil
}

func (l *SnapshotLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
