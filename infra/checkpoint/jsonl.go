package checkpoint

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/lcabon/resq/core/workflow"
)

// JSONLStore appends checkpoints to a JSONL file, one snapshot per line.
// Load scans the file and keeps the highest sequence per run, so a torn
// final line (crash mid-write) is skipped rather than surfaced.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

type jsonlEntry struct {
	RunID  string           `json:"run_id"`
	Seq    int              `json:"seq"`
	Record *workflow.Record `json:"record"`
}

// NewJSONLStore creates the file if needed and returns the store.
func NewJSONLStore(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path}, nil
}

// Save appends a snapshot line.
func (s *JSONLStore) Save(_ context.Context, runID string, seq int, rec *workflow.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := json.NewEncoder(f).Encode(jsonlEntry{RunID: runID, Seq: seq, Record: rec}); err != nil {
		return err
	}
	return f.Sync()
}

// Load scans for the latest snapshot of runID.
func (s *JSONLStore) Load(_ context.Context, runID string) (*workflow.Record, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = f.Close() }()
	var (
		best    *workflow.Record
		bestSeq = -1
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<22)
	for scanner.Scan() {
		var e jsonlEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			// Torn or corrupt line, skip.
			continue
		}
		if e.RunID != runID || e.Record == nil {
			continue
		}
		if e.Seq > bestSeq {
			best = e.Record
			bestSeq = e.Seq
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}
	if best == nil {
		return nil, 0, workflow.ErrNotFound
	}
	return best, bestSeq, nil
}

// Close is a no-op; the file is opened per operation.
func (s *JSONLStore) Close() error { return nil }
