package checkpoint

import (
	"context"
	"sync"

	"github.com/lcabon/resq/core/workflow"
)

// MemoryStore keeps checkpoints in process memory. Suitable for tests and
// short-lived runs where replaying from scratch is acceptable.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]memoryRun
}

type memoryRun struct {
	seq int
	rec *workflow.Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]memoryRun)}
}

// Save stores a snapshot. Later sequences win; a stale sequence for the same
// run never replaces a newer snapshot.
func (s *MemoryStore) Save(_ context.Context, runID string, seq int, rec *workflow.Record) error {
	snap, err := rec.Clone()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.runs[runID]; ok && cur.seq >= seq {
		return nil
	}
	s.runs[runID] = memoryRun{seq: seq, rec: snap}
	return nil
}

// Load returns the latest snapshot for runID.
func (s *MemoryStore) Load(_ context.Context, runID string) (*workflow.Record, int, error) {
	s.mu.RLock()
	cur, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, 0, workflow.ErrNotFound
	}
	rec, err := cur.rec.Clone()
	if err != nil {
		return nil, 0, err
	}
	return rec, cur.seq, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
