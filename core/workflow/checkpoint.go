package workflow

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Load when a run has no checkpoint.
var ErrNotFound = errors.New("checkpoint not found")

// Store persists execution record snapshots keyed by (run id, step
// sequence). Saves for distinct runs may be concurrent; the executor
// serializes saves within one run. Load returns the latest snapshot and its
// sequence, with round-trip fidelity for every record field.
type Store interface {
	Save(ctx context.Context, runID string, seq int, rec *Record) error
	Load(ctx context.Context, runID string) (*Record, int, error)
	Close() error
}
