package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/lcabon/resq/core/workflow"
)

// SQLiteStore persists checkpoints to a SQLite database. Snapshots are
// immutable rows keyed by (run_id, seq); Load selects the highest sequence
// for a run, so a partially written row is never observed as the latest
// state.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS checkpoints (
        run_id TEXT NOT NULL,
        seq INTEGER NOT NULL,
        ts INTEGER NOT NULL,
        record TEXT NOT NULL,
        PRIMARY KEY (run_id, seq)
    );`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Save writes a snapshot row. Replaying a step after a resume may rewrite the
// same sequence; the snapshot content is identical by the idempotency
// contract, so INSERT OR REPLACE is safe.
func (s *SQLiteStore) Save(ctx context.Context, runID string, seq int, rec *workflow.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO checkpoints (run_id, seq, ts, record) VALUES (?, ?, ?, ?)`,
		runID, seq, rec.UpdatedAt.Unix(), string(b))
	return err
}

// Load returns the latest snapshot for runID.
func (s *SQLiteStore) Load(ctx context.Context, runID string) (*workflow.Record, int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT seq, record FROM checkpoints WHERE run_id = ? ORDER BY seq DESC LIMIT 1`, runID)
	var (
		seq  int
		data string
	)
	if err := row.Scan(&seq, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, workflow.ErrNotFound
		}
		return nil, 0, err
	}
	var rec workflow.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, 0, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &rec, seq, nil
}

// History returns every snapshot sequence stored for a run, oldest first.
// Used for audit inspection.
func (s *SQLiteStore) History(ctx context.Context, runID string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq FROM checkpoints WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var seqs []int
	for rows.Next() {
		var seq int
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	return seqs, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
