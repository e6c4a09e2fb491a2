package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists run state to a single-file database.
//
// Zero-setup persistence for development and single-process
// deployments. WAL mode is enabled for concurrent reads; the schema is
// created on first use.
type SQLiteStore[S any] struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS workflow_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			node_id TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(run_id, step)
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create workflow_steps table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_workflow_steps_run
		ON workflow_steps(run_id, step)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create step index: %w", err)
	}

	return &SQLiteStore[S]{db: db}, nil
}

// SaveStep persists the state as JSON. Re-saving the same run/step pair
// replaces the earlier record.
func (s *SQLiteStore[S]) SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_steps (run_id, step, node_id, state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, step) DO UPDATE SET node_id=excluded.node_id, state=excluded.state`,
		runID, step, nodeID, string(data))
	if err != nil {
		return fmt.Errorf("save step: %w", err)
	}
	return nil
}

// LoadLatest returns the state of the highest-numbered step.
func (s *SQLiteStore[S]) LoadLatest(ctx context.Context, runID string) (S, int, error) {
	var zero S
	var raw string
	var step int
	err := s.db.QueryRowContext(ctx, `
		SELECT state, step FROM workflow_steps
		WHERE run_id = ? ORDER BY step DESC LIMIT 1`, runID).Scan(&raw, &step)
	if err == sql.ErrNoRows {
		return zero, 0, ErrNotFound
	}
	if err != nil {
		return zero, 0, fmt.Errorf("load latest step: %w", err)
	}
	var state S
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return zero, 0, fmt.Errorf("unmarshal state: %w", err)
	}
	return state, step, nil
}

// Steps returns the run's history in step order.
func (s *SQLiteStore[S]) Steps(ctx context.Context, runID string) ([]StepRecord[S], error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step, node_id, state FROM workflow_steps
		WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var records []StepRecord[S]
	for rows.Next() {
		var rec StepRecord[S]
		var raw string
		if err := rows.Scan(&rec.Step, &rec.NodeID, &raw); err != nil {
			return nil, fmt.Errorf("scan step row: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &rec.State); err != nil {
			return nil, fmt.Errorf("unmarshal state: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteStore[S]) Close() error {
	return s.db.Close()
}
