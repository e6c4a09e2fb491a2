package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore persists run state to MySQL/MariaDB for deployments where
// multiple processes share run history.
//
// DSN format: user:pass@tcp(host:3306)/dbname. Never hardcode
// credentials; read the DSN from the environment. Tables are created
// on first use.
type MySQLStore[S any] struct {
	db *sql.DB
}

// NewMySQLStore opens a pooled connection and ensures the schema.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS workflow_steps (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			step INT NOT NULL,
			node_id VARCHAR(255) NOT NULL,
			state JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_run_step (run_id, step),
			KEY idx_run (run_id)
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create workflow_steps table: %w", err)
	}

	return &MySQLStore[S]{db: db}, nil
}

// SaveStep persists the state as JSON, replacing any earlier record for
// the same run/step pair.
func (m *MySQLStore[S]) SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO workflow_steps (run_id, step, node_id, state)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE node_id = VALUES(node_id), state = VALUES(state)`,
		runID, step, nodeID, string(data))
	if err != nil {
		return fmt.Errorf("save step: %w", err)
	}
	return nil
}

// LoadLatest returns the state of the highest-numbered step.
func (m *MySQLStore[S]) LoadLatest(ctx context.Context, runID string) (S, int, error) {
	var zero S
	var raw string
	var step int
	err := m.db.QueryRowContext(ctx, `
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
func (m *MySQLStore[S]) Steps(ctx context.Context, runID string) ([]StepRecord[S], error) {
	rows, err := m.db.QueryContext(ctx, `
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

// Close releases the connection pool.
func (m *MySQLStore[S]) Close() error {
	return m.db.Close()
}
