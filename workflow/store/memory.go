package store

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store for tests and single-process runs.
// Data is lost when the process exits. Safe for concurrent use.
type MemStore[S any] struct {
	mu    sync.RWMutex
	steps map[string][]StepRecord[S]
}

// NewMemStore creates an empty in-memory store.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{steps: make(map[string][]StepRecord[S])}
}

// SaveStep appends the step to the run's history.
func (m *MemStore[S]) SaveStep(_ context.Context, runID string, step int, nodeID string, state S) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[runID] = append(m.steps[runID], StepRecord[S]{Step: step, NodeID: nodeID, State: state})
	return nil
}

// LoadLatest returns the record with the highest step number, which
// handles out-of-order saves correctly.
func (m *MemStore[S]) LoadLatest(_ context.Context, runID string) (S, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var zero S
	records, ok := m.steps[runID]
	if !ok || len(records) == 0 {
		return zero, 0, ErrNotFound
	}
	latest := records[0]
	for _, rec := range records[1:] {
		if rec.Step > latest.Step {
			latest = rec
		}
	}
	return latest.State, latest.Step, nil
}

// Steps returns a copy of the run's history in save order.
func (m *MemStore[S]) Steps(_ context.Context, runID string) ([]StepRecord[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := m.steps[runID]
	out := make([]StepRecord[S], len(records))
	copy(out, records)
	return out, nil
}
