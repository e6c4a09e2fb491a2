// Package store persists per-step workflow run state.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a run id has no persisted state.
var ErrNotFound = errors.New("not found")

// Store persists the run state after every executed step, giving an
// audit trail per session and access to the latest state of a run.
//
// Implementations: in-memory (tests, short-lived runs), SQLite
// (single-process persistence), MySQL (shared deployments).
//
// Type parameter S is the state type; it must be JSON-serializable.
type Store[S any] interface {
	// SaveStep persists state after one node execution. Steps are
	// identified by runID plus a 1-indexed step number.
	SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error

	// LoadLatest returns the most recent persisted state for a run,
	// or ErrNotFound when the run has no steps.
	LoadLatest(ctx context.Context, runID string) (state S, step int, err error)

	// Steps returns the full step history of a run in step order.
	Steps(ctx context.Context, runID string) ([]StepRecord[S], error)
}

// StepRecord is one persisted execution step.
type StepRecord[S any] struct {
	Step   int
	NodeID string
	State  S
}
