// Package emit provides observability events for workflow execution.
package emit

// Emitter receives events from the engine and the step invoker.
//
// Implementations must be safe for concurrent use (distinct sessions
// run in parallel), must not block execution, and must not panic —
// failures are swallowed or logged internally.
type Emitter interface {
	Emit(event Event)
}

// Event is a single observability record.
type Event struct {
	// RunID is the session id of the workflow run.
	RunID string

	// Step is the sequential step number within the run (1-indexed).
	// Zero for run-level events.
	Step int

	// NodeID names the graph node that produced the event.
	NodeID string

	// Msg is a short event name, e.g. "node_start", "node_completed",
	// "node_failed", "step_invoked".
	Msg string

	// Meta carries event-specific data: duration_ms, kind, error.
	Meta map[string]any
}
