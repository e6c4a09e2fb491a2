package workflow

import "context"

// Terminal is the reserved successor name marking the end of a run.
const Terminal = "__end__"

// Handler executes one processing step against the run state.
//
// Handlers mutate the state in place (artifacts, status, entities) and
// return an error only for failures the step could not absorb itself.
// The engine records the error, marks the step failed, and stops the run
// with the partial state — it never retries.
type Handler func(ctx context.Context, st *State) error

// Router inspects state after a node completes and produces an edge key.
// Keys are resolved through the node's Targets table; pure functions only.
type Router func(st *State) string

// Edge describes the outgoing transition of one node.
//
// Either To names a single unconditional successor, or Route produces a
// key resolved through Targets. A routed key with no Targets entry falls
// back to Default when set; otherwise it is a fatal configuration error.
type Edge struct {
	To      string
	Route   Router
	Targets map[string]string
	Default string
}

// resolve returns the successor node for the current state.
func (e Edge) resolve(st *State) (string, bool) {
	if e.Route == nil {
		return e.To, e.To != ""
	}
	key := e.Route(st)
	if next, ok := e.Targets[key]; ok {
		return next, true
	}
	if e.Default != "" {
		return e.Default, true
	}
	return "", false
}
