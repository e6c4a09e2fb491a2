// Package agent implements the specialized processing steps of the
// accounting workflow behind one uniform execute contract.
package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Input is the untyped call payload handed to a step. Keys vary per
// step; "org_id" is always required.
type Input map[string]any

// Output is a step result. Every output carries a "success" boolean;
// failed invocations carry an "error" message.
type Output map[string]any

// Agent is one unit of domain processing. Implementations may fail
// with an error but must never panic deliberately — the Invoker
// recovers panics as a last line of defense, not a control channel.
type Agent interface {
	Name() string
	Execute(ctx context.Context, in Input) (Output, error)
}

// ValidationError reports a missing or malformed required input field.
// It is recovered at the node level, not a process-terminating fault.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("missing required field %q", e.Field)
}

// Kind tags the error for the workflow error taxonomy.
func (e *ValidationError) Kind() string { return "VALIDATION" }

// OrgID extracts and validates the always-required organization id.
func (in Input) OrgID() (uuid.UUID, error) {
	raw, ok := in["org_id"]
	if !ok {
		return uuid.Nil, &ValidationError{Field: "org_id"}
	}
	switch v := raw.(type) {
	case uuid.UUID:
		if v == uuid.Nil {
			return uuid.Nil, &ValidationError{Field: "org_id", Reason: "empty"}
		}
		return v, nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, &ValidationError{Field: "org_id", Reason: "not a uuid"}
		}
		return id, nil
	default:
		return uuid.Nil, &ValidationError{Field: "org_id", Reason: "unsupported type"}
	}
}

// String returns the named field as a string, "" when absent.
func (in Input) String(key string) string {
	if v, ok := in[key].(string); ok {
		return v
	}
	return ""
}

// RequireString returns the named field or a ValidationError.
func (in Input) RequireString(key string) (string, error) {
	v := in.String(key)
	if v == "" {
		return "", &ValidationError{Field: key}
	}
	return v, nil
}

// Strings returns the named field as a string slice, tolerating both
// []string and []any payloads.
func (in Input) Strings(key string) []string {
	switch v := in[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
