// Package model provides LLM integration adapters for the advisory
// workflow step.
package model

import "context"

// ChatModel is the narrow completion contract the workflow consumes.
//
// Implementations handle provider authentication, request conversion
// and response parsing, and must respect context cancellation. The
// advisory step treats the returned text as opaque; answer quality is
// outside the workflow's scope.
type ChatModel interface {
	// Complete sends a system prompt and user prompt to the provider
	// and returns the generated text.
	Complete(ctx context.Context, system, prompt string) (string, error)
}
