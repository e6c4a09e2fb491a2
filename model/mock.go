package model

import (
	"context"
	"sync"
)

// MockChatModel is a test implementation of ChatModel.
//
// It returns configured responses in order (repeating the last one
// when exhausted), records every call, and can inject errors.
// Thread-safe.
type MockChatModel struct {
	// Responses is the sequence of texts to return. When consumed,
	// the last response repeats.
	Responses []string

	// Err, if set, is returned by Complete instead of a response.
	Err error

	// Calls records every invocation.
	Calls []MockCall

	mu        sync.Mutex
	callIndex int
}

// MockCall records one invocation of Complete.
type MockCall struct {
	System string
	Prompt string
}

func (m *MockChatModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{System: system, Prompt: prompt})

	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// Reset clears the call history and response index.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of Complete invocations so far.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
