package llm

import (
	"context"
	"sync"
)

// MockClient is a scripted Client for tests. Each Complete call consumes the
// next queued completion; when the script runs out, the last entry repeats.
type MockClient struct {
	mu       sync.Mutex
	script   []*Completion
	err      error
	requests []CompletionRequest
}

func NewMockClient(script ...*Completion) *MockClient {
	return &MockClient{script: script}
}

// FailWith makes every subsequent Complete call return err.
func (m *MockClient) FailWith(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

func (m *MockClient) Complete(_ context.Context, req CompletionRequest) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.script) == 0 {
		return &Completion{Content: "ok", FinishReason: "stop"}, nil
	}

	next := m.script[0]
	if len(m.script) > 1 {
		m.script = m.script[1:]
	}
	return next, nil
}

// Requests returns a copy of every request seen so far.
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
