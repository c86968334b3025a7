package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	copilot "github.com/github/copilot-sdk/go"
)

// Responder produces the canned reply for a request.
type Responder func(req *ExecutionRequest) string

// MockEngine answers every prompt locally. It is used by tests and by the
// "mock" engine setting for offline runs.
type MockEngine struct {
	modelID string
	respond Responder

	mu       sync.Mutex
	requests []ExecutionRequest
}

// NewMockEngine creates a new mock engine
func NewMockEngine(modelID string) *MockEngine {
	return &MockEngine{
		modelID: modelID,
		respond: func(req *ExecutionRequest) string {
			return fmt.Sprintf("Mock response for: %s", req.Message)
		},
	}
}

// WithResponder replaces the default echo reply.
func (m *MockEngine) WithResponder(fn Responder) *MockEngine {
	if fn != nil {
		m.respond = fn
	}
	return m
}

// Requests returns a copy of every request received so far.
func (m *MockEngine) Requests() []ExecutionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecutionRequest(nil), m.requests...)
}

func (m *MockEngine) Initialize(ctx context.Context) error {
	return nil
}

func (m *MockEngine) Execute(ctx context.Context, req *ExecutionRequest) (*ExecutionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil req was passed to MockEngine.Execute")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	m.mu.Lock()
	m.requests = append(m.requests, *req)
	m.mu.Unlock()

	modelID := m.modelID
	if req.ModelID != "" {
		modelID = req.ModelID
	}
	return &ExecutionResponse{
		FinalOutput: m.respond(req),
		Events:      []copilot.SessionEvent{},
		ModelID:     modelID,
		DurationMs:  time.Since(start).Milliseconds(),
		Success:     true,
		SessionID:   req.SessionID,
	}, nil
}

func (m *MockEngine) Shutdown(ctx context.Context) error {
	return nil
}
