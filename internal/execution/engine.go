// Package execution runs prompts against a language model engine.
package execution

import (
	"context"
	"time"

	copilot "github.com/github/copilot-sdk/go"
)

// AgentEngine runs prompts against a model.
type AgentEngine interface {
	// Initialize sets up the engine
	Initialize(ctx context.Context) error

	// Execute sends one prompt and waits for the reply
	Execute(ctx context.Context, req *ExecutionRequest) (*ExecutionResponse, error)

	// Shutdown cleans up resources
	Shutdown(ctx context.Context) error
}

// ExecutionRequest is one prompt.
type ExecutionRequest struct {
	// RequestID identifies the request in logs.
	RequestID string
	Message   string

	// ModelID overrides the engine's default model.
	ModelID string

	// SessionID resumes an existing session when set.
	SessionID string

	// Timeout bounds the whole request and must be positive.
	Timeout time.Duration
}

// ExecutionResponse is the reply to an ExecutionRequest.
type ExecutionResponse struct {
	FinalOutput string
	Events      []copilot.SessionEvent
	ModelID     string
	DurationMs  int64
	ErrorMsg    string
	Success     bool
	SessionID   string
}

// ExtractMessages gets all assistant messages from events
func (r *ExecutionResponse) ExtractMessages() []string {
	var messages []string
	for _, evt := range r.Events {
		if evt.Type == copilot.AssistantMessage {
			if evt.Data.Content != nil {
				messages = append(messages, *evt.Data.Content)
			}
		}
	}
	return messages
}
