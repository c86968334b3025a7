package execution

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/spboyer/churnkit/internal/utils"
)

// CopilotEngine integrates with GitHub Copilot SDK
type CopilotEngine struct {
	defaultModelID string

	client copilotClient

	startOnce sync.Once
	startErr  error

	workspacesMu sync.Mutex
	workspaces   []string // scratch dirs to clean up at Shutdown
}

// CopilotEngineBuilder builds a CopilotEngine with options
type CopilotEngineBuilder struct {
	engine *CopilotEngine
}

type CopilotEngineBuilderOptions struct {
	NewCopilotClient func(clientOptions *copilot.ClientOptions) copilotClient
}

// NewCopilotEngineBuilder creates a builder for CopilotEngine
//   - defaultModelID - used if no model ID is specified in the request. Can be blank, which means the copilot
//     CLI will choose its own fallback model.
func NewCopilotEngineBuilder(defaultModelID string, options *CopilotEngineBuilderOptions) *CopilotEngineBuilder {
	var client copilotClient

	copilotOptions := &copilot.ClientOptions{
		LogLevel:  "error",
		AutoStart: copilot.Bool(false),
	}

	if options == nil || options.NewCopilotClient == nil {
		client = newCopilotClient(copilotOptions)
	} else {
		client = options.NewCopilotClient(copilotOptions)
	}

	return &CopilotEngineBuilder{
		engine: &CopilotEngine{
			defaultModelID: defaultModelID,
			client:         client,
		},
	}
}

func (b *CopilotEngineBuilder) Build() *CopilotEngine {
	return b.engine
}

// Initialize sets up the Copilot client
func (e *CopilotEngine) Initialize(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// Execute sends req.Message in a new or resumed session and collects the reply.
func (e *CopilotEngine) Execute(ctx context.Context, req *ExecutionRequest) (*ExecutionResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil req was passed to CopilotEngine.Execute")
	}

	modelID, err := e.extractReqParams(req)
	if err != nil {
		return nil, err
	}

	e.startOnce.Do(func() {
		// the client's own autostart misbehaves when several goroutines race to start it
		e.startErr = e.client.Start(ctx)
	})
	if e.startErr != nil {
		return nil, fmt.Errorf("copilot failed to start: %w", e.startErr)
	}

	start := time.Now()

	workspaceDir, err := e.setupWorkspace()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	var session copilotSession

	if req.SessionID == "" {
		session, err = e.client.CreateSession(ctx, &copilot.SessionConfig{
			Model:               modelID,
			OnPermissionRequest: allowSandboxedTools,
			WorkingDirectory:    workspaceDir,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
	} else {
		session, err = e.client.ResumeSessionWithOptions(ctx, req.SessionID, &copilot.ResumeSessionConfig{
			Model:               modelID,
			OnPermissionRequest: allowSandboxedTools,
			WorkingDirectory:    workspaceDir,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to resume session (%s): %w", req.SessionID, err)
		}
	}

	eventsCollector := NewSessionEventsCollector()

	unsubscribe := session.On(eventsCollector.On)
	defer unsubscribe()

	unsubscribe = session.On(utils.SessionToSlog)
	defer unsubscribe()

	_, err = session.SendAndWait(ctx, copilot.MessageOptions{
		Prompt: req.Message,
	})

	var errMsg string
	if err != nil {
		// inline conversation errors come back here as well, so they are
		// reported in the response rather than as a second return path
		errMsg = err.Error()
	} else if msg := eventsCollector.ErrorMessage(); msg != "" {
		errMsg = msg
	}

	slog.Debug("copilot request finished", "request", req.RequestID, "model", modelID, "duration", time.Since(start))

	return &ExecutionResponse{
		FinalOutput: joinStrings(eventsCollector.OutputParts()),
		Events:      eventsCollector.SessionEvents(),
		ModelID:     modelID,
		DurationMs:  time.Since(start).Milliseconds(),
		ErrorMsg:    errMsg,
		Success:     errMsg == "",
		SessionID:   session.SessionID(),
	}, nil
}

// Shutdown cleans up resources
func (e *CopilotEngine) Shutdown(ctx context.Context) error {
	if err := e.client.Stop(); err != nil {
		// Log but continue cleanup
		slog.Info("failed to stop client", "error", err)
	}

	workspaces := func() []string {
		e.workspacesMu.Lock()
		defer e.workspacesMu.Unlock()
		workspaces := e.workspaces
		e.workspaces = nil
		return workspaces
	}()

	for _, ws := range workspaces {
		if err := os.RemoveAll(ws); err != nil {
			slog.Warn("failed to cleanup stale workspace", "path", ws, "error", err)
		}
	}

	return nil
}

func (e *CopilotEngine) extractReqParams(req *ExecutionRequest) (string, error) {
	if req.Timeout <= 0 {
		return "", fmt.Errorf("positive Timeout is required")
	}

	modelID := e.defaultModelID
	if req.ModelID != "" {
		modelID = req.ModelID // override the default model for the engine
	}
	return modelID, nil
}

// setupWorkspace creates an empty working directory so sessions never run in
// the caller's directory.
func (e *CopilotEngine) setupWorkspace() (string, error) {
	workspaceDir, err := os.MkdirTemp("", "churnkit-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp workspace: %w", err)
	}

	e.workspacesMu.Lock()
	e.workspaces = append(e.workspaces, workspaceDir)
	e.workspacesMu.Unlock()

	return workspaceDir, nil
}

func joinStrings(parts []string) string {
	var builder strings.Builder
	for _, p := range parts {
		builder.WriteString(p)
	}
	return builder.String()
}

func allowSandboxedTools(request copilot.PermissionRequest, invocation copilot.PermissionInvocation) (copilot.PermissionRequestResult, error) {
	// value for 'Kind' came from the permissions_test.go in the Copilot SDK.
	return copilot.PermissionRequestResult{Kind: "approved"}, nil
}
