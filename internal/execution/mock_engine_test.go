package execution

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEngine_Initialize(t *testing.T) {
	engine := NewMockEngine("test-model")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := engine.Initialize(ctx)
	require.NoError(t, err)
}

func TestMockEngine_Execute(t *testing.T) {
	engine := NewMockEngine("test-model")

	resp, err := engine.Execute(context.Background(), &ExecutionRequest{Message: "hello"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "Mock response for: hello", resp.FinalOutput)
	assert.Equal(t, "test-model", resp.ModelID)

	resp, err = engine.Execute(context.Background(), &ExecutionRequest{Message: "again", ModelID: "other"})
	require.NoError(t, err)
	assert.Equal(t, "other", resp.ModelID)

	reqs := engine.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "again", reqs[1].Message)
}

func TestMockEngine_Responder(t *testing.T) {
	engine := NewMockEngine("test-model").WithResponder(func(req *ExecutionRequest) string {
		return strings.ToUpper(req.Message)
	})

	resp, err := engine.Execute(context.Background(), &ExecutionRequest{Message: "shout"})
	require.NoError(t, err)
	assert.Equal(t, "SHOUT", resp.FinalOutput)
}

func TestMockEngine_Execute_Errors(t *testing.T) {
	engine := NewMockEngine("test-model")

	_, err := engine.Execute(context.Background(), nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Execute(ctx, &ExecutionRequest{Message: "late"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, engine.Requests())
}

func TestMockEngine_Shutdown_Idempotent(t *testing.T) {
	engine := NewMockEngine("test-model")

	for i := 0; i < 3; i++ {
		assert.NoError(t, engine.Shutdown(context.Background()), "Shutdown call %d should not error", i+1)
	}
}
