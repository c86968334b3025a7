// Package utils holds small helpers shared by the CLI and the engines.
package utils

import (
	"context"
	"log/slog"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/mattn/go-runewidth"
)

// maxLoggedText bounds logged prompt and reply text, which may carry
// customer data.
const maxLoggedText = 200

// SessionToSlog logs a Copilot session event at debug level.
func SessionToSlog(event copilot.SessionEvent) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := []any{
		"type", event.Type,
	}

	attrs = addText(attrs, "content", event.Data.Content)
	attrs = addText(attrs, "delta_content", event.Data.DeltaContent)
	attrs = addIf(attrs, "tool_name", event.Data.ToolName)
	attrs = addIf(attrs, "tool_call_id", event.Data.ToolCallID)
	attrs = addText(attrs, "message", event.Data.Message)

	slog.Debug("copilot event", attrs...)
}

func addIf[T any](attrs []any, name string, v *T) []any {
	if v != nil {
		attrs = append(attrs, name)
		attrs = append(attrs, *v)
	}

	return attrs
}

func addText(attrs []any, name string, v *string) []any {
	if v == nil {
		return attrs
	}
	return append(attrs, name, runewidth.Truncate(*v, maxLoggedText, "…"))
}
