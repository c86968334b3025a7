// Package suggest implements the language model collaborators used by the
// mapper and the recommendation engine. Every call renders a prompt, sends it
// to an execution.AgentEngine and parses the reply. Replies that do not
// validate are dropped and reported as "nothing to add".
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spboyer/churnkit/internal/cache"
	"github.com/spboyer/churnkit/internal/execution"
	"github.com/spboyer/churnkit/internal/template"
)

const defaultTimeout = 120 * time.Second

// Kinds of collaborator request, used in request IDs, cache entries and logs.
const (
	KindColumns   = "column_mapping"
	KindDomain    = "domain_detection"
	KindActions   = "recommendations"
	KindSummary   = "summary_report"
	KindNarrative = "customer_narrative"
)

// Options configures a Client.
type Options struct {
	// Model overrides the engine's default model.
	Model string

	// Timeout bounds each request. Zero means two minutes.
	Timeout time.Duration

	// Cache stores replies by model and prompt. Nil disables caching.
	Cache *cache.Cache
}

// Client sends rendered prompts to an engine.
type Client struct {
	engine execution.AgentEngine
	opts   Options
}

// New returns a client over engine.
func New(engine execution.AgentEngine, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{engine: engine, opts: opts}
}

// Ask renders tmpl with tctx, sends it and returns the trimmed reply.
func (c *Client) Ask(ctx context.Context, kind, tmpl string, tctx *template.Context) (string, error) {
	if c == nil || c.engine == nil {
		return "", errors.New("no engine configured")
	}
	if tctx == nil {
		tctx = &template.Context{}
	}
	tctx.Kind = kind
	tctx.Model = c.opts.Model

	prompt, err := template.Render(tmpl, tctx)
	if err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", kind, err)
	}

	key := cache.Key(c.opts.Model, prompt)
	if e, ok := c.opts.Cache.Get(key); ok {
		slog.Debug("collaborator cache hit", "kind", kind, "key", key[:12])
		return e.Output, nil
	}

	resp, err := c.engine.Execute(ctx, &execution.ExecutionRequest{
		RequestID: kind + "-" + uuid.NewString(),
		Message:   prompt,
		ModelID:   c.opts.Model,
		Timeout:   c.opts.Timeout,
	})
	if err != nil {
		return "", fmt.Errorf("%s request: %w", kind, err)
	}
	if resp == nil {
		return "", errors.New("empty engine response")
	}
	if !resp.Success {
		return "", fmt.Errorf("%s request failed: %s", kind, resp.ErrorMsg)
	}

	out := strings.TrimSpace(resp.FinalOutput)
	if out != "" {
		if err := c.opts.Cache.Put(key, &cache.Entry{Kind: kind, Model: resp.ModelID, Output: out}); err != nil {
			slog.Warn("caching collaborator response", "kind", kind, "error", err)
		}
	}
	return out, nil
}

var jsonObject = regexp.MustCompile(`\{[\s\S]*\}`)

// ExtractJSON returns the span from the first "{" to the last "}" of raw.
func ExtractJSON(raw string) (string, bool) {
	s := jsonObject.FindString(raw)
	return s, s != ""
}

// decode extracts the JSON object from raw, validates it and unmarshals it
// into v. It reports false, after logging why, when raw is unusable.
func decode(kind, raw string, validate func([]byte) []string, v any) bool {
	obj, ok := ExtractJSON(raw)
	if !ok {
		slog.Warn("discarding collaborator response", "kind", kind, "reason", "no JSON object")
		return false
	}
	if errs := validate([]byte(obj)); len(errs) > 0 {
		slog.Warn("discarding collaborator response", "kind", kind, "reason", strings.Join(errs, "; "))
		return false
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		slog.Warn("discarding collaborator response", "kind", kind, "reason", err)
		return false
	}
	return true
}
