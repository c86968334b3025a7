package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spboyer/churnkit/internal/artifact"
	"github.com/spboyer/churnkit/internal/cache"
	"github.com/spboyer/churnkit/internal/classifier"
	"github.com/spboyer/churnkit/internal/dataset"
	"github.com/spboyer/churnkit/internal/execution"
	"github.com/spboyer/churnkit/internal/mapper"
	"github.com/spboyer/churnkit/internal/model"
	"github.com/spboyer/churnkit/internal/projectconfig"
	"github.com/spboyer/churnkit/internal/recommend"
	"github.com/spboyer/churnkit/internal/registry"
	"github.com/spboyer/churnkit/internal/spinner"
	"github.com/spboyer/churnkit/internal/suggest"
	"github.com/spf13/cobra"
)

// startSpinner is replaced in tests.
var startSpinner = spinner.Start

// project is everything a command needs, built from .churnkit.yaml.
type project struct {
	cfg *projectconfig.ProjectConfig

	suggester mapper.Suggester
	narrator  recommend.Narrator

	closers []func(context.Context) error
}

func loadConfig(cmd *cobra.Command) (*projectconfig.ProjectConfig, error) {
	dir, err := cmd.Flags().GetString("project-dir")
	if err != nil || dir == "" {
		dir = "."
	}
	return projectconfig.Load(dir)
}

// openProject loads the config. With useLLM, or mapping.use_semantic set,
// the configured engine is started and the model collaborators are wired to
// it.
func openProject(cmd *cobra.Command, useLLM bool) (*project, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	p := &project{cfg: cfg, suggester: mapper.NoopSuggester{}, narrator: recommend.NoopNarrator{}}
	if !useLLM && (cfg.Mapping.UseSemantic == nil || !*cfg.Mapping.UseSemantic) {
		return p, nil
	}

	timeout, err := cfg.LLM.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	engine, err := newEngine(cfg.LLM)
	if err != nil {
		return nil, err
	}
	if engine == nil {
		slog.Warn("language model features requested but llm.engine is none")
		return p, nil
	}
	if err := engine.Initialize(cmd.Context()); err != nil {
		return nil, fmt.Errorf("starting %s engine: %w", cfg.LLM.Engine, err)
	}
	p.closers = append(p.closers, engine.Shutdown)

	client := suggest.New(engine, suggest.Options{
		Model:   cfg.LLM.Model,
		Timeout: timeout,
		Cache:   cache.New(cfg.CacheDir()),
	})
	p.suggester = suggest.NewColumnSuggester(client)
	p.narrator = suggest.NewNarrator(client)
	return p, nil
}

func newEngine(cfg projectconfig.LLMConfig) (execution.AgentEngine, error) {
	switch cfg.Engine {
	case "", "none":
		return nil, nil
	case "mock":
		return execution.NewMockEngine(cfg.Model), nil
	case "copilot-sdk":
		return execution.NewCopilotEngineBuilder(cfg.Model, nil).Build(), nil
	default:
		return nil, fmt.Errorf("unknown engine type: %s", cfg.Engine)
	}
}

// Close releases engines and stores in reverse order of opening.
func (p *project) Close(ctx context.Context) {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](ctx); err != nil {
			slog.Warn("closing project resource", "error", err)
		}
	}
	p.closers = nil
}

func (p *project) mapper() *mapper.Mapper {
	return mapper.New(mapper.WithSuggester(p.suggester))
}

// mapRequest builds the mapping request from config, overlaid by flags.
func (p *project) mapRequest(mode string, overrides map[string]string) (mapper.Request, error) {
	if mode == "" {
		mode = p.cfg.Mapping.Mode
	}
	m, err := mapper.ParseMode(mode)
	if err != nil {
		return mapper.Request{}, err
	}
	merged := make(map[string]string, len(p.cfg.Mapping.Overrides)+len(overrides))
	for k, v := range p.cfg.Mapping.Overrides {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return mapper.Request{
		Mode:        m,
		Overrides:   merged,
		UseSemantic: !mapper.IsNoop(p.suggester),
	}, nil
}

// artifacts opens the configured model store.
func (p *project) artifacts(ctx context.Context) (artifact.Store, error) {
	s := p.cfg.Storage
	switch s.Backend {
	case "", "file":
		return artifact.NewFileStore(p.cfg.Paths.Models)
	case "azblob":
		cfg := artifact.BlobConfig{Container: s.Container, AccountURL: s.AccountURL}
		if s.ConnectionStringEnv != "" {
			cfg.ConnectionString = os.Getenv(s.ConnectionStringEnv)
			if cfg.ConnectionString == "" {
				return nil, fmt.Errorf("environment variable %s is empty", s.ConnectionStringEnv)
			}
		}
		store, err := artifact.NewBlobStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureContainer(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", s.Backend)
	}
}

// registry opens the configured domain registry over artifacts.
func (p *project) registry(ctx context.Context, artifacts artifact.Store) (registry.Store, error) {
	r := p.cfg.Registry
	switch r.Backend {
	case "", "document":
		return registry.NewDocumentStore(artifacts), nil
	case "sqlite":
		if dir := filepath.Dir(r.DSN); !strings.HasPrefix(r.DSN, "file:") && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating registry directory: %w", err)
			}
		}
		store, err := registry.OpenSQL(ctx, r.DSN)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, func(context.Context) error { return store.Close() })
		return store, nil
	default:
		return nil, fmt.Errorf("unknown registry backend: %s", r.Backend)
	}
}

// modelOptions turns the model section into pipeline options.
func (p *project) modelOptions() []model.Option {
	m := p.cfg.Model
	opts := []model.Option{
		model.WithMapper(p.mapper()),
		model.WithTestSize(m.TestSize),
		model.WithCVFolds(m.CVFolds),
	}
	if m.Seed != nil {
		opts = append(opts, model.WithSeed(*m.Seed))
	}
	if m.Hyperparameters != nil {
		opts = append(opts, model.WithHyperparameters(m.Hyperparameters))
	}
	return opts
}

func (p *project) family(flag string) (classifier.Family, error) {
	if flag == "" {
		flag = p.cfg.Model.Family
	}
	return classifier.ParseFamily(flag)
}

func (p *project) threshold(flag float64) (float64, error) {
	if flag == 0 {
		flag = p.cfg.Model.Threshold
	}
	if flag <= 0 || flag >= 1 {
		return 0, errors.New("threshold must be between 0 and 1")
	}
	return flag, nil
}

// outputPath places relative output files under paths.output when a project
// file was found.
func (p *project) outputPath(path string) string {
	if path == "" || filepath.IsAbs(path) || p.cfg.Dir == "" {
		return path
	}
	return filepath.Join(p.cfg.Paths.Output, path)
}

// parseAssignments parses repeated col=value flags.
func parseAssignments(items []string) (map[string]string, error) {
	out := make(map[string]string, len(items))
	for _, item := range items {
		k, v, ok := strings.Cut(item, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			return nil, fmt.Errorf("invalid override %q: expected column=role", item)
		}
		out[k] = v
	}
	return out, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func saveCSV(path string, t *dataset.Table) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", path, err)
		}
	}
	return dataset.SaveCSV(path, t)
}
