// Package projectconfig provides the ProjectConfig struct and loader for
// .churnkit.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spboyer/churnkit/internal/utils"
	"github.com/spboyer/churnkit/internal/validation"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the project configuration file.
const FileName = ".churnkit.yaml"

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultModelsDir = "models/"
	DefaultDataDir   = "data/"
	DefaultOutputDir = "output/"

	DefaultFamily    = "random_forest"
	DefaultTestSize  = 0.2
	DefaultCVFolds   = 5
	DefaultThreshold = 0.5
	DefaultSeed      = 42

	DefaultMappingMode = "hybrid"

	DefaultEngine      = "none"
	DefaultModel       = "gpt-4o-mini"
	DefaultLLMTimeout  = "2m"
	DefaultCacheDir    = ".churnkit-cache"
	DefaultStorage     = "file"
	DefaultRegistry    = "document"
	DefaultRegistryDSN = "registry.db"
)

// PathsConfig holds directory paths for models, input data and outputs.
type PathsConfig struct {
	Models string `yaml:"models,omitempty"`
	Data   string `yaml:"data,omitempty"`
	Output string `yaml:"output,omitempty"`
}

// ModelConfig holds training parameters.
type ModelConfig struct {
	Family          string         `yaml:"family,omitempty"`
	TestSize        float64        `yaml:"test_size,omitempty"`
	CVFolds         int            `yaml:"cv_folds,omitempty"`
	Threshold       float64        `yaml:"threshold,omitempty"`
	Seed            *int64         `yaml:"seed,omitempty"`
	Hyperparameters map[string]any `yaml:"hyperparameters,omitempty"`
}

// MappingConfig holds column mapping settings.
type MappingConfig struct {
	Mode        string            `yaml:"mode,omitempty"`
	UseSemantic *bool             `yaml:"use_semantic,omitempty"`
	Overrides   map[string]string `yaml:"overrides,omitempty"`
}

// ValidationConfig holds schema validation settings.
type ValidationConfig struct {
	Strict *bool `yaml:"strict,omitempty"`
}

// LLMConfig selects the language model engine behind the collaborators.
type LLMConfig struct {
	Engine  string `yaml:"engine,omitempty"`
	Model   string `yaml:"model,omitempty"`
	Timeout string `yaml:"timeout,omitempty"`
}

// TimeoutDuration parses Timeout, falling back to the default.
func (c LLMConfig) TimeoutDuration() (time.Duration, error) {
	raw := c.Timeout
	if raw == "" {
		raw = DefaultLLMTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("llm.timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("llm.timeout must be positive, got %s", raw)
	}
	return d, nil
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Dir     string `yaml:"dir,omitempty"`
}

// StorageConfig selects where model artifacts live.
type StorageConfig struct {
	Backend    string `yaml:"backend,omitempty"`
	Container  string `yaml:"container,omitempty"`
	AccountURL string `yaml:"account_url,omitempty"`
	// ConnectionStringEnv names the environment variable holding an Azure
	// Storage connection string. When unset, AccountURL is used with the
	// default Azure credential chain.
	ConnectionStringEnv string `yaml:"connection_string_env,omitempty"`
}

// RegistryConfig selects the domain registry backend.
type RegistryConfig struct {
	Backend string `yaml:"backend,omitempty"`
	DSN     string `yaml:"dsn,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .churnkit.yaml.
type ProjectConfig struct {
	Paths      PathsConfig      `yaml:"paths,omitempty"`
	Model      ModelConfig      `yaml:"model,omitempty"`
	Mapping    MappingConfig    `yaml:"mapping,omitempty"`
	Validation ValidationConfig `yaml:"validation,omitempty"`
	LLM        LLMConfig        `yaml:"llm,omitempty"`
	Cache      CacheConfig      `yaml:"cache,omitempty"`
	Storage    StorageConfig    `yaml:"storage,omitempty"`
	Registry   RegistryConfig   `yaml:"registry,omitempty"`

	// Dir is the directory of the loaded file, empty when defaults are used.
	Dir string `yaml:"-"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			Models: DefaultModelsDir,
			Data:   DefaultDataDir,
			Output: DefaultOutputDir,
		},
		Model: ModelConfig{
			Family:    DefaultFamily,
			TestSize:  DefaultTestSize,
			CVFolds:   DefaultCVFolds,
			Threshold: DefaultThreshold,
			Seed:      utils.Ptr(int64(DefaultSeed)),
		},
		Mapping: MappingConfig{
			Mode:        DefaultMappingMode,
			UseSemantic: utils.Ptr(false),
		},
		Validation: ValidationConfig{
			Strict: utils.Ptr(false),
		},
		LLM: LLMConfig{
			Engine:  DefaultEngine,
			Model:   DefaultModel,
			Timeout: DefaultLLMTimeout,
		},
		Cache: CacheConfig{
			Enabled: utils.Ptr(false),
			Dir:     DefaultCacheDir,
		},
		Storage: StorageConfig{
			Backend: DefaultStorage,
		},
		Registry: RegistryConfig{
			Backend: DefaultRegistry,
			DSN:     DefaultRegistryDSN,
		},
	}
}

// Load finds .churnkit.yaml by walking up from startDir (max 10 levels),
// validates and unmarshals it, and fills in missing fields with defaults.
// Relative paths in the file are resolved against the file's directory.
// If no config file is found, returns defaults with a nil error.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	path, data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	if errs := validation.ValidateConfigBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("invalid %s: %s", path, strings.Join(errs, "; "))
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	mergeConfig(cfg, &fileCfg)
	cfg.Dir = filepath.Dir(path)
	cfg.resolvePaths()
	return cfg, nil
}

// findConfigFile walks up from dir looking for .churnkit.yaml (max 10
// levels). Returns os.ErrNotExist if no config file is found.
func findConfigFile(dir string) (string, []byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return p, data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return "", nil, os.ErrNotExist
}

func (c *ProjectConfig) resolvePaths() {
	c.Paths.Models = utils.ResolvePath(c.Paths.Models, c.Dir)
	c.Paths.Data = utils.ResolvePath(c.Paths.Data, c.Dir)
	c.Paths.Output = utils.ResolvePath(c.Paths.Output, c.Dir)
	c.Cache.Dir = utils.ResolvePath(c.Cache.Dir, c.Dir)
	if c.Registry.Backend == "sqlite" && !strings.HasPrefix(c.Registry.DSN, "file:") {
		c.Registry.DSN = utils.ResolvePath(c.Registry.DSN, c.Dir)
	}
}

// CacheDir returns the cache directory, or "" when caching is disabled.
func (c *ProjectConfig) CacheDir() string {
	if c.Cache.Enabled == nil || !*c.Cache.Enabled {
		return ""
	}
	return c.Cache.Dir
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	// Paths
	if src.Paths.Models != "" {
		dst.Paths.Models = src.Paths.Models
	}
	if src.Paths.Data != "" {
		dst.Paths.Data = src.Paths.Data
	}
	if src.Paths.Output != "" {
		dst.Paths.Output = src.Paths.Output
	}

	// Model
	if src.Model.Family != "" {
		dst.Model.Family = src.Model.Family
	}
	if src.Model.TestSize != 0 {
		dst.Model.TestSize = src.Model.TestSize
	}
	if src.Model.CVFolds != 0 {
		dst.Model.CVFolds = src.Model.CVFolds
	}
	if src.Model.Threshold != 0 {
		dst.Model.Threshold = src.Model.Threshold
	}
	if src.Model.Seed != nil {
		dst.Model.Seed = src.Model.Seed
	}
	if src.Model.Hyperparameters != nil {
		dst.Model.Hyperparameters = src.Model.Hyperparameters
	}

	// Mapping
	if src.Mapping.Mode != "" {
		dst.Mapping.Mode = src.Mapping.Mode
	}
	if src.Mapping.UseSemantic != nil {
		dst.Mapping.UseSemantic = src.Mapping.UseSemantic
	}
	if src.Mapping.Overrides != nil {
		dst.Mapping.Overrides = src.Mapping.Overrides
	}

	// Validation
	if src.Validation.Strict != nil {
		dst.Validation.Strict = src.Validation.Strict
	}

	// LLM
	if src.LLM.Engine != "" {
		dst.LLM.Engine = src.LLM.Engine
	}
	if src.LLM.Model != "" {
		dst.LLM.Model = src.LLM.Model
	}
	if src.LLM.Timeout != "" {
		dst.LLM.Timeout = src.LLM.Timeout
	}

	// Cache
	if src.Cache.Enabled != nil {
		dst.Cache.Enabled = src.Cache.Enabled
	}
	if src.Cache.Dir != "" {
		dst.Cache.Dir = src.Cache.Dir
	}

	// Storage
	if src.Storage.Backend != "" {
		dst.Storage.Backend = src.Storage.Backend
	}
	if src.Storage.Container != "" {
		dst.Storage.Container = src.Storage.Container
	}
	if src.Storage.AccountURL != "" {
		dst.Storage.AccountURL = src.Storage.AccountURL
	}
	if src.Storage.ConnectionStringEnv != "" {
		dst.Storage.ConnectionStringEnv = src.Storage.ConnectionStringEnv
	}

	// Registry
	if src.Registry.Backend != "" {
		dst.Registry.Backend = src.Registry.Backend
	}
	if src.Registry.DSN != "" {
		dst.Registry.DSN = src.Registry.DSN
	}
}
