package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gareflow/gareflow/internal/ai"
	"github.com/gareflow/gareflow/internal/gara"
)

// FileName is the config file looked up inside the data directory.
const FileName = "config.yaml"

// Config holds gare configuration. Values come from defaults, then the YAML
// file, then GARE_* environment variables.
type Config struct {
	// DBPath is the SQLite database path
	// Default: "" (discover .gare/*.db)
	DBPath string `yaml:"db_path"`

	// ListenAddr is the HTTP listen address for `gare serve`
	// Default: "127.0.0.1:8080"
	ListenAddr string `yaml:"listen_addr"`

	// Tenant is used by the CLI when no --tenant flag is given
	// Default: "default"
	Tenant string `yaml:"tenant"`

	// Denylist replaces the default requirement denylist when non-empty.
	// Patterns are case-insensitive regular expressions.
	Denylist []string `yaml:"denylist"`

	AI      AIConfig      `yaml:"ai"`
	Uploads UploadsConfig `yaml:"uploads"`
	Inbox   InboxConfig   `yaml:"inbox"`
	Limits  LimitsConfig  `yaml:"limits"`
}

// AIConfig configures the text-generation collaborator.
type AIConfig struct {
	// Enabled turns generation on when an API key is available
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Model is the Anthropic model name
	// Default: ai.DefaultModel
	Model string `yaml:"model"`

	// MaxTokens caps output tokens per call
	// Default: 8192, Range: 256-64000
	MaxTokens int `yaml:"max_tokens"`

	MaxRetries        int           `yaml:"max_retries"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxConcurrent     int           `yaml:"max_concurrent"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	CircuitBreaker    bool          `yaml:"circuit_breaker"`
}

// UploadsConfig limits document uploads.
type UploadsConfig struct {
	// MaxBytes is the request body limit for uploads
	// Default: 32 MiB
	MaxBytes int64 `yaml:"max_bytes"`

	// PreviewChars is how much extracted text is kept per document
	// Default: 4000
	PreviewChars int `yaml:"preview_chars"`
}

// InboxConfig configures `gare documents import|watch`.
type InboxConfig struct {
	// Pattern is a doublestar glob relative to the watched directory
	// Default: "**/*.{pdf,docx,doc,txt,md,html,htm}"
	Pattern string `yaml:"pattern"`

	// Debounce coalesces bursts of file events
	// Default: 500ms
	Debounce time.Duration `yaml:"debounce"`
}

// LimitsConfig caps the checklist and guided Q&A fallbacks.
type LimitsConfig struct {
	// FallbackDocuments caps per-document rows of the fallback checklist
	// Default: 12
	FallbackDocuments int `yaml:"fallback_documents"`

	// GuidedQuestions caps the questions returned per request
	// Default: 6
	GuidedQuestions int `yaml:"guided_questions"`

	// GuidedCandidates caps the uncovered items offered to the generator
	// Default: 12, must be >= GuidedQuestions
	GuidedCandidates int `yaml:"guided_candidates"`
}

// Default returns the default configuration
func Default() Config {
	retry := ai.DefaultRetryConfig()
	return Config{
		ListenAddr: "127.0.0.1:8080",
		Tenant:     "default",
		AI: AIConfig{
			Enabled:           true,
			Model:             ai.DefaultModel,
			MaxTokens:         8192,
			MaxRetries:        retry.MaxRetries,
			Timeout:           retry.Timeout,
			MaxConcurrent:     retry.MaxConcurrentCalls,
			RequestsPerSecond: retry.RequestsPerSecond,
			CircuitBreaker:    retry.CircuitBreakerEnabled,
		},
		Uploads: UploadsConfig{
			MaxBytes:     32 << 20,
			PreviewChars: 4000,
		},
		Inbox: InboxConfig{
			Pattern:  "**/*.{pdf,docx,doc,txt,md,html,htm}",
			Debounce: 500 * time.Millisecond,
		},
		Limits: LimitsConfig{
			FallbackDocuments: gara.MaxFallbackDocuments,
			GuidedQuestions:   gara.MaxGuidedQuestions,
			GuidedCandidates:  gara.MaxGuidedCandidates,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment. An empty path reads .gare/config.yaml when it exists; an
// explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(".gare", FileName)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr must not be empty")
	}
	if c.Tenant == "" {
		return errors.New("tenant must not be empty")
	}
	if _, err := gara.NewDenylist(c.Denylist); err != nil {
		return err
	}

	if c.AI.MaxTokens < 256 || c.AI.MaxTokens > 64000 {
		return fmt.Errorf("ai.max_tokens must be between 256 and 64000 (got %d)", c.AI.MaxTokens)
	}
	if err := c.RetryConfig().Validate(); err != nil {
		return fmt.Errorf("ai: %w", err)
	}

	if c.Uploads.MaxBytes < 1<<20 {
		return fmt.Errorf("uploads.max_bytes must be at least 1 MiB (got %d)", c.Uploads.MaxBytes)
	}
	if c.Uploads.PreviewChars < 0 {
		return fmt.Errorf("uploads.preview_chars cannot be negative (got %d)", c.Uploads.PreviewChars)
	}

	if c.Inbox.Pattern == "" {
		return errors.New("inbox.pattern must not be empty")
	}
	if c.Inbox.Debounce < 0 {
		return fmt.Errorf("inbox.debounce cannot be negative (got %s)", c.Inbox.Debounce)
	}

	if c.Limits.FallbackDocuments < 1 {
		return fmt.Errorf("limits.fallback_documents must be at least 1 (got %d)", c.Limits.FallbackDocuments)
	}
	if c.Limits.GuidedQuestions < 1 {
		return fmt.Errorf("limits.guided_questions must be at least 1 (got %d)", c.Limits.GuidedQuestions)
	}
	if c.Limits.GuidedCandidates < c.Limits.GuidedQuestions {
		return fmt.Errorf("limits.guided_candidates (%d) must be >= limits.guided_questions (%d)",
			c.Limits.GuidedCandidates, c.Limits.GuidedQuestions)
	}
	return nil
}

// RetryConfig maps the AI section onto the generator's retry policy.
func (c Config) RetryConfig() ai.RetryConfig {
	retry := ai.DefaultRetryConfig()
	retry.MaxRetries = c.AI.MaxRetries
	retry.Timeout = c.AI.Timeout
	retry.MaxConcurrentCalls = c.AI.MaxConcurrent
	retry.RequestsPerSecond = c.AI.RequestsPerSecond
	retry.CircuitBreakerEnabled = c.AI.CircuitBreaker
	return retry
}

// GeneratorConfig returns the Anthropic generator settings. The API key is
// always taken from ANTHROPIC_API_KEY.
func (c Config) GeneratorConfig() ai.GeneratorConfig {
	return ai.GeneratorConfig{
		Model:     c.AI.Model,
		MaxTokens: c.AI.MaxTokens,
		Retry:     c.RetryConfig(),
	}
}

// Sanitizer returns the checklist sanitizer for the configured denylist and
// fallback cap.
func (c Config) Sanitizer() (gara.Sanitizer, error) {
	s := gara.Sanitizer{FallbackDocuments: c.Limits.FallbackDocuments}
	if len(c.Denylist) == 0 {
		return s, nil
	}
	deny, err := gara.NewDenylist(c.Denylist)
	if err != nil {
		return gara.Sanitizer{}, err
	}
	s.Denylist = deny
	return s, nil
}
