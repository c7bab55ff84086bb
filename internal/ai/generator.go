package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5-20250929"

// ErrNotConfigured is returned when a generator is built without credentials.
var ErrNotConfigured = errors.New("text generation not configured")

// Request is one call to the text-generation collaborator.
type Request struct {
	Operation    string // Label for logs and metrics
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int // 0 uses the generator default
}

// TextGenerator turns a prompt into free text. Implementations must honor
// ctx cancellation.
type TextGenerator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorConfig holds Anthropic generator configuration
type GeneratorConfig struct {
	APIKey    string // Anthropic API key (if empty, reads ANTHROPIC_API_KEY)
	Model     string // Model to use (default: DefaultModel)
	MaxTokens int    // Default max output tokens (default: 8192)
	Retry     RetryConfig
	Logger    *slog.Logger
}

// AnthropicGenerator implements TextGenerator on the Anthropic Messages API.
type AnthropicGenerator struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	retry     *retrier
	logger    *slog.Logger
}

// NewAnthropicGenerator creates a generator. It returns ErrNotConfigured when
// no API key is available.
func NewAnthropicGenerator(cfg GeneratorConfig) (*AnthropicGenerator, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set: %w", ErrNotConfigured)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.Timeout == 0 {
		retry = DefaultRetryConfig()
	}
	if err := retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	logger.Info("text generator initialized",
		"model", model,
		"max_concurrent", retry.MaxConcurrentCalls,
		"requests_per_second", retry.RequestsPerSecond,
		"circuit_breaker", retry.CircuitBreakerEnabled)

	return &AnthropicGenerator{
		client:    &client,
		model:     model,
		maxTokens: maxTokens,
		retry:     newRetrier(retry, logger),
		logger:    logger,
	}, nil
}

// Generate sends the request and concatenates the text blocks of the reply.
func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (string, error) {
	requestID := uuid.NewString()
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}
	operation := req.Operation
	if operation == "" {
		operation = "generate"
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	start := time.Now()
	var response *anthropic.Message
	err := g.retry.do(ctx, operation, func(attemptCtx context.Context) error {
		resp, apiErr := g.client.Messages.New(attemptCtx, params)
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		g.logger.Warn("text generation failed", "operation", operation, "request_id", requestID, "error", err)
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	g.logger.Debug("text generation completed",
		"operation", operation,
		"request_id", requestID,
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens,
		"duration", time.Since(start))
	return text.String(), nil
}

// HealthCheck reports ErrCircuitOpen while the circuit breaker is open.
func (g *AnthropicGenerator) HealthCheck() error {
	if g.retry.breaker != nil && g.retry.breaker.State() == CircuitOpen {
		return fmt.Errorf("text generator unavailable: %w", ErrCircuitOpen)
	}
	return nil
}
