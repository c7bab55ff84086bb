package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ApplyEnv overrides fields from environment variables
//
// Environment variables:
//   - GARE_DB_PATH: SQLite database path
//   - GARE_LISTEN_ADDR: HTTP listen address (default: 127.0.0.1:8080)
//   - GARE_TENANT: CLI tenant (default: default)
//   - GARE_AI_ENABLED: Enable text generation (default: true)
//   - GARE_AI_MODEL: Anthropic model name
//   - GARE_AI_MAX_TOKENS: Output token cap per call (default: 8192)
//   - GARE_AI_MAX_RETRIES: Retries per call (default: 3)
//   - GARE_AI_TIMEOUT_SECONDS: Per-attempt timeout (default: 90)
//   - GARE_AI_MAX_CONCURRENT: Concurrent calls, 0 for unlimited (default: 3)
//   - GARE_AI_REQUESTS_PER_SECOND: Request pacing, 0 for unlimited (default: 2)
//   - GARE_AI_CIRCUIT_BREAKER: Enable the circuit breaker (default: true)
//   - GARE_UPLOAD_MAX_MB: Upload body limit in MiB (default: 32)
//   - GARE_PREVIEW_CHARS: Preview characters kept per document (default: 4000)
//   - GARE_FALLBACK_DOCUMENTS: Per-document fallback checklist rows (default: 12)
//   - GARE_GUIDED_QUESTIONS: Guided questions per request (default: 6)
//   - GARE_GUIDED_CANDIDATES: Uncovered items offered to the generator (default: 12)
//
// Returns an error if any environment variable has an invalid value.
func (c *Config) ApplyEnv() error {
	if err := parseEnvString("GARE_DB_PATH", &c.DBPath); err != nil {
		return err
	}
	if err := parseEnvString("GARE_LISTEN_ADDR", &c.ListenAddr); err != nil {
		return err
	}
	if err := parseEnvString("GARE_TENANT", &c.Tenant); err != nil {
		return err
	}
	if err := parseEnvBool("GARE_AI_ENABLED", &c.AI.Enabled); err != nil {
		return err
	}
	if err := parseEnvString("GARE_AI_MODEL", &c.AI.Model); err != nil {
		return err
	}
	if err := parseEnvInt("GARE_AI_MAX_TOKENS", &c.AI.MaxTokens); err != nil {
		return err
	}
	if err := parseEnvInt("GARE_AI_MAX_RETRIES", &c.AI.MaxRetries); err != nil {
		return err
	}
	if err := parseEnvSeconds("GARE_AI_TIMEOUT_SECONDS", &c.AI.Timeout); err != nil {
		return err
	}
	if err := parseEnvInt("GARE_AI_MAX_CONCURRENT", &c.AI.MaxConcurrent); err != nil {
		return err
	}
	if err := parseEnvFloat("GARE_AI_REQUESTS_PER_SECOND", &c.AI.RequestsPerSecond); err != nil {
		return err
	}
	if err := parseEnvBool("GARE_AI_CIRCUIT_BREAKER", &c.AI.CircuitBreaker); err != nil {
		return err
	}

	mb := int(c.Uploads.MaxBytes >> 20)
	if err := parseEnvInt("GARE_UPLOAD_MAX_MB", &mb); err != nil {
		return err
	}
	c.Uploads.MaxBytes = int64(mb) << 20

	if err := parseEnvInt("GARE_PREVIEW_CHARS", &c.Uploads.PreviewChars); err != nil {
		return err
	}

	if err := parseEnvInt("GARE_FALLBACK_DOCUMENTS", &c.Limits.FallbackDocuments); err != nil {
		return err
	}
	if err := parseEnvInt("GARE_GUIDED_QUESTIONS", &c.Limits.GuidedQuestions); err != nil {
		return err
	}
	return parseEnvInt("GARE_GUIDED_CANDIDATES", &c.Limits.GuidedCandidates)
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvSeconds parses a whole number of seconds into a duration
func parseEnvSeconds(key string, dest *time.Duration) error {
	secs := int(*dest / time.Second)
	if err := parseEnvInt(key, &secs); err != nil {
		return err
	}
	*dest = time.Duration(secs) * time.Second
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}
