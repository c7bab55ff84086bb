// Package ai talks to the text-generation collaborator and turns its free-text
// output into checklist, question, answer and state updates. Every operation
// has a deterministic fallback, so an unavailable or misbehaving generator
// degrades quality, never availability.
package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Pre-compiled regular expressions for performance.
var (
	// Matches: ```json\n{...}\n```, ```{...}```, ``` json{...}```, etc.
	codeFenceStartRegex = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)
	codeFenceAnyRegex   = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	trailingCommaRegex     = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRegex       = regexp.MustCompile(`([{,]\s*)([a-zA-Z_$][a-zA-Z0-9_$]*)\s*:`)
	singleLineCommentRegex = regexp.MustCompile(`(?m)^\s*//.*$`)
	multiLineCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)

	objectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRegex  = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// ParseResult represents the result of a JSON parse operation.
// It uses a result-style pattern to avoid panics and provide detailed error info.
type ParseResult[T any] struct {
	Success      bool
	Data         T
	Error        string
	OriginalText string
}

// ParseOptions configures JSON parsing behavior. Nil pointers keep the
// defaults.
type ParseOptions struct {
	Context       string // Context for error messages
	EnableCleanup *bool  // Enable response cleanup strategies (default: true)
	LogErrors     *bool  // Log parsing errors (default: true)
	MaxInputSize  int    // Maximum input size in bytes (0 = default 10MB)
}

type parseOptions struct {
	context       string
	enableCleanup bool
	logErrors     bool
	maxInputSize  int
}

func resolveOptions(opts []ParseOptions) parseOptions {
	resolved := parseOptions{
		enableCleanup: true,
		logErrors:     true,
		maxInputSize:  10 * 1024 * 1024,
	}
	if len(opts) == 0 {
		return resolved
	}
	provided := opts[0]
	resolved.context = provided.Context
	if provided.EnableCleanup != nil {
		resolved.enableCleanup = *provided.EnableCleanup
	}
	if provided.LogErrors != nil {
		resolved.logErrors = *provided.LogErrors
	}
	if provided.MaxInputSize > 0 {
		resolved.maxInputSize = provided.MaxInputSize
	}
	return resolved
}

func boolPtr(b bool) *bool { return &b }

// Parse attempts to parse JSON with multiple fallback strategies.
// It handles common formatting issues in generated text like code fences,
// trailing commas and surrounding prose.
//
// Strategy sequence:
//  1. Direct JSON parse
//  2. Remove code fences and retry
//  3. Fix common JSON issues and retry
//  4. Extract JSON from mixed content and retry
func Parse[T any](text string, opts ...ParseOptions) ParseResult[T] {
	options := resolveOptions(opts)

	if len(text) > options.maxInputSize {
		return createError[T](
			fmt.Sprintf("input exceeds size limit (%d > %d bytes)", len(text), options.maxInputSize),
			truncate(text, 1000),
			options.context,
		)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return createError[T]("empty input", text, options.context)
	}

	// Strategy 1: Direct JSON parse
	result, err := tryDirectParse[T](trimmed)
	if err == nil {
		return ParseResult[T]{Success: true, Data: result, OriginalText: text}
	}

	if !options.enableCleanup {
		return createError[T](err.Error(), text, options.context)
	}

	if options.logErrors {
		slog.Debug("direct JSON parse failed, trying cleanup strategies",
			"error", err.Error(),
			"textPreview", truncate(text, 100),
			"context", options.context)
	}

	// Strategy 2: Remove code fences and try again
	withoutFences := removeCodeFences(trimmed)
	if withoutFences != trimmed {
		if result, err := tryDirectParse[T](withoutFences); err == nil {
			return ParseResult[T]{Success: true, Data: result, OriginalText: text}
		}
	}

	// Strategy 3: Fix common JSON issues
	cleaned := cleanupJSON(withoutFences)
	if result, err := tryDirectParse[T](cleaned); err == nil {
		return ParseResult[T]{Success: true, Data: result, OriginalText: text}
	}

	// Strategy 4: Extract JSON from mixed content
	if extracted := extractJSON(cleaned); extracted != "" {
		if result, err := tryDirectParse[T](extracted); err == nil {
			return ParseResult[T]{Success: true, Data: result, OriginalText: text}
		}
	}

	if options.logErrors {
		slog.Debug("all JSON parsing strategies failed",
			"textPreview", truncate(text, 100),
			"context", options.context)
	}
	return createError[T]("all JSON parsing strategies failed", text, options.context)
}

// ExtractObject pulls a JSON object out of generated text. The substring
// between the first '{' and the last '}' is parsed; if that fails the
// cleanup strategies of Parse are tried on it. A false return means no
// structured result was found.
func ExtractObject(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	candidate := text[start : end+1]

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err == nil && obj != nil {
		return obj, true
	}

	result := Parse[map[string]any](candidate, ParseOptions{Context: "extract object", LogErrors: boolPtr(false)})
	if !result.Success || result.Data == nil {
		return nil, false
	}
	return result.Data, true
}

// tryDirectParse attempts a direct JSON parse without any cleanup.
func tryDirectParse[T any](text string) (T, error) {
	var result T
	err := json.Unmarshal([]byte(text), &result)
	return result, err
}

// removeCodeFences strips markdown code fences from text.
func removeCodeFences(text string) string {
	cleaned := codeFenceStartRegex.ReplaceAllString(text, "$1")
	if cleaned == text {
		cleaned = codeFenceAnyRegex.ReplaceAllString(text, "$1")
	}

	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = strings.TrimPrefix(cleaned, "`")
		cleaned = strings.TrimSuffix(cleaned, "`")
	}
	return strings.TrimSpace(cleaned)
}

// cleanupJSON fixes common JSON formatting issues: trailing commas, unquoted
// identifier keys and whole-line or block comments.
//
// Single quotes are left alone: converting them would corrupt apostrophes,
// which Italian requirement text is full of.
func cleanupJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = singleLineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = multiLineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = trailingCommaRegex.ReplaceAllString(cleaned, "$1")
	cleaned = unquotedKeyRegex.ReplaceAllString(cleaned, `$1"$2":`)
	return strings.TrimSpace(cleaned)
}

// extractJSON tries to extract JSON objects or arrays from mixed content.
// Returns empty string if no JSON-like content is found.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '[':
			if match := arrayRegex.FindString(text); match != "" {
				return match
			}
		case '{':
			if match := objectRegex.FindString(text); match != "" {
				return match
			}
		}
	}

	if match := objectRegex.FindString(text); match != "" {
		return match
	}
	return arrayRegex.FindString(text)
}

// createError creates a failed ParseResult with error details.
func createError[T any](message, text, context string) ParseResult[T] {
	var zero T
	if context != "" {
		message = context + ": " + message
	}
	return ParseResult[T]{
		Success:      false,
		Data:         zero,
		Error:        message,
		OriginalText: text,
	}
}

// truncate truncates a string to maxLen bytes.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
