// Package llm provides the model client adapter used by the discovery
// orchestrator. The provider is treated as a black box: prompt in, text out,
// with a best-effort structured-output hint.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/dstarenko/ideascope/internal/domain"
)

// ErrRequestFailed marks any transport or provider failure. Callers may
// retry the whole operation; no session state is mutated on failure.
var ErrRequestFailed = errors.New("model request failed")

// CompletionRequest is one call to the model.
type CompletionRequest struct {
	System   string
	Messages []domain.Message

	// WantStructured asks the provider for JSON output. It is a hint, not a
	// guarantee; callers must tolerate non-JSON text even when set.
	WantStructured bool

	// Model overrides the configured model for this call when non-empty.
	Model string

	// Temperature overrides the configured sampling temperature when non-nil.
	Temperature *float64
}

// Client is the provider-agnostic completion interface.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Config holds provider connection settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64

	// MinRequestGap enforces minimum spacing between requests to stay under
	// provider rate limits. Zero disables spacing.
	MinRequestGap time.Duration
}

// DefaultConfig returns sensible defaults for an OpenAI-compatible endpoint.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:        apiKey,
		BaseURL:       "https://api.openai.com/v1",
		Model:         "gpt-4o-mini",
		Timeout:       120 * time.Second,
		MaxTokens:     4096,
		Temperature:   0.7,
		MinRequestGap: 200 * time.Millisecond,
	}
}
