package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/agritriples/internal/model"
)

// Completer is the opaque text-completion capability every stage depends on
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Provider is a Completer backed by a concrete API
type Provider interface {
	Completer

	// Name returns the provider name
	Name() string

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Request is a single system + user completion call
type Request struct {
	// Model is the model to use (provider-specific); falls back to the provider default
	Model string

	// System is the system prompt
	System string

	// Prompt is the user prompt
	Prompt string

	// Options carries temperature, output cap, top_p and stop sequences
	Options model.CompletionOptions
}

// Response contains the completion output
type Response struct {
	// Content is the raw completion text
	Content string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// CompletionError reports a transport, auth or quota failure from a provider
type CompletionError struct {
	Provider   string
	Model      string
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s completion failed (model %s, status %d): %v", e.Provider, e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s completion failed (model %s): %v", e.Provider, e.Model, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the failure is worth a collaborator-level retry
func (e *CompletionError) IsRetryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// ErrEmptyCompletion is returned when a provider answers with no content
var ErrEmptyCompletion = errors.New("empty completion")

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific default)
	Model string

	// APIKey for OpenAI-compatible endpoints and Anthropic
	APIKey string

	// BaseURL for custom endpoints (DeepInfra, Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens used when a request does not set one
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		BaseURL:   model.DefaultBaseURL,
		Timeout:   60,
		MaxTokens: 2000,
	}
}

// ConfigFromModel converts the application config into a provider config
func ConfigFromModel(cfg *model.Config) Config {
	return Config{
		Provider:   cfg.LLM.Provider,
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Timeout:    cfg.LLM.Timeout,
		MaxTokens:  2000,
		HTTPProxy:  cfg.HTTP.HTTPProxy,
		HTTPSProxy: cfg.HTTP.HTTPSProxy,
		NoProxy:    cfg.HTTP.NoProxy,
	}
}

// maxTokens picks the request cap, then the provider cap, then a floor
func (c Config) maxTokens(requested int) int {
	if requested > 0 {
		return requested
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1000
}

// CompleterFunc adapts a function to the Completer interface
type CompleterFunc func(ctx context.Context, req Request) (*Response, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
