package llm

import (
	"fmt"
	"strings"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai", "deepinfra", "":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// APIKeyEnvVars lists the environment variables consulted for a provider's key,
// highest priority first
func APIKeyEnvVars(provider string) []string {
	switch strings.ToLower(provider) {
	case "anthropic", "claude":
		return []string{"AGRITRIPLES_API_KEY", "ANTHROPIC_API_KEY"}
	case "ollama":
		return nil
	default:
		return []string{"AGRITRIPLES_API_KEY", "API_KEY", "DEEPINFRA_API_KEY", "OPENAI_API_KEY"}
	}
}
