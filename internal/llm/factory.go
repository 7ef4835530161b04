package llm

import (
	"fmt"
	"strings"
)

// NewProvider creates an extraction provider based on configuration.
// An empty provider name means model-backed extraction is disabled.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown extraction provider: %s (supported: openai, ollama)", config.Provider)
	}
}
