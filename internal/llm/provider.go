// Package llm implements the model-backed extraction backend: pluggable
// providers that return candidate facts in the shared wire format, with
// every quote re-anchored against the note before anything downstream
// sees it.
package llm

import (
	"context"

	"github.com/patrace/patrace/internal/model"
)

// Provider defines the interface for extraction model providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// ExtractFacts asks the model for candidate facts from the note
	ExtractFacts(ctx context.Context, req ExtractRequest) (*ExtractResponse, error)

	// IsAvailable checks if the provider is configured and reachable
	IsAvailable(ctx context.Context) bool
}

// ExtractRequest is the input for model-backed extraction
type ExtractRequest struct {
	// Source is the clinic note the model extracts from
	Source model.SourceText

	// Order is the imaging-order metadata (string key/value pairs)
	Order map[string]string

	// Policy is the retrieved payer policy context for the prompt
	Policy []model.PolicyChunk

	// Model overrides the configured model name when non-empty
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// ExtractResponse carries the parsed and re-anchored candidate facts
type ExtractResponse struct {
	// Facts are the candidates that survived quote re-anchoring
	Facts []model.ExtractedFact

	// Dropped counts candidates whose quotes could not be located
	Dropped int

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds extraction provider configuration
type Config struct {
	// Provider name: "openai", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI
	APIKey string

	// BaseURL for custom endpoints (e.g. Ollama, OpenAI-compatible servers)
	BaseURL string

	// Timeout for API requests, in seconds
	Timeout int

	// MaxTokens for response generation
	MaxTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: 1024,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:  mc.Provider,
		Model:     mc.Model,
		APIKey:    mc.APIKey,
		BaseURL:   mc.BaseURL,
		Timeout:   mc.Timeout,
		MaxTokens: mc.MaxTokens,
	}
}
