package llm

import (
	"context"

	"github.com/patrace/patrace/internal/extract"
	"github.com/patrace/patrace/internal/model"
)

// Backend adapts a Provider to the pipeline's Extractor contract. It is
// constructed per run with the policy context already retrieved, so a run
// holds no shared mutable state.
type Backend struct {
	provider  Provider
	policy    []model.PolicyChunk
	maxTokens int
}

// NewBackend wraps a provider for one run
func NewBackend(provider Provider, policy []model.PolicyChunk, maxTokens int) *Backend {
	return &Backend{
		provider:  provider,
		policy:    policy,
		maxTokens: maxTokens,
	}
}

// Name returns the underlying provider name
func (b *Backend) Name() string {
	return b.provider.Name()
}

// Extract runs model-backed extraction. A note phrased as a clinical
// decision request is refused outright; provider failures surface as
// UnavailableError for the pipeline to recover locally.
func (b *Backend) Extract(ctx context.Context, source model.SourceText, order map[string]string) ([]model.ExtractedFact, error) {
	if reason := RefusalReason(source.Text); reason != "" {
		return nil, &extract.UnavailableError{Backend: b.Name(), Reason: reason, Refused: true}
	}

	resp, err := b.provider.ExtractFacts(ctx, ExtractRequest{
		Source:    source,
		Order:     order,
		Policy:    b.policy,
		MaxTokens: b.maxTokens,
	})
	if err != nil {
		return nil, &extract.UnavailableError{Backend: b.Name(), Reason: err.Error()}
	}

	return resp.Facts, nil
}
