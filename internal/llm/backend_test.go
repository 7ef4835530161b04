package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/patrace/patrace/internal/extract"
	"github.com/patrace/patrace/internal/model"
)

// fakeProvider returns canned facts or a canned error
type fakeProvider struct {
	facts []model.ExtractedFact
	err   error
	calls int
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) ExtractFacts(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &ExtractResponse{Facts: p.facts, Model: "fake-model"}, nil
}

func (p *fakeProvider) IsAvailable(ctx context.Context) bool { return true }

func TestBackend_PassesFactsThrough(t *testing.T) {
	want := []model.ExtractedFact{{Field: model.FieldTreatments, Value: "pt", Quote: "physical therapy"}}
	provider := &fakeProvider{facts: want}
	backend := NewBackend(provider, nil, 512)

	facts, err := backend.Extract(context.Background(), model.SourceText{Text: "physical therapy"}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(facts) != 1 {
		t.Errorf("Expected 1 fact, got %d", len(facts))
	}
	if provider.calls != 1 {
		t.Errorf("Expected 1 provider call, got %d", provider.calls)
	}
}

func TestBackend_RefusesDecisionRequests(t *testing.T) {
	provider := &fakeProvider{}
	backend := NewBackend(provider, nil, 512)

	_, err := backend.Extract(context.Background(), model.SourceText{Text: "Should the patient get an MRI?"}, nil)
	var unavail *extract.UnavailableError
	if !errors.As(err, &unavail) {
		t.Fatalf("Expected UnavailableError, got %v", err)
	}
	if !unavail.Refused {
		t.Error("Expected the error to be marked as a refusal")
	}
	if provider.calls != 0 {
		t.Error("A refused note must never reach the provider")
	}
}

func TestBackend_WrapsProviderErrors(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("connection refused")}
	backend := NewBackend(provider, nil, 512)

	_, err := backend.Extract(context.Background(), model.SourceText{Text: "Back pain for 8 weeks."}, nil)
	var unavail *extract.UnavailableError
	if !errors.As(err, &unavail) {
		t.Fatalf("Expected UnavailableError, got %v", err)
	}
	if unavail.Refused {
		t.Error("A transport failure is not a refusal")
	}
	if unavail.Backend != "fake" {
		t.Errorf("Expected backend name in error, got %q", unavail.Backend)
	}
}

func TestNewProvider(t *testing.T) {
	if p, err := NewProvider(Config{Provider: ""}); err != nil || p != nil {
		t.Errorf("Expected disabled provider to be (nil, nil), got (%v, %v)", p, err)
	}
	if _, err := NewProvider(Config{Provider: "openai", APIKey: "test-key"}); err != nil {
		t.Errorf("Expected openai provider to build, got %v", err)
	}
	if _, err := NewProvider(Config{Provider: "ollama", Model: "llama3.1"}); err != nil {
		t.Errorf("Expected ollama provider to build, got %v", err)
	}
	if _, err := NewProvider(Config{Provider: "bard"}); err == nil {
		t.Error("Expected error for unsupported provider")
	}
}
