package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/patrace/patrace/internal/model"
)

func TestOllamaProvider_ExtractFacts_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Model != "llama3.1" {
			t.Errorf("Expected model llama3.1, got %s", req.Model)
		}
		if req.Stream {
			t.Error("Expected streaming to be disabled")
		}

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:     "llama3.1",
			Response:  `{"facts":[{"field":"symptoms_duration_weeks","value":8,"quote":"8 weeks","span_start":18,"span_end":25}]}`,
			Done:      true,
			EvalCount: 42,
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL, Model: "llama3.1", Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.ExtractFacts(context.Background(), ExtractRequest{
		Source: model.SourceText{ID: "case_test", Text: "Low back pain for 8 weeks. Improving slowly."},
	})
	if err != nil {
		t.Fatalf("ExtractFacts failed: %v", err)
	}
	if len(resp.Facts) != 1 {
		t.Fatalf("Expected 1 fact, got %d", len(resp.Facts))
	}
	if resp.TokensUsed != 42 {
		t.Errorf("Expected 42 tokens, got %d", resp.TokensUsed)
	}
}

func TestOllamaProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL, Model: "missing", Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if _, err := provider.ExtractFacts(context.Background(), ExtractRequest{
		Source: model.SourceText{Text: "note"},
	}); err == nil {
		t.Error("Expected error for non-200 response")
	}
}

func TestOllamaProvider_RequiresModel(t *testing.T) {
	provider, err := NewOllamaProvider(Config{BaseURL: "http://localhost:11434"})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	if _, err := provider.ExtractFacts(context.Background(), ExtractRequest{
		Source: model.SourceText{Text: "note"},
	}); err == nil {
		t.Error("Expected error when model name is missing")
	}
}
