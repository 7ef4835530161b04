package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/patrace/patrace/internal/model"
)

func TestStore_RetrieveRanksByOverlap(t *testing.T) {
	store := NewStore([]model.PolicyChunk{
		{ChunkID: "about_dogs", Text: "Dogs are loyal companion animals."},
		{ChunkID: "care", Text: "Conservative care includes physical therapy for low back pain."},
		{ChunkID: "flags", Text: "Red flags include cauda equina and progressive deficits."},
	})

	chunks := store.Retrieve("conservative care physical therapy", 2)
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].ChunkID != "care" {
		t.Errorf("Expected best-matching chunk first, got %s", chunks[0].ChunkID)
	}
}

func TestStore_RetrieveZeroK(t *testing.T) {
	store := NewStore(DefaultChunks())
	if chunks := store.Retrieve("anything", 0); chunks != nil {
		t.Errorf("Expected nil for k=0, got %v", chunks)
	}
}

func TestStore_RetrieveKLargerThanStore(t *testing.T) {
	store := NewStore(DefaultChunks())
	chunks := store.Retrieve("conservative care", 100)
	if len(chunks) != len(DefaultChunks()) {
		t.Errorf("Expected all %d chunks, got %d", len(DefaultChunks()), len(chunks))
	}
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	content := `[{"chunk_id": "p1", "text": "Six weeks of conservative care required."}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(store.Chunks()) != 1 || store.Chunks()[0].ChunkID != "p1" {
		t.Errorf("Unexpected chunks: %v", store.Chunks())
	}
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := "- chunk_id: p1\n  text: Six weeks of conservative care required.\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(store.Chunks()) != 1 {
		t.Errorf("Expected 1 chunk, got %d", len(store.Chunks()))
	}
}

func TestLoad_RejectsIncompleteChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	if err := os.WriteFile(path, []byte(`[{"chunk_id": "p1"}]`), 0o644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected error for chunk without text")
	}
}

func TestDefaultChunks_RetrievableByProcedure(t *testing.T) {
	store := NewStore(DefaultChunks())
	chunks := store.Retrieve("MRI lumbar spine criteria conservative care red flags", 3)
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
}
