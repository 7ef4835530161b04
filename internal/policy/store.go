// Package policy holds the chunked payer policy text and a lightweight
// retrieval over it. Retrieved chunks feed the model-backed extraction
// prompt and travel with the packet for traceability.
package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/patrace/patrace/internal/model"
)

// Store is a read-only set of policy chunks loaded once per run
type Store struct {
	chunks []model.PolicyChunk
}

// NewStore creates a store over the given chunks
func NewStore(chunks []model.PolicyChunk) *Store {
	return &Store{chunks: chunks}
}

// Load reads a policy store from a JSON or YAML file (by extension)
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var chunks []model.PolicyChunk
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &chunks)
	default:
		err = json.Unmarshal(data, &chunks)
	}
	if err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	for i, c := range chunks {
		if c.ChunkID == "" || c.Text == "" {
			return nil, fmt.Errorf("policy file %s: chunk %d needs chunk_id and text", path, i)
		}
	}
	return NewStore(chunks), nil
}

// Chunks returns all chunks in file order
func (s *Store) Chunks() []model.PolicyChunk {
	return s.chunks
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(s string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range tokenRe.FindAllString(strings.ToLower(s), -1) {
		out[t] = true
	}
	return out
}

// Retrieve scores chunks by query-token overlap and returns the top k.
// Good enough for a small policy store; a ranked index can replace it
// without changing the interface.
func (s *Store) Retrieve(query string, k int) []model.PolicyChunk {
	if k <= 0 || len(s.chunks) == 0 {
		return nil
	}

	q := tokenize(query)
	type scored struct {
		score float64
		idx   int
	}
	ranked := make([]scored, 0, len(s.chunks))
	for i, ch := range s.chunks {
		t := tokenize(ch.Text)
		overlap := 0
		for tok := range q {
			if t[tok] {
				overlap++
			}
		}
		denom := len(q)
		if denom == 0 {
			denom = 1
		}
		ranked = append(ranked, scored{score: float64(overlap) / float64(denom), idx: i})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]model.PolicyChunk, 0, k)
	for _, r := range ranked[:k] {
		out = append(out, s.chunks[r.idx])
	}
	return out
}

// DefaultChunks is the built-in demo spine MRI policy excerpt, used when
// no policy file is configured.
func DefaultChunks() []model.PolicyChunk {
	return []model.PolicyChunk{
		{
			ChunkID: "spine_mri_001",
			Text: "Lumbar spine MRI criteria: low back pain persisting despite at least " +
				"6 weeks of conservative care such as physical therapy, NSAIDs, home " +
				"exercise programs, or chiropractic treatment.",
		},
		{
			ChunkID: "spine_mri_002",
			Text: "Red flags permitting immediate advanced imaging: cauda equina syndrome " +
				"(urinary retention, saddle anesthesia, bowel or bladder dysfunction), " +
				"progressive neurological deficit, history of cancer or malignancy, " +
				"suspected infection (fever, IV drug use, discitis, osteomyelitis), and " +
				"significant trauma or suspected fracture.",
		},
		{
			ChunkID: "spine_mri_003",
			Text: "Documentation requirements: symptom duration, conservative treatments " +
				"attempted with durations, and any red-flag findings must be documented " +
				"in the clinical note supporting the request.",
		},
	}
}
