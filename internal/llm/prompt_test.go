package llm

import (
	"strings"
	"testing"

	"github.com/patrace/patrace/internal/model"
)

func TestBuildPrompt_ContainsNoteAndPolicy(t *testing.T) {
	req := ExtractRequest{
		Source: model.SourceText{ID: "case_001", Text: "Back pain for 8 weeks."},
		Order:  map[string]string{"procedure": "MRI lumbar spine", "cpt": "72148"},
		Policy: []model.PolicyChunk{{ChunkID: "spine_mri_001", Text: "Conservative care required."}},
	}

	prompt := BuildPrompt(req)

	if !strings.Contains(prompt, "Back pain for 8 weeks.") {
		t.Error("Expected prompt to contain the note")
	}
	if !strings.Contains(prompt, "spine_mri_001") {
		t.Error("Expected prompt to contain the policy chunk")
	}
	if !strings.Contains(prompt, "MRI lumbar spine") {
		t.Error("Expected prompt to contain the order metadata")
	}
	if !strings.Contains(prompt, "VERBATIM") {
		t.Error("Expected prompt to state the verbatim-quote rule")
	}
	// Order keys are emitted sorted for prompt stability.
	if strings.Index(prompt, "cpt:") > strings.Index(prompt, "procedure:") {
		t.Error("Expected order keys in sorted order")
	}
}

func TestRefusalReason_DecisionRequests(t *testing.T) {
	tests := []struct {
		name   string
		note   string
		refuse bool
	}{
		{"should the patient", "Should the patient get an MRI?", true},
		{"recommend patient", "Please recommend the patient a treatment plan.", true},
		{"advise", "Can you advise the patient on next steps?", true},
		{"prescribe first person", "What should I prescribe here?", true},
		{"documentation note", "Patient completed 6 weeks of physical therapy.", false},
		{"should without patient", "The brace should fit snugly.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason := RefusalReason(tt.note)
			if tt.refuse && reason == "" {
				t.Error("Expected a refusal for a decision request")
			}
			if !tt.refuse && reason != "" {
				t.Errorf("Expected no refusal, got %q", reason)
			}
		})
	}
}
