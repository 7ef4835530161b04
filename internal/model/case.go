package model

import "time"

// Case is one prior-authorization case: the clinic note plus the
// structured imaging order and administrative metadata around it.
type Case struct {
	CaseID             string            `json:"case_id" yaml:"case_id"`
	ExamRequest        map[string]string `json:"exam_request,omitempty" yaml:"exam_request,omitempty"`
	Patient            map[string]string `json:"patient,omitempty" yaml:"patient,omitempty"`
	RequestingProvider map[string]string `json:"requesting_provider,omitempty" yaml:"requesting_provider,omitempty"`
	NoteText           string            `json:"note_text" yaml:"note_text"`
}

// Source returns the case note as an immutable SourceText
func (c Case) Source() SourceText {
	return SourceText{ID: c.CaseID, Text: c.NoteText}
}

// PolicyChunk is one retrievable piece of payer policy text
type PolicyChunk struct {
	ChunkID string `json:"chunk_id" yaml:"chunk_id"`
	Text    string `json:"text" yaml:"text"`
}

// Bundle is the complete decision packet for one run: validated facts,
// the full audit trail (rejected facts included), the checklist verdict,
// and the policy chunks that informed extraction. Consumed by rendering.
type Bundle struct {
	Case            Case             `json:"case"`
	RetrievedPolicy []PolicyChunk    `json:"retrieved_policy,omitempty"`
	Facts           ValidatedFactSet `json:"facts"`
	Audit           []ExtractedFact  `json:"audit"`
	Verdict         ChecklistVerdict `json:"checklist"`
	ExtractionMode  string           `json:"extraction_mode"`
	Warnings        []string         `json:"warnings,omitempty"`      // Local recoveries (backend unavailable etc.)
	Discrepancies   []string         `json:"discrepancies,omitempty"` // Baseline vs model cross-check findings
	GeneratedAt     time.Time        `json:"generated_at"`
}
