package llm

import (
	"fmt"
	"strings"
	"testing"

	"github.com/patrace/patrace/internal/model"
)

const parseNote = "Low back pain for 8 weeks. Completed 6 weeks of Physical Therapy. Denies fever."

func parseSource() model.SourceText {
	return model.SourceText{ID: "case_test", Text: parseNote}
}

func TestParseFacts_ExactSpan(t *testing.T) {
	start := strings.Index(parseNote, "8 weeks")
	raw := fmt.Sprintf(`{"facts":[{"field":"symptoms_duration_weeks","value":8,"quote":"8 weeks","span_start":%d,"span_end":%d}]}`,
		start, start+len("8 weeks"))

	facts, dropped, err := ParseFacts(raw, parseSource(), "openai")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if dropped != 0 {
		t.Errorf("Expected nothing dropped, got %d", dropped)
	}
	if len(facts) != 1 {
		t.Fatalf("Expected 1 fact, got %d", len(facts))
	}
	f := facts[0]
	if f.Confidence != model.ConfidenceHigh {
		t.Errorf("Expected high confidence for exact span, got %s", f.Confidence)
	}
	if f.Value.(int64) != 8 {
		t.Errorf("Expected value 8, got %v", f.Value)
	}
	if f.Backend != "openai" {
		t.Errorf("Expected backend openai, got %s", f.Backend)
	}
}

func TestParseFacts_MarkdownFence(t *testing.T) {
	raw := "Here are the facts:\n```json\n{\"facts\":[{\"field\":\"symptoms_duration_weeks\",\"value\":8,\"quote\":\"8 weeks\",\"span_start\":0,\"span_end\":7}]}\n```"

	facts, _, err := ParseFacts(raw, parseSource(), "ollama")
	if err != nil {
		t.Fatalf("Expected fenced JSON to parse, got %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("Expected 1 fact, got %d", len(facts))
	}
}

func TestParseFacts_WrongSpanReanchored(t *testing.T) {
	// Off-by-some offsets with an exact quote: the parser relocates it.
	raw := `{"facts":[{"field":"symptoms_duration_weeks","value":8,"quote":"8 weeks","span_start":0,"span_end":7}]}`

	facts, _, err := ParseFacts(raw, parseSource(), "openai")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("Expected 1 fact, got %d", len(facts))
	}
	f := facts[0]
	want := strings.Index(parseNote, "8 weeks")
	if f.Start != want {
		t.Errorf("Expected re-anchored start %d, got %d", want, f.Start)
	}
	if f.Confidence != model.ConfidenceHigh {
		t.Errorf("Exact match elsewhere keeps high confidence, got %s", f.Confidence)
	}
	if parseNote[f.Start:f.End] != f.Quote {
		t.Errorf("Re-anchored span %q does not match quote %q", parseNote[f.Start:f.End], f.Quote)
	}
}

func TestParseFacts_CaseFoldReanchorIsLowConfidence(t *testing.T) {
	// The note says "Physical Therapy"; the model lowercased it.
	raw := `{"facts":[{"field":"treatments","value":"pt","quote":"physical therapy","span_start":0,"span_end":16}]}`

	facts, _, err := ParseFacts(raw, parseSource(), "openai")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("Expected 1 fact, got %d", len(facts))
	}
	f := facts[0]
	if f.Confidence != model.ConfidenceLow {
		t.Errorf("Expected low confidence for case-folded match, got %s", f.Confidence)
	}
	if f.Quote != "Physical Therapy" {
		t.Errorf("Expected quote corrected to note casing, got %q", f.Quote)
	}
	if parseNote[f.Start:f.End] != f.Quote {
		t.Error("Corrected quote must verify exactly against the note")
	}
}

func TestParseFacts_FabricatedQuoteDropped(t *testing.T) {
	raw := `{"facts":[{"field":"symptoms_duration_weeks","value":12,"quote":"12 weeks of pain","span_start":0,"span_end":16}]}`

	facts, dropped, err := ParseFacts(raw, parseSource(), "openai")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(facts) != 0 || dropped != 1 {
		t.Errorf("Expected fabricated quote to be dropped, got %d facts, %d dropped", len(facts), dropped)
	}
}

func TestParseFacts_UnknownFieldDropped(t *testing.T) {
	raw := `{"facts":[
		{"field":"patient_age","value":45,"quote":"8 weeks","span_start":18,"span_end":25},
		{"field":"red_flags_present","value":true,"quote":"8 weeks","span_start":18,"span_end":25}
	]}`

	facts, dropped, err := ParseFacts(raw, parseSource(), "openai")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(facts) != 0 || dropped != 2 {
		t.Errorf("Expected unknown and derived fields to be dropped, got %d facts, %d dropped", len(facts), dropped)
	}
}

func TestParseFacts_UnknownListValueDropped(t *testing.T) {
	raw := `{"facts":[{"field":"treatments","value":"acupuncture","quote":"Physical Therapy","span_start":0,"span_end":16}]}`

	facts, dropped, _ := ParseFacts(raw, parseSource(), "openai")
	if len(facts) != 0 || dropped != 1 {
		t.Errorf("Expected out-of-vocabulary value to be dropped, got %d facts, %d dropped", len(facts), dropped)
	}
}

func TestParseFacts_ShortQuoteDropped(t *testing.T) {
	// "fever" is one short word with no digit: too weak to anchor.
	raw := `{"facts":[{"field":"red_flags","value":"infection","quote":"fever","span_start":0,"span_end":5}]}`

	facts, dropped, _ := ParseFacts(raw, parseSource(), "openai")
	if len(facts) != 0 || dropped != 1 {
		t.Errorf("Expected short quote to be dropped, got %d facts, %d dropped", len(facts), dropped)
	}
}

func TestParseFacts_DisplayNameNormalized(t *testing.T) {
	raw := `{"facts":[{"field":"treatments","value":"Physical Therapy","quote":"Physical Therapy","span_start":49,"span_end":65}]}`

	facts, _, err := ParseFacts(raw, parseSource(), "openai")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("Expected 1 fact, got %d", len(facts))
	}
	if facts[0].Value.(string) != "pt" {
		t.Errorf("Expected display name normalized to key pt, got %v", facts[0].Value)
	}
}

func TestParseFacts_NoJSON(t *testing.T) {
	if _, _, err := ParseFacts("I cannot help with that.", parseSource(), "openai"); err == nil {
		t.Error("Expected error when output has no JSON object")
	}
}

func TestParseFacts_MalformedJSON(t *testing.T) {
	if _, _, err := ParseFacts(`{"facts": [}`, parseSource(), "openai"); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}
