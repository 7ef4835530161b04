package extract

import (
	"context"
	"testing"

	"github.com/patrace/patrace/internal/model"
)

func extractFrom(t *testing.T, note string) []model.ExtractedFact {
	t.Helper()
	e := NewBaselineExtractor()
	facts, err := e.Extract(context.Background(), model.SourceText{ID: "test", Text: note}, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return facts
}

func factsFor(facts []model.ExtractedFact, field model.FieldName) []model.ExtractedFact {
	var out []model.ExtractedFact
	for _, f := range facts {
		if f.Field == field {
			out = append(out, f)
		}
	}
	return out
}

func TestBaselineExtractor_SymptomDuration(t *testing.T) {
	tests := []struct {
		name string
		note string
		want int64
	}{
		{"digit weeks", "Low back pain for 8 weeks without relief.", 8},
		{"hyphenated week", "Patient presents with a 6-week history of pain.", 6},
		{"digit months", "Pain ongoing for 3 months now.", 12},
		{"word number weeks", "Symptoms started two weeks ago.", 2},
		{"word number months", "Back pain for two months.", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := factsFor(extractFrom(t, tt.note), model.FieldSymptomsDurationWeeks)
			if len(facts) != 1 {
				t.Fatalf("Expected 1 duration fact, got %d", len(facts))
			}
			if got := facts[0].Value.(int64); got != tt.want {
				t.Errorf("Expected %d weeks, got %d", tt.want, got)
			}
		})
	}
}

func TestBaselineExtractor_NoDuration(t *testing.T) {
	facts := factsFor(extractFrom(t, "Chronic low back pain, onset unclear."), model.FieldSymptomsDurationWeeks)
	if len(facts) != 0 {
		t.Errorf("Expected no duration facts, got %d", len(facts))
	}
}

func TestBaselineExtractor_ConservativeCare(t *testing.T) {
	tests := []struct {
		name string
		note string
		want int64
	}{
		{"leading duration", "Completed 8 weeks of physical therapy.", 8},
		{"trailing duration", "Tried physical therapy for 6 weeks.", 6},
		{"months convert", "2 months of chiropractic treatment.", 8},
		{"word number", "Home exercises for two weeks.", 2},
		{"max wins", "Did 3 weeks of chiropractic and physical therapy for 10 weeks.", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := factsFor(extractFrom(t, tt.note), model.FieldConservativeCareWeeks)
			if len(facts) != 1 {
				t.Fatalf("Expected 1 conservative care fact, got %d", len(facts))
			}
			if got := facts[0].Value.(int64); got != tt.want {
				t.Errorf("Expected %d weeks, got %d", tt.want, got)
			}
		})
	}
}

func TestBaselineExtractor_CareDurationNotFromBareMention(t *testing.T) {
	// A treatment mention without a duration must not produce a care duration.
	facts := factsFor(extractFrom(t, "Patient does physical therapy."), model.FieldConservativeCareWeeks)
	if len(facts) != 0 {
		t.Errorf("Expected no conservative care facts, got %d", len(facts))
	}
}

func TestBaselineExtractor_Treatments(t *testing.T) {
	note := "Completed physical therapy, takes ibuprofen daily, and follows a home exercise program."
	facts := factsFor(extractFrom(t, note), model.FieldTreatments)

	got := make(map[string]bool)
	for _, f := range facts {
		got[f.Value.(string)] = true
	}
	for _, want := range []string{"pt", "nsaids", "home_exercise"} {
		if !got[want] {
			t.Errorf("Expected treatment %q to be detected, got %v", want, got)
		}
	}
	if got["chiropractic"] {
		t.Error("Did not expect chiropractic to be detected")
	}
}

func TestBaselineExtractor_TreatmentAbbreviationBoundary(t *testing.T) {
	// "pt" must match only as a standalone word, never inside another word.
	facts := factsFor(extractFrom(t, "Symptoms prompt further evaluation."), model.FieldTreatments)
	if len(facts) != 0 {
		t.Errorf("Expected no treatments, got %v", facts)
	}

	facts = factsFor(extractFrom(t, "PT twice weekly."), model.FieldTreatments)
	if len(facts) != 1 || facts[0].Value.(string) != "pt" {
		t.Errorf("Expected standalone PT to be detected, got %v", facts)
	}
}

func TestBaselineExtractor_RedFlags(t *testing.T) {
	note := "New urinary retention and saddle anesthesia. History of cancer."
	facts := factsFor(extractFrom(t, note), model.FieldRedFlags)

	got := make(map[string]bool)
	for _, f := range facts {
		got[f.Value.(string)] = true
	}
	if !got["cauda_equina"] {
		t.Errorf("Expected cauda_equina, got %v", got)
	}
	if !got["cancer"] {
		t.Errorf("Expected cancer, got %v", got)
	}
}

func TestBaselineExtractor_NegatedRedFlags(t *testing.T) {
	tests := []struct {
		name string
		note string
	}{
		{"denies", "Patient denies fever or chills."},
		{"no evidence of", "There is no evidence of malignancy."},
		{"negative for", "Review of systems negative for urinary retention."},
		{"ruled out", "Imaging has ruled out fracture."},
		{"without", "Presents without fever."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := factsFor(extractFrom(t, tt.note), model.FieldRedFlags)
			if len(facts) != 0 {
				t.Errorf("Expected negated finding to be skipped, got %v", facts)
			}
		})
	}
}

func TestBaselineExtractor_NegationThenAffirmation(t *testing.T) {
	// A later non-negated mention of the same category still counts.
	note := "Denies fever at home. In clinic today: fever of 38.9."
	facts := factsFor(extractFrom(t, note), model.FieldRedFlags)
	if len(facts) != 1 || facts[0].Value.(string) != "infection" {
		t.Fatalf("Expected infection flag from the second mention, got %v", facts)
	}
	if facts[0].Quote != "fever" {
		t.Errorf("Expected quote %q, got %q", "fever", facts[0].Quote)
	}
}

func TestBaselineExtractor_SpansMatchQuotes(t *testing.T) {
	note := "Back pain for 8 weeks. Completed 6 weeks of physical therapy. New foot drop noted."
	source := model.SourceText{ID: "test", Text: note}
	facts := extractFrom(t, note)

	if len(facts) == 0 {
		t.Fatal("Expected facts from the note")
	}
	for _, f := range facts {
		actual, ok := source.Slice(f.Start, f.End)
		if !ok {
			t.Errorf("Fact %s has out-of-bounds span [%d:%d)", f.Field, f.Start, f.End)
			continue
		}
		if actual != f.Quote {
			t.Errorf("Fact %s quote %q does not match span text %q", f.Field, f.Quote, actual)
		}
		if f.Confidence != model.ConfidenceHigh {
			t.Errorf("Expected high confidence from baseline, got %s", f.Confidence)
		}
		if f.Backend != BaselineName {
			t.Errorf("Expected backend %q, got %q", BaselineName, f.Backend)
		}
	}
}

func TestBaselineExtractor_AgeIsNotDuration(t *testing.T) {
	// "45-year-old" must not be read as a duration. Only week/month units count.
	facts := factsFor(extractFrom(t, "45-year-old patient with chronic pain."), model.FieldSymptomsDurationWeeks)
	if len(facts) != 0 {
		t.Errorf("Expected age to be ignored, got %v", facts)
	}
}
