package checklist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/patrace/patrace/internal/model"
)

const criteriaYAML = `
- id: C1_CONSERVATIVE_CARE
  label: Conservative care threshold
  predicate: conservative_care_weeks >= 6 || red_flags_present
  required_fields: [conservative_care_weeks]
  min_evidence: 1
- id: C2_SYMPTOM_DURATION
  label: Symptom duration documented
  predicate: symptoms_duration_weeks >= 0
  required_fields: [symptoms_duration_weeks]
  min_evidence: 1
`

func writeCriteria(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "criteria.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write criteria file: %v", err)
	}
	return path
}

func TestParse_ValidCriteria(t *testing.T) {
	rules, err := Parse([]byte(criteriaYAML))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("Expected 2 rules, got %d", len(rules))
	}
	if rules[0].ID != "C1_CONSERVATIVE_CARE" {
		t.Errorf("Expected file order to be preserved, got %s first", rules[0].ID)
	}
	if rules[0].MinEvidence != 1 {
		t.Errorf("Expected min_evidence 1, got %d", rules[0].MinEvidence)
	}
	if len(rules[0].RequiredFields) != 1 || rules[0].RequiredFields[0] != model.FieldConservativeCareWeeks {
		t.Errorf("Unexpected required fields: %v", rules[0].RequiredFields)
	}
}

func TestParse_EmptyList(t *testing.T) {
	if _, err := Parse([]byte("[]")); err == nil {
		t.Error("Expected error for empty criteria list")
	}
}

func TestLoadEngine_FromFile(t *testing.T) {
	path := writeCriteria(t, criteriaYAML)
	en, err := LoadEngine(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(en.Rules()) != 2 {
		t.Errorf("Expected 2 compiled rules, got %d", len(en.Rules()))
	}
}

func TestLoadEngine_DefaultsWhenPathEmpty(t *testing.T) {
	en, err := LoadEngine("")
	if err != nil {
		t.Fatalf("Expected built-in rules to compile, got %v", err)
	}
	if len(en.Rules()) == 0 {
		t.Error("Expected built-in rules")
	}
}

func TestLoadEngine_MalformedFileIsFatal(t *testing.T) {
	path := writeCriteria(t, `
- id: C_TYPO
  label: References a misspelled field
  predicate: conservative_care_weeeks >= 6
  required_fields: [conservative_care_weeks]
`)
	_, err := LoadEngine(path)
	if err == nil {
		t.Fatal("Expected compile failure for unknown predicate variable")
	}
	if !strings.Contains(err.Error(), "C_TYPO") {
		t.Errorf("Expected error to name the criterion, got %v", err)
	}
}

func TestLoadEngine_MissingFile(t *testing.T) {
	if _, err := LoadEngine("/nonexistent/criteria.yaml"); err == nil {
		t.Error("Expected error for missing criteria file")
	}
}
