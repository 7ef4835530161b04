package checklist

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/patrace/patrace/internal/model"
)

// Load reads a criteria set from a YAML file. The file holds an
// ordered list of criterion records; order is evaluation and report order.
func Load(path string) ([]model.CriterionRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read criteria file: %w", err)
	}
	rules, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse criteria file %s: %w", path, err)
	}
	return rules, nil
}

// Parse decodes a YAML criteria list. Structural problems surface here;
// semantic problems (unknown fields, bad predicates) surface in NewEngine.
func Parse(data []byte) ([]model.CriterionRule, error) {
	var rules []model.CriterionRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("criteria list is empty")
	}
	return rules, nil
}

// LoadEngine loads a criteria file and compiles it, or falls back to the
// built-in demo criteria when path is empty. Compilation failures are
// fatal: they are configuration defects, not runtime conditions.
func LoadEngine(path string) (*Engine, error) {
	rules := DefaultRules()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	return NewEngine(rules)
}

// DefaultRules is the built-in demo criteria set for a lumbar spine MRI
// request. Demo configuration only — not for real clinical decisions.
func DefaultRules() []model.CriterionRule {
	return []model.CriterionRule{
		{
			ID:             "C1_CONSERVATIVE_CARE",
			Label:          "Conservative care meets the typical threshold (>=6 weeks), or a red-flag exception applies.",
			Predicate:      "conservative_care_weeks >= 6 || red_flags_present",
			RequiredFields: []model.FieldName{model.FieldConservativeCareWeeks},
			MinEvidence:    1,
		},
		{
			ID:             "C2_SYMPTOM_DURATION",
			Label:          "Symptom duration is documented in the note.",
			Predicate:      "symptoms_duration_weeks >= 0",
			RequiredFields: []model.FieldName{model.FieldSymptomsDurationWeeks},
			MinEvidence:    1,
		},
	}
}
