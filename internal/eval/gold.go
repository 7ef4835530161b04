// Package eval scores pipeline output against gold labels: decision
// accuracy, per-field accuracy, provenance validity, and abstention
// precision.
package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/patrace/patrace/internal/model"
)

// GoldCase is the labeled truth for one case. Pointer fields distinguish
// "the note genuinely lacks this" from "unlabeled": a nil pointer means
// the field is not scored, and a gold UNKNOWN overall marks a case where
// abstention is the correct outcome.
type GoldCase struct {
	CaseID                string       `json:"case_id" yaml:"case_id"`
	Overall               model.Status `json:"overall_status" yaml:"overall_status"`
	SymptomsDurationWeeks *int64       `json:"symptoms_duration_weeks,omitempty" yaml:"symptoms_duration_weeks,omitempty"`
	ConservativeCareWeeks *int64       `json:"conservative_care_weeks,omitempty" yaml:"conservative_care_weeks,omitempty"`
	RedFlagsPresent       *bool        `json:"red_flags_present,omitempty" yaml:"red_flags_present,omitempty"`
}

// LoadGold reads gold labels (JSON or YAML by extension) keyed by case ID
func LoadGold(path string) (map[string]GoldCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gold file: %w", err)
	}

	var cases []GoldCase
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cases)
	default:
		err = json.Unmarshal(data, &cases)
	}
	if err != nil {
		return nil, fmt.Errorf("parse gold file %s: %w", path, err)
	}

	gold := make(map[string]GoldCase, len(cases))
	for _, g := range cases {
		if g.CaseID == "" {
			return nil, fmt.Errorf("gold file %s: entry missing case_id", path)
		}
		if _, dup := gold[g.CaseID]; dup {
			return nil, fmt.Errorf("gold file %s: duplicate case_id %s", path, g.CaseID)
		}
		gold[g.CaseID] = g
	}
	return gold, nil
}
