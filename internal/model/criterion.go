package model

// Status is a per-criterion or overall checklist outcome
type Status string

const (
	StatusMet     Status = "MET"
	StatusNotMet  Status = "NOT_MET"
	StatusUnknown Status = "UNKNOWN" // The abstention outcome, not an error
)

// CriterionRule is one declarative eligibility rule from a payer policy.
// Predicate is a CEL expression over the field vocabulary. Rules are
// read-only configuration, loaded and compiled once per run.
type CriterionRule struct {
	ID             string      `yaml:"id" json:"id"`
	Label          string      `yaml:"label" json:"label"`
	Predicate      string      `yaml:"predicate" json:"predicate"`
	RequiredFields []FieldName `yaml:"required_fields" json:"required_fields"`
	MinEvidence    int         `yaml:"min_evidence" json:"min_evidence"`
}

// CriterionResult records one evaluated criterion with its evidence trail.
// Evidence lists only the facts that were load-bearing for the status;
// an UNKNOWN result cites nothing and explains itself in Rationale.
type CriterionResult struct {
	CriterionID string          `json:"id"`
	Label       string          `json:"label"`
	Status      Status          `json:"status"`
	Evidence    []ExtractedFact `json:"evidence,omitempty"`
	Rationale   string          `json:"rationale"`
}

// ChecklistVerdict is the ordered evaluation of a full criteria set.
// Constructed once per run, immutable thereafter.
type ChecklistVerdict struct {
	Criteria []CriterionResult `json:"criteria"`
	Overall  Status            `json:"overall_status"`
	Missing  []string          `json:"missing_evidence,omitempty"` // Field names that blocked criteria
}

// AggregateStatus applies the fixed tie-break order: a single NOT_MET is
// dispositive; otherwise any UNKNOWN blocks a positive recommendation.
func AggregateStatus(results []CriterionResult) Status {
	anyUnknown := false
	for _, r := range results {
		switch r.Status {
		case StatusNotMet:
			return StatusNotMet
		case StatusUnknown:
			anyUnknown = true
		}
	}
	if anyUnknown {
		return StatusUnknown
	}
	return StatusMet
}
