package eval

import (
	"fmt"
	"sort"

	"github.com/patrace/patrace/internal/model"
)

// Report holds the aggregate metrics for one evaluation run
type Report struct {
	Cases          int    `json:"cases"`
	RunErrors      int    `json:"run_errors"`
	ExtractionMode string `json:"extraction_mode,omitempty"`

	DecisionAccuracy Ratio            `json:"decision_accuracy"`
	FieldAccuracy    map[string]Ratio `json:"field_accuracy"`

	// ProvenanceValidity re-verifies every usable fact against the note
	// independently of the pipeline's own validator.
	ProvenanceValidity Ratio `json:"provenance_validity"`

	// AbstentionPrecision is the fraction of UNKNOWN verdicts that were
	// correct abstentions (gold is also UNKNOWN). A wrong MET costs more
	// than a wrong UNKNOWN, so this is tracked separately from accuracy.
	AbstentionPrecision Ratio `json:"abstention_precision"`

	Mismatches []string `json:"mismatches,omitempty"`
}

// Ratio is a hit count over a total, serialized with the computed fraction
type Ratio struct {
	Hits  int `json:"hits"`
	Total int `json:"total"`
}

// Value returns the fraction, or 1.0 for an empty denominator
func (r Ratio) Value() float64 {
	if r.Total == 0 {
		return 1.0
	}
	return float64(r.Hits) / float64(r.Total)
}

func (r *Ratio) record(hit bool) {
	r.Total++
	if hit {
		r.Hits++
	}
}

// Evaluate scores a set of completed bundles against gold labels. Bundles
// without a gold entry count toward provenance validity only; run errors
// are tallied but not scored.
func Evaluate(bundles []*model.Bundle, runErrors int, gold map[string]GoldCase) *Report {
	r := &Report{
		RunErrors: runErrors,
		FieldAccuracy: map[string]Ratio{
			string(model.FieldSymptomsDurationWeeks): {},
			string(model.FieldConservativeCareWeeks): {},
			string(model.FieldRedFlagsPresent):       {},
		},
	}

	for _, b := range bundles {
		r.Cases++
		if r.ExtractionMode == "" {
			r.ExtractionMode = b.ExtractionMode
		}
		r.scoreProvenance(b)

		g, labeled := gold[b.Case.CaseID]
		if !labeled {
			continue
		}
		r.scoreDecision(b, g)
		r.scoreFields(b, g)
	}

	sort.Strings(r.Mismatches)
	return r
}

func (r *Report) scoreDecision(b *model.Bundle, g GoldCase) {
	hit := b.Verdict.Overall == g.Overall
	r.DecisionAccuracy.record(hit)
	if !hit {
		r.Mismatches = append(r.Mismatches,
			fmt.Sprintf("%s: overall_status got %s, want %s", b.Case.CaseID, b.Verdict.Overall, g.Overall))
	}

	if b.Verdict.Overall == model.StatusUnknown {
		r.AbstentionPrecision.record(g.Overall == model.StatusUnknown)
	}
}

func (r *Report) scoreFields(b *model.Bundle, g GoldCase) {
	if g.SymptomsDurationWeeks != nil {
		r.scoreInt(b, model.FieldSymptomsDurationWeeks, *g.SymptomsDurationWeeks)
	}
	if g.ConservativeCareWeeks != nil {
		r.scoreInt(b, model.FieldConservativeCareWeeks, *g.ConservativeCareWeeks)
	}
	if g.RedFlagsPresent != nil {
		got := b.Facts.Has(model.FieldRedFlags)
		r.recordField(b, model.FieldRedFlagsPresent, got == *g.RedFlagsPresent,
			fmt.Sprintf("got %v, want %v", got, *g.RedFlagsPresent))
	}
}

func (r *Report) scoreInt(b *model.Bundle, field model.FieldName, want int64) {
	got, found := b.Facts.IntValue(field)
	hit := found && got == want
	detail := fmt.Sprintf("got %d, want %d", got, want)
	if !found {
		detail = fmt.Sprintf("got nothing, want %d", want)
	}
	r.recordField(b, field, hit, detail)
}

func (r *Report) recordField(b *model.Bundle, field model.FieldName, hit bool, detail string) {
	ratio := r.FieldAccuracy[string(field)]
	ratio.record(hit)
	r.FieldAccuracy[string(field)] = ratio
	if !hit {
		r.Mismatches = append(r.Mismatches,
			fmt.Sprintf("%s: %s %s", b.Case.CaseID, field, detail))
	}
}

// scoreProvenance re-checks every usable fact's quote against the note.
// This is deliberately independent of internal/provenance: a validator bug
// that let a fabricated quote through shows up here.
func (r *Report) scoreProvenance(b *model.Bundle) {
	source := b.Case.Source()
	for _, field := range b.Facts.Fields() {
		for _, f := range b.Facts[field] {
			if !f.Confidence.Usable() {
				continue
			}
			actual, ok := source.Slice(f.Start, f.End)
			valid := ok && actual == f.Quote
			r.ProvenanceValidity.record(valid)
			if !valid {
				r.Mismatches = append(r.Mismatches,
					fmt.Sprintf("%s: %s quote %q does not match note span [%d:%d]", b.Case.CaseID, f.Field, f.Quote, f.Start, f.End))
			}
		}
	}
}
