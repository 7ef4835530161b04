package extract

import (
	"fmt"
	"sort"

	"github.com/patrace/patrace/internal/model"
)

// MergeFacts combines candidate sets from multiple backends into one list,
// dropping exact duplicates (same field, value and span). Everything else
// is kept: disagreement is for the validator and the cross-check to see,
// not for the merge to resolve.
func MergeFacts(sets ...[]model.ExtractedFact) []model.ExtractedFact {
	seen := make(map[string]bool)
	var out []model.ExtractedFact
	for _, set := range sets {
		for _, f := range set {
			key := fmt.Sprintf("%s|%v|%d|%d", f.Field, f.Value, f.Start, f.End)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, f)
		}
	}
	return out
}

// CrossCheck compares the baseline's presence/absence signal per field
// against a model backend's output. A discrepancy is recorded for the run
// log but never blocks validation: the baseline is a safety net, not a
// source of truth.
func CrossCheck(baseline, modelFacts []model.ExtractedFact) []string {
	basePresent := presentFields(baseline)
	modelPresent := presentFields(modelFacts)

	var notes []string
	for _, field := range model.KnownFields() {
		b, m := basePresent[field], modelPresent[field]
		switch {
		case b && !m:
			notes = append(notes, fmt.Sprintf("field %s: detected by baseline, missed by model backend", field))
		case m && !b:
			notes = append(notes, fmt.Sprintf("field %s: reported by model backend, not corroborated by baseline", field))
		}
	}
	sort.Strings(notes)
	return notes
}

func presentFields(facts []model.ExtractedFact) map[model.FieldName]bool {
	out := make(map[model.FieldName]bool)
	for _, f := range facts {
		out[f.Field] = true
	}
	return out
}
