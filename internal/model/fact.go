package model

import "sort"

// FieldName identifies an extractable field from the fixed vocabulary
type FieldName string

const (
	FieldSymptomsDurationWeeks FieldName = "symptoms_duration_weeks" // Duration of symptoms, in weeks
	FieldConservativeCareWeeks FieldName = "conservative_care_weeks" // Longest conservative treatment duration, in weeks
	FieldTreatments            FieldName = "treatments"              // Treatment category keys (pt, nsaids, ...)
	FieldRedFlags              FieldName = "red_flags"               // Red flag category keys (cauda_equina, ...)
	FieldRedFlagsPresent       FieldName = "red_flags_present"       // Derived: any red flag detected
)

// KnownFields returns the full field vocabulary
func KnownFields() []FieldName {
	return []FieldName{
		FieldSymptomsDurationWeeks,
		FieldConservativeCareWeeks,
		FieldTreatments,
		FieldRedFlags,
		FieldRedFlagsPresent,
	}
}

// IsKnownField reports whether f belongs to the field vocabulary
func IsKnownField(f FieldName) bool {
	for _, k := range KnownFields() {
		if k == f {
			return true
		}
	}
	return false
}

// IsListField reports whether the field holds multiple values (one fact per value)
func IsListField(f FieldName) bool {
	return f == FieldTreatments || f == FieldRedFlags
}

// Confidence is the per-fact trust tag produced by provenance validation
type Confidence string

const (
	ConfidenceHigh     Confidence = "high"
	ConfidenceLow      Confidence = "low"
	ConfidenceRejected Confidence = "rejected"
)

// Usable reports whether a fact at this confidence may support a criterion decision
func (c Confidence) Usable() bool {
	return c == ConfidenceHigh || c == ConfidenceLow
}

// SourceText is the immutable clinic note all spans point into.
// Offsets are byte offsets; the text is never mutated after load.
type SourceText struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Slice returns the substring at [start:end) and whether the span is in bounds
func (s SourceText) Slice(start, end int) (string, bool) {
	if start < 0 || end > len(s.Text) || start >= end {
		return "", false
	}
	return s.Text[start:end], true
}

// ExtractedFact is one structured fact candidate with its provenance claim.
// Value holds an int64 for duration fields, a string key for list fields.
type ExtractedFact struct {
	Field      FieldName  `json:"field"`
	Value      any        `json:"value"`
	Quote      string     `json:"quote"`
	Start      int        `json:"span_start"`
	End        int        `json:"span_end"`
	Confidence Confidence `json:"confidence"`
	Backend    string     `json:"backend,omitempty"` // Which extractor produced it
	Reason     string     `json:"reason,omitempty"`  // Set on rejection, for the audit trail
}

// ValidatedFactSet maps field names to facts that passed provenance
// validation. Absent keys mean missing evidence, not a false value.
type ValidatedFactSet map[FieldName][]ExtractedFact

// Add appends a fact under its field name
func (v ValidatedFactSet) Add(f ExtractedFact) {
	v[f.Field] = append(v[f.Field], f)
}

// Has reports whether any validated fact exists for the field
func (v ValidatedFactSet) Has(f FieldName) bool {
	return len(v[f]) > 0
}

// HasHigh reports whether the field has at least one high-confidence fact
func (v ValidatedFactSet) HasHigh(f FieldName) bool {
	for _, fact := range v[f] {
		if fact.Confidence == ConfidenceHigh {
			return true
		}
	}
	return false
}

// IntValue returns the largest int value recorded for a duration field.
// Multiple backends may report different durations; the longest wins,
// matching how overlapping treatment durations are resolved.
func (v ValidatedFactSet) IntValue(f FieldName) (int64, bool) {
	var best int64
	found := false
	for _, fact := range v[f] {
		if n, ok := asInt64(fact.Value); ok {
			if !found || n > best {
				best = n
			}
			found = true
		}
	}
	return best, found
}

// ListValues returns the sorted, deduplicated string values for a list field
func (v ValidatedFactSet) ListValues(f FieldName) []string {
	seen := make(map[string]bool)
	var out []string
	for _, fact := range v[f] {
		if s, ok := fact.Value.(string); ok && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Fields returns the field names present in the set, sorted
func (v ValidatedFactSet) Fields() []FieldName {
	var out []FieldName
	for f := range v {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// asInt64 normalizes the numeric types that survive JSON decoding
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
