package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/patrace/patrace/internal/extract"
	"github.com/patrace/patrace/internal/model"
)

// wireFact is the backend boundary record every provider must return
type wireFact struct {
	Field     string `json:"field"`
	Value     any    `json:"value"`
	Quote     string `json:"quote"`
	SpanStart int    `json:"span_start"`
	SpanEnd   int    `json:"span_end"`
}

type wireResponse struct {
	Facts []wireFact `json:"facts"`
}

// Minimum quote requirements for meaningful provenance: a quote passes
// when it has at least 8 characters, or 2 words, or contains a digit.
const (
	minQuoteLength = 8
	minQuoteTokens = 2
)

var codeFenceRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ParseFacts extracts the JSON fact list from raw model output (handling
// markdown fences and stray text) and re-anchors every quote against the
// note. Candidates whose quotes cannot be located are dropped — omission
// is always preferred over a fabricated span. Quotes that only match
// case-insensitively are kept at low confidence with corrected offsets
// and the actual note text as the quote.
func ParseFacts(raw string, source model.SourceText, backend string) ([]model.ExtractedFact, int, error) {
	body := raw
	if m := codeFenceRe.FindStringSubmatch(body); m != nil {
		body = m[1]
	}

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start == -1 || end == -1 || end < start {
		return nil, 0, fmt.Errorf("no JSON object in model output")
	}

	var resp wireResponse
	if err := json.Unmarshal([]byte(body[start:end+1]), &resp); err != nil {
		return nil, 0, fmt.Errorf("decode model output: %w", err)
	}

	var facts []model.ExtractedFact
	dropped := 0
	for _, wf := range resp.Facts {
		fact, ok := anchorFact(wf, source, backend)
		if !ok {
			dropped++
			continue
		}
		facts = append(facts, fact)
	}
	return facts, dropped, nil
}

// anchorFact validates one wire record and pins its quote to the note
func anchorFact(wf wireFact, source model.SourceText, backend string) (model.ExtractedFact, bool) {
	field := model.FieldName(wf.Field)
	if !model.IsKnownField(field) || field == model.FieldRedFlagsPresent {
		return model.ExtractedFact{}, false
	}

	value, ok := normalizeValue(field, wf.Value)
	if !ok {
		return model.ExtractedFact{}, false
	}

	quote := wf.Quote
	if quote == "" || !isValidQuoteLength(quote) {
		return model.ExtractedFact{}, false
	}

	fact := model.ExtractedFact{
		Field:   field,
		Value:   value,
		Backend: backend,
	}

	// Claimed span first: exact match keeps the model's own offsets.
	if actual, inBounds := source.Slice(wf.SpanStart, wf.SpanEnd); inBounds && actual == quote {
		fact.Quote = quote
		fact.Start, fact.End = wf.SpanStart, wf.SpanEnd
		fact.Confidence = model.ConfidenceHigh
		return fact, true
	}

	// Exact substring elsewhere: recompute the offsets.
	if idx := findQuote(source.Text, quote); idx >= 0 {
		fact.Quote = quote
		fact.Start, fact.End = idx, idx+len(quote)
		fact.Confidence = model.ConfidenceHigh
		return fact, true
	}

	// Case-insensitive re-anchor: content matches, casing does not.
	// The corrected note text becomes the quote so provenance still
	// verifies exactly, but the fact is only low confidence.
	if idx := findQuoteFold(source.Text, quote); idx >= 0 {
		fact.Quote = source.Text[idx : idx+len(quote)]
		fact.Start, fact.End = idx, idx+len(quote)
		fact.Confidence = model.ConfidenceLow
		return fact, true
	}

	return model.ExtractedFact{}, false
}

// normalizeValue coerces wire values into the canonical shapes: int64 for
// duration fields, canonical category keys for list fields.
func normalizeValue(field model.FieldName, v any) (any, bool) {
	switch field {
	case model.FieldSymptomsDurationWeeks, model.FieldConservativeCareWeeks:
		switch n := v.(type) {
		case float64:
			return int64(n), true
		case int64:
			return n, true
		case int:
			return int64(n), true
		}
		return nil, false
	case model.FieldTreatments:
		if s, ok := v.(string); ok {
			if key, ok := extract.NormalizeTreatment(s); ok {
				return key, true
			}
		}
		return nil, false
	case model.FieldRedFlags:
		if s, ok := v.(string); ok {
			if key, ok := extract.NormalizeRedFlag(s); ok {
				return key, true
			}
		}
		return nil, false
	}
	return nil, false
}

func isValidQuoteLength(quote string) bool {
	if len(quote) >= minQuoteLength {
		return true
	}
	if len(strings.Fields(quote)) >= minQuoteTokens {
		return true
	}
	for _, r := range quote {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// findQuote locates an exact quote. Single-token quotes require word
// boundaries so "pt" cannot anchor inside "symptoms".
func findQuote(text, quote string) int {
	if len(strings.Fields(quote)) == 1 {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(quote) + `\b`)
		if loc := re.FindStringIndex(text); loc != nil {
			return loc[0]
		}
		return -1
	}
	return strings.Index(text, quote)
}

// findQuoteFold is the case-insensitive variant of findQuote. The sliding
// EqualFold keeps offsets byte-exact; notes are small enough for it.
func findQuoteFold(text, quote string) int {
	if len(quote) == 0 || len(quote) > len(text) {
		return -1
	}
	if len(strings.Fields(quote)) == 1 {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(quote) + `\b`)
		if loc := re.FindStringIndex(text); loc != nil && loc[1]-loc[0] == len(quote) {
			return loc[0]
		}
		return -1
	}
	for i := 0; i+len(quote) <= len(text); i++ {
		if strings.EqualFold(text[i:i+len(quote)], quote) {
			return i
		}
	}
	return -1
}
