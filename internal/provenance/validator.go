// Package provenance verifies that every extracted fact's quoted evidence
// is present, verbatim, at the claimed offsets of the source note.
package provenance

import (
	"fmt"

	"github.com/patrace/patrace/internal/model"
)

// Result partitions candidate facts after span verification. Audit keeps
// every candidate with its final confidence — a rejected-but-logged fact
// is strictly safer than a silently dropped one.
type Result struct {
	Facts    model.ValidatedFactSet
	Audit    []model.ExtractedFact
	Rejected int
}

// Validate verifies each candidate's quote against its span:
// source.Text[start:end] must equal the quote byte-for-byte, with no
// normalization or case-folding. Any mismatch, trimmed quote, or
// out-of-bounds span downgrades the fact to rejected.
//
// Validate is pure and total: it never fails on malformed input, and the
// same (source, candidates) pair always yields the same verdicts.
func Validate(source model.SourceText, candidates []model.ExtractedFact) Result {
	res := Result{Facts: make(model.ValidatedFactSet)}

	for _, f := range candidates {
		verdict := check(source, f)
		res.Audit = append(res.Audit, verdict)
		if verdict.Confidence == model.ConfidenceRejected {
			res.Rejected++
			continue
		}
		res.Facts.Add(verdict)
	}

	return res
}

// check returns the fact with its confidence settled. The claimed
// confidence survives only when the quote verifies exactly.
func check(source model.SourceText, f model.ExtractedFact) model.ExtractedFact {
	if f.Quote == "" {
		return reject(f, "empty quote")
	}

	actual, ok := source.Slice(f.Start, f.End)
	if !ok {
		return reject(f, fmt.Sprintf("span [%d:%d) out of bounds for note of length %d", f.Start, f.End, len(source.Text)))
	}

	if actual != f.Quote {
		return reject(f, fmt.Sprintf("quote %q does not match source text %q at [%d:%d)", f.Quote, actual, f.Start, f.End))
	}

	if !f.Confidence.Usable() {
		// Backends only claim high or low; anything else verifies as high.
		f.Confidence = model.ConfidenceHigh
	}
	return f
}

func reject(f model.ExtractedFact, reason string) model.ExtractedFact {
	f.Confidence = model.ConfidenceRejected
	f.Reason = reason
	return f
}
