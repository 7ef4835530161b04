package extract

import (
	"context"

	"github.com/patrace/patrace/internal/model"
)

// Extractor is the capability interface every fact-extraction backend
// satisfies. Implementations must attach a non-empty quote and span to
// every candidate fact; a backend that cannot locate a span for a value
// must omit the fact rather than fabricate one — provenance validation
// exists to catch exactly that, so backends are not trusted to
// self-certify.
type Extractor interface {
	// Name identifies the backend in audit trails ("baseline", "openai", ...)
	Name() string

	// Extract produces candidate facts from the note text and the imaging
	// order metadata. The returned set is finite and order-irrelevant.
	Extract(ctx context.Context, source model.SourceText, order map[string]string) ([]model.ExtractedFact, error)
}
