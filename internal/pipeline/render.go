package pipeline

import (
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/patrace/patrace/internal/model"
)

// Renderer writes the artifacts for one completed run: machine-readable
// JSON for downstream systems, a markdown packet for reviewers, and an
// HTML view of the note with cited spans highlighted.
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// Render delegates to the pipeline's renderer
func (p *Pipeline) Render(bundle *model.Bundle, outDir string) error {
	return p.renderer.WriteBundle(bundle, outDir)
}

// WriteBundle writes all artifacts for one case into outDir
func (r *Renderer) WriteBundle(bundle *model.Bundle, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := writeJSON(filepath.Join(outDir, "packet.json"), bundle); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(outDir, "checklist.json"), bundle.Verdict); err != nil {
		return err
	}

	prov := provenanceReport{
		CaseID:     bundle.Case.CaseID,
		SourceLen:  len(bundle.Case.NoteText),
		Candidates: bundle.Audit,
	}
	for _, f := range bundle.Audit {
		if f.Confidence == model.ConfidenceRejected {
			prov.Rejected++
		}
	}
	if err := writeJSON(filepath.Join(outDir, "provenance.json"), prov); err != nil {
		return err
	}

	md := r.RenderMarkdown(bundle)
	if err := os.WriteFile(filepath.Join(outDir, "packet.md"), []byte(md), 0o644); err != nil {
		return fmt.Errorf("write packet.md: %w", err)
	}

	page, err := r.RenderHighlights(bundle)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outDir, "highlights.html"), []byte(page), 0o644); err != nil {
		return fmt.Errorf("write highlights.html: %w", err)
	}

	return nil
}

// provenanceReport is the audit artifact: every candidate fact with its
// verification outcome, rejected ones included.
type provenanceReport struct {
	CaseID     string                `json:"case_id"`
	SourceLen  int                   `json:"source_len"`
	Rejected   int                   `json:"rejected"`
	Candidates []model.ExtractedFact `json:"candidates"`
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// RenderMarkdown builds the reviewer-facing packet. Every criterion line
// cites its verified quotes; there is no free prose beyond the rationale
// strings the engine produced.
func (r *Renderer) RenderMarkdown(bundle *model.Bundle) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Prior Authorization Packet: %s\n\n", bundle.Case.CaseID)

	if proc := bundle.Case.ExamRequest["procedure"]; proc != "" {
		fmt.Fprintf(&b, "**Requested:** %s\n\n", proc)
	}
	fmt.Fprintf(&b, "**Overall:** %s\n", bundle.Verdict.Overall)
	fmt.Fprintf(&b, "**Extraction mode:** %s\n", bundle.ExtractionMode)
	fmt.Fprintf(&b, "**Generated:** %s\n\n", bundle.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))

	b.WriteString("## Criteria\n\n")
	for _, cr := range bundle.Verdict.Criteria {
		fmt.Fprintf(&b, "### %s — %s\n\n", cr.Label, cr.Status)
		if cr.Rationale != "" {
			fmt.Fprintf(&b, "%s\n\n", cr.Rationale)
		}
		for _, ev := range cr.Evidence {
			fmt.Fprintf(&b, "- `%s` [%d:%d]: \"%s\"\n", ev.Field, ev.Start, ev.End, ev.Quote)
		}
		if len(cr.Evidence) > 0 {
			b.WriteString("\n")
		}
	}

	if len(bundle.Verdict.Missing) > 0 {
		b.WriteString("## Missing Information\n\n")
		for _, f := range bundle.Verdict.Missing {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}

	if len(bundle.Discrepancies) > 0 {
		b.WriteString("## Extractor Discrepancies\n\n")
		for _, d := range bundle.Discrepancies {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}

	if len(bundle.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range bundle.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString("*Documentation summary only. Not a clinical recommendation or a coverage decision.*\n")
	}

	return b.String()
}

var highlightsTmpl = template.Must(template.New("highlights").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Evidence: {{.CaseID}}</title>
<style>
body { font-family: Georgia, serif; max-width: 48em; margin: 2em auto; line-height: 1.5; }
pre { white-space: pre-wrap; background: #fafafa; padding: 1em; border: 1px solid #ddd; }
mark { background: #fff3a0; }
.overall { font-weight: bold; }
</style>
</head>
<body>
<h1>Evidence: {{.CaseID}}</h1>
<p class="overall">Overall: {{.Overall}}</p>
<pre>{{.Note}}</pre>
</body>
</html>
`))

// RenderHighlights renders the note with every verified span wrapped in a
// <mark>. Escaping happens segment by segment so the byte offsets the
// validator verified still line up with the emitted markup.
func (r *Renderer) RenderHighlights(bundle *model.Bundle) (string, error) {
	note := bundle.Case.NoteText
	spans := usableSpans(bundle.Facts, len(note))

	var b strings.Builder
	pos := 0
	for _, s := range spans {
		b.WriteString(html.EscapeString(note[pos:s.start]))
		fmt.Fprintf(&b, `<mark title=%q>`, s.field)
		b.WriteString(html.EscapeString(note[s.start:s.end]))
		b.WriteString("</mark>")
		pos = s.end
	}
	b.WriteString(html.EscapeString(note[pos:]))

	var page strings.Builder
	err := highlightsTmpl.Execute(&page, struct {
		CaseID  string
		Overall model.Status
		Note    template.HTML
	}{
		CaseID:  bundle.Case.CaseID,
		Overall: bundle.Verdict.Overall,
		Note:    template.HTML(b.String()),
	})
	if err != nil {
		return "", fmt.Errorf("render highlights: %w", err)
	}
	return page.String(), nil
}

type highlightSpan struct {
	start, end int
	field      string
}

// usableSpans collects the non-rejected fact spans, sorted and merged so
// overlapping citations do not produce nested marks.
func usableSpans(facts model.ValidatedFactSet, sourceLen int) []highlightSpan {
	var spans []highlightSpan
	for _, field := range facts.Fields() {
		for _, f := range facts[field] {
			if f.Start < 0 || f.End > sourceLen || f.Start >= f.End {
				continue
			}
			spans = append(spans, highlightSpan{start: f.Start, end: f.End, field: string(f.Field)})
		}
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	merged := spans[:0]
	for _, s := range spans {
		if n := len(merged); n > 0 && s.start < merged[n-1].end {
			if s.end > merged[n-1].end {
				merged[n-1].end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// RenderSummary prints a one-screen run summary to w
func (r *Renderer) RenderSummary(w io.Writer, bundle *model.Bundle) {
	fmt.Fprintf(w, "Case:    %s\n", bundle.Case.CaseID)
	fmt.Fprintf(w, "Overall: %s\n", bundle.Verdict.Overall)
	fmt.Fprintf(w, "Mode:    %s\n\n", bundle.ExtractionMode)

	for _, cr := range bundle.Verdict.Criteria {
		fmt.Fprintf(w, "  [%s] %s", statusGlyph(cr.Status), cr.Label)
		if cr.Rationale != "" {
			fmt.Fprintf(w, " — %s", cr.Rationale)
		}
		fmt.Fprintln(w)
	}

	if len(bundle.Verdict.Missing) > 0 {
		fmt.Fprintf(w, "\nMissing: %s\n", strings.Join(bundle.Verdict.Missing, ", "))
	}
	for _, warn := range bundle.Warnings {
		fmt.Fprintf(w, "\nWarning: %s\n", warn)
	}
}

func statusGlyph(s model.Status) string {
	switch s {
	case model.StatusMet:
		return "✓"
	case model.StatusNotMet:
		return "✗"
	default:
		return "?"
	}
}
