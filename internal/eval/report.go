package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// WriteReport writes metrics.json and eval_report.md into outDir
func WriteReport(report *Report, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "metrics.json"), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write metrics.json: %w", err)
	}

	md := RenderMarkdown(report)
	if err := os.WriteFile(filepath.Join(outDir, "eval_report.md"), []byte(md), 0o644); err != nil {
		return fmt.Errorf("write eval_report.md: %w", err)
	}
	return nil
}

// RenderMarkdown builds the human-readable evaluation report
func RenderMarkdown(r *Report) string {
	var b strings.Builder

	b.WriteString("# Evaluation Report\n\n")
	fmt.Fprintf(&b, "Cases: %d", r.Cases)
	if r.RunErrors > 0 {
		fmt.Fprintf(&b, " (%d failed to run)", r.RunErrors)
	}
	b.WriteString("\n")
	if r.ExtractionMode != "" {
		fmt.Fprintf(&b, "Extraction mode: %s\n", r.ExtractionMode)
	}
	b.WriteString("\n## Metrics\n\n")
	b.WriteString("| Metric | Hits | Total | Value |\n")
	b.WriteString("|--------|-----:|------:|------:|\n")
	writeRow(&b, "Decision accuracy", r.DecisionAccuracy)
	writeRow(&b, "Provenance validity", r.ProvenanceValidity)
	writeRow(&b, "Abstention precision", r.AbstentionPrecision)

	fields := make([]string, 0, len(r.FieldAccuracy))
	for f := range r.FieldAccuracy {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		writeRow(&b, "Field: "+f, r.FieldAccuracy[f])
	}

	if len(r.Mismatches) > 0 {
		b.WriteString("\n## Mismatches\n\n")
		for _, m := range r.Mismatches {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}

	return b.String()
}

func writeRow(b *strings.Builder, label string, r Ratio) {
	fmt.Fprintf(b, "| %s | %d | %d | %.2f |\n", label, r.Hits, r.Total, r.Value())
}
