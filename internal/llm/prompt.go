package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const systemPrompt = "You are a medical document extraction assistant. You ONLY output valid JSON, never code or explanations."

// BuildPrompt constructs the strict-evidence extraction prompt. The rules
// mirror what provenance validation will enforce: verbatim quotes only,
// and omission over fabrication.
func BuildPrompt(req ExtractRequest) string {
	var b strings.Builder

	b.WriteString(`You are extracting structured fields for a prior-authorization packet draft.

RULES:
1) Output MUST be a valid JSON object with a single "facts" array (no markdown, no extra keys).
2) Every fact MUST carry a "quote" copied VERBATIM from the NOTE (exact substring) and its character span.
3) If you cannot find an exact supporting quote, OMIT the fact entirely. Never fabricate a span.
4) Do not expand or normalize abbreviations inside a quote.
5) Prefer quotes with context: at least 2 words or 8 characters. Good: "6 weeks of physical therapy". Bad: "PT".

FIELDS:
- symptoms_duration_weeks (integer): duration of symptoms in weeks. Patient age is NOT a duration ("45-year-old" is age). Convert months to weeks (x4); word-form numbers count ("two months" = 8).
- conservative_care_weeks (integer): duration of conservative treatment attempted, in weeks. If several treatments carry different durations, use the LONGEST.
- treatments (one fact per value): only therapies or medications actually tried. Allowed values: pt, nsaids, home_exercise, chiropractic, steroid, injection.
- red_flags (one fact per value): serious-pathology indicators that bypass conservative care requirements. Allowed values: cauda_equina, progressive_neuro_deficit, cancer, infection, fracture_trauma. Detecting these is the highest-priority task. Do NOT list negated findings ("denies fever" is not a flag). Symptoms such as "urinary retention" are red-flag evidence, never treatments.

Return JSON with this schema:
{"facts": [{"field": "...", "value": <int|string>, "quote": "...", "span_start": <int>, "span_end": <int>}]}

`)

	if len(req.Order) > 0 {
		b.WriteString("IMAGING ORDER:\n")
		for _, k := range sortedOrderKeys(req.Order) {
			fmt.Fprintf(&b, "- %s: %s\n", k, req.Order[k])
		}
		b.WriteString("\n")
	}

	if len(req.Policy) > 0 {
		b.WriteString("RETRIEVED POLICY CHUNKS (context only, never quote from these):\n")
		enc, _ := json.Marshal(req.Policy)
		b.Write(enc)
		b.WriteString("\n\n")
	}

	b.WriteString("NOTE:\n")
	b.WriteString(req.Source.Text)
	b.WriteString("\n")

	return b.String()
}

// refusalTriggers mark notes phrased as clinical decision requests. The
// backend drafts documentation only; it never answers "should I".
var refusalTriggers = []string{"should", "recommend", "advise", "prescribe", "diagnose"}

// RefusalReason returns a non-empty message when the note asks for a
// clinical recommendation rather than documenting findings.
func RefusalReason(noteText string) string {
	lower := strings.ToLower(noteText)
	for _, trigger := range refusalTriggers {
		if strings.Contains(lower, trigger+" patient") ||
			strings.Contains(lower, trigger+" the patient") ||
			strings.Contains(lower, trigger+" i ") {
			return "this tool drafts documentation only; it does not provide clinical recommendations"
		}
	}
	return ""
}

func sortedOrderKeys(order map[string]string) []string {
	keys := make([]string, 0, len(order))
	for k := range order {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
