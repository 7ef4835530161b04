package extract

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/patrace/patrace/internal/model"
)

// BaselineName identifies the deterministic pattern backend in audit trails
const BaselineName = "baseline"

// treatmentKeywords maps treatment category keys to note phrasings
var treatmentKeywords = map[string][]string{
	"pt":            {"physical therapy", "pt"},
	"nsaids":        {"nsaid", "ibuprofen", "naproxen", "diclofenac"},
	"home_exercise": {"home exercise", "home exercises"},
	"chiropractic":  {"chiropractic", "chiro"},
	"steroid":       {"oral steroid", "prednisone", "methylprednisolone"},
	"injection":     {"epidural", "steroid injection", "esi", "injection"},
}

// redFlagKeywords maps red flag category keys to clinical indicators
var redFlagKeywords = map[string][]string{
	"cauda_equina":               {"urinary retention", "saddle anesthesia", "bowel or bladder", "incontinence"},
	"progressive_neuro_deficit":  {"progressive weakness", "worsening weakness", "foot drop"},
	"cancer":                     {"history of cancer", "malignancy", "unexplained weight loss"},
	"infection":                  {"fever", "iv drug use", "discitis", "osteomyelitis", "infection"},
	"fracture_trauma":            {"trauma", "fell", "fall", "motor vehicle", "fracture"},
}

// negationPrefixes are cues that a preceding clause negates the keyword
var negationPrefixes = []string{
	"no evidence of", "negative for", "ruled out", "rules out",
	"denies", "deny", "denied", "without", "no", "not", "absent",
}

var wordToNum = map[string]int64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12,
}

// Regex fragments. Patterns run case-insensitively over the original note
// text so that match offsets are exact spans into the source.
var (
	numAlt = `(\d{1,2}|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)`

	digitWeeksRe  = regexp.MustCompile(`(?i)(\d{1,2})\s*-?\s*weeks?`)
	digitMonthsRe = regexp.MustCompile(`(?i)(\d{1,2})\s*months?`)
	wordDurRe     = regexp.MustCompile(`(?i)` + numAlt + `\s+(weeks?|months?)`)

	careAlt = `physical therapy|pt\b|home exercises?|chiropractic|chiro`

	// "<N> weeks/months of <treatment>"
	careLeadingRe = regexp.MustCompile(`(?i)` + numAlt + `\s+(weeks?|months?)\s+of\s+(` + careAlt + `)`)
	// "<treatment> for <N> weeks/months"
	careTrailingRe = regexp.MustCompile(`(?i)(` + careAlt + `)\s+for\s+` + numAlt + `\s+(weeks?|months?)`)
)

// BaselineExtractor is the deterministic pattern-matching backend. It is
// cheap, always available, and doubles as a cross-check signal when a
// model-backed extractor is active.
type BaselineExtractor struct{}

// NewBaselineExtractor creates a new baseline extractor
func NewBaselineExtractor() *BaselineExtractor {
	return &BaselineExtractor{}
}

// Name returns the backend name
func (e *BaselineExtractor) Name() string {
	return BaselineName
}

// Extract runs the pattern detectors over the note. It never fails: an
// unmatchable note simply yields an empty candidate set.
func (e *BaselineExtractor) Extract(_ context.Context, source model.SourceText, _ map[string]string) ([]model.ExtractedFact, error) {
	text := source.Text
	var facts []model.ExtractedFact

	if weeks, start, end, ok := findWeeks(text); ok {
		facts = append(facts, e.fact(model.FieldSymptomsDurationWeeks, weeks, text, start, end))
	}

	if weeks, start, end, ok := findConservativeCareWeeks(text); ok {
		facts = append(facts, e.fact(model.FieldConservativeCareWeeks, weeks, text, start, end))
	}

	for _, d := range detectTreatments(text) {
		facts = append(facts, e.fact(model.FieldTreatments, d.key, text, d.start, d.end))
	}

	for _, d := range detectRedFlags(text) {
		facts = append(facts, e.fact(model.FieldRedFlags, d.key, text, d.start, d.end))
	}

	return facts, nil
}

func (e *BaselineExtractor) fact(field model.FieldName, value any, text string, start, end int) model.ExtractedFact {
	return model.ExtractedFact{
		Field:      field,
		Value:      value,
		Quote:      text[start:end],
		Start:      start,
		End:        end,
		Confidence: model.ConfidenceHigh,
		Backend:    BaselineName,
	}
}

// findWeeks extracts a coarse symptom duration in weeks from phrases like
// "8 weeks", "6-week", "3 months", "two months". Returns the value and the
// span of the first match.
func findWeeks(text string) (int64, int, int, bool) {
	if loc := digitWeeksRe.FindStringSubmatchIndex(text); loc != nil {
		n, _ := strconv.ParseInt(text[loc[2]:loc[3]], 10, 64)
		return n, loc[0], loc[1], true
	}
	if loc := digitMonthsRe.FindStringSubmatchIndex(text); loc != nil {
		n, _ := strconv.ParseInt(text[loc[2]:loc[3]], 10, 64)
		return n * 4, loc[0], loc[1], true
	}
	if loc := wordDurRe.FindStringSubmatchIndex(text); loc != nil {
		if n, ok := toInt(text[loc[2]:loc[3]]); ok {
			return toWeeks(n, text[loc[4]:loc[5]]), loc[0], loc[1], true
		}
	}
	return 0, 0, 0, false
}

// findConservativeCareWeeks extracts the longest conservative care duration.
// Both phrasings count: "8 weeks of physical therapy" and
// "home exercises for two months". When multiple treatments carry different
// durations, the maximum wins.
func findConservativeCareWeeks(text string) (int64, int, int, bool) {
	var best int64
	var bestStart, bestEnd int
	found := false

	record := func(weeks int64, start, end int) {
		if !found || weeks > best {
			best, bestStart, bestEnd = weeks, start, end
		}
		found = true
	}

	for _, loc := range careLeadingRe.FindAllStringSubmatchIndex(text, -1) {
		if n, ok := toInt(text[loc[2]:loc[3]]); ok {
			record(toWeeks(n, text[loc[4]:loc[5]]), loc[0], loc[1])
		}
	}
	for _, loc := range careTrailingRe.FindAllStringSubmatchIndex(text, -1) {
		if n, ok := toInt(text[loc[4]:loc[5]]); ok {
			record(toWeeks(n, text[loc[6]:loc[7]]), loc[0], loc[1])
		}
	}

	return best, bestStart, bestEnd, found
}

// detection is a keyword hit with its category key and span
type detection struct {
	key        string
	start, end int
}

// detectTreatments finds one keyword span per mentioned treatment category
func detectTreatments(text string) []detection {
	var out []detection
	for _, key := range sortedKeys(treatmentKeywords) {
		for _, kw := range treatmentKeywords[key] {
			if start, end, ok := findKeyword(text, kw, 0); ok {
				out = append(out, detection{key: key, start: start, end: end})
				break
			}
		}
	}
	return out
}

// detectRedFlags finds one non-negated keyword span per red flag category.
// "Denies fever" must not raise the infection flag.
func detectRedFlags(text string) []detection {
	var out []detection
	for _, key := range sortedKeys(redFlagKeywords) {
		if d, ok := findRedFlag(text, key); ok {
			out = append(out, d)
		}
	}
	return out
}

func findRedFlag(text string, key string) (detection, bool) {
	for _, kw := range redFlagKeywords[key] {
		from := 0
		for {
			start, end, ok := findKeyword(text, kw, from)
			if !ok {
				break
			}
			if !isNegated(text, start) {
				return detection{key: key, start: start, end: end}, true
			}
			from = end
		}
	}
	return detection{}, false
}

// findKeyword locates a keyword at word boundaries, case-insensitively,
// starting the search at offset from. Word boundaries keep short keywords
// like "pt" from matching inside unrelated words.
func findKeyword(text, keyword string, from int) (int, int, bool) {
	if from >= len(text) {
		return 0, 0, false
	}
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(keyword) + `\b`)
	loc := re.FindStringIndex(text[from:])
	if loc == nil {
		return 0, 0, false
	}
	return from + loc[0], from + loc[1], true
}

// isNegated checks whether the keyword at matchStart is preceded by a
// negation cue within a 30-character window.
func isNegated(text string, matchStart int) bool {
	windowStart := matchStart - 30
	if windowStart < 0 {
		windowStart = 0
	}
	prefix := strings.ToLower(text[windowStart:matchStart])
	prefix = strings.TrimRight(strings.TrimSpace(prefix), ".,;:")
	for _, neg := range negationPrefixes {
		if strings.HasSuffix(prefix, neg) {
			return true
		}
	}
	return false
}

func toInt(s string) (int64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	n, ok := wordToNum[s]
	return n, ok
}

// toWeeks converts a duration value and unit to weeks (months count as 4)
func toWeeks(value int64, unit string) int64 {
	if strings.Contains(strings.ToLower(unit), "month") {
		return value * 4
	}
	return value
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
