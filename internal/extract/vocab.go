package extract

import "strings"

// NormalizeTreatment maps a display name ("physical therapy", "PT") or a
// category key to its canonical treatment key. Model backends often return
// display names; the checklist only speaks keys.
func NormalizeTreatment(name string) (string, bool) {
	return normalize(name, treatmentKeywords)
}

// NormalizeRedFlag maps a red flag display name or key to its canonical
// category key.
func NormalizeRedFlag(name string) (string, bool) {
	return normalize(name, redFlagKeywords)
}

func normalize(name string, table map[string][]string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	key := strings.ReplaceAll(lower, " ", "_")
	if _, ok := table[key]; ok {
		return key, true
	}
	for k, kws := range table {
		for _, kw := range kws {
			if lower == kw {
				return k, true
			}
		}
	}
	return "", false
}
