// Package math provides small numeric helpers shared across venue
// enrichment. Kept dependency-free on purpose: these are called on hot
// paths (per-venue name comparison) where a generic stats library would be
// overkill.
package math

import "strings"

// JaccardWordSimilarity scores word-overlap between two free-text names,
// used to compare a planner-proposed venue name against the name a Places
// lookup resolves to (spec §4.H.2). Case-insensitive, whitespace-tokenized.
func JaccardWordSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,'\"!?")
		if w != "" {
			set[w] = true
		}
	}
	return set
}
