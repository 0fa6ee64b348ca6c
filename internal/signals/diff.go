package signals

import (
	"strings"

	"bulletsmith/internal/types"
)

// ComputeDiff summarizes what changed between an original bullet and its
// rewritten variants. Removed holds content words from the original that
// survive in no variant; AddedTerms holds top signal terms that appear in a
// variant but not in the original. Terms keep the priority order of
// sig.TopTerms.
func ComputeDiff(original string, variants []string, sig types.Signals) types.BulletDiff {
	diff := types.BulletDiff{Removed: []string{}, AddedTerms: []string{}}
	if len(variants) == 0 {
		return diff
	}

	combined := strings.ToLower(strings.Join(variants, " "))
	lowerOriginal := strings.ToLower(original)

	seen := make(map[string]bool)
	for _, word := range wordPattern.FindAllString(lowerOriginal, -1) {
		if stopwords[word] || len(word) < 4 || seen[word] {
			continue
		}
		seen[word] = true
		if !strings.Contains(combined, word) {
			diff.Removed = append(diff.Removed, word)
		}
	}

	for _, term := range sig.TopTerms {
		lowerTerm := strings.ToLower(term)
		if strings.Contains(lowerOriginal, lowerTerm) {
			continue
		}
		if strings.Contains(combined, lowerTerm) {
			diff.AddedTerms = append(diff.AddedTerms, term)
		}
	}

	return diff
}
