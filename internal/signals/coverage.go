package signals

import (
	"sort"
	"strings"

	"bulletsmith/internal/types"
)

// ComputeCoverage partitions the signal terms into those that appear in at
// least one revised bullet and those absent from all of them. A term counts
// as hit when the term itself or any of its synonyms occurs in the combined
// revised text, case-insensitively. Both partitions come back sorted.
func ComputeCoverage(revisedBullets []string, signals types.Signals) types.Coverage {
	combined := strings.ToLower(strings.Join(revisedBullets, " "))

	coverage := types.Coverage{Hit: []string{}, Miss: []string{}}
	seen := make(map[string]bool)

	for _, term := range signals.TopTerms {
		if seen[term] {
			continue
		}
		seen[term] = true

		found := strings.Contains(combined, strings.ToLower(term))
		if !found {
			for _, synonym := range signals.Synonyms[term] {
				if strings.Contains(combined, strings.ToLower(synonym)) {
					found = true
					break
				}
			}
		}

		if found {
			coverage.Hit = append(coverage.Hit, term)
		} else {
			coverage.Miss = append(coverage.Miss, term)
		}
	}

	sort.Strings(coverage.Hit)
	sort.Strings(coverage.Miss)
	return coverage
}
