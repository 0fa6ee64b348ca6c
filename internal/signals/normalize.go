package signals

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	listMarkerPattern = regexp.MustCompile(`^[-*•●▪‣]+\s*`)

	punctReplacer = strings.NewReplacer(
		"‘", "'",
		"’", "'",
		"“", `"`,
		"”", `"`,
		"–", "-",
		"—", "-",
		"…", "...",
	)
)

// NormalizeText prepares description text for hashing and extraction. HTML
// tags are removed, curly quotes and dashes fold to their ASCII equivalents,
// emoji and other symbol runes are dropped, and runs of whitespace collapse
// to single spaces. The same input always normalizes to the same output,
// which keeps content hashes stable across callers.
func NormalizeText(text string) string {
	text = htmlTagPattern.ReplaceAllString(text, "")
	text = punctReplacer.Replace(text)
	text = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.So, r) {
			return -1
		}
		return r
	}, text)
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// NormalizeBullet applies NormalizeText and strips any leading list marker
// so "- Led migrations" and "Led migrations" normalize identically.
func NormalizeBullet(text string) string {
	text = NormalizeText(text)
	return strings.TrimSpace(listMarkerPattern.ReplaceAllString(text, ""))
}

// NormalizeBullets normalizes each bullet, drops bullets that normalize to
// empty, and removes exact duplicates keeping the first occurrence. Order is
// otherwise preserved.
func NormalizeBullets(bullets []string) []string {
	out := make([]string, 0, len(bullets))
	seen := make(map[string]struct{}, len(bullets))
	for _, b := range bullets {
		n := NormalizeBullet(b)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
