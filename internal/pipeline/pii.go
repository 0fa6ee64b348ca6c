package pipeline

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	emailPattern = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
)

// DetectPII scans text for personal data that has no place in a resume
// bullet. One flag per kind found, regardless of how often it occurs.
func DetectPII(text string) []string {
	var issues []string

	if emailPattern.MatchString(text) {
		issues = append(issues, "PII detected: email address")
	}
	if phonePattern.MatchString(text) {
		issues = append(issues, "PII detected: phone number")
	}
	if ssnPattern.MatchString(text) {
		issues = append(issues, "PII detected: SSN")
	}

	return issues
}

// fillerOpeners are weak lead-ins that can be dropped without changing what
// the bullet claims
var fillerOpeners = []string{
	"responsible for ",
	"duties included ",
	"tasked with ",
	"worked on ",
}

// ApplySafeFixes strips filler openers and collapses doubled whitespace.
// Only phrasing changes: facts, numbers and named tools are left untouched.
func ApplySafeFixes(text string) string {
	fixed := strings.TrimSpace(text)
	lower := strings.ToLower(fixed)

	for _, opener := range fillerOpeners {
		if strings.HasPrefix(lower, opener) {
			rest := strings.TrimSpace(fixed[len(opener):])
			if rest != "" {
				fixed = upperFirst(rest)
			}
			break
		}
	}

	return strings.Join(strings.Fields(fixed), " ")
}

func upperFirst(s string) string {
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
