package types

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Input size limits enforced during sanitization and validation
const (
	MaxRoleLength         = 200
	MaxDescriptionLength  = 50000
	MaxBullets            = 20
	MaxBulletLength       = 1000
	MaxExtraContextLength = 5000
)

// MaxTopTerms caps the prioritized term list in extracted signals
const MaxTopTerms = 25

// Settings bounds and defaults
const (
	MinWordsPerBullet = 1
	MaxWordsPerBullet = 100
	MinVariants       = 1
	MaxVariants       = 3

	DefaultTone     = "concise"
	DefaultMaxLen   = 30
	DefaultVariants = 1
)

// injectionPatterns are phrasings commonly used for prompt injection.
// Matches are replaced with "[FILTERED]" before any text reaches the AI provider.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+all\s+previous\s+instructions`),
	regexp.MustCompile(`(?i)forget\s+everything`),
	regexp.MustCompile(`(?i)you\s+are\s+now`),
	regexp.MustCompile(`(?i)act\s+as\s+if`),
	regexp.MustCompile(`(?i)pretend\s+to\s+be`),
	regexp.MustCompile(`(?i)roleplay\s+as`),
	regexp.MustCompile(`(?i)system\s+prompt`),
	regexp.MustCompile(`(?i)override\s+your\s+instructions`),
	regexp.MustCompile(`(?i)disregard\s+previous\s+instructions`),
	regexp.MustCompile(`(?i)new\s+instructions:`),
	regexp.MustCompile(`(?i)you\s+must\s+now`),
	regexp.MustCompile(`(?i)your\s+new\s+role\s+is`),
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// SanitizeText strips control characters and prompt-injection phrasings,
// truncates to maxChars runes and collapses whitespace runs to single spaces.
func SanitizeText(text string, maxChars int) string {
	if text == "" {
		return ""
	}

	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, text)

	for _, p := range injectionPatterns {
		text = p.ReplaceAllString(text, "[FILTERED]")
	}

	if len(text) > maxChars {
		if runes := []rune(text); len(runes) > maxChars {
			text = string(runes[:maxChars])
		}
	}

	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// Sanitize normalizes all free-text fields in place. Empty bullets are
// dropped and the bullet count is capped at MaxBullets.
func (in *JobInput) Sanitize() {
	in.Role = SanitizeText(in.Role, MaxRoleLength)
	in.Description = SanitizeText(in.Description, MaxDescriptionLength)
	in.ExtraContext = SanitizeText(in.ExtraContext, MaxExtraContextLength)

	bullets := in.Bullets
	if len(bullets) > MaxBullets {
		bullets = bullets[:MaxBullets]
	}
	clean := make([]string, 0, len(bullets))
	for _, b := range bullets {
		if s := SanitizeText(b, MaxBulletLength); s != "" {
			clean = append(clean, s)
		}
	}
	in.Bullets = clean
}

// ApplyDefaults fills zero-valued settings fields with their defaults
func (s *JobSettings) ApplyDefaults() {
	if s.Tone == "" {
		s.Tone = DefaultTone
	}
	if s.MaxLen == 0 {
		s.MaxLen = DefaultMaxLen
	}
	if s.Variants == 0 {
		s.Variants = DefaultVariants
	}
}

// Validate checks the settings ranges
func (s JobSettings) Validate() error {
	if s.MaxLen < MinWordsPerBullet || s.MaxLen > MaxWordsPerBullet {
		return fmt.Errorf("maxLen must be between %d and %d, got %d",
			MinWordsPerBullet, MaxWordsPerBullet, s.MaxLen)
	}
	if s.Variants < MinVariants || s.Variants > MaxVariants {
		return fmt.Errorf("variants must be between %d and %d, got %d",
			MinVariants, MaxVariants, s.Variants)
	}
	return nil
}

// Validate checks that a JobInput satisfies all required-field and size
// constraints. Callers normally Sanitize first; Validate still enforces the
// limits for inputs that bypassed sanitization.
func (in JobInput) Validate() error {
	if strings.TrimSpace(in.Role) == "" {
		return fmt.Errorf("role is required")
	}
	if utf8.RuneCountInString(in.Role) > MaxRoleLength {
		return fmt.Errorf("role exceeds %d characters", MaxRoleLength)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("description is required")
	}
	if utf8.RuneCountInString(in.Description) > MaxDescriptionLength {
		return fmt.Errorf("description exceeds %d characters", MaxDescriptionLength)
	}
	if len(in.Bullets) == 0 {
		return fmt.Errorf("at least one non-empty bullet is required")
	}
	if len(in.Bullets) > MaxBullets {
		return fmt.Errorf("at most %d bullets are allowed, got %d", MaxBullets, len(in.Bullets))
	}
	for i, b := range in.Bullets {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("bullet %d is empty", i)
		}
		if utf8.RuneCountInString(b) > MaxBulletLength {
			return fmt.Errorf("bullet %d exceeds %d characters", i, MaxBulletLength)
		}
	}
	if utf8.RuneCountInString(in.ExtraContext) > MaxExtraContextLength {
		return fmt.Errorf("extraContext exceeds %d characters", MaxExtraContextLength)
	}
	return in.Settings.Validate()
}
