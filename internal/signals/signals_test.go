package signals

import (
	"reflect"
	"testing"

	"bulletsmith/internal/types"
)

const richDescription = "Senior Backend Engineer. We build SaaS products in healthcare. " +
	"You will design Python services on AWS with Docker and Kubernetes, work with " +
	"cross-functional teams, and show strong leadership and communication. " +
	"Experience with PostgreSQL and Redis required. Agile environment."

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "collapses whitespace",
			input:    "  hello \t  world \n",
			expected: "hello world",
		},
		{
			name:     "strips html tags",
			input:    "<p>Build <b>APIs</b></p>",
			expected: "Build APIs",
		},
		{
			name:     "straightens curly quotes",
			input:    "“quoted” and ‘single’",
			expected: `"quoted" and 'single'`,
		},
		{
			name:     "folds dashes and ellipsis",
			input:    "full–stack — yes…",
			expected: "full-stack - yes...",
		},
		{
			name:     "drops emoji",
			input:    "ship fast 🚀 every day",
			expected: "ship fast every day",
		},
		{
			name:     "multiline text",
			input:    "line one\n\nline two\tend",
			expected: "line one line two end",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.input); got != tt.expected {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeTextStable(t *testing.T) {
	once := NormalizeText("  Senior   Engineer  ")
	twice := NormalizeText(once)
	if once != twice {
		t.Errorf("NormalizeText is not idempotent: %q vs %q", once, twice)
	}
}

func TestNormalizeBullet(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"- Led migrations", "Led migrations"},
		{"• Shipped the API  ", "Shipped the API"},
		{"* Built dashboards", "Built dashboards"},
		{"Led migrations", "Led migrations"},
	}
	for _, tt := range tests {
		if got := NormalizeBullet(tt.input); got != tt.expected {
			t.Errorf("NormalizeBullet(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeBullets(t *testing.T) {
	in := []string{
		"- Led migrations",
		"",
		"Led migrations",
		"   ",
		"• Shipped the API",
	}
	want := []string{"Led migrations", "Shipped the API"}
	got := NormalizeBullets(in)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeBullets(%v) = %v, want %v", in, got, want)
	}
}

func TestExtractRichDescription(t *testing.T) {
	extractor := NewExtractor(DefaultConfig(), nil)
	signals, confidence := extractor.Extract(richDescription)

	if confidence != 1.0 {
		t.Errorf("Expected full confidence for rich description, got %v", confidence)
	}
	if confidence < extractor.Threshold() {
		t.Errorf("Rich description should not need model fallback, confidence %v", confidence)
	}

	assertContains(t, signals.HardTools, "Python")
	assertContains(t, signals.HardTools, "Kubernetes")
	assertContains(t, signals.SoftSkills, "Leadership")
	assertContains(t, signals.SoftSkills, "Communication")
	assertContains(t, signals.DomainTerms, "SAAS")
	assertContains(t, signals.DomainTerms, "Healthcare")

	if len(signals.TopTerms) == 0 {
		t.Error("Expected ranked terms from rich description")
	}
	if len(signals.Synonyms) != 0 || len(signals.Themes) != 0 {
		t.Error("Local extraction should not produce synonyms or themes")
	}
}

func TestExtractWeights(t *testing.T) {
	extractor := NewExtractor(DefaultConfig(), nil)
	signals, _ := extractor.Extract(richDescription)

	sawMax := false
	for term, weight := range signals.Weights {
		if weight <= 0.1 || weight > 1.0 {
			t.Errorf("Weight for %q out of range: %v", term, weight)
		}
		if weight == 1.0 {
			sawMax = true
		}
	}
	if !sawMax {
		t.Error("Expected the most frequent term to carry weight 1.0")
	}
	for _, term := range signals.TopTerms {
		if _, ok := signals.Weights[term]; !ok {
			t.Errorf("Top term %q missing from weights", term)
		}
	}
}

func TestExtractLowSignalText(t *testing.T) {
	extractor := NewExtractor(DefaultConfig(), nil)
	_, confidence := extractor.Extract("the quick brown fox jumps over the lazy dog")

	if confidence <= 0 {
		t.Errorf("Plain text still yields ranked terms, got confidence %v", confidence)
	}
	if confidence >= extractor.Threshold() {
		t.Errorf("Low signal text should fall below threshold, got %v", confidence)
	}
}

func TestExtractEmptyText(t *testing.T) {
	extractor := NewExtractor(DefaultConfig(), nil)
	signals, confidence := extractor.Extract("")

	if confidence != 0 {
		t.Errorf("Expected zero confidence for empty text, got %v", confidence)
	}
	if len(signals.TopTerms) != 0 || len(signals.HardTools) != 0 {
		t.Errorf("Expected empty signals, got %+v", signals)
	}
}

func TestExtractDeterministic(t *testing.T) {
	extractor := NewExtractor(DefaultConfig(), nil)
	first, firstConf := extractor.Extract(richDescription)
	second, secondConf := extractor.Extract(richDescription)

	if firstConf != secondConf {
		t.Errorf("Confidence differs across runs: %v vs %v", firstConf, secondConf)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Extraction is not deterministic for identical input")
	}
}

func TestExtractorConfigDefaults(t *testing.T) {
	extractor := NewExtractor(Config{}, nil)
	if extractor.Threshold() != DefaultConfig().ConfidenceThreshold {
		t.Errorf("Expected default threshold, got %v", extractor.Threshold())
	}

	custom := NewExtractor(Config{ConfidenceThreshold: 0.9, MaxTerms: 5}, nil)
	if custom.Threshold() != 0.9 {
		t.Errorf("Expected custom threshold 0.9, got %v", custom.Threshold())
	}
	signals, _ := custom.Extract(richDescription)
	if len(signals.TopTerms) > 5 {
		t.Errorf("Expected at most 5 top terms, got %d", len(signals.TopTerms))
	}
}

func TestComputeCoverage(t *testing.T) {
	signals := types.Signals{
		TopTerms: []string{"Python", "Kubernetes", "communication", "Terraform"},
		Synonyms: map[string][]string{
			"Kubernetes": {"k8s"},
		},
	}
	revised := []string{
		"Shipped Python services on k8s",
		"Wrote runbooks for the platform team",
	}

	coverage := ComputeCoverage(revised, signals)

	expectedHit := []string{"Kubernetes", "Python"}
	expectedMiss := []string{"Terraform", "communication"}
	if !reflect.DeepEqual(coverage.Hit, expectedHit) {
		t.Errorf("Hit = %v, want %v", coverage.Hit, expectedHit)
	}
	if !reflect.DeepEqual(coverage.Miss, expectedMiss) {
		t.Errorf("Miss = %v, want %v", coverage.Miss, expectedMiss)
	}
}

func TestComputeCoverageCaseInsensitive(t *testing.T) {
	signals := types.Signals{TopTerms: []string{"PostgreSQL"}}
	coverage := ComputeCoverage([]string{"tuned postgresql indexes"}, signals)
	if len(coverage.Hit) != 1 || len(coverage.Miss) != 0 {
		t.Errorf("Expected case-insensitive hit, got hit=%v miss=%v", coverage.Hit, coverage.Miss)
	}
}

func TestComputeCoverageEmpty(t *testing.T) {
	coverage := ComputeCoverage(nil, types.Signals{TopTerms: []string{"Go"}})
	if len(coverage.Hit) != 0 {
		t.Errorf("Expected no hits with no bullets, got %v", coverage.Hit)
	}
	if !reflect.DeepEqual(coverage.Miss, []string{"Go"}) {
		t.Errorf("Expected all terms missed, got %v", coverage.Miss)
	}

	empty := ComputeCoverage([]string{"anything"}, types.Signals{})
	if len(empty.Hit) != 0 || len(empty.Miss) != 0 {
		t.Errorf("Expected empty coverage for empty signals, got %+v", empty)
	}
}

func TestComputeCoverageDeduplicatesTerms(t *testing.T) {
	signals := types.Signals{TopTerms: []string{"Go", "Go"}}
	coverage := ComputeCoverage([]string{"wrote go services"}, signals)
	if len(coverage.Hit) != 1 {
		t.Errorf("Expected duplicate terms collapsed, got %v", coverage.Hit)
	}
}

func TestComputeDiff(t *testing.T) {
	sig := types.Signals{TopTerms: []string{"kubernetes", "terraform", "python"}}

	diff := ComputeDiff(
		"Maintained legacy deployment scripts",
		[]string{"Migrated services to kubernetes", "Automated deployment with python"},
		sig,
	)

	for _, want := range []string{"maintained", "legacy", "scripts"} {
		assertContains(t, diff.Removed, want)
	}
	for _, removed := range diff.Removed {
		if removed == "deployment" {
			t.Error("Words surviving in a variant must not be reported as removed")
		}
	}

	expectedAdded := []string{"kubernetes", "python"}
	if !reflect.DeepEqual(diff.AddedTerms, expectedAdded) {
		t.Errorf("AddedTerms = %v, want %v in priority order", diff.AddedTerms, expectedAdded)
	}
}

func TestComputeDiffIgnoresStopwordsAndShortWords(t *testing.T) {
	diff := ComputeDiff(
		"Ran the ops for all of it",
		[]string{"Completely different text"},
		types.Signals{},
	)
	if len(diff.Removed) != 0 {
		t.Errorf("Stopwords and short words should never count as removed, got %v", diff.Removed)
	}
}

func TestComputeDiffTermAlreadyInOriginal(t *testing.T) {
	sig := types.Signals{TopTerms: []string{"python"}}
	diff := ComputeDiff(
		"Wrote python tooling",
		[]string{"Improved python tooling"},
		sig,
	)
	if len(diff.AddedTerms) != 0 {
		t.Errorf("Terms already present in the original are not additions, got %v", diff.AddedTerms)
	}
}

func TestComputeDiffNoVariants(t *testing.T) {
	diff := ComputeDiff("Managed releases", nil, types.Signals{TopTerms: []string{"go"}})
	if len(diff.Removed) != 0 || len(diff.AddedTerms) != 0 {
		t.Errorf("Expected empty diff without variants, got %+v", diff)
	}
	if diff.Removed == nil || diff.AddedTerms == nil {
		t.Error("Diff slices should be empty, not nil, for stable JSON output")
	}
}

func TestComputeDiffDeduplicatesRemoved(t *testing.T) {
	diff := ComputeDiff(
		"Tested tested tested everything",
		[]string{"Shipped the release"},
		types.Signals{},
	)
	count := 0
	for _, w := range diff.Removed {
		if w == "tested" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Repeated words should appear once in Removed, got %v", diff.Removed)
	}
}

func assertContains(t *testing.T, list []string, want string) {
	t.Helper()
	for _, item := range list {
		if item == want {
			return
		}
	}
	t.Errorf("Expected %q in %v", want, list)
}

func BenchmarkExtract(b *testing.B) {
	extractor := NewExtractor(DefaultConfig(), nil)
	for b.Loop() {
		extractor.Extract(richDescription)
	}
}
