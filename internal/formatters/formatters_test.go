package formatters

import (
	"strings"
	"testing"

	"bulletsmith/internal/budget"
	"bulletsmith/internal/types"
)

func sampleJobOutput() types.JobOutput {
	return types.JobOutput{
		JobID: "job-1",
		Summary: types.Summary{
			Role:     "Backend Engineer",
			TopTerms: []string{"Go", "Kubernetes"},
			Coverage: types.Coverage{
				Hit:  []string{"Go"},
				Miss: []string{"Kubernetes"},
			},
		},
		Results: []types.BulletResult{
			{
				Original: "Built REST APIs",
				Revised:  []string{"Built Go REST APIs serving 2M requests per day"},
				Scores:   types.BulletScores{Relevance: 82, Impact: 74, Clarity: 90},
				Diff: types.BulletDiff{
					AddedTerms: []string{"Go"},
				},
			},
		},
		RedFlags: []string{"possible fabricated tool: Terraform"},
	}
}

func TestRegistryDispatchesByType(t *testing.T) {
	registry := NewFormatterRegistry()

	out, err := registry.Format(sampleJobOutput(), "text")
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !strings.Contains(out, "=== BULLET REVISION ===") {
		t.Errorf("Expected revision header, got:\n%s", out)
	}

	sig, err := registry.Format(types.Signals{TopTerms: []string{"Go"}}, "text")
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !strings.Contains(sig, "=== JOB SIGNALS ===") {
		t.Errorf("Expected signals header, got:\n%s", sig)
	}
}

func TestRegistryJSONFallsBackForAnyType(t *testing.T) {
	registry := NewFormatterRegistry()

	out, err := registry.Format(map[string]any{"count": 2}, "json")
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !strings.Contains(out, `"count": 2`) {
		t.Errorf("Expected indented JSON, got:\n%s", out)
	}
}

func TestRegistryRejectsUnknownFormat(t *testing.T) {
	registry := NewFormatterRegistry()

	if _, err := registry.Format(sampleJobOutput(), "xml"); err == nil {
		t.Fatal("Expected error for unknown format")
	}
}

func TestReviseTextFormatterContent(t *testing.T) {
	out, err := (&ReviseTextFormatter{}).Format(sampleJobOutput())
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	for _, want := range []string{
		"Job: job-1",
		"Role: Backend Engineer",
		"Original: Built REST APIs",
		"Revised 1: Built Go REST APIs serving 2M requests per day",
		"Scores: relevance 82, impact 74, clarity 90",
		"Added terms: Go",
		"Hit: Go",
		"Miss: Kubernetes",
		"possible fabricated tool: Terraform",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestReviseTextFormatterWithoutFlags(t *testing.T) {
	output := sampleJobOutput()
	output.RedFlags = nil

	out, err := (&ReviseTextFormatter{}).Format(output)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !strings.Contains(out, "No red flags.") {
		t.Errorf("Expected clean-run note, got:\n%s", out)
	}
}

func TestReviseMarkdownFormatterContent(t *testing.T) {
	out, err := (&ReviseMarkdownFormatter{}).Format(sampleJobOutput())
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	if !strings.Contains(out, "# Bullet Revision") {
		t.Errorf("Expected markdown title, got:\n%s", out)
	}
	if !strings.Contains(out, "### 1. Built REST APIs") {
		t.Errorf("Expected bullet heading, got:\n%s", out)
	}
	if !strings.Contains(out, "## Red Flags") {
		t.Errorf("Expected red flags section, got:\n%s", out)
	}
}

func TestSignalsFormatterOrdersThemes(t *testing.T) {
	sig := types.Signals{
		TopTerms: []string{"Go", "Kubernetes"},
		Weights:  map[string]float64{"Go": 1.0, "Kubernetes": 0.8},
		Themes: map[string][]string{
			"platform":  {"Kubernetes"},
			"languages": {"Go"},
		},
	}

	out, err := (&SignalsTextFormatter{}).Format(sig)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	if !strings.Contains(out, "1. Go (1.00)") {
		t.Errorf("Expected weighted term line, got:\n%s", out)
	}
	languages := strings.Index(out, "languages:")
	platform := strings.Index(out, "platform:")
	if languages == -1 || platform == -1 || languages > platform {
		t.Errorf("Expected themes in sorted order, got:\n%s", out)
	}
}

func TestUsageFormatterContent(t *testing.T) {
	stats := budget.UsageStats{
		Date:              "2026-08-25",
		DailyCost:         0.12,
		DailyRequests:     12,
		CostLimit:         5.0,
		RequestLimit:      500,
		CostRemaining:     4.88,
		RequestsRemaining: 488,
		CostPercent:       2.4,
		RequestPercent:    2.4,
		Warnings:          []string{"daily cost at 80% of limit"},
	}

	out, err := (&UsageTextFormatter{}).Format(stats)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	for _, want := range []string{
		"Date: 2026-08-25",
		"Cost: $0.1200 of $5.00 (2.4%)",
		"Requests: 12 of 500 (2.4%)",
		"daily cost at 80% of limit",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestFormattersRejectWrongType(t *testing.T) {
	if _, err := (&ReviseTextFormatter{}).Format("not a job output"); err == nil {
		t.Error("ReviseTextFormatter accepted a string")
	}
	if _, err := (&SignalsMarkdownFormatter{}).Format(42); err == nil {
		t.Error("SignalsMarkdownFormatter accepted an int")
	}
	if _, err := (&UsageMarkdownFormatter{}).Format(struct{}{}); err == nil {
		t.Error("UsageMarkdownFormatter accepted an empty struct")
	}
}
