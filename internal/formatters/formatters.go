package formatters

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"bulletsmith/internal/budget"
	"bulletsmith/internal/types"
)

// Formatter renders one data type in one output format. SupportedType names
// the type a formatter accepts, with "any" marking a generic fallback.
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry dispatches to a formatter by output format and data type.
type FormatterRegistry struct {
	byFormat map[string]map[string]Formatter
}

// NewFormatterRegistry builds a registry with the built-in formatters wired up.
func NewFormatterRegistry() *FormatterRegistry {
	fr := &FormatterRegistry{byFormat: make(map[string]map[string]Formatter)}

	fr.Register("json", &JSONFormatter{})
	fr.Register("text", &ReviseTextFormatter{})
	fr.Register("markdown", &ReviseMarkdownFormatter{})
	fr.Register("text", &SignalsTextFormatter{})
	fr.Register("markdown", &SignalsMarkdownFormatter{})
	fr.Register("text", &UsageTextFormatter{})
	fr.Register("markdown", &UsageMarkdownFormatter{})

	return fr
}

// Register adds a formatter under the type it reports via SupportedType.
func (fr *FormatterRegistry) Register(format string, f Formatter) {
	if fr.byFormat[format] == nil {
		fr.byFormat[format] = make(map[string]Formatter)
	}
	fr.byFormat[format][f.SupportedType()] = f
}

// Format renders data in the requested format. A type-specific formatter wins
// over the generic fallback for that format.
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)
	byType := fr.byFormat[format]

	f, ok := byType[dataType]
	if !ok {
		f, ok = byType["any"]
	}
	if !ok {
		return "", fmt.Errorf("no %s formatter registered for type %s", format, dataType)
	}
	return f.Format(data)
}

func getDataType(data any) string {
	switch data.(type) {
	case types.JobOutput:
		return "JobOutput"
	case types.Signals:
		return "Signals"
	case budget.UsageStats:
		return "UsageStats"
	default:
		return "any"
	}
}

// JSONFormatter renders any value as indented JSON.
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// ReviseTextFormatter handles text formatting for revision results
type ReviseTextFormatter struct{}

func (rtf *ReviseTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.JobOutput)
	if !ok {
		return "", fmt.Errorf("expected JobOutput, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== BULLET REVISION ===\n\n")
	output.WriteString(fmt.Sprintf("Job: %s\n", result.JobID))
	output.WriteString(fmt.Sprintf("Role: %s\n\n", result.Summary.Role))

	output.WriteString("=== RESULTS ===\n\n")
	for i, bullet := range result.Results {
		output.WriteString(fmt.Sprintf("%d. Original: %s\n", i+1, bullet.Original))
		for j, revised := range bullet.Revised {
			output.WriteString(fmt.Sprintf("   Revised %d: %s\n", j+1, revised))
		}
		output.WriteString(fmt.Sprintf("   Scores: relevance %d, impact %d, clarity %d\n",
			bullet.Scores.Relevance, bullet.Scores.Impact, bullet.Scores.Clarity))
		if len(bullet.Diff.AddedTerms) > 0 {
			output.WriteString(fmt.Sprintf("   Added terms: %s\n", strings.Join(bullet.Diff.AddedTerms, ", ")))
		}
		if len(bullet.Diff.Removed) > 0 {
			output.WriteString(fmt.Sprintf("   Removed: %s\n", strings.Join(bullet.Diff.Removed, ", ")))
		}
		if bullet.Notes != "" {
			output.WriteString(fmt.Sprintf("   Notes: %s\n", bullet.Notes))
		}
		output.WriteString("\n")
	}

	output.WriteString("=== SIGNAL COVERAGE ===\n")
	output.WriteString(fmt.Sprintf("Top terms: %s\n", strings.Join(result.Summary.TopTerms, ", ")))
	output.WriteString(fmt.Sprintf("Hit: %s\n", strings.Join(result.Summary.Coverage.Hit, ", ")))
	output.WriteString(fmt.Sprintf("Miss: %s\n", strings.Join(result.Summary.Coverage.Miss, ", ")))
	output.WriteString("\n")

	if len(result.RedFlags) > 0 {
		output.WriteString("=== RED FLAGS ===\n")
		for _, flag := range result.RedFlags {
			output.WriteString(fmt.Sprintf("- %s\n", flag))
		}
	} else {
		output.WriteString("No red flags.\n")
	}

	return output.String(), nil
}

func (rtf *ReviseTextFormatter) SupportedType() string {
	return "JobOutput"
}

// ReviseMarkdownFormatter handles markdown formatting for revision results
type ReviseMarkdownFormatter struct{}

func (rmf *ReviseMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.JobOutput)
	if !ok {
		return "", fmt.Errorf("expected JobOutput, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Bullet Revision\n\n")
	output.WriteString(fmt.Sprintf("**Job:** %s\n\n", result.JobID))
	output.WriteString(fmt.Sprintf("**Role:** %s\n\n", result.Summary.Role))

	output.WriteString("## Results\n\n")
	for i, bullet := range result.Results {
		output.WriteString(fmt.Sprintf("### %d. %s\n\n", i+1, bullet.Original))
		for _, revised := range bullet.Revised {
			output.WriteString(fmt.Sprintf("- %s\n", revised))
		}
		output.WriteString(fmt.Sprintf("\n**Scores:** relevance %d, impact %d, clarity %d\n\n",
			bullet.Scores.Relevance, bullet.Scores.Impact, bullet.Scores.Clarity))
		if len(bullet.Diff.AddedTerms) > 0 {
			output.WriteString(fmt.Sprintf("**Added terms:** %s\n\n", strings.Join(bullet.Diff.AddedTerms, ", ")))
		}
		if len(bullet.Diff.Removed) > 0 {
			output.WriteString(fmt.Sprintf("**Removed:** %s\n\n", strings.Join(bullet.Diff.Removed, ", ")))
		}
		if bullet.Notes != "" {
			output.WriteString(fmt.Sprintf("**Notes:** %s\n\n", bullet.Notes))
		}
	}

	output.WriteString("## Signal Coverage\n\n")
	output.WriteString(fmt.Sprintf("**Top terms:** %s\n\n", strings.Join(result.Summary.TopTerms, ", ")))
	output.WriteString(fmt.Sprintf("**Hit:** %s\n\n", strings.Join(result.Summary.Coverage.Hit, ", ")))
	output.WriteString(fmt.Sprintf("**Miss:** %s\n\n", strings.Join(result.Summary.Coverage.Miss, ", ")))

	if len(result.RedFlags) > 0 {
		output.WriteString("## Red Flags\n\n")
		for _, flag := range result.RedFlags {
			output.WriteString(fmt.Sprintf("- %s\n", flag))
		}
	} else {
		output.WriteString("No red flags.\n")
	}

	return output.String(), nil
}

func (rmf *ReviseMarkdownFormatter) SupportedType() string {
	return "JobOutput"
}

// SignalsTextFormatter handles text formatting for extracted signals
type SignalsTextFormatter struct{}

func (stf *SignalsTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.Signals)
	if !ok {
		return "", fmt.Errorf("expected Signals, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== JOB SIGNALS ===\n\n")
	output.WriteString("Top terms:\n")
	for i, term := range result.TopTerms {
		output.WriteString(fmt.Sprintf("%d. %s", i+1, term))
		if weight, ok := result.Weights[term]; ok {
			output.WriteString(fmt.Sprintf(" (%.2f)", weight))
		}
		output.WriteString("\n")
	}
	output.WriteString("\n")

	if len(result.HardTools) > 0 {
		output.WriteString(fmt.Sprintf("Hard tools: %s\n", strings.Join(result.HardTools, ", ")))
	}
	if len(result.SoftSkills) > 0 {
		output.WriteString(fmt.Sprintf("Soft skills: %s\n", strings.Join(result.SoftSkills, ", ")))
	}
	if len(result.DomainTerms) > 0 {
		output.WriteString(fmt.Sprintf("Domain terms: %s\n", strings.Join(result.DomainTerms, ", ")))
	}

	if len(result.Themes) > 0 {
		output.WriteString("\nThemes:\n")
		for _, theme := range slices.Sorted(maps.Keys(result.Themes)) {
			output.WriteString(fmt.Sprintf("  %s: %s\n", theme, strings.Join(result.Themes[theme], ", ")))
		}
	}

	return output.String(), nil
}

func (stf *SignalsTextFormatter) SupportedType() string {
	return "Signals"
}

// SignalsMarkdownFormatter handles markdown formatting for extracted signals
type SignalsMarkdownFormatter struct{}

func (smf *SignalsMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.Signals)
	if !ok {
		return "", fmt.Errorf("expected Signals, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Job Signals\n\n")
	output.WriteString("## Top Terms\n\n")
	for i, term := range result.TopTerms {
		output.WriteString(fmt.Sprintf("%d. %s", i+1, term))
		if weight, ok := result.Weights[term]; ok {
			output.WriteString(fmt.Sprintf(" (%.2f)", weight))
		}
		output.WriteString("\n")
	}
	output.WriteString("\n")

	if len(result.HardTools) > 0 {
		output.WriteString(fmt.Sprintf("**Hard tools:** %s\n\n", strings.Join(result.HardTools, ", ")))
	}
	if len(result.SoftSkills) > 0 {
		output.WriteString(fmt.Sprintf("**Soft skills:** %s\n\n", strings.Join(result.SoftSkills, ", ")))
	}
	if len(result.DomainTerms) > 0 {
		output.WriteString(fmt.Sprintf("**Domain terms:** %s\n\n", strings.Join(result.DomainTerms, ", ")))
	}

	if len(result.Themes) > 0 {
		output.WriteString("## Themes\n\n")
		for _, theme := range slices.Sorted(maps.Keys(result.Themes)) {
			output.WriteString(fmt.Sprintf("- **%s:** %s\n", theme, strings.Join(result.Themes[theme], ", ")))
		}
	}

	return output.String(), nil
}

func (smf *SignalsMarkdownFormatter) SupportedType() string {
	return "Signals"
}

// UsageTextFormatter handles text formatting for cost guard snapshots
type UsageTextFormatter struct{}

func (utf *UsageTextFormatter) Format(data any) (string, error) {
	result, ok := data.(budget.UsageStats)
	if !ok {
		return "", fmt.Errorf("expected UsageStats, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== DAILY USAGE ===\n\n")
	output.WriteString(fmt.Sprintf("Date: %s\n", result.Date))
	output.WriteString(fmt.Sprintf("Cost: $%.4f of $%.2f (%.1f%%)\n",
		result.DailyCost, result.CostLimit, result.CostPercent))
	output.WriteString(fmt.Sprintf("Requests: %d of %d (%.1f%%)\n",
		result.DailyRequests, result.RequestLimit, result.RequestPercent))
	output.WriteString(fmt.Sprintf("Remaining: $%.4f, %d requests\n",
		result.CostRemaining, result.RequestsRemaining))

	if len(result.Warnings) > 0 {
		output.WriteString("\nWarnings:\n")
		for _, warning := range result.Warnings {
			output.WriteString(fmt.Sprintf("- %s\n", warning))
		}
	}

	if len(result.History) > 0 {
		output.WriteString("\nHistory:\n")
		for _, day := range result.History {
			output.WriteString(fmt.Sprintf("  %s: $%.4f, %d requests\n",
				day.Date, day.Cost, day.Requests))
		}
	}

	return output.String(), nil
}

func (utf *UsageTextFormatter) SupportedType() string {
	return "UsageStats"
}

// UsageMarkdownFormatter handles markdown formatting for cost guard snapshots
type UsageMarkdownFormatter struct{}

func (umf *UsageMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(budget.UsageStats)
	if !ok {
		return "", fmt.Errorf("expected UsageStats, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Daily Usage\n\n")
	output.WriteString(fmt.Sprintf("**Date:** %s\n\n", result.Date))
	output.WriteString(fmt.Sprintf("**Cost:** $%.4f of $%.2f (%.1f%%)\n\n",
		result.DailyCost, result.CostLimit, result.CostPercent))
	output.WriteString(fmt.Sprintf("**Requests:** %d of %d (%.1f%%)\n\n",
		result.DailyRequests, result.RequestLimit, result.RequestPercent))
	output.WriteString(fmt.Sprintf("**Remaining:** $%.4f, %d requests\n\n",
		result.CostRemaining, result.RequestsRemaining))

	if len(result.Warnings) > 0 {
		output.WriteString("## Warnings\n\n")
		for _, warning := range result.Warnings {
			output.WriteString(fmt.Sprintf("- %s\n", warning))
		}
		output.WriteString("\n")
	}

	if len(result.History) > 0 {
		output.WriteString("## History\n\n")
		for _, day := range result.History {
			output.WriteString(fmt.Sprintf("- %s: $%.4f, %d requests\n",
				day.Date, day.Cost, day.Requests))
		}
	}

	return output.String(), nil
}

func (umf *UsageMarkdownFormatter) SupportedType() string {
	return "UsageStats"
}

// GlobalRegistry serves the CLI and server output paths, which need no
// per-command registration.
var GlobalRegistry = NewFormatterRegistry()
