package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"bulletsmith/internal/ai"
	"bulletsmith/internal/common"
	"bulletsmith/internal/types"

	"github.com/spf13/cobra"
)

var reviseCmd = &cobra.Command{
	Use:   "revise",
	Short: "Revise resume bullets against a job description",
	Long: `Revise resume bullet points toward a target job description.
The input file is a JSON document carrying the role, the job description, the
bullets to rewrite, and optional settings (tone, maxLen, variants). Every
bullet comes back with scored rewrite variants, a diff against the original,
and the job-level signal coverage.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		// Apply default format if not specified
		if reviseConfig.OutputFormat == "" {
			reviseConfig.OutputFormat = cfg.App.DefaultFormat
		}
		reviseConfig.MaxFileSize = cfg.App.MaxFileSize
		// Validate format against supported formats
		return common.ValidateOutputFormat(reviseConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runRevise,
}

var (
	reviseConfig common.CommandConfig
	reviseInput  string
)

func init() {
	reviseCmd.Flags().StringVarP(&reviseInput, "input", "i", "", "Job input file (JSON)")
	reviseCmd.Flags().StringVarP(&reviseConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	reviseCmd.Flags().StringVar(&reviseConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	_ = reviseCmd.MarkFlagRequired("input")

	// Add completion for format flag
	_ = reviseCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}

func runRevise(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	orchestrator, release, err := buildOrchestrator(cfg, logger)
	if err != nil {
		return err
	}
	defer release()

	createInput := func(contents []string) (types.JobInput, error) {
		if len(contents) != 1 {
			return types.JobInput{}, fmt.Errorf("expected 1 file path, got %d", len(contents))
		}
		var input types.JobInput
		if err := json.Unmarshal([]byte(contents[0]), &input); err != nil {
			return types.JobInput{}, fmt.Errorf("invalid job input JSON: %w", err)
		}
		return input, nil
	}

	logDetails := func(input types.JobInput, cfg common.CommandConfig) {
		logger.Info("Starting bullet revision",
			"role", input.Role,
			"bullet_count", len(input.Bullets),
			"description_chars", len(input.Description),
			"output_format", cfg.OutputFormat)
	}

	// Token usage is recorded inside the pipeline per external call, so the
	// runner has nothing extra to report here
	reviseOperation := func(ctx context.Context, input types.JobInput) (types.JobOutput, *ai.TokenUsage, error) {
		output, err := orchestrator.Execute(ctx, input)
		if err != nil {
			return types.JobOutput{}, nil, err
		}
		return *output, nil, nil
	}

	err = common.RunAICommand(
		cmd.Context(),
		logger,
		reviseConfig,
		[]string{reviseInput},
		createInput,
		reviseOperation,
		logDetails,
	)

	if err != nil {
		return fmt.Errorf("failed to revise bullets: %w", err)
	}
	logger.Info("Bullet revision completed successfully")
	return nil
}
