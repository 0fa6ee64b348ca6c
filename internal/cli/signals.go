package cli

import (
	"context"
	"fmt"

	"bulletsmith/internal/ai"
	"bulletsmith/internal/common"
	"bulletsmith/internal/errors"
	"bulletsmith/internal/signals"
	"bulletsmith/internal/types"

	"github.com/spf13/cobra"
)

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Extract hiring signals from a job description",
	Long: `Extract the ranked signal terms from a job description without running
a full revision job. The local heuristic runs first; when its confidence falls
below the configured threshold the external model is consulted, unless
--local-only is set, in which case the local result is kept regardless.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if signalsConfig.OutputFormat == "" {
			signalsConfig.OutputFormat = cfg.App.DefaultFormat
		}
		signalsConfig.MaxFileSize = cfg.App.MaxFileSize
		return common.ValidateOutputFormat(signalsConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runSignals,
}

var (
	signalsConfig    common.CommandConfig
	signalsInput     string
	signalsLocalOnly bool
)

func init() {
	signalsCmd.Flags().StringVarP(&signalsInput, "input", "i", "", "Job description file (plain text)")
	signalsCmd.Flags().StringVarP(&signalsConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	signalsCmd.Flags().StringVar(&signalsConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	signalsCmd.Flags().BoolVar(&signalsLocalOnly, "local-only", false, "Keep the local extraction even when its confidence is low")
	_ = signalsCmd.MarkFlagRequired("input")

	_ = signalsCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}

func runSignals(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	extractor := newExtractor(cfg, logger)

	// The provider is only needed for the low-confidence fallback, so
	// --local-only runs without touching the external service at all
	var provider *ai.OperationsProvider
	if !signalsLocalOnly {
		var err error
		provider, err = ai.NewOperationsProvider(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to create AI providers: %w", err)
		}
		defer func() {
			if err := provider.Close(); err != nil {
				logger.LogError(err, "Failed to close AI providers")
			}
		}()
	}

	createInput := func(contents []string) (types.ExtractSignalsInput, error) {
		if len(contents) != 1 {
			return types.ExtractSignalsInput{}, fmt.Errorf("expected 1 file path, got %d", len(contents))
		}
		description := signals.NormalizeText(contents[0])
		if description == "" {
			return types.ExtractSignalsInput{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
				"Description is empty after normalization", nil)
		}
		return types.ExtractSignalsInput{Description: description}, nil
	}

	logDetails := func(input types.ExtractSignalsInput, cfg common.CommandConfig) {
		logger.Info("Starting signal extraction",
			"description_chars", len(input.Description),
			"local_only", signalsLocalOnly,
			"output_format", cfg.OutputFormat)
	}

	extractOperation := func(ctx context.Context, input types.ExtractSignalsInput) (types.Signals, *ai.TokenUsage, error) {
		sig, confidence := extractor.Extract(input.Description)
		if signalsLocalOnly || confidence >= extractor.Threshold() {
			logger.Info("Local extraction",
				"terms", len(sig.TopTerms), "confidence", confidence)
			return sig, nil, nil
		}

		logger.Info("Local confidence below threshold, using model extraction",
			"confidence", confidence, "threshold", extractor.Threshold())
		modelSig, usage, err := provider.ExtractSignals(ctx, input)
		if err != nil {
			return types.Signals{}, nil, err
		}
		return modelSig, usage, nil
	}

	err := common.RunAICommand(
		cmd.Context(),
		logger,
		signalsConfig,
		[]string{signalsInput},
		createInput,
		extractOperation,
		logDetails,
	)

	if err != nil {
		return fmt.Errorf("failed to extract signals: %w", err)
	}
	logger.Info("Signal extraction completed successfully")
	return nil
}
