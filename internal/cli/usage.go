package cli

import (
	"fmt"

	"bulletsmith/internal/budget"
	"bulletsmith/internal/common"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show the configured daily cost limits and usage",
	Long: `Show the cost guard snapshot for this process: the configured daily
budget and request cap, with spend and remaining headroom. The ledger lives in
memory per process, so a fresh invocation reports the limits with zero usage;
the running server exposes its live ledger at /usage.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		if usageConfig.OutputFormat == "" {
			usageConfig.OutputFormat = cfg.App.DefaultFormat
		}
		return common.ValidateOutputFormat(usageConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runUsage,
}

var usageConfig common.CommandConfig

func init() {
	usageCmd.Flags().StringVarP(&usageConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	usageCmd.Flags().StringVar(&usageConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")

	_ = usageCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return common.GetSupportedFormats(cfg.App.SupportedFormats), cobra.ShellCompDirectiveNoFileComp
	})
}

func runUsage(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	if !cfg.Budget.Enabled {
		return fmt.Errorf("daily budget tracking is not enabled (set budget.enabled)")
	}

	guard := budget.NewManager(budget.Limits{
		DailyCostLimit:  cfg.Budget.DailyBudget,
		DailyRequestCap: cfg.Budget.DailyRequestCap,
		WarnThreshold:   cfg.Budget.WarnFraction,
		RetentionDays:   cfg.Budget.RetentionDays,
	}, logger)

	stats := guard.StatsFor(cfg.Pipeline.CallerKey)
	return common.NewOutputHandler(logger).HandleOutput(stats, usageConfig)
}
