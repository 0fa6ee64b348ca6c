package cli

import (
	"context"

	"bulletsmith/internal/config"
	"bulletsmith/internal/errors"

	"github.com/spf13/cobra"
)

// Context keys for the dependencies Execute hands to every subcommand.
type (
	configKeyType struct{}
	loggerKeyType struct{}
)

var (
	configKey = configKeyType{}
	loggerKey = loggerKeyType{}
)

var rootCmd = &cobra.Command{
	Use:   "bulletsmith",
	Short: "A CLI tool for revising resume bullets against a job description",
	Long: `Bulletsmith rewrites resume bullet points toward a target job
description. It extracts the signals the description actually asks for,
rewrites each bullet against them, scores the rewrites, and flags any
rewrite that claims a tool or number the original never stated.`,
}

// Execute attaches the loaded config and logger to the command context and
// runs the CLI.
func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// getConfigFromContext returns the config Execute attached. Subcommands only
// run through Execute, so a missing value is a programming error.
func getConfigFromContext(ctx context.Context) *config.Config {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok {
		panic("config not found in context")
	}
	return cfg
}

// getLoggerFromContext returns the logger Execute attached.
func getLoggerFromContext(ctx context.Context) *errors.Logger {
	logger, ok := ctx.Value(loggerKey).(*errors.Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

func init() {
	rootCmd.AddCommand(reviseCmd, signalsCmd, usageCmd, dlqCmd, versionCmd, serveCmd)
}
