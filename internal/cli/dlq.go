package cli

import (
	"crypto/subtle"
	"fmt"

	"bulletsmith/internal/common"
	"bulletsmith/internal/deadletter"
	"bulletsmith/internal/errors"

	"github.com/spf13/cobra"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and manage the dead letter log",
	Long: `Inspect the append-only log of permanently failed jobs and clear it
once the entries have been dealt with. The log location comes from the dlq
section of the configuration.`,
}

var (
	dlqLimit    int
	dlqYes      bool
	dlqAdminKey string
)

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead letter entries",
	RunE:  runDLQList,
}

var dlqShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show the dead letter entry for one job",
	Args:  cobra.ExactArgs(1),
	RunE:  runDLQShow,
}

var dlqClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the dead letter log",
	RunE:  runDLQClear,
}

func init() {
	dlqListCmd.Flags().IntVar(&dlqLimit, "limit", 0, "Maximum entries to list (0 lists all)")
	dlqClearCmd.Flags().BoolVar(&dlqYes, "yes", false, "Confirm removal without prompting")
	dlqClearCmd.Flags().StringVar(&dlqAdminKey, "admin-key", "", "Admin API key (required when one is configured)")

	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqShowCmd)
	dlqCmd.AddCommand(dlqClearCmd)
}

// openDeadLetterLog opens the configured dead letter log
func openDeadLetterLog(cmd *cobra.Command) (*deadletter.Log, *errors.Logger, error) {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	if cfg.DeadLetter.Path == "" {
		return nil, nil, fmt.Errorf("no dead letter log configured (set dlq.path)")
	}
	dlq, err := deadletter.NewLog(cfg.DeadLetter.Path, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open dead letter log: %w", err)
	}
	return dlq, logger, nil
}

func runDLQList(cmd *cobra.Command, args []string) error {
	dlq, logger, err := openDeadLetterLog(cmd)
	if err != nil {
		return err
	}

	entries, err := dlq.List(dlqLimit)
	if err != nil {
		return fmt.Errorf("failed to list dead letter entries: %w", err)
	}

	listing := map[string]any{
		"path":    dlq.Path(),
		"count":   len(entries),
		"entries": entries,
	}
	return common.NewOutputHandler(logger).HandleOutput(listing, common.CommandConfig{OutputFormat: "json"})
}

func runDLQShow(cmd *cobra.Command, args []string) error {
	dlq, logger, err := openDeadLetterLog(cmd)
	if err != nil {
		return err
	}

	entry, found, err := dlq.FindByJobID(args[0])
	if err != nil {
		return fmt.Errorf("failed to read dead letter log: %w", err)
	}
	if !found {
		return fmt.Errorf("no dead letter entry for job %s", args[0])
	}

	return common.NewOutputHandler(logger).HandleOutput(entry, common.CommandConfig{OutputFormat: "json"})
}

func runDLQClear(cmd *cobra.Command, args []string) error {
	if !dlqYes {
		return fmt.Errorf("refusing to clear the dead letter log without --yes")
	}

	cfg := getConfigFromContext(cmd.Context())
	if cfg.Server.AdminAPIKey != "" &&
		subtle.ConstantTimeCompare([]byte(dlqAdminKey), []byte(cfg.Server.AdminAPIKey)) != 1 {
		return fmt.Errorf("admin API key required to clear the dead letter log (pass --admin-key)")
	}

	dlq, logger, err := openDeadLetterLog(cmd)
	if err != nil {
		return err
	}

	count, err := dlq.Count()
	if err != nil {
		return fmt.Errorf("failed to read dead letter log: %w", err)
	}
	if err := dlq.Clear(); err != nil {
		return fmt.Errorf("failed to clear dead letter log: %w", err)
	}

	logger.Info("Dead letter log cleared",
		"path", dlq.Path(), "entries_removed", count)
	return nil
}
