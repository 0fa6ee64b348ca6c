package cli

import (
	"fmt"

	"bulletsmith/internal/config"
	"bulletsmith/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for bullet revision",
	Long: `Start an HTTP server that runs revision jobs over a REST API.

Available endpoints:
- POST /revise: Run one revision job for the submitted bullets
- GET /usage: Daily spend and request counts for the calling key
- GET /dlq: Inspect dead letter entries (DELETE clears, admin key required)
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info
- GET /metrics: Prometheus exposition (when enabled)

TLS is controlled by --tls-mode (disabled, server, or mutual) together with
--cert-file/--key-file for the server pair and --ca-file for verifying client
certificates in mutual mode. Flags override the corresponding config values.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Listen port (overrides config)")
	serveCmd.Flags().String("host", "", "Bind address (overrides config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled, server, or mutual")
	serveCmd.Flags().String("cert-file", "", "Server certificate, PEM")
	serveCmd.Flags().String("key-file", "", "Server private key, PEM")
	serveCmd.Flags().String("ca-file", "", "CA bundle for client certificate verification, PEM")
}

// applyServeOverrides copies explicitly set command flags onto the loaded
// configuration. Config loading happens in main before flags are parsed, so
// the overrides cannot travel through viper.
func applyServeOverrides(cmd *cobra.Command, cfg *config.Config) {
	override := func(name string, dst *string) {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}

	override("port", &cfg.Server.Port)
	override("host", &cfg.Server.Host)
	override("tls-mode", &cfg.Server.TLS.Mode)
	override("cert-file", &cfg.Server.TLS.CertFile)
	override("key-file", &cfg.Server.TLS.KeyFile)
	override("ca-file", &cfg.Server.TLS.CAFile)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	// Flags can change the TLS mode, so validate after applying them.
	applyServeOverrides(cmd, cfg)
	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	// Hot-reload prompt files while the server runs. The watcher is nil when
	// watching is disabled, and every method tolerates that.
	watcher, err := config.NewPromptWatcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up prompt watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start prompt watcher: %w", err)
	}
	defer func() {
		if err := watcher.Stop(); err != nil {
			logger.LogError(err, "Failed to stop prompt watcher")
		}
	}()

	serverCfg := server.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        Version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        cfg.Server.APIKeys,
		AdminAPIKey:    cfg.Server.AdminAPIKey,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.Server.MaxRequestSize,
		RateLimit:      &cfg.RateLimit,
	}
	return server.NewServer(cfg, serverCfg, logger).Start()
}
