package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bulletsmith/internal/ai"
	"bulletsmith/internal/budget"
	"bulletsmith/internal/cache"
	"bulletsmith/internal/deadletter"
	"bulletsmith/internal/observability"
	"bulletsmith/internal/pipeline"
	"bulletsmith/internal/ratelimit"
	"bulletsmith/internal/signals"
	"bulletsmith/internal/store"
)

// Start brings up observability and the revision pipeline, then serves HTTP
// until a shutdown signal arrives or the listener fails.
func (s *Server) Start() error {
	obsCfg := observability.GetObservabilityConfig(s.AppConfig, s.Version)
	om, err := observability.NewObservabilityManager(obsCfg, s.AppConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer s.shutdownObservability(om)
	s.obs = om

	if err := s.buildPipeline(om); err != nil {
		return err
	}
	defer s.cleanupPipeline()

	httpServer := s.setupHTTPServer(om)
	if err := s.configureTLS(httpServer); err != nil {
		return err
	}

	return s.serveUntilSignal(httpServer)
}

// shutdownObservability flushes exporters with a bounded deadline.
func (s *Server) shutdownObservability(om *observability.ObservabilityManager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown observability")
	}
}

// buildPipeline assembles the revision pipeline and its collaborators from
// the application configuration. On error the partially built collaborators
// are released before returning.
func (s *Server) buildPipeline(om *observability.ObservabilityManager) error {
	cfg := s.AppConfig

	openCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stor, err := store.Open(openCtx, store.Options{
		Backend: cfg.Cache.Backend,
		Dir:     cfg.Cache.Dir,
		Redis: store.RedisOptions{
			Addr:        cfg.Cache.Redis.Addr,
			Password:    cfg.Cache.Redis.Password,
			DB:          cfg.Cache.Redis.DB,
			DialTimeout: cfg.Cache.Redis.DialTimeout,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}
	s.store = stor

	provider, err := ai.NewOperationsProvider(cfg, s.Logger)
	if err != nil {
		s.cleanupPipeline()
		return fmt.Errorf("failed to initialize AI providers: %w", err)
	}
	s.provider = provider

	if cfg.RateLimit.Enabled {
		s.pipelineLimiter = ratelimit.NewManagerPerMinute(
			cfg.RateLimit.RequestsPerMin, cfg.RateLimit.Burst, s.Logger)
	}

	if cfg.Budget.Enabled {
		s.budget = budget.NewManager(budget.Limits{
			DailyCostLimit:  cfg.Budget.DailyBudget,
			DailyRequestCap: cfg.Budget.DailyRequestCap,
			WarnThreshold:   cfg.Budget.WarnFraction,
			RetentionDays:   cfg.Budget.RetentionDays,
		}, s.Logger)
	}

	if cfg.DeadLetter.Path != "" {
		dlq, err := deadletter.NewLog(cfg.DeadLetter.Path, s.Logger)
		if err != nil {
			s.cleanupPipeline()
			return fmt.Errorf("failed to open dead letter log: %w", err)
		}
		s.deadLetter = dlq
	}

	extractor := signals.NewExtractor(signals.Config{
		EntityWeight:        cfg.Pipeline.Extraction.EntityWeight,
		ToolWeight:          cfg.Pipeline.Extraction.ToolWeight,
		SoftSkillWeight:     cfg.Pipeline.Extraction.SoftSkillWeight,
		TermWeight:          cfg.Pipeline.Extraction.TermWeight,
		DomainWeight:        cfg.Pipeline.Extraction.DomainWeight,
		ConfidenceThreshold: cfg.Pipeline.Extraction.ConfidenceThreshold,
		MaxTerms:            cfg.Pipeline.Extraction.MaxTerms,
	}, s.Logger)

	orchestrator, err := pipeline.New(pipeline.Options{
		Provider:    newInstrumentedProvider(provider, om),
		Extractor:   extractor,
		SignalCache: cache.NewSignalCache(stor, cfg.Cache.SignalTTL, s.Logger),
		Results:     cache.NewResultStore(stor, cfg.Cache.ResultTTL, s.Logger),
		Limiter:     s.pipelineLimiter,
		Budget:      s.budget,
		DeadLetter:  s.deadLetter,
		Logger:      s.Logger,
		Metrics:     om.PipelineRecorder(),
		Config: pipeline.Config{
			BatchSize:           cfg.Pipeline.BatchSize,
			ValidateParallelism: cfg.Pipeline.ValidateParallelism,
			CostPerRequest:      cfg.Budget.CostFor(cfg.GetProcessConfig().Model),
			CallerKey:           cfg.Pipeline.CallerKey,
		},
	})
	if err != nil {
		s.cleanupPipeline()
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	s.pipeline = orchestrator

	return nil
}

// cleanupPipeline releases the pipeline collaborators. Call once, after the
// HTTP server has stopped accepting requests.
func (s *Server) cleanupPipeline() {
	if s.RateLimiter != nil {
		s.RateLimiter.Stop()
		s.RateLimiter = nil
	}
	if s.pipelineLimiter != nil {
		s.pipelineLimiter.Stop()
		s.pipelineLimiter = nil
	}
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.Logger.LogError(err, "Failed to close AI providers")
		}
		s.provider = nil
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.Logger.LogError(err, "Failed to close cache store")
		}
		s.store = nil
	}
}

// setupHTTPServer assembles the routed handler and the listener timeouts.
func (s *Server) setupHTTPServer(om *observability.ObservabilityManager) *http.Server {
	return &http.Server{
		Addr:         net.JoinHostPort(s.Host, s.Port),
		Handler:      om.HTTPMiddleware()(s.setupRoutes(om)),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// listen picks the serve variant for the TLS setup. Inline certificate
// content is already loaded into the TLS config, so the file arguments
// stay empty in that case.
func (s *Server) listen(server *http.Server) error {
	switch {
	case server.TLSConfig == nil:
		return server.ListenAndServe()
	case s.TLSConfig.CertContent != "" || s.TLSConfig.KeyContent != "":
		return server.ListenAndServeTLS("", "")
	default:
		return server.ListenAndServeTLS(s.TLSConfig.CertFile, s.TLSConfig.KeyFile)
	}
}

// serveUntilSignal runs the listener until SIGINT or SIGTERM, then drains
// in-flight requests before Start releases the pipeline collaborators.
func (s *Server) serveUntilSignal(server *http.Server) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	listenErr := make(chan error, 1)
	go func() {
		s.Logger.Info("Starting HTTP server",
			"address", server.Addr,
			"tls_enabled", server.TLSConfig != nil)
		if err := s.listen(server); err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-quit:
		s.Logger.Info("Received shutdown signal, starting graceful shutdown",
			"signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed")
	return nil
}
