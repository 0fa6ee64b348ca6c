package cli

import (
	"context"
	"fmt"
	"time"

	"bulletsmith/internal/ai"
	"bulletsmith/internal/budget"
	"bulletsmith/internal/cache"
	"bulletsmith/internal/config"
	"bulletsmith/internal/deadletter"
	"bulletsmith/internal/errors"
	"bulletsmith/internal/pipeline"
	"bulletsmith/internal/ratelimit"
	"bulletsmith/internal/signals"
	"bulletsmith/internal/store"
)

// buildOrchestrator assembles the revision pipeline for one-shot commands.
// Unlike the server it carries no metrics recorder; everything else (cache
// store, providers, limiter, cost guard, dead letter log) is wired the same
// way. The returned release func must be called exactly once after the last
// job finishes.
func buildOrchestrator(cfg *config.Config, logger *errors.Logger) (*pipeline.Orchestrator, func(), error) {
	var (
		stor     store.Store
		provider *ai.OperationsProvider
		limiter  *ratelimit.Manager
	)

	release := func() {
		if limiter != nil {
			limiter.Stop()
		}
		if provider != nil {
			if err := provider.Close(); err != nil {
				logger.LogError(err, "Failed to close AI providers")
			}
		}
		if stor != nil {
			if err := stor.Close(); err != nil {
				logger.LogError(err, "Failed to close cache store")
			}
		}
	}

	openCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	stor, err = store.Open(openCtx, store.Options{
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
		return nil, nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	provider, err = ai.NewOperationsProvider(cfg, logger)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to create AI providers: %w", err)
	}

	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewManagerPerMinute(
			cfg.RateLimit.RequestsPerMin, cfg.RateLimit.Burst, logger)
	}

	var guard *budget.Manager
	if cfg.Budget.Enabled {
		guard = budget.NewManager(budget.Limits{
			DailyCostLimit:  cfg.Budget.DailyBudget,
			DailyRequestCap: cfg.Budget.DailyRequestCap,
			WarnThreshold:   cfg.Budget.WarnFraction,
			RetentionDays:   cfg.Budget.RetentionDays,
		}, logger)
	}

	var dlq *deadletter.Log
	if cfg.DeadLetter.Path != "" {
		dlq, err = deadletter.NewLog(cfg.DeadLetter.Path, logger)
		if err != nil {
			release()
			return nil, nil, fmt.Errorf("failed to open dead letter log: %w", err)
		}
	}

	orchestrator, err := pipeline.New(pipeline.Options{
		Provider:    provider,
		Extractor:   newExtractor(cfg, logger),
		SignalCache: cache.NewSignalCache(stor, cfg.Cache.SignalTTL, logger),
		Results:     cache.NewResultStore(stor, cfg.Cache.ResultTTL, logger),
		Limiter:     limiter,
		Budget:      guard,
		DeadLetter:  dlq,
		Logger:      logger,
		Config: pipeline.Config{
			BatchSize:           cfg.Pipeline.BatchSize,
			ValidateParallelism: cfg.Pipeline.ValidateParallelism,
			CostPerRequest:      cfg.Budget.CostFor(cfg.GetProcessConfig().Model),
			CallerKey:           cfg.Pipeline.CallerKey,
		},
	})
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	return orchestrator, release, nil
}

// newExtractor builds the local signal extractor from the configured
// extraction weights
func newExtractor(cfg *config.Config, logger *errors.Logger) *signals.Extractor {
	return signals.NewExtractor(signals.Config{
		EntityWeight:        cfg.Pipeline.Extraction.EntityWeight,
		ToolWeight:          cfg.Pipeline.Extraction.ToolWeight,
		SoftSkillWeight:     cfg.Pipeline.Extraction.SoftSkillWeight,
		TermWeight:          cfg.Pipeline.Extraction.TermWeight,
		DomainWeight:        cfg.Pipeline.Extraction.DomainWeight,
		ConfidenceThreshold: cfg.Pipeline.Extraction.ConfidenceThreshold,
		MaxTerms:            cfg.Pipeline.Extraction.MaxTerms,
	}, logger)
}
