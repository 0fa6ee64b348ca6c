package ai

import (
	"context"
	"errors"

	"bulletsmith/internal/config"
	bulletsmithErrors "bulletsmith/internal/errors"
	"bulletsmith/internal/types"
)

// OperationsProvider fans the provider surface out to one provider per
// operation, so each honors its own model, temperature, retry, and circuit
// breaker configuration.
type OperationsProvider struct {
	signals  Provider
	process  Provider
	validate Provider
}

// Ensure OperationsProvider implements Provider
var _ Provider = (*OperationsProvider)(nil)

// NewOperationsProvider builds the per-operation providers from their
// resolved configurations
func NewOperationsProvider(cfg *config.Config, logger *bulletsmithErrors.Logger) (*OperationsProvider, error) {
	signalsCfg := cfg.GetSignalsConfig()
	signalsSvc, err := NewService(&signalsCfg, "signals", logger)
	if err != nil {
		return nil, err
	}

	processCfg := cfg.GetProcessConfig()
	processSvc, err := NewService(&processCfg, "process", logger)
	if err != nil {
		_ = signalsSvc.Provider.Close()
		return nil, err
	}

	validateCfg := cfg.GetValidateConfig()
	validateSvc, err := NewService(&validateCfg, "validate", logger)
	if err != nil {
		_ = signalsSvc.Provider.Close()
		_ = processSvc.Provider.Close()
		return nil, err
	}

	return &OperationsProvider{
		signals:  signalsSvc.Provider,
		process:  processSvc.Provider,
		validate: validateSvc.Provider,
	}, nil
}

func (p *OperationsProvider) ExtractSignals(ctx context.Context, input types.ExtractSignalsInput) (types.Signals, *TokenUsage, error) {
	return p.signals.ExtractSignals(ctx, input)
}

func (p *OperationsProvider) ProcessBullets(ctx context.Context, input types.ProcessBulletsInput) (types.ProcessBulletsOutput, *TokenUsage, error) {
	return p.process.ProcessBullets(ctx, input)
}

func (p *OperationsProvider) CheckConsistency(ctx context.Context, input types.CheckConsistencyInput) (types.CheckConsistencyOutput, *TokenUsage, error) {
	return p.validate.CheckConsistency(ctx, input)
}

// GetModelInfo reports on the rewrite model, the operation the pipeline
// leans on hardest. ModelInfoByOperation covers all three.
func (p *OperationsProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	return p.process.GetModelInfo(ctx)
}

// ModelInfoByOperation probes every operation's model for health reporting
func (p *OperationsProvider) ModelInfoByOperation(ctx context.Context) map[string]*ModelInfo {
	return map[string]*ModelInfo{
		"signals":  p.signals.GetModelInfo(ctx),
		"process":  p.process.GetModelInfo(ctx),
		"validate": p.validate.GetModelInfo(ctx),
	}
}

// BreakerStatsByOperation reports circuit breaker state for providers that
// expose it
func (p *OperationsProvider) BreakerStatsByOperation() map[string]map[string]any {
	stats := make(map[string]map[string]any)
	for op, provider := range map[string]Provider{
		"signals":  p.signals,
		"process":  p.process,
		"validate": p.validate,
	} {
		if b, ok := provider.(interface{ GetCircuitBreakerStats() map[string]any }); ok {
			stats[op] = b.GetCircuitBreakerStats()
		}
	}
	return stats
}

func (p *OperationsProvider) Close() error {
	return errors.Join(p.signals.Close(), p.process.Close(), p.validate.Close())
}
