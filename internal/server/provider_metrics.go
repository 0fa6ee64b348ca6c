package server

import (
	"context"

	"bulletsmith/internal/ai"
	"bulletsmith/internal/observability"
	"bulletsmith/internal/types"
)

// instrumentedProvider decorates an ai.Provider so every model call is
// bracketed by the span, duration, request, and token usage instruments.
// Errors pass through untouched, so pipeline error classification still
// sees the provider's codes.
type instrumentedProvider struct {
	inner ai.Provider
	om    *observability.ObservabilityManager
}

var _ ai.Provider = (*instrumentedProvider)(nil)

func newInstrumentedProvider(inner ai.Provider, om *observability.ObservabilityManager) *instrumentedProvider {
	return &instrumentedProvider{inner: inner, om: om}
}

// track runs one model call under TrackAIOperationWithTokens. The closure
// reports the call's token usage and error to the tracker; outputs travel
// through variables captured by the caller.
func (p *instrumentedProvider) track(ctx context.Context, operation string, fn func(context.Context) (*ai.TokenUsage, error)) error {
	return p.om.GetMetrics().TrackAIOperationWithTokens(ctx, operation, func(ctx context.Context) *observability.AIOperationResult {
		usage, err := fn(ctx)
		return &observability.AIOperationResult{
			Error:      err,
			TokenUsage: (*observability.TokenUsage)(usage),
		}
	}, p.om)
}

func (p *instrumentedProvider) ExtractSignals(ctx context.Context, input types.ExtractSignalsInput) (types.Signals, *ai.TokenUsage, error) {
	var out types.Signals
	var usage *ai.TokenUsage
	err := p.track(ctx, "signals", func(ctx context.Context) (*ai.TokenUsage, error) {
		var callErr error
		out, usage, callErr = p.inner.ExtractSignals(ctx, input)
		return usage, callErr
	})
	return out, usage, err
}

func (p *instrumentedProvider) ProcessBullets(ctx context.Context, input types.ProcessBulletsInput) (types.ProcessBulletsOutput, *ai.TokenUsage, error) {
	var out types.ProcessBulletsOutput
	var usage *ai.TokenUsage
	err := p.track(ctx, "process", func(ctx context.Context) (*ai.TokenUsage, error) {
		var callErr error
		out, usage, callErr = p.inner.ProcessBullets(ctx, input)
		return usage, callErr
	})
	return out, usage, err
}

func (p *instrumentedProvider) CheckConsistency(ctx context.Context, input types.CheckConsistencyInput) (types.CheckConsistencyOutput, *ai.TokenUsage, error) {
	var out types.CheckConsistencyOutput
	var usage *ai.TokenUsage
	err := p.track(ctx, "validate", func(ctx context.Context) (*ai.TokenUsage, error) {
		var callErr error
		out, usage, callErr = p.inner.CheckConsistency(ctx, input)
		return usage, callErr
	})
	return out, usage, err
}

func (p *instrumentedProvider) GetModelInfo(ctx context.Context) *ai.ModelInfo {
	return p.inner.GetModelInfo(ctx)
}

func (p *instrumentedProvider) Close() error {
	return p.inner.Close()
}
