package ai

import (
	"context"

	"bulletsmith/internal/types"
)

// Provider is the contract every model backend satisfies. Each operation
// reports token usage alongside its result so callers can meter spend.
type Provider interface {
	ExtractSignals(ctx context.Context, input types.ExtractSignalsInput) (types.Signals, *TokenUsage, error)
	ProcessBullets(ctx context.Context, input types.ProcessBulletsInput) (types.ProcessBulletsOutput, *TokenUsage, error)
	CheckConsistency(ctx context.Context, input types.CheckConsistencyInput) (types.CheckConsistencyOutput, *TokenUsage, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	Close() error
}
