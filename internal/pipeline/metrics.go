package pipeline

import "context"

// Metrics receives pipeline measurements. Implementations must be safe for
// concurrent use; a no-op stands in when none is configured. Job outcomes
// are "completed", "rejected", "denied", or "failed".
type Metrics interface {
	RecordJob(ctx context.Context, outcome string)
	RecordStageDuration(ctx context.Context, stage string, seconds float64)
	RecordCacheEvent(ctx context.Context, cacheName, event string)
	RecordRateLimitDenial(ctx context.Context)
	RecordBudgetDenial(ctx context.Context)
	RecordDeadLetter(ctx context.Context, stage string)
}

// noopMetrics discards every measurement
type noopMetrics struct{}

func (noopMetrics) RecordJob(context.Context, string)                    {}
func (noopMetrics) RecordStageDuration(context.Context, string, float64) {}
func (noopMetrics) RecordCacheEvent(context.Context, string, string)     {}
func (noopMetrics) RecordRateLimitDenial(context.Context)                {}
func (noopMetrics) RecordBudgetDenial(context.Context)                   {}
func (noopMetrics) RecordDeadLetter(context.Context, string)             {}
