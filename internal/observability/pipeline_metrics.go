package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineRecorder records pipeline and infrastructure measurements while
// honoring the custom metrics configuration. A nil recorder is valid and
// records nothing, so callers can wire it unconditionally.
type PipelineRecorder struct {
	om *ObservabilityManager
}

// PipelineRecorder returns a recorder bound to this manager
func (om *ObservabilityManager) PipelineRecorder() *PipelineRecorder {
	return &PipelineRecorder{om: om}
}

// pipelineMetricsEnabled checks the pipeline custom metrics switch
func (r *PipelineRecorder) pipelineMetricsEnabled() bool {
	if r.om.fullConfig == nil {
		return true
	}
	return r.om.fullConfig.Observability.CustomMetrics.Pipeline.Enabled
}

// infrastructureMetricsEnabled checks the infrastructure custom metrics switch
func (r *PipelineRecorder) infrastructureMetricsEnabled() bool {
	if r.om.fullConfig == nil {
		return true
	}
	return r.om.fullConfig.Observability.CustomMetrics.Infrastructure.Enabled
}

// RecordJob counts one finished revision job by outcome
func (r *PipelineRecorder) RecordJob(ctx context.Context, outcome string) {
	if r == nil || r.om == nil || !r.pipelineMetricsEnabled() {
		return
	}
	m := r.om.GetMetrics()
	if m.JobsProcessed == nil {
		return
	}
	m.JobsProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome)))
}

// RecordStageDuration records time spent in one pipeline stage
func (r *PipelineRecorder) RecordStageDuration(ctx context.Context, stage string, seconds float64) {
	if r == nil || r.om == nil || !r.pipelineMetricsEnabled() {
		return
	}
	if r.om.fullConfig != nil && !r.om.fullConfig.Observability.CustomMetrics.Pipeline.TrackStageDurations {
		return
	}
	m := r.om.GetMetrics()
	if m.StageDuration == nil {
		return
	}
	m.StageDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("stage", stage)))
}

// RecordCacheEvent counts one hit or miss against a named cache
func (r *PipelineRecorder) RecordCacheEvent(ctx context.Context, cacheName, event string) {
	if r == nil || r.om == nil || !r.pipelineMetricsEnabled() {
		return
	}
	if r.om.fullConfig != nil && !r.om.fullConfig.Observability.CustomMetrics.Pipeline.TrackCacheEvents {
		return
	}
	m := r.om.GetMetrics()
	if m.CacheEvents == nil {
		return
	}
	m.CacheEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cacheName),
		attribute.String("event", event)))
}

// RecordRateLimitDenial counts one request denied by the rate limiter
func (r *PipelineRecorder) RecordRateLimitDenial(ctx context.Context) {
	if r == nil || r.om == nil || !r.infrastructureMetricsEnabled() {
		return
	}
	if r.om.fullConfig != nil && !r.om.fullConfig.Observability.CustomMetrics.Infrastructure.TrackRateLimits {
		return
	}
	m := r.om.GetMetrics()
	if m.RateLimitDenials == nil {
		return
	}
	m.RateLimitDenials.Add(ctx, 1)
}

// RecordBudgetDenial counts one model call denied by the cost guard
func (r *PipelineRecorder) RecordBudgetDenial(ctx context.Context) {
	if r == nil || r.om == nil || !r.infrastructureMetricsEnabled() {
		return
	}
	if r.om.fullConfig != nil && !r.om.fullConfig.Observability.CustomMetrics.Infrastructure.TrackBudget {
		return
	}
	m := r.om.GetMetrics()
	if m.BudgetDenials == nil {
		return
	}
	m.BudgetDenials.Add(ctx, 1)
}

// RecordDeadLetter counts one job appended to the dead letter log
func (r *PipelineRecorder) RecordDeadLetter(ctx context.Context, stage string) {
	if r == nil || r.om == nil || !r.infrastructureMetricsEnabled() {
		return
	}
	m := r.om.GetMetrics()
	if m.DeadLetterEntries == nil {
		return
	}
	m.DeadLetterEntries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage)))
}
