package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bulletsmith/internal/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ObservabilityConfig holds the runtime settings for traces and metrics.
type ObservabilityConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	SampleRate     float64
	ConsoleOutput  bool
	PrettyPrint    bool
	Prometheus     PrometheusConfig
}

// Metrics holds all custom instruments
type Metrics struct {
	// AI operation metrics
	AIProcessingTime metric.Float64Histogram
	AIRequestCount   metric.Int64Counter
	AITokenUsage     metric.Int64Counter

	// Pipeline metrics
	JobsProcessed metric.Int64Counter
	StageDuration metric.Float64Histogram
	CacheEvents   metric.Int64Counter

	// Infrastructure metrics
	RateLimitDenials  metric.Int64Counter
	BudgetDenials     metric.Int64Counter
	DeadLetterEntries metric.Int64Counter
}

// ObservabilityManager owns the OpenTelemetry providers and their shutdown.
type ObservabilityManager struct {
	config         ObservabilityConfig
	fullConfig     *config.Config // Nested custom metrics switches live here
	res            *resource.Resource
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metrics        *Metrics
	shutdownFuncs  []func(context.Context) error
}

// NewObservabilityManager wires tracing and metrics per the config. With
// Enabled false the manager is inert: middleware passes requests through
// and tracers are no-ops.
func NewObservabilityManager(obsConfig ObservabilityConfig, fullConfig *config.Config) (*ObservabilityManager, error) {
	om := &ObservabilityManager{config: obsConfig, fullConfig: fullConfig}
	if !obsConfig.Enabled {
		return om, nil
	}

	res, err := om.buildResource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	om.res = res

	if err := om.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if err := om.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return om, nil
}

// buildResource describes this process once; traces and metrics share it.
func (om *ObservabilityManager) buildResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(om.config.ServiceName),
			semconv.ServiceVersion(om.config.ServiceVersion),
			attribute.String("service.instance.id", om.instanceID()),
		),
	)
}

func (om *ObservabilityManager) initTracing() error {
	exporter, err := om.newSpanExporter()
	if err != nil {
		return err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(om.res),
		trace.WithSampler(trace.TraceIDRatioBased(om.config.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	om.tracerProvider = tp
	om.shutdownFuncs = append(om.shutdownFuncs, tp.Shutdown)
	return nil
}

// newSpanExporter picks the span destination: console for development, OTLP
// when configured, otherwise spans are dropped. Turning tracing off exports
// nowhere while keeping tracer wiring intact.
func (om *ObservabilityManager) newSpanExporter() (trace.SpanExporter, error) {
	otlp, otlpEnabled := om.otlpConfig()

	switch {
	case !om.tracingEnabled():
		return discardSpanExporter{}, nil
	case om.config.ConsoleOutput:
		opts := []stdouttrace.Option{}
		if om.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err := stdouttrace.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		return exporter, nil
	case otlpEnabled:
		return newOTLPTraceExporter(otlp)
	default:
		return discardSpanExporter{}, nil
	}
}

func (om *ObservabilityManager) initMetrics() error {
	readers, err := om.metricReaders()
	if err != nil {
		return err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(om.res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	om.meterProvider = mp
	om.shutdownFuncs = append(om.shutdownFuncs, mp.Shutdown)

	return om.initInstruments()
}

// metricReaders assembles one reader per enabled destination. Without any,
// a manual reader keeps instrument registration working so recording sites
// never need nil checks. Turning metrics off skips every destination.
func (om *ObservabilityManager) metricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	if om.metricExportEnabled() {
		if om.config.ConsoleOutput {
			exporter, err := stdoutmetric.New()
			if err != nil {
				return nil, fmt.Errorf("failed to create console metric exporter: %w", err)
			}
			readers = append(readers, sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(om.collectInterval())))
		}

		if otlp, enabled := om.otlpConfig(); enabled {
			reader, err := newOTLPMetricReader(otlp, om.collectInterval())
			if err != nil {
				return nil, err
			}
			readers = append(readers, reader)
		}

		if om.config.Prometheus.Enabled {
			reader, err := NewPrometheusReader()
			if err != nil {
				return nil, err
			}
			readers = append(readers, reader)
			ServeMetrics(om.config.Prometheus)
		}
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}
	return readers, nil
}

// initInstruments registers the custom instruments on the meter provider.
func (om *ObservabilityManager) initInstruments() error {
	meter := om.meterProvider.Meter(om.config.ServiceName)
	om.metrics = &Metrics{}

	for _, create := range []func(metric.Meter) error{
		om.createAIMetrics,
		om.createPipelineMetrics,
		om.createInfrastructureMetrics,
	} {
		if err := create(meter); err != nil {
			return err
		}
	}
	return nil
}

// createAIMetrics creates model-call metrics
func (om *ObservabilityManager) createAIMetrics(meter metric.Meter) error {
	var err error

	om.metrics.AIProcessingTime, err = meter.Float64Histogram(
		"bulletsmith_ai_processing_duration_seconds",
		metric.WithDescription("Time spent on model-backed operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI processing time metric: %w", err)
	}

	om.metrics.AIRequestCount, err = meter.Int64Counter(
		"bulletsmith_ai_requests_total",
		metric.WithDescription("Total number of model requests by operation and outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI request count metric: %w", err)
	}

	om.metrics.AITokenUsage, err = meter.Int64Counter(
		"bulletsmith_ai_tokens_total",
		metric.WithDescription("Token usage for model requests (input, output, total)"),
		metric.WithUnit("tokens"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI token usage metric: %w", err)
	}

	return nil
}

// createPipelineMetrics creates job pipeline metrics
func (om *ObservabilityManager) createPipelineMetrics(meter metric.Meter) error {
	var err error

	om.metrics.JobsProcessed, err = meter.Int64Counter(
		"bulletsmith_jobs_total",
		metric.WithDescription("Total number of revision jobs by outcome"),
	)
	if err != nil {
		return fmt.Errorf("failed to create jobs processed metric: %w", err)
	}

	om.metrics.StageDuration, err = meter.Float64Histogram(
		"bulletsmith_stage_duration_seconds",
		metric.WithDescription("Time spent in each pipeline stage"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create stage duration metric: %w", err)
	}

	om.metrics.CacheEvents, err = meter.Int64Counter(
		"bulletsmith_cache_events_total",
		metric.WithDescription("Cache hits and misses by cache name"),
	)
	if err != nil {
		return fmt.Errorf("failed to create cache events metric: %w", err)
	}

	return nil
}

// createInfrastructureMetrics creates rate limit, budget, and dead letter metrics
func (om *ObservabilityManager) createInfrastructureMetrics(meter metric.Meter) error {
	var err error

	om.metrics.RateLimitDenials, err = meter.Int64Counter(
		"bulletsmith_rate_limit_denials_total",
		metric.WithDescription("Requests denied by the rate limiter"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit denials metric: %w", err)
	}

	om.metrics.BudgetDenials, err = meter.Int64Counter(
		"bulletsmith_budget_denials_total",
		metric.WithDescription("Model calls denied by the cost guard"),
	)
	if err != nil {
		return fmt.Errorf("failed to create budget denials metric: %w", err)
	}

	om.metrics.DeadLetterEntries, err = meter.Int64Counter(
		"bulletsmith_dlq_entries_total",
		metric.WithDescription("Failed jobs appended to the dead letter log"),
	)
	if err != nil {
		return fmt.Errorf("failed to create dead letter entries metric: %w", err)
	}

	return nil
}

// GetMetrics never returns nil; a disabled manager yields inert instruments.
func (om *ObservabilityManager) GetMetrics() *Metrics {
	if om.metrics == nil {
		return &Metrics{}
	}
	return om.metrics
}

// HTTPMiddleware returns request instrumentation backed by this manager's
// providers, or a pass-through when disabled.
func (om *ObservabilityManager) HTTPMiddleware() func(http.Handler) http.Handler {
	if !om.config.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return otelhttp.NewMiddleware(om.config.ServiceName,
		otelhttp.WithTracerProvider(om.tracerProvider),
		otelhttp.WithMeterProvider(om.meterProvider))
}

// Tracer hands out spans under the given instrumentation name. Disabled
// managers hand out no-ops so call sites need no guard.
func (om *ObservabilityManager) Tracer(name string) oteltrace.Tracer {
	if om.config.Enabled {
		return otel.Tracer(name)
	}
	return noop.NewTracerProvider().Tracer(name)
}

// Shutdown flushes and stops every provider that was started.
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, shutdown := range om.shutdownFuncs {
		errs = append(errs, shutdown(ctx))
	}
	return errors.Join(errs...)
}

// otlpConfig reports the OTLP settings when that export path is enabled.
func (om *ObservabilityManager) otlpConfig() (config.OTLPConfig, bool) {
	if om.fullConfig == nil || !om.fullConfig.Observability.OTLP.Enabled {
		return config.OTLPConfig{}, false
	}
	return om.fullConfig.Observability.OTLP, true
}

// instanceID distinguishes replicas in aggregated backends.
func (om *ObservabilityManager) instanceID() string {
	if om.fullConfig != nil && om.fullConfig.Observability.ServiceInstance != "" {
		return om.fullConfig.Observability.ServiceInstance
	}
	return "bulletsmith-1"
}

// tracingEnabled and metricExportEnabled honor the per-signal switches.
// Without a full config (tests) both follow the master switch alone.
func (om *ObservabilityManager) tracingEnabled() bool {
	return om.fullConfig == nil || om.fullConfig.Observability.Tracing.Enabled
}

func (om *ObservabilityManager) metricExportEnabled() bool {
	return om.fullConfig == nil || om.fullConfig.Observability.Metrics.Enabled
}

func (om *ObservabilityManager) collectInterval() time.Duration {
	if om.fullConfig == nil {
		return 15 * time.Second
	}
	return om.fullConfig.Observability.Metrics.CollectionInterval
}

// newOTLPTraceExporter ships spans over OTLP HTTP.
func newOTLPTraceExporter(cfg config.OTLPConfig) (trace.SpanExporter, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return exporter, nil
}

// newOTLPMetricReader ships metrics over OTLP HTTP on the collection interval.
func newOTLPMetricReader(cfg config.OTLPConfig, interval time.Duration) (sdkmetric.Reader, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(cfg.Headers))
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)), nil
}

// discardSpanExporter drops spans when no destination is configured.
type discardSpanExporter struct{}

func (discardSpanExporter) ExportSpans(context.Context, []trace.ReadOnlySpan) error { return nil }
func (discardSpanExporter) Shutdown(context.Context) error                          { return nil }

// AIOperationResult holds the outcome of a model call including token usage.
type AIOperationResult struct {
	Error      error
	TokenUsage *TokenUsage
}

// TokenUsage represents token usage information from model responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// TrackAIOperationWithTokens wraps a model call in a span and records
// duration, outcome, and token usage per the custom metrics config.
func (m *Metrics) TrackAIOperationWithTokens(ctx context.Context, operation string, fn func(context.Context) *AIOperationResult, om *ObservabilityManager) error {
	if m.AIProcessingTime == nil {
		// Instruments were never registered; run the call untracked.
		if result := fn(ctx); result != nil {
			return result.Error
		}
		return nil
	}

	ctx, span := otel.Tracer("bulletsmith.ai").Start(ctx, "ai."+operation)
	defer span.End()

	start := time.Now()
	result := fn(ctx)
	duration := time.Since(start).Seconds()

	var err error
	var usage *TokenUsage
	if result != nil {
		err, usage = result.Error, result.TokenUsage
	}
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("error", true))
	}

	knobs := om.aiMetricKnobs()
	if !knobs.Enabled {
		return err
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	}
	span.SetAttributes(attrs...)

	if knobs.TrackDuration {
		m.AIProcessingTime.Record(ctx, duration, metric.WithAttributes(attrs...))
	}
	m.AIRequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.recordTokenUsage(ctx, span, operation, usage, knobs.TrackTokenUsage)

	return err
}

// aiMetricKnobs returns the per-call metric switches. Managers built without
// a full config (tests) run with everything on.
func (om *ObservabilityManager) aiMetricKnobs() config.AIOperationsMetricsConfig {
	if om.fullConfig == nil {
		return config.AIOperationsMetricsConfig{Enabled: true, TrackDuration: true, TrackTokenUsage: true}
	}
	return om.fullConfig.Observability.CustomMetrics.AIOperations
}

// recordTokenUsage puts token counts on the span and, when the counter knob
// is on, adds one sample per token kind.
func (m *Metrics) recordTokenUsage(ctx context.Context, span oteltrace.Span, operation string, usage *TokenUsage, counterOn bool) {
	if usage == nil {
		return
	}

	// Token counts always land on the span even when the counter is off.
	span.SetAttributes(
		attribute.Int64("ai.tokens.input", usage.InputTokens),
		attribute.Int64("ai.tokens.output", usage.OutputTokens),
		attribute.Int64("ai.tokens.total", usage.TotalTokens),
	)

	if !counterOn || m.AITokenUsage == nil {
		return
	}
	for _, tk := range []struct {
		kind  string
		count int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	} {
		m.AITokenUsage.Add(ctx, tk.count, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("kind", tk.kind),
		))
	}
}
