package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults seeds viper with every knob so partial config files work.
func setDefaults(v *viper.Viper) {
	// Model access, shared across operations unless overridden
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.maxRetries", 3)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.useSystemPrompts", true)
	v.SetDefault("ai.retryBaseDelay", time.Second)
	v.SetDefault("ai.retryMaxDelay", 30*time.Second)
	v.SetDefault("ai.retryJitter", 0.3)

	// Signal extraction
	v.SetDefault("ai.signals.provider", "gemini")
	v.SetDefault("ai.signals.model", "")
	v.SetDefault("ai.signals.timeout", 75*time.Second) // Moderate timeout for description analysis
	v.SetDefault("ai.signals.apiKey", "")
	v.SetDefault("ai.signals.maxRetries", 2)
	v.SetDefault("ai.signals.temperature", 0.2) // Low temperature for consistent extraction
	v.SetDefault("ai.signals.useSystemPrompts", true)

	// Bullet processing
	v.SetDefault("ai.process.provider", "gemini")
	v.SetDefault("ai.process.model", "")
	v.SetDefault("ai.process.timeout", 90*time.Second) // Longer timeout for batched rewriting
	v.SetDefault("ai.process.apiKey", "")
	v.SetDefault("ai.process.maxRetries", 2)
	v.SetDefault("ai.process.temperature", 0.3) // Lower temperature for consistency
	v.SetDefault("ai.process.useSystemPrompts", true)

	// Consistency validation
	v.SetDefault("ai.validate.provider", "gemini")
	v.SetDefault("ai.validate.model", "")
	v.SetDefault("ai.validate.timeout", 60*time.Second) // Standard timeout
	v.SetDefault("ai.validate.apiKey", "")
	v.SetDefault("ai.validate.maxRetries", 3)
	v.SetDefault("ai.validate.temperature", 0.1) // Very low temperature for factual analysis
	v.SetDefault("ai.validate.useSystemPrompts", true)

	// Per-operation breakers share the same conservative tuning
	v.SetDefault("ai.signals.circuitBreaker.enabled", true)
	v.SetDefault("ai.signals.circuitBreaker.maxRequests", 3)
	v.SetDefault("ai.signals.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("ai.signals.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("ai.signals.circuitBreaker.minRequests", 3)
	v.SetDefault("ai.signals.circuitBreaker.failureThreshold", 0.6)

	v.SetDefault("ai.process.circuitBreaker.enabled", true)
	v.SetDefault("ai.process.circuitBreaker.maxRequests", 3)
	v.SetDefault("ai.process.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("ai.process.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("ai.process.circuitBreaker.minRequests", 3)
	v.SetDefault("ai.process.circuitBreaker.failureThreshold", 0.6)

	v.SetDefault("ai.validate.circuitBreaker.enabled", true)
	v.SetDefault("ai.validate.circuitBreaker.maxRequests", 3)
	v.SetDefault("ai.validate.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("ai.validate.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("ai.validate.circuitBreaker.minRequests", 3)
	v.SetDefault("ai.validate.circuitBreaker.failureThreshold", 0.6)

	// Revision pipeline
	v.SetDefault("pipeline.batchSize", 5)
	v.SetDefault("pipeline.validateParallelism", 4)
	v.SetDefault("pipeline.callerKey", "pipeline")
	v.SetDefault("pipeline.extraction.entityWeight", 0.3)
	v.SetDefault("pipeline.extraction.toolWeight", 0.2)
	v.SetDefault("pipeline.extraction.softSkillWeight", 0.2)
	v.SetDefault("pipeline.extraction.termWeight", 0.3)
	v.SetDefault("pipeline.extraction.domainWeight", 0.1)
	v.SetDefault("pipeline.extraction.confidenceThreshold", 0.7)
	v.SetDefault("pipeline.extraction.maxTerms", 25)

	// Signal cache and idempotency store
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.redis.addr", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.dialTimeout", 5*time.Second)
	v.SetDefault("cache.signalTTL", 24*time.Hour)
	v.SetDefault("cache.resultTTL", 0) // Idempotency entries never expire by default

	// Daily cost guard, off until limits are set deliberately
	v.SetDefault("budget.enabled", false)
	v.SetDefault("budget.dailyBudget", 5.0)
	v.SetDefault("budget.dailyRequestCap", 1000)
	v.SetDefault("budget.costPerRequest", map[string]float64{"default": 0.002})
	v.SetDefault("budget.warnFraction", 0.8)
	v.SetDefault("budget.retentionDays", 7)

	// Request rate limiting
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requestsPerMin", 60)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("ratelimit.byIP", true)
	v.SetDefault("ratelimit.byAPIKey", false)

	// Dead letter log, disabled without a path
	v.SetDefault("dlq.path", "")

	// HTTP server
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.maxRequestSize", 1024*1024) // 1MB
	// Transport security
	v.SetDefault("server.tls.mode", "disabled") // disabled, server, mutual
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.caFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")           // TLS 1.2 minimum
	v.SetDefault("server.tls.clientAuthPolicy", "require") // require, request, verify
	// API authentication
	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.adminAPIKey", "")

	// Prompt files and hot reload
	v.SetDefault("prompts.dir", "")
	v.SetDefault("prompts.watch", false)
	v.SetDefault("prompts.debounceDelay", time.Second)

	// Output and file handling
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 1024*1024) // 1MB

	// Vault secret sourcing
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.geminiKey", "")
	v.SetDefault("vault.secrets.tlsCerts", "")

	// Telemetry identity
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "bulletsmith")
	v.SetDefault("observability.serviceVersion", "")  // Falls back to the app version
	v.SetDefault("observability.serviceInstance", "") // Generated when empty
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)

	// Span export
	v.SetDefault("observability.tracing.enabled", true)

	// Metric export
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)

	// Application metric families
	v.SetDefault("observability.customMetrics.aiOperations.enabled", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackDuration", true)
	v.SetDefault("observability.customMetrics.aiOperations.trackTokenUsage", true)
	v.SetDefault("observability.customMetrics.pipeline.enabled", true)
	v.SetDefault("observability.customMetrics.pipeline.trackStageDurations", true)
	v.SetDefault("observability.customMetrics.pipeline.trackCacheEvents", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackBudget", true)

	// Console exporter for debugging
	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)

	// Prometheus pull endpoint
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")

	// OTLP push
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})

	// Health endpoint bounds
	v.SetDefault("observability.healthCheck.timeout", 15*time.Second)
	v.SetDefault("observability.healthCheck.aiModelCheckTimeout", 10*time.Second)
}
