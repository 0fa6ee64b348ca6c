package ai

import (
	"log/slog"
	"testing"
	"time"

	"bulletsmith/internal/config"
	"bulletsmith/internal/errors"
)

func durationPtr(d time.Duration) *time.Duration { return &d }
func intPtr(i int) *int                          { return &i }
func float32Ptr(f float32) *float32              { return &f }
func float64Ptr(f float64) *float64              { return &f }
func boolPtr(b bool) *bool                       { return &b }

var testLogger = errors.NewLogger(slog.LevelDebug)

// newLayeredAIConfig builds a config where signals and process override a
// few fields and validate overrides nothing, so each Get*Config call has
// both overrides and fallbacks to resolve.
func newLayeredAIConfig() *config.Config {
	return &config.Config{
		AI: config.AIConfig{
			Provider:         "gemini",
			Model:            "global-model",
			Timeout:          45 * time.Second,
			APIKey:           "global-api-key",
			MaxRetries:       5,
			Temperature:      0.8,
			UseSystemPrompts: true,

			Signals: config.OperationAIConfig{
				Model:       "signals-model",
				Timeout:     durationPtr(90 * time.Second),
				Temperature: float32Ptr(0.3),
			},
			Process: config.OperationAIConfig{
				Model:      "process-model",
				MaxRetries: intPtr(1),
			},
		},
	}
}

func TestSignalsConfigOverridesAndFallbacks(t *testing.T) {
	cfg := newLayeredAIConfig().GetSignalsConfig()

	if cfg.Model != "signals-model" {
		t.Errorf("Model = %q, want signals-model", cfg.Model)
	}
	if *cfg.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want the 90s override", *cfg.Timeout)
	}
	if *cfg.Temperature != float32(0.3) {
		t.Errorf("Temperature = %v, want the 0.3 override", *cfg.Temperature)
	}
	if cfg.APIKey != "global-api-key" {
		t.Errorf("APIKey = %q, want the global fallback", cfg.APIKey)
	}
	if *cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want the global fallback 5", *cfg.MaxRetries)
	}
}

func TestProcessConfigOverridesAndFallbacks(t *testing.T) {
	cfg := newLayeredAIConfig().GetProcessConfig()

	if cfg.Model != "process-model" {
		t.Errorf("Model = %q, want process-model", cfg.Model)
	}
	if *cfg.MaxRetries != 1 {
		t.Errorf("MaxRetries = %d, want the override 1", *cfg.MaxRetries)
	}
	if *cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want the global fallback 45s", *cfg.Timeout)
	}
	if *cfg.Temperature != float32(0.8) {
		t.Errorf("Temperature = %v, want the global fallback 0.8", *cfg.Temperature)
	}
}

func TestValidateConfigFallsBackEntirely(t *testing.T) {
	cfg := newLayeredAIConfig().GetValidateConfig()

	if cfg.Model != "global-model" {
		t.Errorf("Model = %q, want global-model", cfg.Model)
	}
	if *cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", *cfg.Timeout)
	}
	if cfg.APIKey != "global-api-key" {
		t.Errorf("APIKey = %q, want global-api-key", cfg.APIKey)
	}
	if !*cfg.UseSystemPrompts {
		t.Error("UseSystemPrompts should fall back to the global true")
	}
	if *cfg.RetryBaseDelay != time.Second || *cfg.RetryMaxDelay != 30*time.Second {
		t.Errorf("retry delays = %v/%v, want the 1s/30s defaults",
			*cfg.RetryBaseDelay, *cfg.RetryMaxDelay)
	}
	if *cfg.RetryJitter != 0.3 {
		t.Errorf("RetryJitter = %v, want the 0.3 default", *cfg.RetryJitter)
	}
}

// Each derived config must be consumable by the service factory. A bad API
// key only surfaces at call time, so construction alone is the contract.
func TestNewServiceConsumesDerivedConfigs(t *testing.T) {
	base := newLayeredAIConfig()

	operations := []struct {
		name string
		cfg  config.OperationAIConfig
	}{
		{"signals", base.GetSignalsConfig()},
		{"process", base.GetProcessConfig()},
		{"validate", base.GetValidateConfig()},
	}

	for _, op := range operations {
		t.Run(op.name, func(t *testing.T) {
			cfg := op.cfg
			if _, err := NewService(&cfg, op.name, testLogger); err != nil {
				t.Logf("NewService(%s) with a placeholder key: %v", op.name, err)
			}
		})
	}
}

func TestServiceWiresCircuitBreakers(t *testing.T) {
	opConfig := &config.OperationAIConfig{
		Provider:         "gemini",
		Model:            "test-model",
		Timeout:          durationPtr(30 * time.Second),
		APIKey:           "test-key",
		MaxRetries:       intPtr(1),
		Temperature:      float32Ptr(0.5),
		UseSystemPrompts: boolPtr(true),
		RetryBaseDelay:   durationPtr(time.Second),
		RetryMaxDelay:    durationPtr(30 * time.Second),
		RetryJitter:      float64Ptr(0.1),
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      3,
			Interval:         20 * time.Second,
			Timeout:          40 * time.Second,
			MinRequests:      4,
			FailureThreshold: 0.75,
		},
	}

	service, err := NewService(opConfig, "process", testLogger)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if service.config.CircuitBreaker.MaxRequests != 3 {
		t.Errorf("MaxRequests = %d, want 3", service.config.CircuitBreaker.MaxRequests)
	}
	if service.config.CircuitBreaker.FailureThreshold != 0.75 {
		t.Errorf("FailureThreshold = %f, want 0.75", service.config.CircuitBreaker.FailureThreshold)
	}

	provider, ok := service.Provider.(*GeminiProvider)
	if !ok {
		t.Fatalf("Provider is %T, want *GeminiProvider", service.Provider)
	}
	stats := provider.GetCircuitBreakerStats()

	aiStats, ok := stats["ai_operations"].(map[string]any)
	if !ok {
		t.Fatal("ai_operations stats missing")
	}
	if name, _ := aiStats["name"].(string); name != "AI-process" {
		t.Errorf("breaker name = %q, want AI-process", name)
	}

	modelStats, ok := stats["model_operations"].(map[string]any)
	if !ok {
		t.Fatal("model_operations stats missing")
	}
	if name, _ := modelStats["name"].(string); name != "AI-Model-process" {
		t.Errorf("model breaker name = %q, want AI-Model-process", name)
	}

	if healthy, _ := stats["overall_healthy"].(bool); !healthy {
		t.Error("breakers should report healthy before any traffic")
	}
}
