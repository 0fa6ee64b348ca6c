package ai

import (
	"errors"
	"testing"
	"time"

	"bulletsmith/internal/config"

	"google.golang.org/genai"
)

// breakerConfig builds an operation config carrying just what the breaker
// constructors read.
func breakerConfig(cb config.CircuitBreakerConfig) *config.OperationAIConfig {
	return &config.OperationAIConfig{
		Provider:       "gemini",
		Model:          "gemini-2.0-flash-lite",
		CircuitBreaker: cb,
	}
}

func statString(t *testing.T, stats map[string]any, key string) string {
	t.Helper()
	v, ok := stats[key].(string)
	if !ok {
		t.Fatalf("stat %q missing or not a string", key)
	}
	return v
}

func TestGenerationBreakersArePerOperation(t *testing.T) {
	tuning := map[string]config.CircuitBreakerConfig{
		"signals":  {Enabled: true, MaxRequests: 3, Interval: time.Minute, Timeout: time.Minute, MinRequests: 3, FailureThreshold: 0.6},
		"process":  {Enabled: true, MaxRequests: 5, Interval: 30 * time.Second, Timeout: 45 * time.Second, MinRequests: 2, FailureThreshold: 0.7},
		"validate": {Enabled: true, MaxRequests: 4, Interval: 90 * time.Second, Timeout: 75 * time.Second, MinRequests: 5, FailureThreshold: 0.5},
	}

	breakers := make(map[string]*Breaker[*genai.GenerateContentResponse])
	for op, cb := range tuning {
		breakers[op] = NewGenerationBreaker(op, breakerConfig(cb), nil)
	}

	for op, b := range breakers {
		stats := b.Stats()
		if name := statString(t, stats, "name"); name != "AI-"+op {
			t.Errorf("%s: name = %q, want %q", op, name, "AI-"+op)
		}
		if state := statString(t, stats, "state"); state != "closed" {
			t.Errorf("%s: initial state = %q, want closed", op, state)
		}
		if enabled, _ := stats["enabled"].(bool); !enabled {
			t.Errorf("%s: stats should report enabled", op)
		}
		if !b.IsHealthy() {
			t.Errorf("%s: a fresh breaker should be healthy", op)
		}
	}

	if breakers["signals"] == breakers["process"] || breakers["process"] == breakers["validate"] {
		t.Error("operations must not share breaker instances")
	}
}

func TestModelBreakerName(t *testing.T) {
	cfg := breakerConfig(config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      10,
		Interval:         2 * time.Minute,
		Timeout:          90 * time.Second,
		MinRequests:      5,
		FailureThreshold: 0.8,
	})

	cb := NewModelBreaker("signals", cfg, nil)
	if cb == nil {
		t.Fatal("enabled config should produce a breaker")
	}
	if name := statString(t, cb.Stats(), "name"); name != "AI-Model-signals" {
		t.Errorf("name = %q, want AI-Model-signals", name)
	}
}

func TestCircuitBreakerDisabled(t *testing.T) {
	cb := NewGenerationBreaker("signals", breakerConfig(config.CircuitBreakerConfig{Enabled: false}), nil)
	if cb != nil {
		t.Fatal("disabled config should produce a nil breaker")
	}

	// A nil breaker still executes directly and reports healthy
	want := errors.New("boom")
	_, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Errorf("nil breaker should pass errors through, got %v", err)
	}
	if !cb.IsHealthy() {
		t.Error("nil breaker should report healthy")
	}
	if enabled, _ := cb.Stats()["enabled"].(bool); enabled {
		t.Error("nil breaker stats should report enabled=false")
	}
}

func TestCircuitBreakerTripsAfterFailures(t *testing.T) {
	cb := NewGenerationBreaker("process", breakerConfig(config.CircuitBreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		MinRequests:      3,
		FailureThreshold: 0.6,
	}), nil)

	failing := func() (*genai.GenerateContentResponse, error) {
		return nil, errors.New("provider unavailable")
	}
	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(failing); err == nil {
			t.Fatalf("call %d should have failed", i)
		}
	}

	if cb.IsHealthy() {
		t.Error("breaker should be open after repeated failures")
	}
	if state := statString(t, cb.Stats(), "state"); state != "open" {
		t.Errorf("state = %q, want open", state)
	}
}
