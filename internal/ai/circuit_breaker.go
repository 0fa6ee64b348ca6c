package ai

import (
	"fmt"

	"bulletsmith/internal/config"
	"bulletsmith/internal/errors"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/genai"
)

// Breaker wraps one class of provider calls with circuit breaker protection.
// A nil Breaker means the breaker is disabled and calls pass straight through.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

func newBreaker[T any](name, operationType string, cfg *config.OperationAIConfig,
	logger *errors.Logger, minRequests uint32, failureThreshold float64) *Breaker[T] {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.CircuitBreaker.MaxRequests,
		Interval:    cfg.CircuitBreaker.Interval,
		Timeout:     cfg.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && ratio >= failureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.Info("Circuit breaker state changed",
					"name", name,
					"operation_type", operationType,
					"from", from.String(),
					"to", to.String(),
					"failure_threshold", failureThreshold)
			}
		},
	}

	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// NewGenerationBreaker creates the breaker guarding content generation calls
// for a specific operation type
func NewGenerationBreaker(operationType string, cfg *config.OperationAIConfig,
	logger *errors.Logger) *Breaker[*genai.GenerateContentResponse] {
	return newBreaker[*genai.GenerateContentResponse](
		fmt.Sprintf("AI-%s", operationType), operationType, cfg, logger,
		cfg.CircuitBreaker.MinRequests, cfg.CircuitBreaker.FailureThreshold)
}

// NewModelBreaker creates the breaker guarding model info checks. Model info
// is less critical than generation, so tripping is more lenient.
func NewModelBreaker(operationType string, cfg *config.OperationAIConfig,
	logger *errors.Logger) *Breaker[*genai.Model] {
	return newBreaker[*genai.Model](
		fmt.Sprintf("AI-Model-%s", operationType), operationType, cfg, logger, 5, 0.8)
}

// Execute runs fn under the breaker. A disabled breaker calls fn directly.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// Stats describes the breaker for the stats endpoint.
func (b *Breaker[T]) Stats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"enabled": true,
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
	}
}

// IsHealthy reports whether the breaker is closed. Nil breakers are healthy.
func (b *Breaker[T]) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}
