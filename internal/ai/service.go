package ai

import (
	"fmt"

	"bulletsmith/internal/config"
	"bulletsmith/internal/errors"
)

// Service binds one pipeline operation to its configured model provider.
type Service struct {
	Provider Provider // consulted directly by the server's health endpoint
	config   *config.OperationAIConfig
	logger   *errors.Logger
}

// NewService resolves the provider named in the operation config. Provider
// construction validates credentials and assembles the retry and breaker
// stack, so a returned Service is ready to call.
func NewService(cfg *config.OperationAIConfig, operationType string, logger *errors.Logger) (*Service, error) {
	logger.Debug("Initializing AI service",
		"operation_type", operationType,
		"provider", cfg.Provider,
		"model", cfg.Model,
		"timeout", *cfg.Timeout,
		"temperature", *cfg.Temperature,
		"max_retries", *cfg.MaxRetries,
		"use_system_prompts", *cfg.UseSystemPrompts)

	provider, err := newProvider(cfg, operationType, logger)
	if err != nil {
		return nil, err
	}

	return &Service{Provider: provider, config: cfg, logger: logger}, nil
}

// newProvider maps the configured provider name to a concrete client.
func newProvider(cfg *config.OperationAIConfig, operationType string, logger *errors.Logger) (Provider, error) {
	switch cfg.Provider {
	case "gemini":
		provider, err := NewGeminiProvider(cfg, operationType, logger)
		if err != nil {
			return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed,
				"Failed to create AI provider", err)
		}
		return provider, nil
	default:
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("Unsupported AI provider: %s", cfg.Provider), nil)
	}
}
