package config

import "time"

// applyOperationDefaults fills an operation config from the global AI
// section so every pointer field resolves to a concrete value.
func (c *Config) applyOperationDefaults(op *OperationAIConfig) {
	if op.Provider == "" {
		op.Provider = c.AI.Provider
	}
	if op.Model == "" {
		op.Model = c.AI.Model
	}
	if op.Timeout == nil {
		op.Timeout = &c.AI.Timeout
	}
	if op.APIKey == "" {
		op.APIKey = c.AI.APIKey
	}
	if op.MaxRetries == nil {
		op.MaxRetries = &c.AI.MaxRetries
	}
	if op.Temperature == nil {
		op.Temperature = &c.AI.Temperature
	}
	if op.UseSystemPrompts == nil {
		op.UseSystemPrompts = &c.AI.UseSystemPrompts
	}
	if op.RetryBaseDelay == nil {
		delay := c.AI.RetryBaseDelay
		if delay <= 0 {
			delay = time.Second
		}
		op.RetryBaseDelay = &delay
	}
	if op.RetryMaxDelay == nil {
		delay := c.AI.RetryMaxDelay
		if delay <= 0 {
			delay = 30 * time.Second
		}
		op.RetryMaxDelay = &delay
	}
	if op.RetryJitter == nil {
		jitter := c.AI.RetryJitter
		if jitter <= 0 {
			jitter = 0.3
		}
		op.RetryJitter = &jitter
	}
}

// fallbackString fills dst from src when the operation config left it empty.
func fallbackString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

// GetSignalsConfig returns the signal extraction configuration with global
// defaults and prompt fallbacks applied.
func (c *Config) GetSignalsConfig() OperationAIConfig {
	cfg := c.AI.Signals
	c.applyOperationDefaults(&cfg)

	// Inline prompt text and file paths both fall back to the global set
	global := &c.AI.CustomPrompts
	fallbackString(&cfg.CustomPrompts.SystemPrompts.ExtractSignals, global.SystemPrompts.ExtractSignals)
	fallbackString(&cfg.CustomPrompts.UserPrompts.ExtractSignals, global.UserPrompts.ExtractSignals)
	fallbackString(&cfg.CustomPrompts.SystemPrompts.ExtractSignalsFile, global.SystemPrompts.ExtractSignalsFile)
	fallbackString(&cfg.CustomPrompts.UserPrompts.ExtractSignalsFile, global.UserPrompts.ExtractSignalsFile)

	return cfg
}

// GetProcessConfig returns the bullet processing configuration with global
// defaults and prompt fallbacks applied.
func (c *Config) GetProcessConfig() OperationAIConfig {
	cfg := c.AI.Process
	c.applyOperationDefaults(&cfg)

	global := &c.AI.CustomPrompts
	fallbackString(&cfg.CustomPrompts.SystemPrompts.ProcessBullets, global.SystemPrompts.ProcessBullets)
	fallbackString(&cfg.CustomPrompts.UserPrompts.ProcessBullets, global.UserPrompts.ProcessBullets)
	fallbackString(&cfg.CustomPrompts.SystemPrompts.ProcessBulletsFile, global.SystemPrompts.ProcessBulletsFile)
	fallbackString(&cfg.CustomPrompts.UserPrompts.ProcessBulletsFile, global.UserPrompts.ProcessBulletsFile)

	return cfg
}

// GetValidateConfig returns the consistency validation configuration with
// global defaults and prompt fallbacks applied.
func (c *Config) GetValidateConfig() OperationAIConfig {
	cfg := c.AI.Validate
	c.applyOperationDefaults(&cfg)

	global := &c.AI.CustomPrompts
	fallbackString(&cfg.CustomPrompts.SystemPrompts.CheckConsistency, global.SystemPrompts.CheckConsistency)
	fallbackString(&cfg.CustomPrompts.UserPrompts.CheckConsistency, global.UserPrompts.CheckConsistency)
	fallbackString(&cfg.CustomPrompts.SystemPrompts.CheckConsistencyFile, global.SystemPrompts.CheckConsistencyFile)
	fallbackString(&cfg.CustomPrompts.UserPrompts.CheckConsistencyFile, global.UserPrompts.CheckConsistencyFile)

	return cfg
}
