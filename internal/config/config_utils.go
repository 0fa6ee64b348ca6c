package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// applyFallbacks fills in values that live outside viper's key tree
func (c *Config) applyFallbacks() {
	c.applyServerAPIKeyFallbacks()
	c.applyTLSDefaults()
	c.applyObservabilityDefaults()
}

// applyServerAPIKeyFallbacks reads the comma-separated server key list from
// the environment when the config file provides none. Viper cannot split a
// single env value into a slice, so this runs after unmarshal.
func (c *Config) applyServerAPIKeyFallbacks() {
	if len(c.Server.APIKeys) > 0 {
		return
	}
	raw := os.Getenv("BULLETSMITH_SERVER_APIKEYS")
	if raw == "" {
		return
	}

	keys := strings.Split(raw, ",")
	for i := range keys {
		keys[i] = strings.TrimSpace(keys[i])
	}
	c.Server.APIKeys = keys
}

// applyTLSDefaults resolves the TLS fields whose empty value means
// "use the default" rather than "unset".
func (c *Config) applyTLSDefaults() {
	if c.Server.TLS.Mode == "mutual" && c.Server.TLS.ClientAuthPolicy == "" {
		c.Server.TLS.ClientAuthPolicy = "require"
	}
	if c.Server.TLS.MinVersion == "" && c.Server.TLS.Mode != "disabled" {
		c.Server.TLS.MinVersion = "1.2"
	}
}

// applyObservabilityDefaults derives a stable instance id for telemetry
// resources when none is configured.
func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance != "" {
		return
	}
	if hostname, err := os.Hostname(); err == nil {
		c.Observability.ServiceInstance = fmt.Sprintf("%s-%s", c.Observability.ServiceName, hostname)
	} else {
		c.Observability.ServiceInstance = c.Observability.ServiceName + "-1"
	}
}

// logConfigurationSources prints a startup summary of where the effective
// configuration came from. Secrets are masked, never printed.
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	watched := []string{
		"BULLETSMITH_AI_APIKEY",
		"BULLETSMITH_AI_MODEL",
		"BULLETSMITH_SERVER_PORT",
		"BULLETSMITH_SERVER_APIKEYS",
		"BULLETSMITH_APP_LOGLEVEL",
		"BULLETSMITH_CACHE_BACKEND",
		"BULLETSMITH_BUDGET_ENABLED",
		"BULLETSMITH_VAULT_ENABLED",
	}

	log.Println("[CONFIG] Environment variables:")
	found := false
	for _, name := range watched {
		value := os.Getenv(name)
		if value == "" {
			continue
		}
		found = true
		if strings.Contains(strings.ToLower(name), "key") {
			log.Printf("[CONFIG]   %s=***MASKED***", name)
		} else {
			log.Printf("[CONFIG]   %s=%s", name, value)
		}
	}
	if !found {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Effective Values ===")
	log.Printf("[CONFIG] AI provider: %s, model: %s", c.AI.Provider, c.AI.Model)
	if c.AI.APIKey != "" {
		log.Println("[CONFIG] AI API key: ***CONFIGURED***")
	} else {
		log.Println("[CONFIG] AI API key: ***NOT SET***")
	}
	log.Printf("[CONFIG] Server: %s:%s (TLS %s)", c.Server.Host, c.Server.Port, c.Server.TLS.Mode)
	log.Printf("[CONFIG] Log level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] Cache backend: %s", c.Cache.Backend)
	log.Printf("[CONFIG] Budget enabled: %t", c.Budget.Enabled)
	log.Printf("[CONFIG] Vault enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability enabled: %t", c.Observability.Enabled)

	log.Println("[CONFIG] === Per-Operation Models ===")
	operations := []struct {
		name  string
		model string
	}{
		{"signals", c.AI.Signals.Model},
		{"process", c.AI.Process.Model},
		{"validate", c.AI.Validate.Model},
	}
	for _, op := range operations {
		model := op.model
		if model == "" {
			model = c.AI.Model + " (inherited)"
		}
		log.Printf("[CONFIG] %s: %s", op.name, model)
	}

	log.Println("[CONFIG] =====================================")
}
