package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"bulletsmith/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds the connection settings for secret sourcing. Token and
// TokenFile are alternatives; the inline token wins when both are set.
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Namespace string `mapstructure:"namespace"`

	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets names the KVv2 paths the loader reads. Empty paths are
// skipped, so any subset of secrets can live in Vault.
type VaultSecrets struct {
	// APIKeys points at a secret whose "keys" value is a comma-separated
	// list of server API keys.
	APIKeys string `mapstructure:"apiKeys"`
	// GeminiKey points at a secret whose "api_key" value is the model key.
	GeminiKey string `mapstructure:"geminiKey"`
	// TLSCerts points at a secret with "cert", "key" and "ca" PEM content.
	TLSCerts string `mapstructure:"tlsCerts"`
}

// VaultClient wraps the Vault API client. A nil *VaultClient is safe to
// hold; reads through it report the client as uninitialized.
type VaultClient struct {
	client *api.Client
	logger *errors.Logger
}

// NewVaultClient builds a client and verifies the connection with a health
// check. Returns (nil, nil) when Vault is disabled.
func NewVaultClient(cfg VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	apiConfig := api.DefaultConfig()
	if cfg.Address != "" {
		apiConfig.Address = cfg.Address
	}
	client, err := api.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	token, err := resolveVaultToken(cfg)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().Health()
	if err != nil {
		return nil, fmt.Errorf("vault health check failed: %w", err)
	}
	if logger != nil {
		logger.Info("Connected to Vault",
			"address", apiConfig.Address,
			"version", health.Version,
			"sealed", health.Sealed)
	}

	return &VaultClient{client: client, logger: logger}, nil
}

// resolveVaultToken prefers the inline token and falls back to tokenFile.
func resolveVaultToken(cfg VaultConfig) (string, error) {
	if cfg.Token != "" {
		return cfg.Token, nil
	}
	if cfg.TokenFile != "" {
		raw, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		if token := strings.TrimSpace(string(raw)); token != "" {
			return token, nil
		}
	}
	return "", fmt.Errorf("vault token is required when vault is enabled")
}

// VaultSecret is one KVv2 read: the data payload plus its version.
type VaultSecret struct {
	Data    map[string]any
	Version int64
}

// GetSecretV2 reads a KVv2 secret and unwraps the data/metadata envelope.
func (vc *VaultClient) GetSecretV2(path string) (*VaultSecret, error) {
	if vc == nil {
		return nil, fmt.Errorf("vault client not initialized")
	}

	secret, err := vc.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secret at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s lacks the KVv2 'data' envelope", path)
	}
	metadata, ok := secret.Data["metadata"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("secret at %s lacks the KVv2 'metadata' envelope", path)
	}
	version, err := secretVersion(metadata, path)
	if err != nil {
		return nil, err
	}

	return &VaultSecret{Data: data, Version: version}, nil
}

// secretVersion reads the version out of KVv2 metadata. The API decodes
// numbers as json.Number; the other cases cover hand-built test data and
// older response shapes.
func secretVersion(metadata map[string]any, path string) (int64, error) {
	switch v := metadata["version"].(type) {
	case json.Number:
		version, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case string:
		version, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("could not parse secret version at %s: %w", path, err)
		}
		return version, nil
	case nil:
		return 0, fmt.Errorf("secret metadata at %s is missing 'version' field", path)
	default:
		return 0, fmt.Errorf("unexpected type for version at %s: %T", path, v)
	}
}

// GetStringSecret reads one string value out of a KVv2 secret.
func (vc *VaultClient) GetStringSecret(path, key string) (string, error) {
	secret, err := vc.GetSecretV2(path)
	if err != nil {
		return "", err
	}

	raw, ok := secret.Data[key]
	if !ok {
		return "", fmt.Errorf("secret %s has no '%s' entry", path, key)
	}
	str, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("entry '%s' in secret %s is not a string", key, path)
	}

	if vc.logger != nil {
		vc.logger.Debug("Secret value read from Vault",
			"path", path, "key", key, "value", maskSecretValue(str))
	}
	return str, nil
}

// GetStringSliceSecret splits a comma-separated secret value into a slice.
func (vc *VaultClient) GetStringSliceSecret(path, key string) ([]string, error) {
	raw, err := vc.GetStringSecret(path, key)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return []string{}, nil
	}

	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

// maskSecretValue keeps just enough of a secret to recognize it in logs.
func maskSecretValue(value string) string {
	if len(value) > 8 {
		return value[:4] + "****" + value[len(value)-4:]
	}
	if value != "" {
		return "****"
	}
	return ""
}

// ApplyVaultSecrets pulls the configured secrets and writes them into cfg.
// It runs right after LoadConfig, before anything consumes the AI or TLS
// settings, which is why Validate tolerates a missing model key when Vault
// is set up to provide one.
func ApplyVaultSecrets(cfg *Config, logger *errors.Logger) error {
	if !cfg.Vault.Enabled {
		return nil
	}

	client, err := NewVaultClient(cfg.Vault, logger)
	if err != nil {
		return fmt.Errorf("initializing vault client: %w", err)
	}
	if client == nil {
		return nil
	}

	if err := client.applyServerAPIKeys(cfg); err != nil {
		return err
	}
	if err := client.applyGeminiKey(cfg); err != nil {
		return err
	}
	if err := client.applyTLSMaterial(cfg); err != nil {
		return err
	}

	if logger != nil {
		logger.Info("Vault secrets applied")
	}
	return nil
}

// applyServerAPIKeys replaces Server.APIKeys with the list held in Vault.
// An empty list is a warning, not an error: the server may legitimately
// run without key auth.
func (vc *VaultClient) applyServerAPIKeys(cfg *Config) error {
	path := cfg.Vault.Secrets.APIKeys
	if path == "" {
		return nil
	}

	keys, err := vc.GetStringSliceSecret(path, "keys")
	if err != nil {
		return fmt.Errorf("loading API keys from vault: %w", err)
	}
	if len(keys) == 0 {
		if vc.logger != nil {
			vc.logger.Warn("No API keys found in Vault", "path", path)
		}
		return nil
	}

	cfg.Server.APIKeys = keys
	if vc.logger != nil {
		vc.logger.Info("API keys loaded from Vault", "count", len(keys))
	}
	return nil
}

// applyGeminiKey sets the shared model key and fills any per-operation key
// the config file left empty. Explicit per-operation keys win over Vault.
func (vc *VaultClient) applyGeminiKey(cfg *Config) error {
	path := cfg.Vault.Secrets.GeminiKey
	if path == "" {
		return nil
	}

	key, err := vc.GetStringSecret(path, "api_key")
	if err != nil {
		return fmt.Errorf("loading Gemini API key from vault: %w", err)
	}
	if key == "" {
		if vc.logger != nil {
			vc.logger.Warn("Empty Gemini API key found in Vault", "path", path)
		}
		return nil
	}

	fanOutModelKey(cfg, key)
	return nil
}

// fanOutModelKey sets the shared model key and fills the per-operation keys
// the config file left empty.
func fanOutModelKey(cfg *Config, key string) {
	cfg.AI.APIKey = key
	for _, op := range []*OperationAIConfig{&cfg.AI.Signals, &cfg.AI.Process, &cfg.AI.Validate} {
		if op.APIKey == "" {
			op.APIKey = key
		}
	}
}

// applyTLSMaterial fills the inline TLS content slots from a single secret
// carrying cert, key and ca entries. Missing entries leave the config
// values alone.
func (vc *VaultClient) applyTLSMaterial(cfg *Config) error {
	path := cfg.Vault.Secrets.TLSCerts
	if path == "" {
		return nil
	}

	secret, err := vc.GetSecretV2(path)
	if err != nil {
		return fmt.Errorf("loading TLS certificates from vault: %w", err)
	}

	loaded := fillTLSContent(cfg, secret.Data)
	if vc.logger != nil {
		vc.logger.Info("TLS certificates loaded from Vault", "certificates_loaded", loaded)
	}
	return nil
}

// fillTLSContent copies the cert, key and ca entries into the inline TLS
// slots and reports how many were present. Non-string or empty entries
// leave the config value alone.
func fillTLSContent(cfg *Config, data map[string]any) int {
	loaded := 0
	slots := []struct {
		key    string
		target *string
	}{
		{"cert", &cfg.Server.TLS.CertContent},
		{"key", &cfg.Server.TLS.KeyContent},
		{"ca", &cfg.Server.TLS.CAContent},
	}
	for _, slot := range slots {
		if content, ok := data[slot.key].(string); ok && content != "" {
			*slot.target = content
			loaded++
		}
	}
	return loaded
}
