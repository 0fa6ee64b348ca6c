package config

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root of the configuration tree, populated by viper from
// defaults, an optional YAML file, and BULLETSMITH_* environment variables.
// Secrets resolved from Vault are applied after loading and win over every
// other source.
type Config struct {
	AI            AIConfig            `mapstructure:"ai"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Budget        BudgetConfig        `mapstructure:"budget"`
	RateLimit     RateLimitConfig     `mapstructure:"ratelimit"`
	DeadLetter    DeadLetterConfig    `mapstructure:"dlq"`
	Server        ServerConfig        `mapstructure:"server"`
	Prompts       PromptsConfig       `mapstructure:"prompts"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AIConfig holds AI service configuration
type AIConfig struct {
	// Global/fallback configuration shared by every operation
	Provider         string        `mapstructure:"provider"`
	Model            string        `mapstructure:"model"`
	Timeout          time.Duration `mapstructure:"timeout"`
	APIKey           string        `mapstructure:"apiKey"`
	MaxRetries       int           `mapstructure:"maxRetries"`
	Temperature      float32       `mapstructure:"temperature"`
	UseSystemPrompts bool          `mapstructure:"useSystemPrompts"`
	RetryBaseDelay   time.Duration `mapstructure:"retryBaseDelay"`
	RetryMaxDelay    time.Duration `mapstructure:"retryMaxDelay"`
	RetryJitter      float64       `mapstructure:"retryJitter"`
	CustomPrompts    PromptConfig  `mapstructure:"customPrompts"`

	// Operation-specific configurations
	Signals  OperationAIConfig `mapstructure:"signals"`
	Process  OperationAIConfig `mapstructure:"process"`
	Validate OperationAIConfig `mapstructure:"validate"`
}

// CircuitBreakerConfig tunes one operation's breaker.
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // allowed while half-open
	Interval         time.Duration `mapstructure:"interval"`         // closed-state count reset
	Timeout          time.Duration `mapstructure:"timeout"`          // open duration before probing
	MinRequests      uint32        `mapstructure:"minRequests"`      // samples needed before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // failure ratio, 0 to 1
}

// OperationAIConfig holds AI configuration for specific operations.
// Pointer fields distinguish "not set, use the global value" from an
// explicit per-operation override.
type OperationAIConfig struct {
	Provider         string               `mapstructure:"provider"`
	Model            string               `mapstructure:"model"`
	Timeout          *time.Duration       `mapstructure:"timeout"`
	APIKey           string               `mapstructure:"apiKey"`
	MaxRetries       *int                 `mapstructure:"maxRetries"`
	Temperature      *float32             `mapstructure:"temperature"`
	UseSystemPrompts *bool                `mapstructure:"useSystemPrompts"`
	RetryBaseDelay   *time.Duration       `mapstructure:"retryBaseDelay"`
	RetryMaxDelay    *time.Duration       `mapstructure:"retryMaxDelay"`
	RetryJitter      *float64             `mapstructure:"retryJitter"`
	CustomPrompts    PromptConfig         `mapstructure:"customPrompts"`
	CircuitBreaker   CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// PromptConfig pairs the system and user prompt overrides for one scope,
// global or per operation.
type PromptConfig struct {
	SystemPrompts SystemPrompts `mapstructure:"systemPrompts"`
	UserPrompts   UserPrompts   `mapstructure:"userPrompts"`
}

// SystemPrompts carries the model instructions for each operation, inline
// or by file reference.
type SystemPrompts struct {
	ExtractSignals       string `mapstructure:"extractSignals"`
	ExtractSignalsFile   string `mapstructure:"extractSignalsFile"`
	ProcessBullets       string `mapstructure:"processBullets"`
	ProcessBulletsFile   string `mapstructure:"processBulletsFile"`
	CheckConsistency     string `mapstructure:"checkConsistency"`
	CheckConsistencyFile string `mapstructure:"checkConsistencyFile"`
}

// UserPrompts carries the request templates for each operation, inline or
// by file reference.
type UserPrompts struct {
	ExtractSignals       string `mapstructure:"extractSignals"`
	ExtractSignalsFile   string `mapstructure:"extractSignalsFile"`
	ProcessBullets       string `mapstructure:"processBullets"`
	ProcessBulletsFile   string `mapstructure:"processBulletsFile"`
	CheckConsistency     string `mapstructure:"checkConsistency"`
	CheckConsistencyFile string `mapstructure:"checkConsistencyFile"`
}

// PipelineConfig holds orchestrator tuning
type PipelineConfig struct {
	BatchSize           int              `mapstructure:"batchSize"`           // Bullets per external rewrite call
	ValidateParallelism int              `mapstructure:"validateParallelism"` // Concurrent consistency checks per job
	CallerKey           string           `mapstructure:"callerKey"`           // Limiter/budget ledger key when none is given
	Extraction          ExtractionConfig `mapstructure:"extraction"`
}

// ExtractionConfig holds local signal extraction weights. Each category
// that matches adds its weight to the extraction confidence score.
type ExtractionConfig struct {
	EntityWeight        float64 `mapstructure:"entityWeight"`
	ToolWeight          float64 `mapstructure:"toolWeight"`
	SoftSkillWeight     float64 `mapstructure:"softSkillWeight"`
	TermWeight          float64 `mapstructure:"termWeight"`
	DomainWeight        float64 `mapstructure:"domainWeight"`
	ConfidenceThreshold float64 `mapstructure:"confidenceThreshold"`
	MaxTerms            int     `mapstructure:"maxTerms"`
}

// CacheConfig selects the shared key-value store backing the signal cache
// and the idempotency result store
type CacheConfig struct {
	Backend   string           `mapstructure:"backend"` // memory, file, or redis
	Dir       string           `mapstructure:"dir"`     // file backend directory
	Redis     RedisCacheConfig `mapstructure:"redis"`
	SignalTTL time.Duration    `mapstructure:"signalTTL"`
	ResultTTL time.Duration    `mapstructure:"resultTTL"`
}

// RedisCacheConfig holds redis backend connection settings
type RedisCacheConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dialTimeout"`
}

// BudgetConfig holds daily spend guard configuration
type BudgetConfig struct {
	Enabled         bool               `mapstructure:"enabled"`
	DailyBudget     float64            `mapstructure:"dailyBudget"`     // Dollar ceiling per calendar day
	DailyRequestCap int                `mapstructure:"dailyRequestCap"` // External request ceiling per calendar day
	CostPerRequest  map[string]float64 `mapstructure:"costPerRequest"`  // Estimated cost per call, keyed by model
	WarnFraction    float64            `mapstructure:"warnFraction"`    // Log a warning past this fraction of budget
	RetentionDays   int                `mapstructure:"retentionDays"`   // Ledger days kept before pruning
}

// CostFor returns the estimated per-request cost for a model, falling back
// to the "default" entry when the model has no explicit price.
func (b BudgetConfig) CostFor(model string) float64 {
	if cost, ok := b.CostPerRequest[model]; ok {
		return cost
	}
	return b.CostPerRequest["default"]
}

// RateLimitConfig holds rate limiting configuration shared by the HTTP
// middleware and the per-caller pipeline limiter
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	RequestsPerMin int  `mapstructure:"requestsPerMin"`
	Burst          int  `mapstructure:"burst"`
	ByIP           bool `mapstructure:"byIP"`
	ByAPIKey       bool `mapstructure:"byAPIKey"`
}

// DeadLetterConfig holds dead letter log configuration. An empty path
// disables the log.
type DeadLetterConfig struct {
	Path string `mapstructure:"path"`
}

// PromptsConfig holds external prompt file handling. Relative prompt file
// paths resolve against Dir when it is set. Watch enables hot reload of
// file-backed prompts.
type PromptsConfig struct {
	Dir           string        `mapstructure:"dir"`
	Watch         bool          `mapstructure:"watch"`
	DebounceDelay time.Duration `mapstructure:"debounceDelay"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	MaxRequestSize int64         `mapstructure:"maxRequestSize"` // Request body cap in bytes

	TLS TLSConfig `mapstructure:"tls"`

	APIKeys     []string `mapstructure:"apiKeys"`     // Valid API keys for authentication
	AdminAPIKey string   `mapstructure:"adminAPIKey"` // Key required for destructive admin endpoints
}

// TLSConfig configures transport security for the HTTP server. Certificates
// come either from PEM files on disk or, when Vault delivers them, from
// inline PEM content.
type TLSConfig struct {
	Mode string `mapstructure:"mode"` // "disabled", "server", or "mutual"

	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	CAFile   string `mapstructure:"caFile"` // Client CA bundle, required for mutual mode

	CertContent string `mapstructure:"certContent"`
	KeyContent  string `mapstructure:"keyContent"`
	CAContent   string `mapstructure:"caContent"`

	MinVersion       string `mapstructure:"minVersion"`       // "1.2" or "1.3"
	ClientAuthPolicy string `mapstructure:"clientAuthPolicy"` // "require", "request", or "verify"
}

// AppConfig holds settings shared by every CLI command
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
}

// ObservabilityConfig controls telemetry export and the service identity
// attached to it.
type ObservabilityConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`

	ServiceName     string `mapstructure:"serviceName"`
	ServiceVersion  string `mapstructure:"serviceVersion"`
	ServiceInstance string `mapstructure:"serviceInstance"`

	Tracing       TracingConfig       `mapstructure:"tracing"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics CustomMetricsConfig `mapstructure:"customMetrics"`

	ConsoleOutput bool              `mapstructure:"consoleOutput"`
	Console       ConsoleConfig     `mapstructure:"console"`
	Prometheus    PrometheusConfig  `mapstructure:"prometheus"`
	OTLP          OTLPConfig        `mapstructure:"otlp"`
	HealthCheck   HealthCheckConfig `mapstructure:"healthCheck"`
}

// TracingConfig switches span export on or off independently of metrics
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MetricsConfig switches metric export and sets the push cadence
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig tunes stdout telemetry output for development
type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// CustomMetricsConfig carries the fine-grained switches for the custom
// instruments, grouped the way the instruments are grouped.
type CustomMetricsConfig struct {
	AIOperations   AIOperationsMetricsConfig   `mapstructure:"aiOperations"`
	Pipeline       PipelineMetricsConfig       `mapstructure:"pipeline"`
	Infrastructure InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

// AIOperationsMetricsConfig controls what gets recorded per model call
type AIOperationsMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackDuration   bool `mapstructure:"trackDuration"`
	TrackTokenUsage bool `mapstructure:"trackTokenUsage"`
}

// PipelineMetricsConfig controls job and stage instrumentation
type PipelineMetricsConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	TrackStageDurations bool `mapstructure:"trackStageDurations"`
	TrackCacheEvents    bool `mapstructure:"trackCacheEvents"`
}

// InfrastructureMetricsConfig controls limiter and budget instrumentation
type InfrastructureMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackRateLimits bool `mapstructure:"trackRateLimits"`
	TrackBudget     bool `mapstructure:"trackBudget"`
}

// PrometheusConfig exposes the pull endpoint for scrapers
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig points the push exporters at a collector
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// HealthCheckConfig bounds the work done inside the health endpoint
type HealthCheckConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	AIModelCheckTimeout time.Duration `mapstructure:"aiModelCheckTimeout"`
}

// LoadConfig assembles the effective configuration: defaults, then the
// optional config file, then environment variables. Prompt files are
// validated and loaded as part of the same pass so a bad configuration
// fails at startup, not mid-request.
func LoadConfig() (*Config, error) {
	log.Println("[CONFIG] Loading configuration")

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BULLETSMITH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("bulletsmith")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/bulletsmith/")
	v.AddConfigPath("$HOME/.bulletsmith")
	v.AddConfigPath(".")

	configFileUsed, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Values viper cannot express: env-only slices and derived defaults
	config.applyFallbacks()

	config.logConfigurationSources(configFileUsed)

	if err := config.validatePromptFiles(); err != nil {
		return nil, fmt.Errorf("prompt file validation failed: %w", err)
	}
	if err := config.loadPromptsFromFiles(); err != nil {
		return nil, fmt.Errorf("failed to load custom prompts from files: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed")
	return &config, nil
}

// readConfigFile loads the optional config file, distinguishing "not found"
// (defaults and environment apply) from a malformed file (fatal).
func readConfigFile(v *viper.Viper) (string, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return "", fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
		return "", nil
	}

	used := v.ConfigFileUsed()
	log.Printf("[CONFIG] Loaded config file: %s", used)
	return used, nil
}

// Validate rejects a configuration the pipeline cannot run with. It runs
// after prompt files are loaded, so file-backed prompts are already merged.
func (c *Config) Validate() error {
	// A Vault-sourced key arrives after the initial load, so only insist on a
	// key here when Vault cannot supply one later
	if c.AI.APIKey == "" && !(c.Vault.Enabled && c.Vault.Secrets.GeminiKey != "") {
		return fmt.Errorf("AI API key is required (set BULLETSMITH_AI_APIKEY environment variable)")
	}

	if c.AI.Timeout <= 0 {
		return fmt.Errorf("AI timeout must be positive")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if !slices.Contains(c.App.SupportedFormats, c.App.DefaultFormat) {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	if err := c.validateCacheConfig(); err != nil {
		return err
	}

	if err := c.validatePipelineConfig(); err != nil {
		return err
	}

	if err := c.validateBudgetConfig(); err != nil {
		return err
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("ratelimit requestsPerMin must be positive when rate limiting is enabled")
	}

	if err := c.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	return nil
}

// validateCacheConfig checks the cache backend selection
func (c *Config) validateCacheConfig() error {
	switch c.Cache.Backend {
	case "", "memory":
		return nil
	case "file":
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache dir is required for the file backend")
		}
		return nil
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache redis addr is required for the redis backend")
		}
		return nil
	default:
		return fmt.Errorf("invalid cache backend: %s (must be 'memory', 'file', or 'redis')", c.Cache.Backend)
	}
}

// validatePipelineConfig checks orchestrator tuning ranges
func (c *Config) validatePipelineConfig() error {
	if c.Pipeline.BatchSize < 0 {
		return fmt.Errorf("pipeline batchSize must not be negative")
	}
	if c.Pipeline.ValidateParallelism < 0 {
		return fmt.Errorf("pipeline validateParallelism must not be negative")
	}
	if t := c.Pipeline.Extraction.ConfidenceThreshold; t < 0 || t > 1 {
		return fmt.Errorf("pipeline extraction confidenceThreshold must be between 0 and 1")
	}
	return nil
}

// validateBudgetConfig checks spend guard ranges
func (c *Config) validateBudgetConfig() error {
	if !c.Budget.Enabled {
		return nil
	}
	if c.Budget.DailyBudget < 0 {
		return fmt.Errorf("budget dailyBudget must not be negative")
	}
	if c.Budget.DailyRequestCap < 0 {
		return fmt.Errorf("budget dailyRequestCap must not be negative")
	}
	if f := c.Budget.WarnFraction; f < 0 || f > 1 {
		return fmt.Errorf("budget warnFraction must be between 0 and 1")
	}
	return nil
}
