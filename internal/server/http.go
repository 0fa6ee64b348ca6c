package server

import (
	"context"
	"time"

	"bulletsmith/internal/ai"
	"bulletsmith/internal/budget"
	"bulletsmith/internal/config"
	"bulletsmith/internal/deadletter"
	bulletsmithErrors "bulletsmith/internal/errors"
	"bulletsmith/internal/observability"
	"bulletsmith/internal/ratelimit"
	"bulletsmith/internal/store"
	"bulletsmith/internal/types"
)

// ErrorResponse is the JSON envelope every handler error comes back in.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// jobRunner is the slice of the revision pipeline the HTTP layer drives
type jobRunner interface {
	ExecuteForCaller(ctx context.Context, caller string, input types.JobInput) (*types.JobOutput, error)
}

// Server is the HTTP front of the revision pipeline. Exported fields are
// fixed at construction; the unexported collaborators are assembled in Start.
type Server struct {
	Host    string
	Port    string
	Version string

	AppConfig *config.Config
	TLSConfig config.TLSConfig

	// API keys are compared in constant time, so a slice is the right
	// shape here rather than a lookup map.
	APIKeys     []string
	AdminAPIKey string

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64

	// Rate limiting for the HTTP surface
	RateLimit   *config.RateLimitConfig
	RateLimiter *ratelimit.Manager

	Logger *bulletsmithErrors.Logger

	// The pipeline keeps its own limiter because it meters external model
	// calls, not HTTP requests.
	pipeline        jobRunner
	pipelineLimiter *ratelimit.Manager
	provider        *ai.OperationsProvider
	budget          *budget.Manager
	deadLetter      *deadletter.Log
	store           store.Store
	obs             *observability.ObservabilityManager
}

// ServerConfig bundles the constructor arguments for NewServer, lifted from
// the server section of the application config.
type ServerConfig struct {
	Host    string
	Port    string
	Version string

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64

	TLSConfig   config.TLSConfig
	APIKeys     []string
	AdminAPIKey string
	RateLimit   *config.RateLimitConfig
}

// NewServer wires a Server from its config section. Construction cannot
// fail; everything fallible waits for Start.
func NewServer(appCfg *config.Config, cfg ServerConfig, logger *bulletsmithErrors.Logger) *Server {
	// Empty entries come from sloppy comma-separated env values.
	apiKeys := make([]string, 0, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeys = append(apiKeys, key)
		}
	}

	var limiter *ratelimit.Manager
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		limiter = ratelimit.NewManagerPerMinute(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.Burst, logger)
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		TLSConfig:      cfg.TLSConfig,
		APIKeys:        apiKeys,
		AdminAPIKey:    cfg.AdminAPIKey,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    limiter,
		Logger:         logger,
	}
}
