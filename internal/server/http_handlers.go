package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// defaultDLQListLimit caps dead letter listings when no limit is given
const defaultDLQListLimit = 50

// healthCheckTimeouts returns the overall health check bound and the tighter
// bound for the model availability probe inside it.
func (s *Server) healthCheckTimeouts() (overall, modelProbe time.Duration) {
	overall, modelProbe = 15*time.Second, 5*time.Second
	if s.AppConfig == nil {
		return overall, modelProbe
	}

	hc := s.AppConfig.Observability.HealthCheck
	if hc.Timeout > 0 {
		overall = hc.Timeout
	}
	if hc.AIModelCheckTimeout > 0 {
		modelProbe = hc.AIModelCheckTimeout
	}
	return overall, modelProbe
}

// healthHandler reports liveness plus model availability and breaker state.
// A degraded instance answers 503 so load balancers rotate it out.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status":  "healthy",
		"service": "bulletsmith",
		"version": s.Version,
	}

	overallHealthy := true
	if s.provider != nil {
		overall, probe := s.healthCheckTimeouts()
		ctx, cancel := context.WithTimeout(r.Context(), overall)
		defer cancel()

		// The model probe gets its own tighter deadline within the
		// overall bound.
		probeCtx, probeCancel := context.WithTimeout(ctx, probe)
		defer probeCancel()

		models := s.provider.ModelInfoByOperation(probeCtx)
		response["ai_models"] = models
		for _, info := range models {
			if info == nil || !info.Available {
				overallHealthy = false
				break
			}
		}

		response["circuit_breakers"] = s.provider.BreakerStatsByOperation()
	}

	response["config"] = s.configSummary()

	w.Header().Set("Content-Type", "application/json")
	if !overallHealthy {
		response["status"] = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode health response: %v", err)
	}
}

// configSummary echoes the non-secret operational settings
func (s *Server) configSummary() map[string]any {
	cfg := s.AppConfig
	if cfg == nil {
		return map[string]any{}
	}

	backend := cfg.Cache.Backend
	if backend == "" {
		backend = "memory"
	}

	return map[string]any{
		"pipeline": map[string]any{
			"batch_size":           cfg.Pipeline.BatchSize,
			"validate_parallelism": cfg.Pipeline.ValidateParallelism,
		},
		"cache_backend":       backend,
		"budget_enabled":      cfg.Budget.Enabled,
		"rate_limit_enabled":  cfg.RateLimit.Enabled,
		"dead_letter_enabled": cfg.DeadLetter.Path != "",
	}
}

// statsHandler provides server statistics including rate limiting, budget,
// cache, and dead letter info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"service": "bulletsmith",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
	}

	// Stats reports enabled=false on a nil manager
	response["rate_limiting"] = s.RateLimiter.Stats()

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.Burst,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	if s.budget != nil {
		response["budget"] = map[string]any{
			"enabled": true,
			"callers": len(s.budget.Callers()),
		}
	} else {
		response["budget"] = map[string]any{"enabled": false}
	}

	if s.AppConfig != nil {
		backend := s.AppConfig.Cache.Backend
		if backend == "" {
			backend = "memory"
		}
		response["cache"] = map[string]any{
			"backend":    backend,
			"signal_ttl": s.AppConfig.Cache.SignalTTL.String(),
			"result_ttl": s.AppConfig.Cache.ResultTTL.String(),
		}
	}

	if s.deadLetter != nil {
		deadLetter := map[string]any{
			"enabled": true,
			"path":    s.deadLetter.Path(),
		}
		if entries, err := s.deadLetter.Count(); err != nil {
			deadLetter["error"] = err.Error()
		} else {
			deadLetter["entries"] = entries
		}
		response["dead_letter"] = deadLetter
	} else {
		response["dead_letter"] = map[string]any{"enabled": false}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode stats response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// usageHandler reports the spend ledger snapshot for the calling API key or
// client IP
func (s *Server) usageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.budget == nil {
		writeErrorResponse(w, "Budget disabled", "Daily budget tracking is not enabled", http.StatusNotFound)
		return
	}

	caller := callerKey(r)
	response := map[string]any{
		"caller": maskCallerKey(caller),
		"usage":  s.budget.StatsFor(caller),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode usage response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// dlqHandler serves the dead letter queue. GET lists entries or looks one up
// by job ID; DELETE clears the log and requires the admin API key.
func (s *Server) dlqHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.dlqListHandler(w, r)
	case http.MethodDelete:
		s.dlqClearHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) dlqListHandler(w http.ResponseWriter, r *http.Request) {
	if s.deadLetter == nil {
		writeErrorResponse(w, "Not found", "Dead letter log is not configured", http.StatusNotFound)
		return
	}

	if jobID := r.URL.Query().Get("jobId"); jobID != "" {
		entry, found, err := s.deadLetter.FindByJobID(jobID)
		if err != nil {
			writeErrorResponse(w, "Lookup failed", err.Error(), http.StatusInternalServerError)
			return
		}
		if !found {
			writeErrorResponse(w, "Not found", fmt.Sprintf("no dead letter entry for job %s", jobID), http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entry); err != nil {
			log.Printf("Failed to encode dead letter entry: %v", err)
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
		return
	}

	limit := defaultDLQListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeErrorResponse(w, "Invalid limit", "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	entries, err := s.deadLetter.List(limit)
	if err != nil {
		writeErrorResponse(w, "Listing failed", err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]any{
		"count":   len(entries),
		"entries": entries,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode dead letter listing: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func (s *Server) dlqClearHandler(w http.ResponseWriter, r *http.Request) {
	if !s.isAdminKey(presentedAPIKey(r)) {
		s.Logger.Info("Dead letter clear denied: admin key required",
			"client_ip", getClientIP(r))
		writeErrorResponse(w, "Forbidden", "Admin API key required", http.StatusForbidden)
		return
	}

	if s.deadLetter == nil {
		writeErrorResponse(w, "Not found", "Dead letter log is not configured", http.StatusNotFound)
		return
	}

	if err := s.deadLetter.Clear(); err != nil {
		writeErrorResponse(w, "Clear failed", err.Error(), http.StatusInternalServerError)
		return
	}

	s.Logger.Info("Dead letter log cleared", "path", s.deadLetter.Path())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"status": "cleared"}); err != nil {
		log.Printf("Failed to encode clear response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// parseJSONRequest decodes a JSON request body into v, translating the body
// size cap into a message the caller can act on.
func parseJSONRequest(r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return fmt.Errorf("request body too large (limit is %d bytes)", tooBig.Limit)
	case err != nil:
		return fmt.Errorf("failed to read request body: %w", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// writeErrorResponse sends a JSON error payload with the given status. Once
// the header is out there is no way to signal an encode failure to the
// client, so it is only logged.
func writeErrorResponse(w http.ResponseWriter, title, detail string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: title, Message: detail}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}
