package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"bulletsmith/internal/observability"
)

// setupRoutes builds the endpoint table. Only /revise carries the full
// middleware stack; the read-only endpoints skip the body cap, and /health
// and /stats stay open so probes work without credentials.
func (s *Server) setupRoutes(om *observability.ObservabilityManager) *http.ServeMux {
	mux := http.NewServeMux()

	limitRate := s.createRateLimitMiddleware(om)
	capBody := s.requestSizeLimitMiddleware()

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/revise",
		limitRate(
			s.authMiddleware(capBody(s.createReviseHandler(om))),
		),
	)
	mux.HandleFunc("/usage", s.authMiddleware(s.usageHandler))
	mux.HandleFunc("/dlq", s.authMiddleware(s.dlqHandler))

	if s.AppConfig != nil && s.AppConfig.Observability.Prometheus.Enabled {
		endpoint := s.AppConfig.Observability.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		mux.Handle(endpoint, observability.MetricsHandler())
	}

	return mux
}

// authMiddleware rejects requests without a valid API key. With no keys
// configured at all the instance runs open and the check is skipped.
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.APIKeys) == 0 && s.AdminAPIKey == "" {
			next(w, r)
			return
		}

		key := presentedAPIKey(r)
		if key == "" {
			s.Logger.Info("Rejected request without API key",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr)
			writeErrorResponse(w, "Missing API key", "Provide X-API-Key or an Authorization Bearer token", http.StatusUnauthorized)
			return
		}

		if !s.authorizedKey(key) {
			s.Logger.Info("Rejected request with unknown API key",
				"endpoint", r.URL.Path,
				"client_ip", r.RemoteAddr,
				"api_key_prefix", maskAPIKey(key))
			writeErrorResponse(w, "Invalid API key", "The presented key is not authorized", http.StatusUnauthorized)
			return
		}

		s.Logger.Debug("API key accepted",
			"endpoint", r.URL.Path,
			"api_key_prefix", maskAPIKey(key))

		next(w, r)
	}
}

// authorizedKey reports whether key matches a configured API key. Every
// configured key is checked in constant time, so the comparison does not
// reveal which entry matched or how far a guess got.
func (s *Server) authorizedKey(key string) bool {
	authorized := s.isAdminKey(key)
	for _, candidate := range s.APIKeys {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) == 1 {
			authorized = true
		}
	}
	return authorized
}

// isAdminKey reports whether key matches the configured admin API key
func (s *Server) isAdminKey(key string) bool {
	return s.AdminAPIKey != "" &&
		subtle.ConstantTimeCompare([]byte(s.AdminAPIKey), []byte(key)) == 1
}

// presentedAPIKey pulls the API key from the X-API-Key header, falling back
// to an Authorization Bearer token
func presentedAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return token
	}
	return ""
}

// requestSizeLimitMiddleware caps request bodies at the configured limit.
// A zero or negative limit disables the cap.
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if s.MaxRequestSize <= 0 {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
			next(w, r)
		}
	}
}

// maskAPIKey keeps a short key prefix for log correlation and hides the rest
func maskAPIKey(apiKey string) string {
	const visible = 8
	if len(apiKey) <= visible {
		return "****"
	}
	return apiKey[:visible] + "****"
}
