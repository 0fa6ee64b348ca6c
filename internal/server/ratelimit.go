package server

import (
	"net"
	"net/http"
	"strings"

	"bulletsmith/internal/observability"
)

// createRateLimitMiddleware builds rate limiting middleware over the
// server's limiter. Denials answer 429 and feed the denial counter.
func (s *Server) createRateLimitMiddleware(om *observability.ObservabilityManager) func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimiter == nil || s.RateLimit == nil || !s.RateLimit.Enabled {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := getRateLimitKey(r, s.RateLimit.ByAPIKey, s.RateLimit.ByIP)

			// Allow is non-blocking. An empty key means neither limiting
			// dimension applies to this request.
			if key == "" || s.RateLimiter.Allow(key) {
				next(w, r)
				return
			}

			s.Logger.Info("Rate limit exceeded",
				"key", maskCallerKey(key),
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r))
			om.PipelineRecorder().RecordRateLimitDenial(r.Context())
			writeErrorResponse(w, "Rate limit exceeded", "Too many requests", http.StatusTooManyRequests)
		}
	}
}

// callerKey derives the limiter and budget ledger key for a request: the
// API key when one is presented, the client IP otherwise
func callerKey(r *http.Request) string {
	return getRateLimitKey(r, true, true)
}

// getRateLimitKey picks the bucket key for a request. API keys win over
// client IPs so authenticated callers are tracked individually.
func getRateLimitKey(r *http.Request, byAPIKey, byIP bool) string {
	if byAPIKey {
		if key := presentedAPIKey(r); key != "" {
			return "api:" + key
		}
	}
	if byIP {
		return "ip:" + getClientIP(r)
	}
	return ""
}

// maskCallerKey masks the API key portion of a caller key for logging
func maskCallerKey(key string) string {
	if after, ok := strings.CutPrefix(key, "api:"); ok {
		return "api:" + maskAPIKey(after)
	}
	return key
}

// getClientIP resolves the caller's address, trusting proxy headers when
// they carry a parseable IP and falling back to the connection peer.
func getClientIP(r *http.Request) string {
	if ip := parseFirstIP(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}
	if xri := r.Header.Get("X-Real-IP"); net.ParseIP(xri) != nil {
		return xri
	}
	// RemoteAddr without a port shows up with some test clients
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// parseFirstIP returns the first syntactically valid address in a
// comma-separated X-Forwarded-For list, or "" when none parses.
func parseFirstIP(header string) string {
	for part := range strings.SplitSeq(header, ",") {
		if ip := strings.TrimSpace(part); net.ParseIP(ip) != nil {
			return ip
		}
	}
	return ""
}
