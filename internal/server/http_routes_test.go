package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bulletsmith/internal/config"
	"bulletsmith/internal/types"
)

func TestAuthMiddlewareSkippedWithoutKeys(t *testing.T) {
	s := newTestServer(t, ServerConfig{})

	called := false
	handler := s.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/revise", nil))

	if !called {
		t.Error("handler not called when no keys are configured")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, ServerConfig{
		APIKeys:     []string{"key-one-12345678", "key-two-12345678"},
		AdminAPIKey: "admin-key-1234567",
	})

	handler := s.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		apiKey     string
		bearer     string
		wantStatus int
	}{
		{"missing key", "", "", http.StatusUnauthorized},
		{"invalid key", "wrong-key-123456", "", http.StatusUnauthorized},
		{"valid header key", "key-one-12345678", "", http.StatusOK},
		{"valid second key", "key-two-12345678", "", http.StatusOK},
		{"valid bearer token", "", "key-one-12345678", http.StatusOK},
		{"admin key accepted", "admin-key-1234567", "", http.StatusOK},
		{"invalid bearer token", "", "wrong-key-123456", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/revise", nil)
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}

			rec := httptest.NewRecorder()
			handler(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRateLimitMiddlewareDeniesPastBurst(t *testing.T) {
	om := newTestObservability(t)
	s := newTestServer(t, ServerConfig{
		RateLimit: &config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, Burst: 1, ByIP: true},
	})

	handler := s.createRateLimitMiddleware(om)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/revise", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/revise", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	om := newTestObservability(t)
	s := newTestServer(t, ServerConfig{})

	handler := s.createRateLimitMiddleware(om)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, "/revise", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i, rec.Code, http.StatusOK)
		}
	}
}

func TestGetRateLimitKey(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		bearer   string
		byAPIKey bool
		byIP     bool
		want     string
	}{
		{"api key header", "secret", "", true, true, "api:secret"},
		{"bearer fallback", "", "secret", true, true, "api:secret"},
		{"ip fallback without key", "", "", true, true, "ip:192.0.2.1"},
		{"ip only", "secret", "", false, true, "ip:192.0.2.1"},
		{"neither dimension", "", "", false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}

			if got := getRateLimitKey(req, tt.byAPIKey, tt.byIP); got != tt.want {
				t.Errorf("getRateLimitKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"x-forwarded-for first ip", "203.0.113.5, 198.51.100.2", "", "", "203.0.113.5"},
		{"x-forwarded-for garbage falls through", "not-an-ip", "198.51.100.7", "", "198.51.100.7"},
		{"x-real-ip", "", "198.51.100.7", "", "198.51.100.7"},
		{"remote addr host", "", "", "10.1.2.3:5555", "10.1.2.3"},
		{"remote addr without port", "", "", "10.1.2.3", "10.1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.remoteAddr != "" {
				req.RemoteAddr = tt.remoteAddr
			}

			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := maskAPIKey("short"); got != "****" {
		t.Errorf("maskAPIKey(short) = %q, want ****", got)
	}
	if got := maskAPIKey("abcdefgh12345678"); got != "abcdefgh****" {
		t.Errorf("maskAPIKey() = %q, want abcdefgh****", got)
	}
}

func TestMaskCallerKey(t *testing.T) {
	if got := maskCallerKey("api:abcdefgh12345678"); got != "api:abcdefgh****" {
		t.Errorf("maskCallerKey(api) = %q, want api:abcdefgh****", got)
	}
	if got := maskCallerKey("ip:192.0.2.1"); got != "ip:192.0.2.1" {
		t.Errorf("maskCallerKey(ip) = %q, want ip:192.0.2.1", got)
	}
}

func TestRoutesEnforceAuthBeforeRevise(t *testing.T) {
	om := newTestObservability(t)
	s := newTestServer(t, ServerConfig{APIKeys: []string{"route-key-1234567"}})
	s.pipeline = &stubRunner{output: &types.JobOutput{JobID: "job-routes"}}

	mux := s.setupRoutes(om)

	// Without a key the request never reaches the pipeline
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, reviseRequest(t))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	req := reviseRequest(t)
	req.Header.Set("X-API-Key", "route-key-1234567")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with key = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	// Health stays open
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestMetricsRouteMounting(t *testing.T) {
	om := newTestObservability(t)

	s := newTestServer(t, ServerConfig{})
	s.AppConfig.Observability.Prometheus.Enabled = true
	mux := s.setupRoutes(om)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("enabled /metrics status = %d, want %d", rec.Code, http.StatusOK)
	}

	s = newTestServer(t, ServerConfig{})
	mux = s.setupRoutes(om)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("disabled /metrics status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
