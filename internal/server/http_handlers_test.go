package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"bulletsmith/internal/budget"
	"bulletsmith/internal/config"
	"bulletsmith/internal/deadletter"
	"bulletsmith/internal/errors"
	"bulletsmith/internal/observability"
	"bulletsmith/internal/types"
)

func newTestObservability(t *testing.T) *observability.ObservabilityManager {
	t.Helper()
	om, err := observability.NewObservabilityManager(observability.ObservabilityConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("NewObservabilityManager() error = %v", err)
	}
	return om
}

func newTestServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	if cfg.Version == "" {
		cfg.Version = "test"
	}
	if cfg.MaxRequestSize == 0 {
		cfg.MaxRequestSize = 1 << 20
	}
	s := NewServer(&config.Config{}, cfg, errors.NewLogger(slog.LevelError))
	if s.RateLimiter != nil {
		t.Cleanup(s.RateLimiter.Stop)
	}
	return s
}

// stubRunner satisfies jobRunner and records what the handler passed in
type stubRunner struct {
	output *types.JobOutput
	err    error
	caller string
	input  types.JobInput
}

func (r *stubRunner) ExecuteForCaller(ctx context.Context, caller string, input types.JobInput) (*types.JobOutput, error) {
	r.caller = caller
	r.input = input
	if r.err != nil {
		return nil, r.err
	}
	return r.output, nil
}

func reviseRequest(t *testing.T) *http.Request {
	t.Helper()
	body, err := json.Marshal(types.JobInput{
		Role:        "Backend Engineer",
		Description: "Go services on Kubernetes with Postgres",
		Bullets:     []string{"Built the ingest service"},
		Settings:    types.JobSettings{Tone: "concise", MaxLen: 30, Variants: 1},
	})
	if err != nil {
		t.Fatalf("marshal input: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/revise", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestReviseHandlerSuccess(t *testing.T) {
	om := newTestObservability(t)
	s := newTestServer(t, ServerConfig{})
	runner := &stubRunner{output: &types.JobOutput{JobID: "job-1"}}
	s.pipeline = runner

	rec := httptest.NewRecorder()
	s.createReviseHandler(om)(rec, reviseRequest(t))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var out types.JobOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.JobID != "job-1" {
		t.Errorf("jobId = %q, want %q", out.JobID, "job-1")
	}

	// httptest requests carry RemoteAddr 192.0.2.1:1234
	if runner.caller != "ip:192.0.2.1" {
		t.Errorf("caller = %q, want %q", runner.caller, "ip:192.0.2.1")
	}
	if len(runner.input.Bullets) != 1 {
		t.Errorf("pipeline received %d bullets, want 1", len(runner.input.Bullets))
	}
}

func TestReviseHandlerKeysCallerByAPIKey(t *testing.T) {
	om := newTestObservability(t)
	s := newTestServer(t, ServerConfig{})
	runner := &stubRunner{output: &types.JobOutput{JobID: "job-1"}}
	s.pipeline = runner

	req := reviseRequest(t)
	req.Header.Set("X-API-Key", "caller-key-123456")
	rec := httptest.NewRecorder()
	s.createReviseHandler(om)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if runner.caller != "api:caller-key-123456" {
		t.Errorf("caller = %q, want %q", runner.caller, "api:caller-key-123456")
	}
}

func TestReviseHandlerRejectsWrongMethod(t *testing.T) {
	om := newTestObservability(t)
	s := newTestServer(t, ServerConfig{})
	s.pipeline = &stubRunner{output: &types.JobOutput{}}

	req := httptest.NewRequest(http.MethodGet, "/revise", nil)
	rec := httptest.NewRecorder()
	s.createReviseHandler(om)(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestReviseHandlerRejectsBadContentType(t *testing.T) {
	om := newTestObservability(t)
	s := newTestServer(t, ServerConfig{})
	s.pipeline = &stubRunner{output: &types.JobOutput{}}

	req := httptest.NewRequest(http.MethodPost, "/revise", strings.NewReader("role=engineer"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.createReviseHandler(om)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestReviseHandlerMapsTerminalErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "rate limited",
			err:        errors.NewNetworkError(errors.ErrCodeRateLimited, "Request rate limit exceeded", nil),
			wantStatus: http.StatusTooManyRequests,
			wantError:  "Rate limit exceeded",
		},
		{
			name:       "budget exhausted",
			err:        errors.NewNetworkError(errors.ErrCodeBudgetExceeded, "Daily budget exhausted", nil),
			wantStatus: http.StatusTooManyRequests,
			wantError:  "Budget exceeded",
		},
		{
			name:       "invalid input",
			err:        errors.NewValidationError(errors.ErrCodeInvalidRequest, "role is required", nil),
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid input",
		},
		{
			name:       "provider failure",
			err:        errors.NewAIError(errors.ErrCodeAIServiceFailed, "AI processing failed", fmt.Errorf("socket exploded")),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Job failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			om := newTestObservability(t)
			s := newTestServer(t, ServerConfig{})
			s.pipeline = &stubRunner{err: tt.err}

			rec := httptest.NewRecorder()
			s.createReviseHandler(om)(rec, reviseRequest(t))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
			}

			// Wrapped causes must never leak into response bodies
			if strings.Contains(rec.Body.String(), "socket exploded") {
				t.Errorf("response leaked internal cause: %s", rec.Body.String())
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t, ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.healthHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", resp["status"])
	}
	if resp["service"] != "bulletsmith" {
		t.Errorf("service = %v, want bulletsmith", resp["service"])
	}
	if _, ok := resp["config"]; !ok {
		t.Error("response missing config echo")
	}

	rec = httptest.NewRecorder()
	s.healthHandler(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestStatsHandlerReportsDisabledCollaborators(t *testing.T) {
	s := newTestServer(t, ServerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.statsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	for _, section := range []string{"rate_limiting", "budget", "dead_letter"} {
		block, ok := resp[section].(map[string]any)
		if !ok {
			t.Fatalf("response missing %s section", section)
		}
		if enabled, _ := block["enabled"].(bool); enabled {
			t.Errorf("%s reported enabled without a collaborator", section)
		}
	}

	cacheBlock, ok := resp["cache"].(map[string]any)
	if !ok {
		t.Fatal("response missing cache section")
	}
	if cacheBlock["backend"] != "memory" {
		t.Errorf("cache backend = %v, want memory", cacheBlock["backend"])
	}
}

func TestUsageHandler(t *testing.T) {
	s := newTestServer(t, ServerConfig{})
	s.budget = budget.NewManager(budget.Limits{DailyCostLimit: 1.0, DailyRequestCap: 100}, errors.NewLogger(slog.LevelError))
	s.budget.GuardFor("ip:192.0.2.1").Record(0.02)

	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	rec := httptest.NewRecorder()
	s.usageHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["caller"] != "ip:192.0.2.1" {
		t.Errorf("caller = %v, want ip:192.0.2.1", resp["caller"])
	}

	usage, ok := resp["usage"].(map[string]any)
	if !ok {
		t.Fatal("response missing usage block")
	}
	if got, _ := usage["dailyCost"].(float64); got != 0.02 {
		t.Errorf("dailyCost = %v, want 0.02", usage["dailyCost"])
	}
}

func TestUsageHandlerWithoutBudget(t *testing.T) {
	s := newTestServer(t, ServerConfig{})

	rec := httptest.NewRecorder()
	s.usageHandler(rec, httptest.NewRequest(http.MethodGet, "/usage", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestDLQEndpoints(t *testing.T) {
	s := newTestServer(t, ServerConfig{AdminAPIKey: "admin-secret-key1"})

	dlq, err := deadletter.NewLog(filepath.Join(t.TempDir(), "dlq.jsonl"), errors.NewLogger(slog.LevelError))
	if err != nil {
		t.Fatalf("NewLog() error = %v", err)
	}
	s.deadLetter = dlq

	for _, entry := range []deadletter.Entry{
		{JobID: "job-a", Stage: "PROCESS", Reason: "model timeout"},
		{JobID: "job-b", Stage: "VALIDATE", Reason: "consistency check failed"},
	} {
		if err := dlq.Append(entry); err != nil {
			t.Fatalf("Append(%s) error = %v", entry.JobID, err)
		}
	}

	// List all entries
	rec := httptest.NewRecorder()
	s.dlqHandler(rec, httptest.NewRequest(http.MethodGet, "/dlq", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", rec.Code, http.StatusOK)
	}
	var listing map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if count, _ := listing["count"].(float64); count != 2 {
		t.Errorf("count = %v, want 2", listing["count"])
	}

	// Lookup by job ID
	rec = httptest.NewRecorder()
	s.dlqHandler(rec, httptest.NewRequest(http.MethodGet, "/dlq?jobId=job-a", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status = %d, want %d", rec.Code, http.StatusOK)
	}
	var entry deadletter.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.Stage != "PROCESS" {
		t.Errorf("stage = %q, want PROCESS", entry.Stage)
	}

	rec = httptest.NewRecorder()
	s.dlqHandler(rec, httptest.NewRequest(http.MethodGet, "/dlq?jobId=job-z", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing lookup status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	// Clear requires the admin key
	rec = httptest.NewRecorder()
	s.dlqHandler(rec, httptest.NewRequest(http.MethodDelete, "/dlq", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unauthenticated clear status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if count, err := dlq.Count(); err != nil || count != 2 {
		t.Fatalf("entries after denied clear = %d (err %v), want 2", count, err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/dlq", nil)
	req.Header.Set("X-API-Key", "admin-secret-key1")
	rec = httptest.NewRecorder()
	s.dlqHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin clear status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	if count, err := dlq.Count(); err != nil || count != 0 {
		t.Errorf("entries after clear = %d (err %v), want 0", count, err)
	}
}

func TestDLQListHandlerInvalidLimit(t *testing.T) {
	s := newTestServer(t, ServerConfig{})

	dlq, err := deadletter.NewLog(filepath.Join(t.TempDir(), "dlq.jsonl"), errors.NewLogger(slog.LevelError))
	if err != nil {
		t.Fatalf("NewLog() error = %v", err)
	}
	s.deadLetter = dlq

	rec := httptest.NewRecorder()
	s.dlqHandler(rec, httptest.NewRequest(http.MethodGet, "/dlq?limit=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestDLQHandlerWithoutLog(t *testing.T) {
	s := newTestServer(t, ServerConfig{AdminAPIKey: "admin-secret-key1"})

	rec := httptest.NewRecorder()
	s.dlqHandler(rec, httptest.NewRequest(http.MethodGet, "/dlq", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("list status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestConfigureTLS(t *testing.T) {
	s := newTestServer(t, ServerConfig{TLSConfig: config.TLSConfig{Mode: "disabled"}})
	httpServer := &http.Server{Addr: "127.0.0.1:8080"}
	if err := s.configureTLS(httpServer); err != nil {
		t.Fatalf("disabled mode error = %v", err)
	}
	if httpServer.TLSConfig != nil {
		t.Error("disabled mode should not set a TLS config")
	}

	s = newTestServer(t, ServerConfig{TLSConfig: config.TLSConfig{Mode: "bogus"}})
	if err := s.configureTLS(&http.Server{}); err == nil || !strings.Contains(err.Error(), "invalid TLS mode") {
		t.Errorf("bogus mode error = %v, want invalid TLS mode", err)
	}

	s = newTestServer(t, ServerConfig{TLSConfig: config.TLSConfig{Mode: "server"}})
	if err := s.configureTLS(&http.Server{}); err == nil {
		t.Error("server mode without certificates should fail")
	}
}

func TestReviseErrorResponseFallsBackForUnknownErrors(t *testing.T) {
	status, title, message, _ := reviseErrorResponse(fmt.Errorf("plain failure"))
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", status, http.StatusInternalServerError)
	}
	if title != "Job failed" {
		t.Errorf("title = %q, want Job failed", title)
	}
	if strings.Contains(message, "plain failure") {
		t.Errorf("message leaked the raw error: %q", message)
	}
}
