package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestAppErrorFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewValidationError(ErrCodeInvalidRequest, "role is required", nil),
			expected: "INVALID_REQUEST: role is required",
		},
		{
			name:     "with cause",
			err:      NewAIError(ErrCodeAIServiceFailed, "provider call failed", fmt.Errorf("boom")),
			expected: "AI_SERVICE_FAILED: provider call failed (caused by: boom)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying failure")
	err := NewNetworkError(ErrCodeNetworkTimeout, "request timed out", cause)

	if !stderrors.Is(err, cause) {
		t.Error("Expected errors.Is to find the wrapped cause")
	}

	var appErr *AppError
	wrapped := fmt.Errorf("stage failed: %w", err)
	if !stderrors.As(wrapped, &appErr) {
		t.Fatal("Expected errors.As to recover the AppError through a wrap")
	}
	if appErr.Code != ErrCodeNetworkTimeout {
		t.Errorf("Code = %q, want %q", appErr.Code, ErrCodeNetworkTimeout)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "network errors are retryable by default",
			err:      NewNetworkError(ErrCodeNetworkTimeout, "timeout", nil),
			expected: true,
		},
		{
			name:     "AI errors are not retryable unless marked",
			err:      NewAIError(ErrCodeAIServiceFailed, "bad response", nil),
			expected: false,
		},
		{
			name:     "marked AI errors are retryable",
			err:      NewAIError(ErrCodeAIServiceFailed, "503 from provider", nil).AsRetryable(),
			expected: true,
		},
		{
			name:     "validation errors are never retryable",
			err:      NewValidationError(ErrCodeInvalidRequest, "bad input", nil).AsRetryable(),
			expected: false,
		},
		{
			name:     "config errors are never retryable",
			err:      NewConfigError(ErrCodeInvalidConfig, "bad config", nil).AsRetryable(),
			expected: false,
		},
		{
			name:     "wrapped retryable error stays retryable",
			err:      fmt.Errorf("stage: %w", NewNetworkError(ErrCodeNetworkTimeout, "timeout", nil)),
			expected: true,
		},
		{
			name:     "plain errors are not retryable",
			err:      fmt.Errorf("some error"),
			expected: false,
		},
		{
			name:     "nil error is not retryable",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestWithContext(t *testing.T) {
	err := NewIOError(ErrCodeFileNotFound, "missing file", nil).
		WithContext("path", "/tmp/x").
		WithContext("attempt", 2)

	if err.Context["path"] != "/tmp/x" {
		t.Errorf("Context[path] = %v", err.Context["path"])
	}
	if err.Context["attempt"] != 2 {
		t.Errorf("Context[attempt] = %v", err.Context["attempt"])
	}
}
