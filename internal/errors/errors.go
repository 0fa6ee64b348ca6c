package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
)

// ErrorType classifies errors so retry logic and handlers can branch on
// category.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeAI         ErrorType = "ai"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes
const (
	ErrCodeFileNotFound     = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable  = "FILE_NOT_READABLE"
	ErrCodeInvalidFormat    = "INVALID_FORMAT"
	ErrCodeAIServiceFailed  = "AI_SERVICE_FAILED"
	ErrCodeAITimeout        = "AI_TIMEOUT"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeMissingAPIKey    = "MISSING_API_KEY"
	ErrCodeNetworkTimeout   = "NETWORK_TIMEOUT"
	ErrCodeInvalidConfig    = "INVALID_CONFIG"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeBudgetExceeded   = "BUDGET_EXCEEDED"
	ErrCodeJobFailed        = "JOB_FAILED"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// AppError carries a typed, coded error through the pipeline so handlers and
// retry logic can branch on classification instead of message text.
type AppError struct {
	Type      ErrorType      `json:"type"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Cause     error          `json:"cause,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(typ ErrorType, code, msg string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: msg,
		Cause:   cause,
	}
}

// Constructors, one per error type. Network errors start out retryable.

func NewValidationError(code, msg string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, msg, cause)
}

func NewIOError(code, msg string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, msg, cause)
}

func NewAIError(code, msg string, cause error) *AppError {
	return newAppError(ErrorTypeAI, code, msg, cause)
}

func NewNetworkError(code, msg string, cause error) *AppError {
	err := newAppError(ErrorTypeNetwork, code, msg, cause)
	err.Retryable = true
	return err
}

func NewConfigError(code, msg string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, msg, cause)
}

func NewInternalError(code, msg string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, msg, cause)
}

// WithContext attaches a key/value pair that LogError will emit as a field.
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// AsRetryable marks an error as safe to retry
func (e *AppError) AsRetryable() *AppError {
	e.Retryable = true
	return e
}

// IsRetryable reports whether err may be retried. Network errors and
// explicitly marked errors are retryable; validation and config errors
// never are.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	switch appErr.Type {
	case ErrorTypeValidation, ErrorTypeConfig:
		return false
	}
	return appErr.Retryable
}

// Logger is the application-wide structured logger, a thin wrapper over slog.
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a structured JSON logger writing to stdout.
func NewLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return &Logger{logger: slog.New(handler)}
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New creates a logger for the named level.
func New(level string) (*Logger, error) {
	slogLevel, ok := logLevels[level]
	if !ok {
		return nil, fmt.Errorf("invalid log level: %s", level)
	}
	return NewLogger(slogLevel), nil
}

// LogError logs err at error level, expanding the structured fields when an
// AppError sits anywhere in the chain.
func (l *Logger) LogError(err error, msg string, args ...any) {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		l.logger.Error(msg, append([]any{"error", err.Error()}, args...)...)
		return
	}

	logArgs := []any{
		"error_type", appErr.Type,
		"error_code", appErr.Code,
		"error_message", appErr.Message,
	}
	for key, value := range appErr.Context {
		logArgs = append(logArgs, key, value)
	}
	l.logger.Error(msg, append(logArgs, args...)...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}
