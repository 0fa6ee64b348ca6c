package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"bulletsmith/internal/errors"
)

// Policy controls how an operation is retried. Zero JitterFactor disables
// jitter; a nil Retryable predicate falls back to errors.IsRetryable.
type Policy struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
	Retryable    func(error) bool
}

// DefaultPolicy mirrors the provider-call retry budget used across the
// pipeline: 3 retries, 1s base, 30s cap, 30% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.3,
	}
}

// Delay returns the backoff duration before retry number attempt+1:
// min(maxDelay, baseDelay*2^attempt) scaled by a random jitter factor in
// [1-j, 1+j].
func Delay(p Policy, attempt int) time.Duration {
	backoff := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
	if backoff <= 0 || backoff > p.MaxDelay {
		backoff = p.MaxDelay
	}

	if p.JitterFactor <= 0 {
		return backoff
	}

	// Uniform draw over [(1-j)*backoff, (1+j)*backoff)
	span := int64(2 * p.JitterFactor * float64(backoff))
	if span <= 0 {
		return backoff
	}
	floor := time.Duration((1 - p.JitterFactor) * float64(backoff))
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return backoff
	}
	return floor + time.Duration(n.Int64())
}

// Do invokes fn until it succeeds, fails with a non-retryable error, or the
// retry budget is exhausted. The operation is invoked MaxRetries+1 times at
// most. Non-retryable errors propagate immediately; an exhausted budget
// returns the last error wrapped so callers can still match it with
// errors.Is/As.
func Do[T any](ctx context.Context, p Policy, logger *errors.Logger, operation string, fn func(context.Context) (T, error)) (T, error) {
	var result T
	var lastErr error

	retryable := p.Retryable
	if retryable == nil {
		retryable = errors.IsRetryable
	}

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := Delay(p, attempt-1)
			if logger != nil {
				logger.Warn("Retrying operation",
					"operation", operation,
					"attempt", attempt,
					"max_retries", p.MaxRetries,
					"delay", delay.String(),
					"last_error", lastErr.Error())
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}

		result, lastErr = fn(ctx)
		if lastErr == nil {
			return result, nil
		}
		if !retryable(lastErr) {
			return result, lastErr
		}
	}

	return result, fmt.Errorf("operation '%s' failed after %d retries: %w", operation, p.MaxRetries, lastErr)
}
