package ratelimit

import (
	"sync"
	"time"

	"bulletsmith/internal/errors"

	"golang.org/x/time/rate"
)

// Manager owns one token bucket per caller key. Buckets are created lazily,
// refill at a shared rate and are evicted after sitting idle. A nil Manager
// is the disabled state and allows everything.
type Manager struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
	done     chan struct{}
	logger   *errors.Logger
}

// NewManager creates a manager whose buckets hold burst tokens and refill at
// ratePerSecond tokens per second.
func NewManager(ratePerSecond float64, burst int, logger *errors.Logger) *Manager {
	m := &Manager{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     rate.Limit(ratePerSecond),
		burst:    burst,
		done:     make(chan struct{}),
		logger:   logger,
	}

	go m.cleanupRoutine(10 * time.Minute)
	return m
}

// NewManagerPerMinute is NewManager with the refill rate given in requests
// per minute, the unit used in configuration.
func NewManagerPerMinute(requestsPerMin, burst int, logger *errors.Logger) *Manager {
	return NewManager(float64(requestsPerMin)/60.0, burst, logger)
}

// limiterFor retrieves or creates the bucket for a key and refreshes its
// last-seen time.
func (m *Manager) limiterFor(key string, now time.Time) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	limiter, exists := m.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(m.rate, m.burst)
		m.limiters[key] = limiter
	}
	m.lastSeen[key] = now

	return limiter
}

// TryAcquire takes n tokens from the key's bucket if available. Non-blocking.
func (m *Manager) TryAcquire(key string, n int) bool {
	return m.TryAcquireAt(time.Now(), key, n)
}

// TryAcquireAt is TryAcquire evaluated at an explicit timestamp, which keeps
// refill arithmetic deterministic in tests.
func (m *Manager) TryAcquireAt(t time.Time, key string, n int) bool {
	if m == nil {
		return true
	}
	return m.limiterFor(key, t).AllowN(t, n)
}

// Allow is TryAcquire for a single token
func (m *Manager) Allow(key string) bool {
	return m.TryAcquire(key, 1)
}

// TimeUntilAvailable reports how long until n tokens become available for the
// key without consuming anything. Returns 0 when they are available now and
// rate.InfDuration when n exceeds the bucket capacity.
func (m *Manager) TimeUntilAvailable(key string, n int) time.Duration {
	return m.TimeUntilAvailableAt(time.Now(), key, n)
}

// TimeUntilAvailableAt is TimeUntilAvailable evaluated at an explicit
// timestamp. The reservation is cancelled at the same instant so the bucket
// state is left untouched.
func (m *Manager) TimeUntilAvailableAt(t time.Time, key string, n int) time.Duration {
	if m == nil {
		return 0
	}

	limiter := m.limiterFor(key, t)
	r := limiter.ReserveN(t, n)
	if !r.OK() {
		return rate.InfDuration
	}
	d := r.DelayFrom(t)
	r.CancelAt(t)
	return d
}

// Stats returns current limiter statistics
func (m *Manager) Stats() map[string]any {
	if m == nil {
		return map[string]any{"enabled": false}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]any{
		"enabled":         true,
		"active_limiters": len(m.limiters),
		"rate_per_second": float64(m.rate),
		"rate_per_minute": float64(m.rate) * 60.0,
		"burst_capacity":  m.burst,
	}
}

// cleanupRoutine periodically removes idle buckets
func (m *Manager) cleanupRoutine(cleanupInterval time.Duration) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanup(cleanupInterval)
		case <-m.done:
			return
		}
	}
}

// cleanup removes buckets that have not been touched within evictionAge
func (m *Manager) cleanup(evictionAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, lastSeen := range m.lastSeen {
		if now.Sub(lastSeen) > evictionAge {
			delete(m.limiters, key)
			delete(m.lastSeen, key)
		}
	}

	if m.logger != nil {
		m.logger.Debug("Rate limiter cleanup completed",
			"remaining_limiters", len(m.limiters))
	}
}

// Stop halts the cleanup goroutine. Call once during shutdown.
func (m *Manager) Stop() {
	if m == nil {
		return
	}
	close(m.done)
}
