package budget

import (
	"sync"
	"time"

	"bulletsmith/internal/errors"
)

// DefaultCaller is the ledger key used when no caller identity is available
const DefaultCaller = "default"

// Manager owns one Guard per caller key, created lazily with shared limits.
// A nil Manager is the disabled state: every caller gets a nil (allow-all)
// Guard.
type Manager struct {
	mu     sync.Mutex
	guards map[string]*Guard
	limits Limits
	now    func() time.Time
	logger *errors.Logger
}

// NewManager creates a guard manager with the given per-caller limits
func NewManager(limits Limits, logger *errors.Logger) *Manager {
	return newManager(limits, time.Now, logger)
}

func newManager(limits Limits, now func() time.Time, logger *errors.Logger) *Manager {
	limits.applyDefaults()
	return &Manager{
		guards: make(map[string]*Guard),
		limits: limits,
		now:    now,
		logger: logger,
	}
}

// GuardFor retrieves or creates the guard for a caller key
func (m *Manager) GuardFor(key string) *Guard {
	if m == nil {
		return nil
	}
	if key == "" {
		key = DefaultCaller
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	guard, ok := m.guards[key]
	if !ok {
		guard = newGuard(m.limits, m.now, m.logger)
		m.guards[key] = guard
	}
	return guard
}

// StatsFor returns the usage snapshot for a caller key
func (m *Manager) StatsFor(key string) UsageStats {
	return m.GuardFor(key).Stats()
}

// Callers returns the keys that currently have a ledger
func (m *Manager) Callers() []string {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.guards))
	for key := range m.guards {
		keys = append(keys, key)
	}
	return keys
}
