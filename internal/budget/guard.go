package budget

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"bulletsmith/internal/errors"
)

// Limits configures a guard's daily budget
type Limits struct {
	DailyCostLimit  float64 // denies once spend would exceed this
	DailyRequestCap int     // denies once this many requests were recorded today
	WarnThreshold   float64 // warning fraction, defaults to 0.8
	RetentionDays   int     // ledger retention, defaults to 7
}

func (l *Limits) applyDefaults() {
	if l.WarnThreshold <= 0 {
		l.WarnThreshold = 0.8
	}
	if l.RetentionDays <= 0 {
		l.RetentionDays = 7
	}
}

// dayLedger holds one calendar day's counters
type dayLedger struct {
	Requests int
	Cost     float64
}

// DayUsage is one ledger row of a usage snapshot
type DayUsage struct {
	Date     string  `json:"date"`
	Requests int     `json:"requests"`
	Cost     float64 `json:"cost"`
}

// UsageStats is a point-in-time snapshot of a guard's ledger
type UsageStats struct {
	Date              string     `json:"date"`
	DailyCost         float64    `json:"dailyCost"`
	DailyRequests     int        `json:"dailyRequests"`
	CostLimit         float64    `json:"costLimit"`
	RequestLimit      int        `json:"requestLimit"`
	CostRemaining     float64    `json:"costRemaining"`
	RequestsRemaining int        `json:"requestsRemaining"`
	CostPercent       float64    `json:"costPercent"`
	RequestPercent    float64    `json:"requestPercent"`
	History           []DayUsage `json:"history,omitempty"`
	Warnings          []string   `json:"warnings,omitempty"`
}

// Guard tracks request counts and estimated spend per UTC calendar day and
// rejects work once a daily limit would be exceeded. A nil Guard allows
// everything. Ledger entries older than the retention window are purged
// lazily on every call.
type Guard struct {
	mu     sync.Mutex
	limits Limits
	ledger map[string]*dayLedger
	now    func() time.Time
	logger *errors.Logger
}

// NewGuard creates a guard with the given limits
func NewGuard(limits Limits, logger *errors.Logger) *Guard {
	return newGuard(limits, time.Now, logger)
}

func newGuard(limits Limits, now func() time.Time, logger *errors.Logger) *Guard {
	limits.applyDefaults()
	return &Guard{
		limits: limits,
		ledger: make(map[string]*dayLedger),
		now:    now,
		logger: logger,
	}
}

// dayKey formats a timestamp as the UTC calendar date used to key the ledger
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// purgeLocked removes ledger days older than the retention window.
// YYYY-MM-DD keys compare chronologically as strings.
func (g *Guard) purgeLocked() {
	cutoff := dayKey(g.now().AddDate(0, 0, -g.limits.RetentionDays))
	for date := range g.ledger {
		if date < cutoff {
			delete(g.ledger, date)
		}
	}
}

// todayLocked returns today's ledger entry, creating it if needed
func (g *Guard) todayLocked() *dayLedger {
	key := dayKey(g.now())
	day, ok := g.ledger[key]
	if !ok {
		day = &dayLedger{}
		g.ledger[key] = day
	}
	return day
}

// CanProceed reports whether one more request with the given estimated cost
// fits today's limits. Spending exactly up to the budget is allowed; only
// exceeding it is denied.
func (g *Guard) CanProceed(estimatedCost float64) (bool, string) {
	if g == nil {
		return true, "cost guard disabled"
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.purgeLocked()

	day := g.todayLocked()

	if day.Requests >= g.limits.DailyRequestCap {
		return false, fmt.Sprintf("daily request limit exceeded (%d/%d)",
			day.Requests, g.limits.DailyRequestCap)
	}

	if day.Cost+estimatedCost > g.limits.DailyCostLimit {
		return false, fmt.Sprintf("daily cost limit would be exceeded ($%.2f > $%.2f)",
			day.Cost+estimatedCost, g.limits.DailyCostLimit)
	}

	return true, "request allowed"
}

// Record adds one request and its cost to today's ledger
func (g *Guard) Record(cost float64) {
	if g == nil {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.purgeLocked()

	day := g.todayLocked()
	day.Requests++
	day.Cost += cost

	if g.logger != nil {
		g.logger.Debug("Request recorded against budget",
			"cost", cost,
			"daily_total", day.Cost,
			"daily_requests", day.Requests)
	}
}

// NearLimit returns human-readable warnings once today's usage crosses the
// warning threshold of either limit. Empty when usage is comfortable.
func (g *Guard) NearLimit() []string {
	if g == nil {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.purgeLocked()

	day := g.todayLocked()
	var warnings []string

	if g.limits.DailyCostLimit > 0 {
		pct := day.Cost / g.limits.DailyCostLimit
		if pct >= g.limits.WarnThreshold {
			warnings = append(warnings, fmt.Sprintf("cost limit: %.1f%% used ($%.2f/$%.2f)",
				pct*100, day.Cost, g.limits.DailyCostLimit))
		}
	}

	if g.limits.DailyRequestCap > 0 {
		pct := float64(day.Requests) / float64(g.limits.DailyRequestCap)
		if pct >= g.limits.WarnThreshold {
			warnings = append(warnings, fmt.Sprintf("request limit: %.1f%% used (%d/%d)",
				pct*100, day.Requests, g.limits.DailyRequestCap))
		}
	}

	return warnings
}

// Stats returns a snapshot of today's usage plus the retained history
func (g *Guard) Stats() UsageStats {
	if g == nil {
		return UsageStats{}
	}

	g.mu.Lock()
	g.purgeLocked()

	today := dayKey(g.now())
	day := g.todayLocked()

	stats := UsageStats{
		Date:              today,
		DailyCost:         day.Cost,
		DailyRequests:     day.Requests,
		CostLimit:         g.limits.DailyCostLimit,
		RequestLimit:      g.limits.DailyRequestCap,
		CostRemaining:     max(0, g.limits.DailyCostLimit-day.Cost),
		RequestsRemaining: max(0, g.limits.DailyRequestCap-day.Requests),
	}
	if g.limits.DailyCostLimit > 0 {
		stats.CostPercent = day.Cost / g.limits.DailyCostLimit * 100
	}
	if g.limits.DailyRequestCap > 0 {
		stats.RequestPercent = float64(day.Requests) / float64(g.limits.DailyRequestCap) * 100
	}

	for date, entry := range g.ledger {
		stats.History = append(stats.History, DayUsage{
			Date:     date,
			Requests: entry.Requests,
			Cost:     entry.Cost,
		})
	}
	g.mu.Unlock()

	sort.Slice(stats.History, func(i, j int) bool {
		return stats.History[i].Date < stats.History[j].Date
	})

	stats.Warnings = g.NearLimit()
	return stats
}
