package quota

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/xaenox/chat-sessions/internal/kvstore"
	"github.com/xaenox/chat-sessions/internal/models"
	"go.uber.org/zap"
)

const stateKey = "api-quota-state"

const dateLayout = "2006-01-02"

const (
	StatusOK       = "ok"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// Manager is the process-wide daily budget for the rate-limited upstream API.
// Construct one at startup and inject it wherever calls are issued; there is
// exactly one counter per process.
type Manager struct {
	mu     sync.Mutex
	store  kvstore.KeyValue
	limit  int
	cost   int
	keep   int
	state  models.QuotaState
	logger *zap.Logger
	now    func() time.Time
}

func NewManager(store kvstore.KeyValue, dailyLimit, perCallCost, historySize int, logger *zap.Logger) *Manager {
	m := &Manager{
		store:  store,
		limit:  dailyLimit,
		cost:   perCallCost,
		keep:   historySize,
		logger: logger,
		now:    time.Now,
	}
	m.load()
	return m
}

func (m *Manager) load() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = models.QuotaState{LastResetDate: m.now().Format(dateLayout)}

	value, ok, err := m.store.Get(stateKey)
	if err != nil {
		m.logger.Error("Failed to load quota state", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	var state models.QuotaState
	if err := json.Unmarshal([]byte(value), &state); err != nil {
		m.logger.Error("Failed to parse quota state", zap.Error(err))
		return
	}

	m.state = state
	m.resetIfNewDayLocked()
}

// resetIfNewDayLocked performs the lazy daily reset: no timer, the date is
// re-checked whenever the counter is consulted or advanced.
func (m *Manager) resetIfNewDayLocked() {
	today := m.now().Format(dateLayout)
	if m.state.LastResetDate == today {
		return
	}

	m.logger.Info("Resetting daily API quota",
		zap.String("previous_date", m.state.LastResetDate),
		zap.Int("previous_usage", m.state.DailyUsage))

	m.state = models.QuotaState{LastResetDate: today}
}

// CanMakeAPICall reports whether another call fits in today's budget.
func (m *Manager) CanMakeAPICall() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetIfNewDayLocked()
	return m.state.DailyUsage < m.limit
}

// RecordCall charges one call against the budget and remembers it, keeping
// only the most recent history entries. The state is persisted before
// returning so the next CanMakeAPICall decision sees the true running total.
func (m *Manager) RecordCall(query string, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetIfNewDayLocked()

	m.state.DailyUsage += m.cost
	m.state.CallHistory = append(m.state.CallHistory, models.APICallRecord{
		Timestamp: m.now(),
		Success:   success,
		Query:     query,
	})
	if len(m.state.CallHistory) > m.keep {
		m.state.CallHistory = m.state.CallHistory[len(m.state.CallHistory)-m.keep:]
	}

	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	data, err := json.Marshal(m.state)
	if err != nil {
		return fmt.Errorf("error encoding quota state: %w", err)
	}
	if err := m.store.Set(stateKey, string(data)); err != nil {
		return fmt.Errorf("error saving quota state: %w", err)
	}
	return nil
}

// QuotaInfo derives the current consumption view.
func (m *Manager) QuotaInfo() models.QuotaInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetIfNewDayLocked()

	used := m.state.DailyUsage
	remaining := m.limit - used
	if remaining < 0 {
		remaining = 0
	}

	percentage := 0.0
	if m.limit > 0 {
		percentage = float64(used) / float64(m.limit) * 100
	}

	status := StatusOK
	switch {
	case percentage >= 80:
		status = StatusCritical
	case percentage >= 60:
		status = StatusWarning
	}

	return models.QuotaInfo{
		Used:       used,
		Limit:      m.limit,
		Remaining:  remaining,
		Percentage: fmt.Sprintf("%.1f", percentage),
		Status:     status,
	}
}

// DailyStats summarizes the retained call history. The success rate covers
// only the remembered calls, not the lifetime of the counter.
func (m *Manager) DailyStats() models.DailyStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetIfNewDayLocked()

	stats := models.DailyStats{TotalCalls: len(m.state.CallHistory)}
	for _, call := range m.state.CallHistory {
		if call.Success {
			stats.Successful++
		} else {
			stats.Failed++
		}
	}
	if stats.TotalCalls > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.TotalCalls)
	}
	return stats
}
