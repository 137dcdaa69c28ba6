package quota

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaenox/chat-sessions/internal/kvstore"
	"go.uber.org/zap"
)

func TestCanMakeAPICallUntilLimit(t *testing.T) {
	m := NewManager(kvstore.NewMemoryStore(), 5000, 100, 20, zap.NewNop())

	for i := 0; i < 50; i++ {
		require.True(t, m.CanMakeAPICall(), "call %d should fit in the budget", i)
		require.NoError(t, m.RecordCall(fmt.Sprintf("query-%d", i), true))
	}

	assert.False(t, m.CanMakeAPICall())
	assert.Equal(t, "100.0", m.QuotaInfo().Percentage)
}

func TestHistoryIsBounded(t *testing.T) {
	m := NewManager(kvstore.NewMemoryStore(), 1000000, 1, 20, zap.NewNop())

	for i := 0; i < 100; i++ {
		require.NoError(t, m.RecordCall(fmt.Sprintf("query-%d", i), true))
	}

	stats := m.DailyStats()
	assert.Equal(t, 20, stats.TotalCalls, "history must drop oldest entries first")

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, "query-99", m.state.CallHistory[19].Query)
	assert.Equal(t, "query-80", m.state.CallHistory[0].Query)
}

func TestQuotaInfoThresholds(t *testing.T) {
	tests := []struct {
		calls      int
		status     string
		percentage string
	}{
		{calls: 0, status: StatusOK, percentage: "0.0"},
		{calls: 5, status: StatusOK, percentage: "50.0"},
		{calls: 6, status: StatusWarning, percentage: "60.0"},
		{calls: 8, status: StatusCritical, percentage: "80.0"},
		{calls: 10, status: StatusCritical, percentage: "100.0"},
	}

	for _, tt := range tests {
		t.Run(tt.percentage, func(t *testing.T) {
			m := NewManager(kvstore.NewMemoryStore(), 1000, 100, 20, zap.NewNop())
			for i := 0; i < tt.calls; i++ {
				require.NoError(t, m.RecordCall("q", true))
			}

			info := m.QuotaInfo()
			assert.Equal(t, tt.status, info.Status)
			assert.Equal(t, tt.percentage, info.Percentage)
			assert.Equal(t, tt.calls*100, info.Used)
			assert.Equal(t, 1000-tt.calls*100, info.Remaining)
		})
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	m := NewManager(kvstore.NewMemoryStore(), 150, 100, 20, zap.NewNop())

	require.NoError(t, m.RecordCall("q1", true))
	require.NoError(t, m.RecordCall("q2", true))

	info := m.QuotaInfo()
	assert.Equal(t, 200, info.Used)
	assert.Equal(t, 0, info.Remaining)
}

func TestDailyStats(t *testing.T) {
	m := NewManager(kvstore.NewMemoryStore(), 5000, 100, 20, zap.NewNop())

	require.NoError(t, m.RecordCall("ok-1", true))
	require.NoError(t, m.RecordCall("fail", false))
	require.NoError(t, m.RecordCall("ok-2", true))

	stats := m.DailyStats()
	assert.Equal(t, 3, stats.TotalCalls)
	assert.Equal(t, 2, stats.Successful)
	assert.Equal(t, 1, stats.Failed)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 0.001)
}

func TestLazyDailyReset(t *testing.T) {
	m := NewManager(kvstore.NewMemoryStore(), 500, 100, 20, zap.NewNop())

	now := time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	m.state.LastResetDate = now.Format(dateLayout)

	for i := 0; i < 5; i++ {
		require.NoError(t, m.RecordCall("q", true))
	}
	require.False(t, m.CanMakeAPICall())

	// Crossing midnight resets usage and history without any timer
	now = now.Add(2 * time.Hour)

	assert.True(t, m.CanMakeAPICall())
	assert.Equal(t, 0, m.QuotaInfo().Used)
	assert.Equal(t, 0, m.DailyStats().TotalCalls)
}

func TestStateSurvivesRestart(t *testing.T) {
	store := kvstore.NewMemoryStore()

	m := NewManager(store, 5000, 100, 20, zap.NewNop())
	require.NoError(t, m.RecordCall("persisted", true))
	require.NoError(t, m.RecordCall("persisted", false))

	reloaded := NewManager(store, 5000, 100, 20, zap.NewNop())
	assert.Equal(t, 200, reloaded.QuotaInfo().Used)

	stats := reloaded.DailyStats()
	assert.Equal(t, 2, stats.TotalCalls)
	assert.Equal(t, 1, stats.Successful)
}

func TestCorruptStateStartsFresh(t *testing.T) {
	store := kvstore.NewMemoryStore()
	require.NoError(t, store.Set(stateKey, "{not json"))

	m := NewManager(store, 5000, 100, 20, zap.NewNop())
	assert.True(t, m.CanMakeAPICall())
	assert.Equal(t, 0, m.QuotaInfo().Used)
}
