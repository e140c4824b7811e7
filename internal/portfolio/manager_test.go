package portfolio

import (
	"testing"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mon 2024-01-08
var monday = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time {
	return monday.AddDate(0, 0, i)
}

func leg(ticker string, d time.Time, price float64, reason string) core.TradeLeg {
	return core.TradeLeg{Ticker: ticker, Date: d, Price: price, Reason: reason}
}

func newManager(t *testing.T, capital, minAmount, maxAmount float64) *Manager {
	t.Helper()
	m, err := NewManager(Config{InitialCapital: capital, PositionMinAmount: minAmount, PositionMaxAmount: maxAmount}, nil)
	require.NoError(t, err)
	return m
}

func TestNewManager_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero capital", Config{InitialCapital: 0, PositionMinAmount: 1, PositionMaxAmount: 2}},
		{"zero min", Config{InitialCapital: 100, PositionMinAmount: 0, PositionMaxAmount: 2}},
		{"min above max", Config{InitialCapital: 100, PositionMinAmount: 5, PositionMaxAmount: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(tt.cfg, nil)
			assert.ErrorIs(t, err, core.ErrConfigInvalid)
		})
	}

	m, err := NewManager(DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, 30000.0, m.Cash())
}

func TestManager_CalculatePositionSize(t *testing.T) {
	tests := []struct {
		name  string
		cash  float64
		price float64
		want  int
	}{
		{"fills to max", 30000, 100, 30},
		{"floors fractional shares", 30000, 70, 42},
		{"bounded by cash", 2000, 100, 20},
		{"cash below min", 1000, 100, 0},
		{"price above max", 30000, 3001, 0},
		{"zero price", 30000, 0, 0},
		{"negative price", 30000, -5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(t, tt.cash, 1500, 3000)
			got := m.CalculatePositionSize(leg("X", day(1), tt.price, core.ReasonNextDayOpen))
			assert.Equal(t, tt.want, got)

			// shares * price never exceeds min(cash, max)
			if got > 0 {
				assert.LessOrEqual(t, float64(got)*tt.price, min(tt.cash, 3000.0))
			}
		})
	}
}

func TestManager_OpenPosition(t *testing.T) {
	m := newManager(t, 10000, 1000, 3000)

	pos, err := m.OpenPosition(leg("AAPL", day(1), 100, core.ReasonNextDayOpen), leg("AAPL", day(5), 110, core.ReasonPeriodEnd), 30)
	require.NoError(t, err)

	assert.Equal(t, 7000.0, m.Cash())
	assert.Equal(t, "AAPL", pos.Ticker())
	assert.Equal(t, 100.0, pos.CurrentPrice)
	assert.Equal(t, 3000.0, pos.CostBasis())
	assert.True(t, m.Holds("AAPL"))
	assert.Equal(t, []string{"AAPL"}, m.Tickers())
	assert.Equal(t, 10000.0, m.TotalValue())
}

func TestManager_OpenPositionRejects(t *testing.T) {
	m := newManager(t, 1000, 100, 3000)
	entry := leg("AAPL", day(1), 100, core.ReasonNextDayOpen)
	exit := leg("AAPL", day(5), 110, core.ReasonPeriodEnd)

	_, err := m.OpenPosition(entry, exit, 0)
	assert.ErrorIs(t, err, core.ErrInvalidPositionSize)

	_, err = m.OpenPosition(entry, exit, -1)
	assert.ErrorIs(t, err, core.ErrInvalidPositionSize)

	_, err = m.OpenPosition(entry, exit, 11)
	assert.ErrorIs(t, err, core.ErrInsufficientCash)

	assert.Equal(t, 1000.0, m.Cash())
	assert.Empty(t, m.Positions())

	// exactly all cash is allowed
	_, err = m.OpenPosition(entry, exit, 10)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.Cash())
}

func TestManager_ClosePosition(t *testing.T) {
	m := newManager(t, 10000, 1000, 3000)
	exit := leg("AAPL", day(5), 110, core.ReasonProfitTarget)
	_, err := m.OpenPosition(leg("AAPL", day(1), 100, core.ReasonNextDayOpen), exit, 30)
	require.NoError(t, err)

	assert.ErrorIs(t, m.ClosePosition(leg("MSFT", day(5), 1, ""), 1), core.ErrPositionNotFound)
	assert.ErrorIs(t, m.ClosePosition(exit, 29), core.ErrInvalidPositionSize)

	require.NoError(t, m.ClosePosition(exit, 30))
	assert.Equal(t, 10300.0, m.Cash())
	assert.False(t, m.Holds("AAPL"))

	state := m.State()
	require.Len(t, state.Closed, 1)
	assert.Equal(t, 300.0, state.RealizedPnL())
	assert.Equal(t, core.ReasonProfitTarget, state.Closed[0].Exit.Reason)

	// closing twice is a caller error, surfaced as not found
	assert.ErrorIs(t, m.ClosePosition(exit, 30), core.ErrPositionNotFound)
}

func TestManager_UpdatePositionPrice(t *testing.T) {
	m := newManager(t, 10000, 1000, 3000)
	_, err := m.OpenPosition(leg("AAPL", day(1), 100, ""), leg("AAPL", day(5), 110, ""), 10)
	require.NoError(t, err)

	require.NoError(t, m.UpdatePositionPrice("AAPL", 120))
	assert.Equal(t, 9000.0, m.Cash())
	assert.Equal(t, 10200.0, m.TotalValue())
	assert.Equal(t, 200.0, m.Positions()[0].UnrealizedPnL())

	assert.ErrorIs(t, m.UpdatePositionPrice("MSFT", 10), core.ErrPositionNotFound)
	assert.ErrorIs(t, m.UpdatePositionPrice("AAPL", 0), core.ErrInvalidPrice)
}

func TestManager_SnapshotsAreFrozen(t *testing.T) {
	m := newManager(t, 10000, 1000, 3000)

	snap := m.RecordDailySnapshot(day(0))
	assert.Equal(t, 10000.0, snap.TotalValue())

	_, err := m.OpenPosition(leg("AAPL", day(1), 100, ""), leg("AAPL", day(5), 110, ""), 10)
	require.NoError(t, err)
	require.NoError(t, m.UpdatePositionPrice("AAPL", 150))

	m.RecordDailySnapshot(day(1))

	state := m.State()
	require.Len(t, state.Snapshots, 2)
	assert.Empty(t, state.Snapshots[0].Positions)
	assert.Equal(t, 10000.0, state.Snapshots[0].Cash)
	assert.Equal(t, 10500.0, state.Snapshots[1].TotalValue())
}

func TestManager_StateIsCopy(t *testing.T) {
	m := newManager(t, 10000, 1000, 3000)
	_, err := m.OpenPosition(leg("AAPL", day(1), 100, ""), leg("AAPL", day(5), 110, ""), 10)
	require.NoError(t, err)
	m.RecordTrade(core.FutureTrade{Signal: core.Signal{Ticker: "AAPL"}, PositionSize: 10})

	state := m.State()
	state.Positions[0].Size = 999
	state.FutureTrades[0].PositionSize = 999

	assert.Equal(t, 10, m.Positions()[0].Size)
	assert.Equal(t, 10, m.State().FutureTrades[0].PositionSize)
}

func TestManager_CashIsExact(t *testing.T) {
	m := newManager(t, 30000, 1, 3000)
	entry := leg("X", day(1), 33.33, "")
	exit := leg("X", day(2), 33.33, "")

	for i := 0; i < 1000; i++ {
		_, err := m.OpenPosition(entry, exit, 7)
		require.NoError(t, err)
		require.NoError(t, m.ClosePosition(exit, 7))
	}
	assert.Equal(t, 30000.0, m.Cash())
}
