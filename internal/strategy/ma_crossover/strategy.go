package ma_crossover

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/history"
	"github.com/newthinker/tradelab/internal/indicator"
	"github.com/newthinker/tradelab/internal/strategy"
)

// Name is the registry name of this strategy
const Name = "ma_crossover"

// MACrossover implements a moving average crossover strategy.
// It signals on every golden cross (fast SMA closing above slow SMA) and
// ranks the signal by how far the fast average already sits above the slow one.
type MACrossover struct {
	fastPeriod int
	slowPeriod int
	source     history.Source
}

// New creates a new MA Crossover strategy
func New(fastPeriod, slowPeriod int, source history.Source) (*MACrossover, error) {
	if fastPeriod < 1 || slowPeriod <= fastPeriod {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("need 0 < fast_period < slow_period, got %d/%d", fastPeriod, slowPeriod))
	}
	return &MACrossover{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
		source:     source,
	}, nil
}

// Factory builds the strategy from fast_period / slow_period params (default 10/30)
func Factory(cfg strategy.Config, src history.Source) (strategy.Strategy, error) {
	s, err := New(cfg.Int("fast_period", 10), cfg.Int("slow_period", 30), src)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (m *MACrossover) Name() string {
	return Name
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("MA Crossover (%d/%d)", m.fastPeriod, m.slowPeriod)
}

// warmup is the calendar lookback needed to seed the slow average before start
func (m *MACrossover) warmup() time.Duration {
	days := m.slowPeriod*2 + 10 // Extra buffer for weekends and holidays
	return time.Duration(days) * 24 * time.Hour
}

// Signals implements strategy.Strategy
func (m *MACrossover) Signals(ctx context.Context, ticker string, start, end time.Time) ([]core.Signal, error) {
	bars, err := m.source.History(ctx, ticker, start.Add(-m.warmup()), end, core.TimeFrameDay)
	if err != nil {
		return nil, core.WrapError(core.ErrStrategyFailed, fmt.Errorf("%s history: %w", ticker, err))
	}
	if len(bars) < m.slowPeriod+1 {
		return nil, nil // Not enough data
	}

	// Extract closing prices
	prices := make([]float64, len(bars))
	for i, bar := range bars {
		prices[i] = bar.Close
	}

	fastMA := indicator.Align(indicator.SMA(prices, m.fastPeriod), len(prices))
	slowMA := indicator.Align(indicator.SMA(prices, m.slowPeriod), len(prices))

	var signals []core.Signal
	for i := m.slowPeriod; i < len(bars); i++ {
		d := bars[i].Date
		if d.Before(core.TruncateDay(start)) || d.After(end) {
			continue
		}

		prevFast, prevSlow := fastMA[i-1], slowMA[i-1]
		currFast, currSlow := fastMA[i], slowMA[i]

		// Golden Cross: fast crosses above slow
		if prevFast <= prevSlow && currFast > currSlow {
			signals = append(signals, core.Signal{
				Ticker:  ticker,
				Date:    d,
				Ranking: m.calculateRanking(currFast, currSlow),
			})
		}
	}

	return signals, nil
}

// calculateRanking returns a higher ranking for larger divergence, 5% or more scoring 100
func (m *MACrossover) calculateRanking(fast, slow float64) int {
	if slow <= 0 {
		return 0
	}
	diff := math.Abs((fast - slow) / slow)

	ranking := int(math.Round(diff * 2000))
	if ranking > 100 {
		ranking = 100
	}
	return ranking
}
