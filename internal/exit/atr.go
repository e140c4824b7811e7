package exit

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/indicator"
)

// ATR is a trailing stop kept multiplier x ATR below the highest high since entry.
//
// The stop starts at entryPrice - multiplier*ATR on the first bar with a seeded
// ATR and only ever moves up. The position exits at the stop price on the first
// close below it. Bars before the entry date only seed the ATR.
type ATR struct {
	period     int
	multiplier float64
}

// NewATR creates an ATR trailing stop exit strategy
func NewATR(period int, multiplier float64) (*ATR, error) {
	if period < 1 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("atr_period must be at least 1, got %d", period))
	}
	if multiplier <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("atr_multiplier must be positive, got %f", multiplier))
	}
	return &ATR{period: period, multiplier: multiplier}, nil
}

func (a *ATR) Name() string {
	return NameATR
}

// CalculateReturn returns the first close below the trailing stop, falling back to buy-and-hold
func (a *ATR) CalculateReturn(bars []core.Bar, entryPrice float64, entryDate, targetDate time.Time) (*Result, error) {
	if err := checkEntryPrice(entryPrice); err != nil {
		return nil, err
	}

	history := upTo(bars, targetDate)
	highs := make([]float64, len(history))
	lows := make([]float64, len(history))
	closes := make([]float64, len(history))
	for i, b := range history {
		highs[i], lows[i], closes[i] = b.High, b.Low, b.Close
	}
	atr := indicator.Align(indicator.ATR(highs, lows, closes, a.period), len(history))

	highest := entryPrice
	stop := math.NaN()
	var last *core.Bar
	for i := range history {
		b := history[i]
		if b.Date.Before(entryDate) {
			continue
		}
		last = &history[i]
		if math.IsNaN(atr[i]) {
			continue
		}

		if math.IsNaN(stop) {
			stop = entryPrice - a.multiplier*atr[i]
		}
		if b.High > highest {
			highest = b.High
			stop = math.Max(stop, highest-a.multiplier*atr[i])
		}
		if b.Close < stop {
			return newResult(entryPrice, b, stop, core.ReasonATRStop), nil
		}
	}

	if last == nil {
		return nil, nil
	}
	return newResult(entryPrice, *last, last.Close, core.ReasonPeriodEnd), nil
}
