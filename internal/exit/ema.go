package exit

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/indicator"
)

// EMA exits on the first close strictly below the exponential moving average.
//
// The average is computed over every supplied bar up to the target date, so bars
// before the entry date only serve as seeding history. Bars whose average is not
// yet seeded (fewer than period closes) never trigger an exit.
type EMA struct {
	period int
}

// NewEMA creates an EMA exit strategy
func NewEMA(period int) (*EMA, error) {
	if period < 1 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("ema_period must be at least 1, got %d", period))
	}
	return &EMA{period: period}, nil
}

func (e *EMA) Name() string {
	return NameEMA
}

// CalculateReturn returns the first close below EMA, falling back to buy-and-hold
func (e *EMA) CalculateReturn(bars []core.Bar, entryPrice float64, entryDate, targetDate time.Time) (*Result, error) {
	if err := checkEntryPrice(entryPrice); err != nil {
		return nil, err
	}

	history := upTo(bars, targetDate)

	closes := make([]float64, len(history))
	for i, b := range history {
		closes[i] = b.Close
	}
	ema := indicator.Align(indicator.EMA(closes, e.period), len(closes))

	var last *core.Bar
	for i := range history {
		b := history[i]
		if b.Date.Before(entryDate) {
			continue
		}
		last = &history[i]
		if math.IsNaN(ema[i]) {
			continue
		}
		if b.Close < ema[i] {
			return newResult(entryPrice, b, b.Close, core.ReasonEMAExit), nil
		}
	}

	if last == nil {
		return nil, nil
	}
	return newResult(entryPrice, *last, last.Close, core.ReasonPeriodEnd), nil
}
