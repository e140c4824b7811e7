package exit

import (
	"fmt"
	"math"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/indicator"
)

// MACD exits on the first bearish bar, where the MACD line is below its signal line.
// Bars before the entry date only seed the averages; unseeded bars never trigger.
type MACD struct {
	fast   int
	slow   int
	signal int
}

// NewMACD creates a MACD exit strategy
func NewMACD(fast, slow, signal int) (*MACD, error) {
	if fast < 2 || slow <= fast || signal < 1 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("macd periods must satisfy 2 <= fast < slow and signal >= 1, got %d/%d/%d", fast, slow, signal))
	}
	return &MACD{fast: fast, slow: slow, signal: signal}, nil
}

func (m *MACD) Name() string {
	return NameMACD
}

// CalculateReturn returns the first bearish close, falling back to buy-and-hold
func (m *MACD) CalculateReturn(bars []core.Bar, entryPrice float64, entryDate, targetDate time.Time) (*Result, error) {
	if err := checkEntryPrice(entryPrice); err != nil {
		return nil, err
	}

	history := upTo(bars, targetDate)
	closes := make([]float64, len(history))
	for i, b := range history {
		closes[i] = b.Close
	}
	line, sig := indicator.MACDSignal(closes, m.fast, m.slow, m.signal)
	line = indicator.Align(line, len(history))
	sig = indicator.Align(sig, len(history))

	var last *core.Bar
	for i := range history {
		b := history[i]
		if b.Date.Before(entryDate) {
			continue
		}
		last = &history[i]
		if math.IsNaN(line[i]) {
			continue
		}
		if line[i] < sig[i] {
			return newResult(entryPrice, b, b.Close, core.ReasonMACDExit), nil
		}
	}

	if last == nil {
		return nil, nil
	}
	return newResult(entryPrice, *last, last.Close, core.ReasonPeriodEnd), nil
}
