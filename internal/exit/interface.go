// Package exit implements period-return strategies: rules that decide, given an
// entry and a window of subsequent bars, when and at what price a position exits.
package exit

import (
	"fmt"
	"time"

	"github.com/newthinker/tradelab/internal/core"
)

// Result is the outcome of a period-return calculation
type Result struct {
	ReturnPct  float64
	ExitPrice  float64
	ExitDate   time.Time
	ExitReason string
}

// Strategy computes the realized return of an entry over a bar window.
//
// Implementations are pure functions of their arguments and are safe to reuse
// across signals and periods. A nil Result with a nil error means no bar was
// available in [entryDate, targetDate].
type Strategy interface {
	Name() string
	CalculateReturn(bars []core.Bar, entryPrice float64, entryDate, targetDate time.Time) (*Result, error)
}

// window returns the ascending bars dated within [from, to]
func window(bars []core.Bar, from, to time.Time) []core.Bar {
	var out []core.Bar
	for _, b := range bars {
		if b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// upTo returns the leading bars dated on or before to
func upTo(bars []core.Bar, to time.Time) []core.Bar {
	for i, b := range bars {
		if b.Date.After(to) {
			return bars[:i]
		}
	}
	return bars
}

func checkEntryPrice(entryPrice float64) error {
	if entryPrice <= 0 {
		return core.WrapError(core.ErrInvalidPrice, fmt.Errorf("entry price %.4f", entryPrice))
	}
	return nil
}

func newResult(entryPrice float64, exitBar core.Bar, exitPrice float64, reason string) *Result {
	return &Result{
		ReturnPct:  core.PercentChange(entryPrice, exitPrice),
		ExitPrice:  exitPrice,
		ExitDate:   exitBar.Date,
		ExitReason: reason,
	}
}
