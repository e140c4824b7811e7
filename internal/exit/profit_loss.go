package exit

import (
	"fmt"
	"time"

	"github.com/newthinker/tradelab/internal/core"
)

// TieBreak decides the exit reason when one bar crosses both thresholds
type TieBreak string

const (
	// TieBreakStopLoss assumes the stop filled first (conservative)
	TieBreakStopLoss TieBreak = "stop_loss"
	// TieBreakProfitTarget assumes the target filled first
	TieBreakProfitTarget TieBreak = "profit_target"
)

// ProfitLoss exits at the first bar whose high reaches the profit target or
// whose low reaches the stop loss, filling at the threshold price.
type ProfitLoss struct {
	profitTarget float64 // percent above entry
	stopLoss     float64 // percent below entry
	tieBreak     TieBreak
}

// NewProfitLoss validates thresholds and creates the strategy.
// An empty tie-break defaults to TieBreakStopLoss.
func NewProfitLoss(profitTarget, stopLoss float64, tieBreak TieBreak) (*ProfitLoss, error) {
	if profitTarget <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("profit_target must be positive, got %f", profitTarget))
	}
	if stopLoss <= 0 || stopLoss >= 100 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("stop_loss must be in (0, 100), got %f", stopLoss))
	}
	if tieBreak == "" {
		tieBreak = TieBreakStopLoss
	}
	if tieBreak != TieBreakStopLoss && tieBreak != TieBreakProfitTarget {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown tie_break %q", tieBreak))
	}

	return &ProfitLoss{
		profitTarget: profitTarget,
		stopLoss:     stopLoss,
		tieBreak:     tieBreak,
	}, nil
}

func (p *ProfitLoss) Name() string {
	return NameProfitLoss
}

// CalculateReturn scans bars in [entryDate, targetDate] for the first threshold touch
func (p *ProfitLoss) CalculateReturn(bars []core.Bar, entryPrice float64, entryDate, targetDate time.Time) (*Result, error) {
	if err := checkEntryPrice(entryPrice); err != nil {
		return nil, err
	}

	w := window(bars, entryDate, targetDate)
	if len(w) == 0 {
		return nil, nil
	}

	profitPrice := entryPrice * (1 + p.profitTarget/100)
	stopPrice := entryPrice * (1 - p.stopLoss/100)

	for _, b := range w {
		hitProfit := b.High >= profitPrice
		hitStop := b.Low <= stopPrice

		switch {
		case hitProfit && hitStop:
			if p.tieBreak == TieBreakProfitTarget {
				return newResult(entryPrice, b, profitPrice, core.ReasonProfitTarget), nil
			}
			return newResult(entryPrice, b, stopPrice, core.ReasonStopLoss), nil
		case hitProfit:
			return newResult(entryPrice, b, profitPrice, core.ReasonProfitTarget), nil
		case hitStop:
			return newResult(entryPrice, b, stopPrice, core.ReasonStopLoss), nil
		}
	}

	last := w[len(w)-1]
	return newResult(entryPrice, last, last.Close, core.ReasonPeriodEnd), nil
}
