package exit

import (
	"fmt"

	"github.com/newthinker/tradelab/internal/core"
)

// Strategy names accepted by New
const (
	NameBuyAndHold = "buy_and_hold"
	NameProfitLoss = "profit_loss"
	NameEMA        = "ema"
	NameATR        = "atr"
	NameMACD       = "macd"
)

// Params holds the tunables of every strategy; each strategy reads only its own
type Params struct {
	ProfitTarget float64
	StopLoss     float64
	TieBreak     string
	EMAPeriod    int

	ATRPeriod     int
	ATRMultiplier float64

	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

// DefaultParams mirrors the thresholds the research harness has always used
func DefaultParams() Params {
	return Params{
		ProfitTarget: 10,
		StopLoss:     5,
		TieBreak:     string(TieBreakStopLoss),
		EMAPeriod:    20,

		ATRPeriod:     14,
		ATRMultiplier: 2.0,

		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
	}
}

// New builds a strategy by name, failing fast on invalid parameters
func New(name string, p Params) (Strategy, error) {
	switch name {
	case NameBuyAndHold, "":
		return NewBuyAndHold(), nil
	case NameProfitLoss:
		s, err := NewProfitLoss(p.ProfitTarget, p.StopLoss, TieBreak(p.TieBreak))
		if err != nil {
			return nil, err
		}
		return s, nil
	case NameEMA:
		s, err := NewEMA(p.EMAPeriod)
		if err != nil {
			return nil, err
		}
		return s, nil
	case NameATR:
		s, err := NewATR(p.ATRPeriod, p.ATRMultiplier)
		if err != nil {
			return nil, err
		}
		return s, nil
	case NameMACD:
		s, err := NewMACD(p.MACDFast, p.MACDSlow, p.MACDSignal)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown exit strategy %q (available: %v)", name, Available()))
	}
}

// Available lists the registered strategy names
func Available() []string {
	return []string{NameBuyAndHold, NameProfitLoss, NameEMA, NameATR, NameMACD}
}
