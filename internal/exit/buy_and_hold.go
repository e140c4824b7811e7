package exit

import (
	"time"

	"github.com/newthinker/tradelab/internal/core"
)

// BuyAndHold exits at the close of the last bar at or before the target date
type BuyAndHold struct{}

// NewBuyAndHold creates a buy-and-hold strategy
func NewBuyAndHold() *BuyAndHold {
	return &BuyAndHold{}
}

func (BuyAndHold) Name() string {
	return NameBuyAndHold
}

// CalculateReturn holds until the target date
func (BuyAndHold) CalculateReturn(bars []core.Bar, entryPrice float64, entryDate, targetDate time.Time) (*Result, error) {
	if err := checkEntryPrice(entryPrice); err != nil {
		return nil, err
	}

	w := window(bars, entryDate, targetDate)
	if len(w) == 0 {
		return nil, nil
	}

	last := w[len(w)-1]
	return newResult(entryPrice, last, last.Close, core.ReasonPeriodEnd), nil
}
