// Package portfolio simulates a fixed pool of capital deployed day by day
// across signals whose entry and exit legs are resolved up front.
package portfolio

import (
	"time"

	"github.com/newthinker/tradelab/internal/core"
)

// Position is an open holding with a scheduled exit
type Position struct {
	Entry        core.TradeLeg
	Exit         core.TradeLeg
	Size         int
	CurrentPrice float64
}

// Ticker returns the held ticker
func (p Position) Ticker() string {
	return p.Entry.Ticker
}

// CostBasis returns entry price * size
func (p Position) CostBasis() float64 {
	return p.Entry.Price * float64(p.Size)
}

// MarketValue returns current price * size
func (p Position) MarketValue() float64 {
	return p.CurrentPrice * float64(p.Size)
}

// UnrealizedPnL returns market value minus cost basis
func (p Position) UnrealizedPnL() float64 {
	return p.MarketValue() - p.CostBasis()
}

// RealizedPnL returns the profit of the scheduled exit
func (p Position) RealizedPnL() float64 {
	return (p.Exit.Price - p.Entry.Price) * float64(p.Size)
}

// RealizedPct returns the percent change from entry to scheduled exit
func (p Position) RealizedPct() float64 {
	return core.PercentChange(p.Entry.Price, p.Exit.Price)
}

// HoldingDays returns calendar days held as of asOf
func (p Position) HoldingDays(asOf time.Time) int {
	return core.DaysBetween(p.Entry.Date, asOf)
}

// Snapshot captures the portfolio at the start of a simulated day
type Snapshot struct {
	Date      time.Time
	Cash      float64
	Positions []Position // entry order
}

// TotalValue returns cash plus the market value of every position
func (s Snapshot) TotalValue() float64 {
	total := s.Cash
	for _, p := range s.Positions {
		total += p.MarketValue()
	}
	return total
}

// State is a read-only copy of the simulation state
type State struct {
	InitialCapital float64
	Cash           float64
	Positions      []Position // open, entry order
	Closed         []Position // closed, close order
	Snapshots      []Snapshot
	FutureTrades   []core.FutureTrade
}

// TotalValue returns cash plus the market value of open positions
func (s State) TotalValue() float64 {
	return Snapshot{Cash: s.Cash, Positions: s.Positions}.TotalValue()
}

// RealizedPnL sums profit over closed positions
func (s State) RealizedPnL() float64 {
	var total float64
	for _, p := range s.Closed {
		total += p.RealizedPnL()
	}
	return total
}

// OpenCostBasis sums cost basis over open positions
func (s State) OpenCostBasis() float64 {
	var total float64
	for _, p := range s.Positions {
		total += p.CostBasis()
	}
	return total
}
