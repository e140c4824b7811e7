package portfolio

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const tradingDaysPerYear = 252

// Analytics holds portfolio-level performance statistics
type Analytics struct {
	InitialCapital   float64 `json:"initial_capital"`
	FinalValue       float64 `json:"final_value"`
	TotalReturn      float64 `json:"total_return_pct"` // Net return percentage
	RealizedPnL      float64 `json:"realized_pnl"`
	MaxDrawdown      float64 `json:"max_drawdown_pct"` // Largest peak-to-trough decline, percent
	SharpeRatio      float64 `json:"sharpe_ratio"`     // Risk-adjusted return (annualized)
	Volatility       float64 `json:"volatility_pct"`   // Annualized std-dev of daily returns, percent
	TradingDays      int     `json:"trading_days"`
	ClosedTrades     int     `json:"closed_trades"`
	WinningTrades    int     `json:"winning_trades"`
	LosingTrades     int     `json:"losing_trades"`
	OpenPositions    int     `json:"open_positions"`
	WinRate          float64 `json:"win_rate_pct"`       // Percentage of profitable closed trades
	AvgWinPct        float64 `json:"avg_win_pct"`        // Mean realized percent of winning trades
	AvgLossPct       float64 `json:"avg_loss_pct"`       // Mean realized percent of losing trades
	AvgHoldingPeriod float64 `json:"avg_holding_period"` // Mean calendar days held by closed trades
	MaxPositionsHeld int     `json:"max_positions_held"`
}

// Analyze computes statistics from the daily snapshots and the final state
func Analyze(state State) Analytics {
	a := Analytics{
		InitialCapital: state.InitialCapital,
		FinalValue:     state.TotalValue(),
		RealizedPnL:    state.RealizedPnL(),
		TradingDays:    len(state.Snapshots),
		ClosedTrades:   len(state.Closed),
		OpenPositions:  len(state.Positions),
	}
	if state.InitialCapital > 0 {
		a.TotalReturn = (a.FinalValue - state.InitialCapital) / state.InitialCapital * 100
	}

	var wins, losses, held []float64
	for _, p := range state.Closed {
		if p.RealizedPnL() > 0 {
			wins = append(wins, p.RealizedPct())
		} else {
			losses = append(losses, p.RealizedPct())
		}
		held = append(held, float64(p.HoldingDays(p.Exit.Date)))
	}
	a.WinningTrades = len(wins)
	a.LosingTrades = len(losses)
	if a.ClosedTrades > 0 {
		a.WinRate = float64(a.WinningTrades) / float64(a.ClosedTrades) * 100
		a.AvgHoldingPeriod = stat.Mean(held, nil)
	}
	if len(wins) > 0 {
		a.AvgWinPct = stat.Mean(wins, nil)
	}
	if len(losses) > 0 {
		a.AvgLossPct = stat.Mean(losses, nil)
	}

	a.MaxPositionsHeld = len(state.Positions)
	for _, s := range state.Snapshots {
		a.MaxPositionsHeld = max(a.MaxPositionsHeld, len(s.Positions))
	}

	returns := dailyReturns(equityCurve(state))
	a.MaxDrawdown = calculateMaxDrawdown(returns) * 100
	a.SharpeRatio = calculateSharpeRatio(returns)
	if len(returns) >= 2 {
		a.Volatility = stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear) * 100
	}
	return a
}

// equityCurve is the snapshot values followed by the final value
func equityCurve(state State) []float64 {
	if len(state.Snapshots) == 0 {
		return nil
	}
	curve := make([]float64, 0, len(state.Snapshots)+1)
	for _, s := range state.Snapshots {
		curve = append(curve, s.TotalValue())
	}
	return append(curve, state.TotalValue())
}

// dailyReturns converts an equity curve into fractional period returns
func dailyReturns(curve []float64) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] <= 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, curve[i]/curve[i-1]-1)
	}
	return returns
}

// calculateMaxDrawdown finds the largest peak-to-trough decline
func calculateMaxDrawdown(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	var maxDD float64
	peak := 1.0
	cumulative := 1.0

	for _, r := range returns {
		cumulative *= (1 + r)
		if cumulative > peak {
			peak = cumulative
		}
		dd := (peak - cumulative) / peak
		if dd > maxDD {
			maxDD = dd
		}
	}

	return maxDD
}

// calculateSharpeRatio computes risk-adjusted return
// Assumes risk-free rate of 0 for simplicity
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean, stdDev := stat.MeanStdDev(returns, nil)
	if stdDev == 0 {
		return 0
	}

	// Annualize (assuming ~252 trading days)
	return mean / stdDev * math.Sqrt(tradingDaysPerYear)
}
