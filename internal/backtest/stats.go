package backtest

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// FromReturns aggregates returns into a PerformanceResult. An empty set yields
// all-zero statistics with ValidSignals 0.
func FromReturns(periodName string, totalSignals int, returns []float64) PerformanceResult {
	res := PerformanceResult{
		PeriodName:   periodName,
		TotalSignals: totalSignals,
		ValidSignals: len(returns),
		Returns:      returns,
	}
	if len(returns) == 0 {
		return res
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	var winning int
	for _, r := range returns {
		if r > 0 {
			winning++
		}
	}

	res.AverageReturn = stat.Mean(returns, nil)
	res.MedianReturn = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	res.WinRate = float64(winning) / float64(len(returns)) * 100
	res.BestReturn = sorted[len(sorted)-1]
	res.WorstReturn = sorted[0]
	if len(returns) >= 2 {
		res.StdDev = stat.StdDev(returns, nil)
	}
	return res
}
