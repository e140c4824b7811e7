// Package indicator wraps the moving averages, ATR and MACD used by strategies and exit rules.
package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if period < 1 || len(prices) < period {
		return []float64{}
	}
	return talib.Sma(prices, period)[period-1:]
}

// EMA calculates Exponential Moving Average seeded with the SMA of the first period values.
// Returns slice of length: len(prices) - period + 1
func EMA(prices []float64, period int) []float64 {
	if period < 1 || len(prices) < period {
		return []float64{}
	}
	return talib.Ema(prices, period)[period-1:]
}

// Align right-aligns an indicator series against n inputs so that out[i]
// is the value computed from inputs[0..i]. Positions before the seed are NaN.
func Align(series []float64, n int) []float64 {
	out := make([]float64, n)
	offset := n - len(series)
	for i := range out {
		if i < offset {
			out[i] = math.NaN()
			continue
		}
		out[i] = series[i-offset]
	}
	return out
}

// ATR calculates Wilder's Average True Range.
// Returns slice of length: len(close) - period
func ATR(high, low, close []float64, period int) []float64 {
	n := len(close)
	if period < 1 || n <= period || len(high) != n || len(low) != n {
		return []float64{}
	}
	return talib.Atr(high, low, close, period)[period:]
}

// MACDSignal calculates the MACD line and its signal line.
// Returns two slices of length: len(prices) - (slow - 1) - (signal - 1)
func MACDSignal(prices []float64, fast, slow, signal int) ([]float64, []float64) {
	if fast < 2 || slow <= fast || signal < 1 {
		return []float64{}, []float64{}
	}
	lookback := (slow - 1) + (signal - 1)
	if len(prices) <= lookback {
		return []float64{}, []float64{}
	}
	macd, sig, _ := talib.Macd(prices, fast, slow, signal)
	return macd[lookback:], sig[lookback:]
}
