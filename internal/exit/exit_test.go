package exit

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(i int) time.Time {
	return base.AddDate(0, 0, i)
}

// risingBars creates n bars trending up by 0.5 per day from close 101
func risingBars(n int) []core.Bar {
	bars := make([]core.Bar, n)
	for i := range bars {
		step := float64(i) * 0.5
		bars[i] = core.Bar{Date: at(i), Open: 100 + step, High: 102 + step, Low: 98 + step, Close: 101 + step, Volume: 1000}
	}
	return bars
}

func barsFromHighs(highs []float64) []core.Bar {
	bars := make([]core.Bar, len(highs))
	for i, h := range highs {
		bars[i] = core.Bar{Date: at(i), Open: 100, High: h, Low: 99, Close: h - 1}
	}
	return bars
}

func TestBuyAndHold_Basic(t *testing.T) {
	s := NewBuyAndHold()
	bars := risingBars(30)

	res, err := s.CalculateReturn(bars, 100, at(4), at(14))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, core.ReasonPeriodEnd, res.ExitReason)
	assert.Equal(t, at(14), res.ExitDate)
	assert.Equal(t, 108.0, res.ExitPrice)
	assert.InDelta(t, 8.0, res.ReturnPct, 1e-9)
}

func TestBuyAndHold_LastBarBeforeTarget(t *testing.T) {
	// bars only every other day; target falls on a gap
	bars := []core.Bar{
		{Date: at(0), Close: 100},
		{Date: at(2), Close: 104},
		{Date: at(4), Close: 106},
	}
	res, err := NewBuyAndHold().CalculateReturn(bars, 100, at(0), at(3))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, at(2), res.ExitDate)
	assert.InDelta(t, 4.0, res.ReturnPct, 1e-9)
}

func TestBuyAndHold_NoData(t *testing.T) {
	res, err := NewBuyAndHold().CalculateReturn(risingBars(30), 100, at(400), at(414))
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestBuyAndHold_Idempotent(t *testing.T) {
	s := NewBuyAndHold()
	bars := risingBars(10)

	first, err := s.CalculateReturn(bars, 100, at(0), at(9))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.CalculateReturn(bars, 100, at(0), at(9))
		require.NoError(t, err)
		assert.Equal(t, *first, *again)
	}
}

func TestAllStrategies_InvalidEntryPrice(t *testing.T) {
	pl, _ := NewProfitLoss(10, 5, "")
	ema, _ := NewEMA(3)
	atr, _ := NewATR(3, 2)
	macd, _ := NewMACD(12, 26, 9)
	for _, s := range []Strategy{NewBuyAndHold(), pl, ema, atr, macd} {
		_, err := s.CalculateReturn(risingBars(5), 0, at(0), at(4))
		if !errors.Is(err, core.ErrInvalidPrice) {
			t.Errorf("%s: expected ErrInvalidPrice, got %v", s.Name(), err)
		}
	}
}

func TestProfitLoss_ProfitTargetHit(t *testing.T) {
	s, err := NewProfitLoss(10, 5, TieBreakStopLoss)
	require.NoError(t, err)

	bars := barsFromHighs([]float64{102, 108, 116, 120})
	res, err := s.CalculateReturn(bars, 100, at(0), at(3))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, core.ReasonProfitTarget, res.ExitReason)
	assert.Equal(t, at(2), res.ExitDate)
	assert.InDelta(t, 110.0, res.ExitPrice, 1e-9)
	assert.GreaterOrEqual(t, res.ReturnPct, 10.0-1e-9)
}

func TestProfitLoss_StopLossHit(t *testing.T) {
	s, _ := NewProfitLoss(20, 5, "")
	bars := make([]core.Bar, 20)
	for i := range bars {
		p := 100 - float64(i)*2
		bars[i] = core.Bar{Date: at(i), Open: p, High: p + 2, Low: p - 2, Close: p + 1}
	}

	res, err := s.CalculateReturn(bars, 100, at(0), at(19))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, core.ReasonStopLoss, res.ExitReason)
	// low of bar 2 is 94 <= 95
	assert.Equal(t, at(2), res.ExitDate)
	assert.InDelta(t, 95.0, res.ExitPrice, 1e-9)
	assert.InDelta(t, -5.0, res.ReturnPct, 1e-9)
}

func TestProfitLoss_PeriodEnd(t *testing.T) {
	s, _ := NewProfitLoss(50, 50, "")
	res, err := s.CalculateReturn(risingBars(30), 100, at(0), at(9))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, core.ReasonPeriodEnd, res.ExitReason)
	assert.Equal(t, at(9), res.ExitDate)
	assert.Equal(t, 105.5, res.ExitPrice)
}

func TestProfitLoss_StopBeforeProfitByDate(t *testing.T) {
	prices := []float64{100, 95, 90, 85, 115, 120}
	bars := make([]core.Bar, len(prices))
	for i, p := range prices {
		bars[i] = core.Bar{Date: at(i), Open: p, High: p + 2, Low: p - 2, Close: p}
	}

	s, _ := NewProfitLoss(10, 10, "")
	res, err := s.CalculateReturn(bars, 100, at(0), at(5))
	require.NoError(t, err)
	assert.Equal(t, core.ReasonStopLoss, res.ExitReason)
	assert.Equal(t, at(2), res.ExitDate)
}

func TestProfitLoss_TieBreakIsDeterministic(t *testing.T) {
	// one wide bar crosses both 110 and 95
	bars := []core.Bar{{Date: at(0), Open: 100, High: 112, Low: 94, Close: 101}}

	tests := []struct {
		tieBreak   TieBreak
		wantReason string
		wantPrice  float64
	}{
		{"", core.ReasonStopLoss, 95},
		{TieBreakStopLoss, core.ReasonStopLoss, 95},
		{TieBreakProfitTarget, core.ReasonProfitTarget, 110},
	}

	for _, tt := range tests {
		t.Run(string(tt.tieBreak), func(t *testing.T) {
			s, err := NewProfitLoss(10, 5, tt.tieBreak)
			require.NoError(t, err)
			for i := 0; i < 3; i++ {
				res, err := s.CalculateReturn(bars, 100, at(0), at(0))
				require.NoError(t, err)
				assert.Equal(t, tt.wantReason, res.ExitReason)
				assert.InDelta(t, tt.wantPrice, res.ExitPrice, 1e-9)
			}
		})
	}
}

func TestProfitLoss_IgnoresBarsOutsideWindow(t *testing.T) {
	bars := barsFromHighs([]float64{130, 101, 102, 130})
	s, _ := NewProfitLoss(10, 5, "")

	res, err := s.CalculateReturn(bars, 100, at(1), at(2))
	require.NoError(t, err)
	assert.Equal(t, core.ReasonPeriodEnd, res.ExitReason)
	assert.Equal(t, at(2), res.ExitDate)
}

func TestNewProfitLoss_Validation(t *testing.T) {
	tests := []struct {
		name         string
		profit, stop float64
		tieBreak     TieBreak
	}{
		{"zero profit", 0, 5, ""},
		{"negative stop", 10, -1, ""},
		{"stop 100", 10, 100, ""},
		{"bad tie break", 10, 5, "coin_flip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProfitLoss(tt.profit, tt.stop, tt.tieBreak)
			assert.ErrorIs(t, err, core.ErrConfigInvalid)
		})
	}
}

func TestEMA_ExitOnFirstCloseBelow(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 101, 102, 103, 99, 104}
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{Date: at(i), Open: c, High: c + 1, Low: c - 1, Close: c}
	}

	s, err := NewEMA(3)
	require.NoError(t, err)

	res, err := s.CalculateReturn(bars, 100, at(3), at(8))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, core.ReasonEMAExit, res.ExitReason)
	assert.Equal(t, at(7), res.ExitDate)
	assert.Equal(t, 99.0, res.ExitPrice)
	assert.InDelta(t, -1.0, res.ReturnPct, 1e-9)
}

func TestEMA_NoCrossFallsBackToPeriodEnd(t *testing.T) {
	s, _ := NewEMA(5)
	res, err := s.CalculateReturn(risingBars(20), 100, at(5), at(15))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, core.ReasonPeriodEnd, res.ExitReason)
	assert.Equal(t, at(15), res.ExitDate)
}

func TestEMA_UnseededBarsNeverTrigger(t *testing.T) {
	// falling closes, but only 3 bars for a 5-period EMA
	bars := []core.Bar{
		{Date: at(0), Close: 100},
		{Date: at(1), Close: 90},
		{Date: at(2), Close: 80},
	}
	s, _ := NewEMA(5)
	res, err := s.CalculateReturn(bars, 100, at(0), at(2))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, core.ReasonPeriodEnd, res.ExitReason)
	assert.InDelta(t, -20.0, res.ReturnPct, 1e-9)
}

func TestEMA_NoData(t *testing.T) {
	s, _ := NewEMA(3)
	res, err := s.CalculateReturn(risingBars(5), 100, at(10), at(20))
	assert.NoError(t, err)
	assert.Nil(t, res)
}

// closeBars builds bars spanning close +-1, so every true range is 2 while
// consecutive closes move by at most 1
func closeBars(closes []float64) []core.Bar {
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{Date: at(i), Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return bars
}

func TestATR_TrailingStopHit(t *testing.T) {
	// ATR(3) is 2, so the stop trails 4 below the highest high (107 on day 6)
	bars := closeBars([]float64{100, 101, 102, 103, 104, 105, 106, 105, 104, 103, 102, 101})

	s, err := NewATR(3, 2)
	require.NoError(t, err)

	res, err := s.CalculateReturn(bars, 102, at(3), at(11))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, core.ReasonATRStop, res.ExitReason)
	assert.Equal(t, at(10), res.ExitDate)
	assert.Equal(t, 103.0, res.ExitPrice)
	assert.InDelta(t, (103.0-102.0)/102.0*100, res.ReturnPct, 1e-9)
}

func TestATR_StopNeverMovesDown(t *testing.T) {
	// a wide bar after the peak raises ATR but must not lower the stop
	bars := closeBars([]float64{100, 101, 102, 103, 104, 105, 106, 105, 104, 103, 103, 102})
	bars[9].High, bars[9].Low = 104, 100

	s, _ := NewATR(3, 2)
	res, err := s.CalculateReturn(bars, 102, at(3), at(11))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, core.ReasonATRStop, res.ExitReason)
	assert.Equal(t, at(11), res.ExitDate)
	assert.Equal(t, 103.0, res.ExitPrice)
}

func TestATR_NoStopFallsBackToPeriodEnd(t *testing.T) {
	s, _ := NewATR(5, 2)
	res, err := s.CalculateReturn(risingBars(20), 100, at(5), at(15))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, core.ReasonPeriodEnd, res.ExitReason)
	assert.Equal(t, at(15), res.ExitDate)
}

func TestATR_UnseededBarsNeverTrigger(t *testing.T) {
	bars := closeBars([]float64{100, 99, 98})
	s, _ := NewATR(5, 1)
	res, err := s.CalculateReturn(bars, 100, at(0), at(2))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, core.ReasonPeriodEnd, res.ExitReason)
	assert.Equal(t, 98.0, res.ExitPrice)
}

func TestMACD_ExitOnBearishCross(t *testing.T) {
	// accelerating rise keeps MACD above its signal; a run of 5% drops from day 60 flips it
	closes := make([]float64, 70)
	for i := range closes {
		if i < 60 {
			closes[i] = 100 * math.Pow(1.01, float64(i))
			continue
		}
		closes[i] = closes[i-1] * 0.95
	}
	bars := make([]core.Bar, len(closes))
	for i, c := range closes {
		bars[i] = core.Bar{Date: at(i), Open: c, High: c, Low: c, Close: c}
	}

	s, err := NewMACD(12, 26, 9)
	require.NoError(t, err)

	res, err := s.CalculateReturn(bars, closes[45], at(45), at(69))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, core.ReasonMACDExit, res.ExitReason)
	assert.False(t, res.ExitDate.Before(at(60)), "exit %s before the first drop", res.ExitDate)
	assert.False(t, res.ExitDate.After(at(62)), "exit %s too late", res.ExitDate)
}

func TestMACD_UnseededBarsNeverTrigger(t *testing.T) {
	bars := closeBars([]float64{100, 99, 98, 97, 96})
	s, _ := NewMACD(12, 26, 9)
	res, err := s.CalculateReturn(bars, 100, at(0), at(4))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, core.ReasonPeriodEnd, res.ExitReason)
	assert.Equal(t, at(4), res.ExitDate)
}

func TestNewATRAndMACD_Validation(t *testing.T) {
	tests := []struct {
		name string
		err  func() error
	}{
		{"atr zero period", func() error { _, err := NewATR(0, 2); return err }},
		{"atr zero multiplier", func() error { _, err := NewATR(14, 0); return err }},
		{"macd fast too short", func() error { _, err := NewMACD(1, 26, 9); return err }},
		{"macd slow not above fast", func() error { _, err := NewMACD(26, 26, 9); return err }},
		{"macd zero signal", func() error { _, err := NewMACD(12, 26, 0); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err(), core.ErrConfigInvalid)
		})
	}
}

func TestNew(t *testing.T) {
	p := DefaultParams()
	for _, name := range Available() {
		s, err := New(name, p)
		require.NoError(t, err, name)
		assert.Equal(t, name, s.Name())
	}

	s, err := New("", p)
	require.NoError(t, err)
	assert.Equal(t, NameBuyAndHold, s.Name())

	_, err = New("trailing_stop", p)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = New(NameEMA, Params{EMAPeriod: 0})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = New(NameATR, Params{ATRPeriod: 14})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	_, err = New(NameMACD, Params{MACDFast: 12, MACDSlow: 26})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
