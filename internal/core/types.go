package core

import "time"

// TimeFrame is the bar granularity requested from a history source
type TimeFrame string

const (
	TimeFrameDay  TimeFrame = "day"
	TimeFrameWeek TimeFrame = "week"
)

// IsValid reports whether the time frame is supported
func (tf TimeFrame) IsValid() bool {
	return tf == TimeFrameDay || tf == TimeFrameWeek
}

// Bar represents a candlestick/bar
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Signal is a ranked recommendation to enter a ticker on a date.
// Ranking is an opaque 0-100 quality score, higher is better.
type Signal struct {
	Ticker  string
	Date    time.Time
	Ranking int
}

// Exit and entry reasons
const (
	ReasonSignal       = "signal"
	ReasonNextDayOpen  = "next_day_open"
	ReasonPeriodEnd    = "period_end"
	ReasonProfitTarget = "profit_target"
	ReasonStopLoss     = "stop_loss"
	ReasonEMAExit      = "ema_exit"
	ReasonATRStop      = "atr_trailing_stop"
	ReasonMACDExit     = "macd_exit"
)

// TradeLeg is one side (entry or exit) of a trade
type TradeLeg struct {
	Ticker string
	Date   time.Time
	Price  float64
	Reason string
}

// Benchmark is the return of an index ticker over the same window as a trade
type Benchmark struct {
	Ticker    string
	ReturnPct float64
	EntryDate time.Time
	ExitDate  time.Time
}

// FutureTrade is a trade resolved at signal time, kept in the ledger for reporting
// whether or not the simulation clock has reached its exit yet.
type FutureTrade struct {
	Signal       Signal
	Entry        TradeLeg
	Exit         TradeLeg
	PositionSize int
	Benchmarks   []Benchmark
}

// Ticker returns the signal ticker
func (t FutureTrade) Ticker() string {
	return t.Signal.Ticker
}

// HoldingDays returns calendar days between entry and exit
func (t FutureTrade) HoldingDays() int {
	return DaysBetween(t.Entry.Date, t.Exit.Date)
}

// RealizedPnL returns (exit - entry) * size
func (t FutureTrade) RealizedPnL() float64 {
	return (t.Exit.Price - t.Entry.Price) * float64(t.PositionSize)
}

// RealizedPct returns the percentage return of the trade, 0 when the entry price is not positive
func (t FutureTrade) RealizedPct() float64 {
	return PercentChange(t.Entry.Price, t.Exit.Price)
}

// PercentChange returns (to - from) / from * 100, or 0 when from is not positive
func PercentChange(from, to float64) float64 {
	if from <= 0 {
		return 0
	}
	return (to - from) / from * 100
}

// DaysBetween counts whole calendar days from a to b
func DaysBetween(a, b time.Time) int {
	return int(TruncateDay(b).Sub(TruncateDay(a)).Hours() / 24)
}

// TruncateDay drops the time of day, keeping the location
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsWeekday reports whether t falls on Monday through Friday
func IsWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// Resample aggregates ascending daily bars into the given time frame.
// Weekly bars are keyed by ISO week and dated by their last session.
func Resample(bars []Bar, tf TimeFrame) []Bar {
	if tf != TimeFrameWeek || len(bars) == 0 {
		return bars
	}

	var out []Bar
	var cur Bar
	var curYear, curWeek int
	for i, b := range bars {
		y, w := b.Date.ISOWeek()
		if i == 0 || y != curYear || w != curWeek {
			if i > 0 {
				out = append(out, cur)
			}
			cur = b
			curYear, curWeek = y, w
			continue
		}
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
		cur.Date = b.Date
	}
	return append(out, cur)
}
