// Package resolver turns signals into fully resolved trades.
//
// Resolution is forward-looking: the exit leg is computed at signal time from
// bars that lie in the simulated future. This is the research-harness oracle the
// portfolio simulation relies on; the simulation never re-checks exits day by day.
// An execution-realistic variant would instead evaluate exit rules each day using
// only bars up to that day.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/exit"
	"github.com/newthinker/tradelab/internal/history"
	"go.uber.org/zap"
)

const (
	// entrySearchDays bounds the search for the first session after a signal
	entrySearchDays = 7
	// seedLookbackDays of history before entry are handed to exit rules for indicator seeding
	seedLookbackDays = 60
)

// Resolver resolves a signal into an entry/exit pair.
// A nil trade with a nil error means no resolvable trade.
type Resolver interface {
	Resolve(ctx context.Context, signal core.Signal, horizonEnd time.Time) (*core.FutureTrade, error)
}

// Config holds Processor settings
type Config struct {
	MaxHoldingDays int
	Benchmarks     []string
	TimeFrame      core.TimeFrame
}

// DefaultConfig returns the default resolver settings
func DefaultConfig() Config {
	return Config{
		MaxHoldingDays: 365,
		Benchmarks:     []string{"SPY", "QQQ"},
		TimeFrame:      core.TimeFrameDay,
	}
}

// Processor enters at the next session's open and exits by an exit.Strategy
type Processor struct {
	source history.Source
	exit   exit.Strategy
	cfg    Config
	logger *zap.Logger
}

var _ Resolver = (*Processor)(nil)

// NewProcessor creates a Processor
func NewProcessor(source history.Source, exitStrategy exit.Strategy, cfg Config, logger *zap.Logger) (*Processor, error) {
	if cfg.MaxHoldingDays < 1 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_holding_days must be at least 1, got %d", cfg.MaxHoldingDays))
	}
	if cfg.TimeFrame == "" {
		cfg.TimeFrame = core.TimeFrameDay
	}
	if !cfg.TimeFrame.IsValid() {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unsupported time frame %q", cfg.TimeFrame))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		source: source,
		exit:   exitStrategy,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Resolve implements Resolver. The exit horizon is the earlier of horizonEnd
// and entry + MaxHoldingDays; a zero horizonEnd means no outer bound.
func (p *Processor) Resolve(ctx context.Context, signal core.Signal, horizonEnd time.Time) (*core.FutureTrade, error) {
	log := p.logger.With(zap.String("ticker", signal.Ticker), zap.Time("signal_date", signal.Date))

	entry, err := p.entryLeg(ctx, signal)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		log.Debug("no entry data")
		return nil, nil
	}

	horizon := entry.Date.AddDate(0, 0, p.cfg.MaxHoldingDays)
	if !horizonEnd.IsZero() && horizonEnd.Before(horizon) {
		horizon = horizonEnd
	}
	if horizon.Before(entry.Date) {
		log.Debug("entry falls after horizon", zap.Time("entry_date", entry.Date), zap.Time("horizon", horizon))
		return nil, nil
	}

	daily, err := p.source.History(ctx, signal.Ticker, entry.Date.AddDate(0, 0, -seedLookbackDays), horizon, core.TimeFrameDay)
	if err != nil {
		return nil, fmt.Errorf("exit window for %s: %w", signal.Ticker, err)
	}
	bars := exitWindow(daily, entry.Date, p.cfg.TimeFrame)

	res, err := p.exit.CalculateReturn(bars, entry.Price, entry.Date, horizon)
	if err != nil {
		return nil, err
	}
	if res == nil {
		log.Debug("no exit data")
		return nil, nil
	}

	trade := &core.FutureTrade{
		Signal: signal,
		Entry:  *entry,
		Exit: core.TradeLeg{
			Ticker: signal.Ticker,
			Date:   res.ExitDate,
			Price:  res.ExitPrice,
			Reason: res.ExitReason,
		},
	}

	for _, ticker := range p.cfg.Benchmarks {
		b, err := Benchmark(ctx, p.source, ticker, entry.Date, res.ExitDate)
		if err != nil {
			log.Debug("benchmark unavailable", zap.String("benchmark", ticker), zap.Error(err))
			continue
		}
		if b != nil {
			trade.Benchmarks = append(trade.Benchmarks, *b)
		}
	}

	log.Debug("signal resolved",
		zap.Time("entry_date", trade.Entry.Date),
		zap.Time("exit_date", trade.Exit.Date),
		zap.String("exit_reason", trade.Exit.Reason),
		zap.Float64("return_pct", trade.RealizedPct()),
	)
	return trade, nil
}

// exitWindow resamples daily bars to tf, splitting the entry week at entryDate
// so sessions before the entry only ever seed indicators
func exitWindow(daily []core.Bar, entryDate time.Time, tf core.TimeFrame) []core.Bar {
	if tf != core.TimeFrameWeek {
		return daily
	}
	split := len(daily)
	for i, b := range daily {
		if !b.Date.Before(entryDate) {
			split = i
			break
		}
	}
	seed := core.Resample(daily[:split], tf)
	held := core.Resample(daily[split:], tf)
	out := make([]core.Bar, 0, len(seed)+len(held))
	return append(append(out, seed...), held...)
}

// entryLeg returns the open of the first session after the signal date
func (p *Processor) entryLeg(ctx context.Context, signal core.Signal) (*core.TradeLeg, error) {
	day := core.TruncateDay(signal.Date)
	bars, err := p.source.History(ctx, signal.Ticker, day.AddDate(0, 0, 1), day.AddDate(0, 0, entrySearchDays), core.TimeFrameDay)
	if err != nil {
		return nil, fmt.Errorf("entry for %s: %w", signal.Ticker, err)
	}
	if len(bars) == 0 {
		return nil, nil
	}

	first := bars[0]
	if first.Open <= 0 {
		return nil, core.WrapError(core.ErrInvalidPrice,
			fmt.Errorf("entry open %.4f for %s on %s", first.Open, signal.Ticker, first.Date.Format(time.DateOnly)))
	}
	return &core.TradeLeg{
		Ticker: signal.Ticker,
		Date:   first.Date,
		Price:  first.Open,
		Reason: core.ReasonNextDayOpen,
	}, nil
}

// Benchmark computes a buy-and-hold return for ticker from its first open on or
// after entryDate to its last close on or before exitDate. A nil result means no data.
func Benchmark(ctx context.Context, src history.Source, ticker string, entryDate, exitDate time.Time) (*core.Benchmark, error) {
	bars, err := src.History(ctx, ticker, entryDate, exitDate, core.TimeFrameDay)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 || bars[0].Open <= 0 {
		return nil, nil
	}

	first, last := bars[0], bars[len(bars)-1]
	return &core.Benchmark{
		Ticker:    ticker,
		ReturnPct: core.PercentChange(first.Open, last.Close),
		EntryDate: first.Date,
		ExitDate:  last.Date,
	}, nil
}
