// Package backtest evaluates a strategy's signals over fixed holding periods
// and aggregates the returns by period, ranking bucket and benchmark.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/exit"
	"github.com/newthinker/tradelab/internal/history"
	"github.com/newthinker/tradelab/internal/metrics"
	"github.com/newthinker/tradelab/internal/resolver"
	"github.com/newthinker/tradelab/internal/strategy"
	"go.uber.org/zap"
)

const (
	entrySearchDays  = 5
	windowBufferDays = 30
	targetAfterDays  = 5
	targetBeforeDays = 2
)

// Config holds the test range and aggregation settings
type Config struct {
	Start      time.Time
	End        time.Time
	Periods    []Period
	Buckets    []RankingBucket
	Benchmarks []string
	TimeFrame  core.TimeFrame
}

// Deps are the collaborators of a Tester
type Deps struct {
	Strategy strategy.Strategy
	Source   history.Source
	Exit     exit.Strategy
	Metrics  metrics.Recorder
	Logger   *zap.Logger
}

// Tester evaluates strategy signals against forward price history
type Tester struct {
	cfg      Config
	strategy strategy.Strategy
	source   history.Source
	exit     exit.Strategy
	metrics  metrics.Recorder
	logger   *zap.Logger

	results []SignalResult
}

// NewTester validates cfg and wires the collaborators. Empty periods and
// buckets fall back to the defaults.
func NewTester(cfg Config, deps Deps) (*Tester, error) {
	if cfg.Start.IsZero() || cfg.End.IsZero() || cfg.End.Before(cfg.Start) {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("invalid date range %s..%s", cfg.Start.Format(time.DateOnly), cfg.End.Format(time.DateOnly)))
	}
	if deps.Strategy == nil || deps.Source == nil {
		return nil, core.WrapError(core.ErrConfigMissing, errors.New("strategy and source are required"))
	}
	if len(cfg.Periods) == 0 {
		cfg.Periods = DefaultPeriods()
	}
	if err := ValidatePeriods(cfg.Periods); err != nil {
		return nil, err
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = DefaultBuckets()
	}
	if err := ValidateBuckets(cfg.Buckets); err != nil {
		return nil, err
	}
	if cfg.TimeFrame == "" {
		cfg.TimeFrame = core.TimeFrameDay
	}
	if deps.Exit == nil {
		deps.Exit = exit.NewBuyAndHold()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Tester{
		cfg:      cfg,
		strategy: deps.Strategy,
		source:   deps.Source,
		exit:     deps.Exit,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}, nil
}

// Results returns the signal results collected by GenerateSignals
func (t *Tester) Results() []SignalResult {
	return t.results
}

// GenerateSignals finds every signal for tickers in [Start, End] and collects
// its entry and per-period data. Tickers and signals without data are logged
// and skipped; only cancellation is returned as an error.
func (t *Tester) GenerateSignals(ctx context.Context, tickers []string) ([]SignalResult, error) {
	var results []SignalResult

	for _, ticker := range tickers {
		select {
		case <-ctx.Done():
			t.results = results
			return results, ctx.Err()
		default:
		}

		signals, err := t.strategy.Signals(ctx, ticker, t.cfg.Start, t.cfg.End)
		if err != nil {
			t.logger.Error("error processing ticker", zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		t.logger.Debug("analyzing signals", zap.String("ticker", ticker), zap.Int("signals", len(signals)))

		for _, sig := range signals {
			res, err := t.processSignal(ctx, sig)
			if err != nil {
				if ctx.Err() != nil {
					t.results = results
					return results, ctx.Err()
				}
				t.logger.Warn("signal skipped",
					zap.String("ticker", sig.Ticker),
					zap.Time("signal_date", sig.Date),
					zap.Error(err),
				)
				continue
			}
			if res == nil {
				t.logger.Debug("no entry price found", zap.String("ticker", sig.Ticker), zap.Time("signal_date", sig.Date))
				continue
			}
			results = append(results, *res)
		}
	}

	t.logger.Info("signals generated",
		zap.String("strategy", t.strategy.Name()),
		zap.Int("tickers", len(tickers)),
		zap.Int("signals", len(results)),
	)
	t.results = results
	return results, nil
}

func (t *Tester) processSignal(ctx context.Context, sig core.Signal) (*SignalResult, error) {
	entryDate, entryPrice, err := t.entry(ctx, sig)
	if err != nil || entryPrice <= 0 {
		return nil, err
	}

	res := &SignalResult{
		Ticker:        sig.Ticker,
		SignalDate:    sig.Date,
		EntryPrice:    entryPrice,
		EntryDate:     entryDate,
		Ranking:       sig.Ranking,
		PeriodResults: make(map[string]*float64, len(t.cfg.Periods)),
		PeriodData:    make(map[string]PeriodWindow, len(t.cfg.Periods)),
	}

	for _, p := range t.cfg.Periods {
		label := p.Label()

		closing, err := t.closingPrice(ctx, sig.Ticker, entryDate, p)
		if err != nil {
			return nil, err
		}
		res.PeriodResults[label] = closing

		target := entryDate.AddDate(0, 0, int(p))
		bars, err := t.source.History(ctx, sig.Ticker,
			entryDate.AddDate(0, 0, -windowBufferDays), target.AddDate(0, 0, targetAfterDays), t.cfg.TimeFrame)
		if err != nil {
			return nil, err
		}
		if len(bars) > 0 {
			res.PeriodData[label] = PeriodWindow{TargetDate: target, Bars: bars}
		}
	}

	return res, nil
}

// entry returns the first open within the sessions after the signal date
func (t *Tester) entry(ctx context.Context, sig core.Signal) (time.Time, float64, error) {
	d := core.TruncateDay(sig.Date)
	bars, err := t.source.History(ctx, sig.Ticker, d.AddDate(0, 0, 1), d.AddDate(0, 0, entrySearchDays), t.cfg.TimeFrame)
	if err != nil || len(bars) == 0 {
		return time.Time{}, 0, err
	}
	return bars[0].Date, bars[0].Open, nil
}

// closingPrice returns the close of the bar nearest the period target.
// Periods longer than a week are scaled to business days.
func (t *Tester) closingPrice(ctx context.Context, ticker string, entryDate time.Time, p Period) (*float64, error) {
	target := entryDate.AddDate(0, 0, int(p))
	if p > 7 {
		target = entryDate.Add(time.Duration(float64(p) * 5 / 7 * float64(24*time.Hour)))
	}

	bars, err := t.source.History(ctx, ticker,
		core.TruncateDay(target.AddDate(0, 0, -targetBeforeDays)),
		core.TruncateDay(target.AddDate(0, 0, targetAfterDays)),
		t.cfg.TimeFrame)
	if err != nil || len(bars) == 0 {
		return nil, err
	}

	closest := bars[0]
	best := math.Abs(float64(closest.Date.Sub(target)))
	for _, b := range bars[1:] {
		if diff := math.Abs(float64(b.Date.Sub(target))); diff < best {
			closest, best = b, diff
		}
	}
	closing := closest.Close
	return &closing, nil
}

// signalReturn evaluates one period of a signal with the exit strategy,
// falling back to the stored closing price
func (t *Tester) signalReturn(r SignalResult, label string) *float64 {
	if w, ok := r.PeriodData[label]; ok {
		res, err := t.exit.CalculateReturn(w.Bars, r.EntryPrice, r.EntryDate, w.TargetDate)
		if err == nil && res != nil {
			ret := res.ReturnPct
			return &ret
		}
		if err != nil {
			t.logger.Debug("exit strategy failed", zap.String("ticker", r.Ticker), zap.String("period", label), zap.Error(err))
		}
	}
	return r.LegacyReturn(label)
}

func (t *Tester) aggregate(results []SignalResult, label string, record bool) PerformanceResult {
	var returns []float64
	for _, r := range results {
		ret := t.signalReturn(r, label)
		if ret == nil {
			if record {
				t.metrics.RecordSignalReturn(label, metrics.ReturnMissing)
			}
			continue
		}
		if record {
			t.metrics.RecordSignalReturn(label, metrics.ReturnValid)
		}
		returns = append(returns, *ret)
	}
	return FromReturns(label, len(results), returns)
}

// CalculatePerformance aggregates the collected signal results into a TestSummary
func (t *Tester) CalculatePerformance(ctx context.Context) (*TestSummary, error) {
	started := time.Now()
	summary := &TestSummary{
		StrategyName:      t.strategy.Name(),
		TestStartDate:     t.cfg.Start,
		TestEndDate:       t.cfg.End,
		TotalSignalsFound: len(t.results),
		TestPeriods:       t.cfg.Periods,
		PeriodResults:     make(map[string]PerformanceResult, len(t.cfg.Periods)),
		RankingResults:    make(map[string]RankingPerformance, len(t.cfg.Buckets)),
		RankingBuckets:    t.cfg.Buckets,
	}

	if len(t.results) == 0 {
		t.logger.Warn("no signal results to analyze", zap.String("strategy", t.strategy.Name()))
	}

	for _, p := range t.cfg.Periods {
		label := p.Label()
		summary.PeriodResults[label] = t.aggregate(t.results, label, true)
	}

	for _, b := range t.cfg.Buckets {
		var inRange []SignalResult
		for _, r := range t.results {
			if b.Contains(r.Ranking) {
				inRange = append(inRange, r)
			}
		}

		perf := RankingPerformance{
			RankingRange:  b.Name,
			PeriodResults: make(map[string]PerformanceResult, len(t.cfg.Periods)),
			TotalSignals:  len(inRange),
		}
		for _, p := range t.cfg.Periods {
			label := p.Label()
			perf.PeriodResults[label] = t.aggregate(inRange, label, false)
		}
		summary.RankingResults[b.Name] = perf
	}

	if len(t.cfg.Benchmarks) > 0 {
		bench, err := t.benchmarks(ctx)
		if err != nil {
			t.metrics.RecordRun("performance", "cancelled", time.Since(started).Seconds())
			return summary, err
		}
		summary.BenchmarkResults = bench
	}

	t.metrics.RecordRun("performance", "success", time.Since(started).Seconds())
	t.logger.Info("performance calculated",
		zap.String("strategy", summary.StrategyName),
		zap.Int("signals", summary.TotalSignalsFound),
		zap.Strings("periods", summary.PeriodLabels()),
	)
	return summary, nil
}

// benchmarks computes buy-and-hold returns of each benchmark ticker over the
// same entry and target dates as every signal
func (t *Tester) benchmarks(ctx context.Context) (map[string]map[string]PerformanceResult, error) {
	out := make(map[string]map[string]PerformanceResult, len(t.cfg.Benchmarks))

	for _, ticker := range t.cfg.Benchmarks {
		byPeriod := make(map[string]PerformanceResult, len(t.cfg.Periods))
		for _, p := range t.cfg.Periods {
			var returns []float64
			for _, r := range t.results {
				if err := ctx.Err(); err != nil {
					return out, err
				}
				b, err := resolver.Benchmark(ctx, t.source, ticker, r.EntryDate, r.EntryDate.AddDate(0, 0, int(p)))
				if err != nil {
					t.logger.Debug("benchmark unavailable",
						zap.String("benchmark", ticker),
						zap.Time("entry_date", r.EntryDate),
						zap.Error(err),
					)
					continue
				}
				if b == nil {
					continue
				}
				returns = append(returns, b.ReturnPct)
			}
			byPeriod[p.Label()] = FromReturns(p.Label(), len(t.results), returns)
		}
		out[ticker] = byPeriod
	}
	return out, nil
}
