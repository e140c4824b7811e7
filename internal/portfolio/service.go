package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/history"
	"github.com/newthinker/tradelab/internal/metrics"
	"github.com/newthinker/tradelab/internal/resolver"
	"github.com/newthinker/tradelab/internal/strategy"
	"go.uber.org/zap"
)

// ServiceConfig holds the simulation range and entry filter
type ServiceConfig struct {
	Start            time.Time
	End              time.Time
	Universe         []string
	MinSignalRanking int
	TimeFrame        core.TimeFrame
}

// Deps are the collaborators of a Service
type Deps struct {
	Strategy strategy.Strategy
	Source   history.Source
	Resolver resolver.Resolver
	Sinks    []Sink
	Metrics  metrics.Recorder
	Logger   *zap.Logger
}

// Result is the outcome of a simulation run
type Result struct {
	State     State
	Analytics Analytics
}

// Service drives the day-by-day simulation over a Manager
type Service struct {
	cfg      ServiceConfig
	manager  *Manager
	strategy strategy.Strategy
	source   history.Source
	resolver resolver.Resolver
	sinks    []Sink
	metrics  metrics.Recorder
	logger   *zap.Logger
}

// NewService validates the configuration and wires the collaborators
func NewService(cfg ServiceConfig, manager *Manager, deps Deps) (*Service, error) {
	if cfg.Start.IsZero() || cfg.End.IsZero() || cfg.End.Before(cfg.Start) {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("invalid date range %s..%s", cfg.Start.Format(time.DateOnly), cfg.End.Format(time.DateOnly)))
	}
	if len(cfg.Universe) == 0 {
		return nil, core.WrapError(core.ErrConfigMissing, errors.New("universe is empty"))
	}
	if manager == nil || deps.Strategy == nil || deps.Source == nil || deps.Resolver == nil {
		return nil, core.WrapError(core.ErrConfigMissing, errors.New("manager, strategy, source and resolver are required"))
	}
	if cfg.TimeFrame == "" {
		cfg.TimeFrame = core.TimeFrameDay
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Service{
		cfg:      cfg,
		manager:  manager,
		strategy: deps.Strategy,
		source:   deps.Source,
		resolver: deps.Resolver,
		sinks:    deps.Sinks,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}, nil
}

// Run simulates every weekday in [Start, End], then publishes the final state
// to every sink. Cancellation stops between days and returns the partial result
// with ctx.Err(); sinks are not called in that case.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	first := core.TruncateDay(s.cfg.Start)
	last := core.TruncateDay(s.cfg.End)

	s.logger.Info("starting portfolio backtest",
		zap.Time("start", first),
		zap.Time("end", last),
		zap.Int("universe", len(s.cfg.Universe)),
		zap.String("strategy", s.strategy.Name()),
	)

	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		select {
		case <-ctx.Done():
			s.metrics.RecordRun("portfolio", "cancelled", time.Since(started).Seconds())
			return s.result(), ctx.Err()
		default:
		}

		if !core.IsWeekday(d) {
			continue
		}
		s.processDay(ctx, d, last)
	}

	res := s.result()
	s.publish(ctx, res.State)

	s.metrics.RecordRun("portfolio", "success", time.Since(started).Seconds())
	s.logger.Info("portfolio backtest complete",
		zap.Float64("final_value", res.Analytics.FinalValue),
		zap.Float64("total_return_pct", res.Analytics.TotalReturn),
		zap.Int("trades", len(res.State.FutureTrades)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return res, nil
}

func (s *Service) result() *Result {
	state := s.manager.State()
	return &Result{State: state, Analytics: Analyze(state)}
}

// processDay runs snapshot, exits, entries and mark-to-market for day d
func (s *Service) processDay(ctx context.Context, d, last time.Time) {
	snap := s.manager.RecordDailySnapshot(d)
	s.logger.Info("processing trading day",
		zap.Time("date", d),
		zap.Float64("total_value", snap.TotalValue()),
		zap.Float64("cash", snap.Cash),
	)

	s.processExits(d)

	minAmount := s.manager.Config().PositionMinAmount
	if s.manager.Cash() >= minAmount && d.Before(last) {
		s.processEntries(ctx, d, s.qualifiedSignals(ctx, d))
	}

	s.markToMarket(ctx, d)
	s.metrics.RecordDay()
}

func (s *Service) processExits(d time.Time) {
	for _, p := range s.manager.Positions() {
		if core.TruncateDay(p.Exit.Date).After(d) {
			s.logger.Debug("held",
				zap.String("ticker", p.Ticker()),
				zap.Time("exit_date", p.Exit.Date),
			)
			continue
		}
		if err := s.manager.ClosePosition(p.Exit, p.Size); err != nil {
			s.logger.Error("close failed", zap.String("ticker", p.Ticker()), zap.Error(err))
			continue
		}
		s.metrics.RecordPositionClosed(p.Exit.Reason)
	}
}

// qualifiedSignals returns the day's signals at or above the ranking floor for
// tickers not already held, ranking descending with source order kept on ties
func (s *Service) qualifiedSignals(ctx context.Context, d time.Time) []core.Signal {
	var qualified []core.Signal
	for _, ticker := range s.cfg.Universe {
		signals, err := s.strategy.Signals(ctx, ticker, d, d)
		if err != nil {
			s.logger.Warn("signal generation failed", zap.String("ticker", ticker), zap.Time("date", d), zap.Error(err))
			s.metrics.RecordSkippedSignal(metrics.SkipStrategyFail)
			continue
		}
		for _, sig := range signals {
			if sig.Ranking < s.cfg.MinSignalRanking || s.manager.Holds(sig.Ticker) {
				continue
			}
			qualified = append(qualified, sig)
		}
	}

	sort.SliceStable(qualified, func(i, j int) bool {
		return qualified[i].Ranking > qualified[j].Ranking
	})

	s.logger.Info("generated signals", zap.Time("date", d), zap.Int("qualified", len(qualified)))
	return qualified
}

// processEntries opens positions greedily in ranking order until cash drops below the minimum
func (s *Service) processEntries(ctx context.Context, d time.Time, signals []core.Signal) {
	minAmount := s.manager.Config().PositionMinAmount

	for _, sig := range signals {
		log := s.logger.With(zap.String("ticker", sig.Ticker), zap.Time("date", d), zap.Int("ranking", sig.Ranking))

		if s.manager.Holds(sig.Ticker) {
			continue
		}

		trade, err := s.resolver.Resolve(ctx, sig, s.cfg.End)
		if err != nil || trade == nil {
			log.Warn("no trade data available", zap.Error(err))
			s.metrics.RecordSkippedSignal(metrics.SkipUnresolved)
			continue
		}

		size := s.manager.CalculatePositionSize(trade.Entry)
		if size == 0 {
			log.Warn("calculated zero shares", zap.Float64("price", trade.Entry.Price), zap.Float64("cash", s.manager.Cash()))
			s.metrics.RecordSkippedSignal(metrics.SkipZeroSize)
			continue
		}
		trade.PositionSize = size

		if _, err := s.manager.OpenPosition(trade.Entry, trade.Exit, size); err != nil {
			log.Warn("open failed", zap.Error(err))
			s.metrics.RecordSkippedSignal(metrics.SkipOpenFailed)
			continue
		}
		s.manager.RecordTrade(*trade)
		s.metrics.RecordPositionOpened()

		log.Info("scheduled trade",
			zap.Time("entry_date", trade.Entry.Date),
			zap.Time("exit_date", trade.Exit.Date),
			zap.String("exit_reason", trade.Exit.Reason),
		)

		if s.manager.Cash() < minAmount {
			break
		}
	}
}

// markToMarket updates open positions to day d's close; misses keep the stale price
func (s *Service) markToMarket(ctx context.Context, d time.Time) {
	for _, p := range s.manager.Positions() {
		// entry fills at a later session; keep the entry mark until then
		if core.TruncateDay(p.Entry.Date).After(d) {
			continue
		}

		bars, err := s.source.History(ctx, p.Ticker(), d, d, s.cfg.TimeFrame)
		if err != nil {
			s.logger.Debug("price update failed", zap.String("ticker", p.Ticker()), zap.Time("date", d), zap.Error(err))
			s.metrics.RecordPriceUpdateFailure()
			continue
		}
		if len(bars) == 0 {
			s.logger.Debug("no bar for price update", zap.String("ticker", p.Ticker()), zap.Time("date", d))
			continue
		}

		if err := s.manager.UpdatePositionPrice(p.Ticker(), bars[len(bars)-1].Close); err != nil {
			s.logger.Debug("price update rejected", zap.String("ticker", p.Ticker()), zap.Error(err))
			s.metrics.RecordPriceUpdateFailure()
		}
	}
}

// publish hands the final state to every sink; failures are logged and counted only
func (s *Service) publish(ctx context.Context, state State) {
	for _, sink := range s.sinks {
		if err := publishSafe(ctx, sink, state); err != nil {
			s.logger.Error("sink failed", zap.String("sink", sink.Name()), zap.Error(err))
			s.metrics.RecordSinkFailure(sink.Name())
			continue
		}
		s.logger.Info("sink published", zap.String("sink", sink.Name()))
	}
}
