package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/tradelab/internal/config"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/history"
	"github.com/newthinker/tradelab/internal/logger"
	"github.com/newthinker/tradelab/internal/metrics"
	"github.com/newthinker/tradelab/internal/strategy"
	"github.com/newthinker/tradelab/internal/strategy/ma_crossover"
	"go.uber.org/zap"
)

// env holds what every command needs after startup
type env struct {
	cfg     *config.Config
	log     *zap.Logger
	source  history.Source
	closer  io.Closer
	metrics metrics.Recorder
	reg     *metrics.Registry
}

// setup loads and validates the config, then builds the logger, bar source and metrics
func setup() (*env, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	log := logger.Must(debug, cfg.Log.Level)
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
	}

	e := &env{cfg: cfg, log: log, metrics: metrics.Nop{}}

	switch cfg.Data.Source {
	case "csv":
		src, err := history.LoadCSVDir(cfg.Data.Path)
		if err != nil {
			return nil, fmt.Errorf("loading bars: %w", err)
		}
		if len(cfg.Universe) == 0 {
			cfg.Universe = src.Tickers()
		}
		e.source = src
	case "sqlite":
		src, err := history.OpenSQLite(cfg.Data.Path)
		if err != nil {
			return nil, fmt.Errorf("opening bar database: %w", err)
		}
		if len(cfg.Universe) == 0 {
			if cfg.Universe, err = src.Tickers(context.Background()); err != nil {
				src.Close()
				return nil, fmt.Errorf("listing tickers: %w", err)
			}
		}
		e.source = src
		e.closer = src
	case "yahoo":
		e.source = history.NewYahooSource()
	}

	if len(cfg.Universe) == 0 {
		e.Close()
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("universe is empty"))
	}

	if cfg.Metrics.Enabled {
		e.reg = metrics.NewRegistry()
		e.metrics = e.reg
	}

	log.Info("loaded configuration",
		zap.String("source", cfg.Data.Source),
		zap.Int("universe", len(cfg.Universe)),
		zap.String("strategy", cfg.Strategy.Name),
		zap.String("exit", cfg.Exit.Strategy),
	)
	return e, nil
}

// strategy builds the configured signal strategy over the bar source
func (e *env) strategy() (strategy.Strategy, error) {
	registry := strategy.NewRegistry(e.log)
	registry.Register(ma_crossover.Name, ma_crossover.Factory)
	return registry.Build(e.cfg.Strategy.Name, strategy.Config{Params: e.cfg.Strategy.Params}, e.source)
}

// flush writes the metrics textfile when metrics are enabled
func (e *env) flush() {
	if e.reg == nil {
		return
	}
	if err := e.reg.WriteTextfile(e.cfg.Metrics.Textfile); err != nil {
		e.log.Error("writing metrics textfile", zap.String("path", e.cfg.Metrics.Textfile), zap.Error(err))
		return
	}
	e.log.Info("metrics written", zap.String("path", e.cfg.Metrics.Textfile))
}

func (e *env) Close() {
	if e.closer != nil {
		e.closer.Close()
	}
	e.log.Sync()
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// dateRange applies --from/--to overrides on top of the configured bounds
func dateRange(from, to string, start, end time.Time) (time.Time, time.Time, error) {
	var err error
	if from != "" {
		if start, err = time.Parse(time.DateOnly, from); err != nil {
			return start, end, fmt.Errorf("invalid from date format (expected YYYY-MM-DD): %w", err)
		}
	}
	if to != "" {
		if end, err = time.Parse(time.DateOnly, to); err != nil {
			return start, end, fmt.Errorf("invalid to date format (expected YYYY-MM-DD): %w", err)
		}
	}
	if start.IsZero() || end.IsZero() {
		return start, end, fmt.Errorf("start and end dates are required (config or --from/--to)")
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("end date must be after start date")
	}
	return start, end, nil
}
