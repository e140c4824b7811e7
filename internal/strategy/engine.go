package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/history"
	"go.uber.org/zap"
)

// Factory builds a configured strategy reading bars from src
type Factory func(cfg Config, src history.Source) (Strategy, error)

// Registry maps strategy names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger ...*zap.Logger) *Registry {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    l,
	}
}

// Register adds a factory under name, replacing any previous one
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names returns the registered strategy names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.factories))
	for name := range r.factories {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Build creates the named strategy
func (r *Registry) Build(name string, cfg Config, src history.Source) (Strategy, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown strategy %q (available: %v)", name, r.Names()))
	}

	s, err := f(cfg, src)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("strategy built", zap.String("strategy", name), zap.Any("params", cfg.Params))
	return s, nil
}

// CollectSignals runs s over every ticker, logging and skipping tickers that fail
func CollectSignals(ctx context.Context, s Strategy, tickers []string, start, end time.Time, logger *zap.Logger) ([]core.Signal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var allSignals []core.Signal
	for _, ticker := range tickers {
		select {
		case <-ctx.Done():
			return allSignals, ctx.Err()
		default:
		}

		signals, err := s.Signals(ctx, ticker, start, end)
		if err != nil {
			logger.Warn("strategy analysis failed",
				zap.String("strategy", s.Name()),
				zap.String("ticker", ticker),
				zap.Error(err),
			)
			continue
		}

		allSignals = append(allSignals, signals...)
	}

	return allSignals, nil
}
