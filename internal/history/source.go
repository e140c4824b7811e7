// Package history provides price bar sources for the backtest engines.
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/newthinker/tradelab/internal/core"
)

// Source provides ascending bars for a ticker over an inclusive date range.
// An empty result means no data and is not an error.
type Source interface {
	History(ctx context.Context, ticker string, start, end time.Time, tf core.TimeFrame) ([]core.Bar, error)
}

// MemorySource serves bars held in memory, keyed by ticker
type MemorySource struct {
	mu   sync.RWMutex
	bars map[string][]core.Bar
}

// NewMemorySource creates an empty in-memory source
func NewMemorySource() *MemorySource {
	return &MemorySource{bars: make(map[string][]core.Bar)}
}

// Add stores daily bars for a ticker, replacing bars on the same date
func (m *MemorySource) Add(ticker string, bars ...core.Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normalizeTicker(ticker)
	m.bars[key] = mergeBars(m.bars[key], bars)
}

// Tickers returns the stored tickers in sorted order
func (m *MemorySource) Tickers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.bars))
	for t := range m.bars {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// History implements Source
func (m *MemorySource) History(ctx context.Context, ticker string, start, end time.Time, tf core.TimeFrame) ([]core.Bar, error) {
	if err := checkRange(ctx, start, end, tf); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return core.Resample(clip(m.bars[normalizeTicker(ticker)], start, end), tf), nil
}

func checkRange(ctx context.Context, start, end time.Time, tf core.TimeFrame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !tf.IsValid() {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unsupported time frame %q", tf))
	}
	if end.Before(start) {
		return fmt.Errorf("end %s before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return nil
}

// clip returns a copy of the ascending bars dated within [start, end] by calendar day
func clip(bars []core.Bar, start, end time.Time) []core.Bar {
	from := core.TruncateDay(start)
	to := core.TruncateDay(end)

	var out []core.Bar
	for _, b := range bars {
		d := core.TruncateDay(b.Date)
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// mergeBars deduplicates by day, preferring incoming bars, and sorts ascending
func mergeBars(existing, incoming []core.Bar) []core.Bar {
	byDay := make(map[time.Time]core.Bar, len(existing)+len(incoming))
	for _, b := range existing {
		byDay[core.TruncateDay(b.Date)] = b
	}
	for _, b := range incoming {
		byDay[core.TruncateDay(b.Date)] = b
	}

	merged := make([]core.Bar, 0, len(byDay))
	for _, b := range byDay {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date.Before(merged[j].Date)
	})
	return merged
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
