// Package webhook posts run results to an HTTP endpoint
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/tradelab/internal/backtest"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/portfolio"
)

// Webhook is a portfolio sink that posts the run analytics as JSON
type Webhook struct {
	url     string
	headers map[string]string
	client  *http.Client
}

var _ portfolio.Sink = (*Webhook)(nil)

// New creates a new Webhook notifier
func New(url string, headers map[string]string) (*Webhook, error) {
	if url == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("webhook: url is required"))
	}
	return &Webhook{
		url:     url,
		headers: headers,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (w *Webhook) Name() string { return "webhook" }

// Publish posts the portfolio analytics and the scheduled trades
func (w *Webhook) Publish(ctx context.Context, state portfolio.State) error {
	trades := make([]map[string]any, 0, len(state.FutureTrades))
	for _, t := range state.FutureTrades {
		trades = append(trades, tradeToPayload(t))
	}

	return w.post(ctx, map[string]any{
		"type":         "portfolio",
		"analytics":    portfolio.Analyze(state),
		"count":        len(trades),
		"trades":       trades,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// PublishPerformance posts the per-period signal performance
func (w *Webhook) PublishPerformance(ctx context.Context, s *backtest.TestSummary) error {
	periods := make([]map[string]any, 0, len(s.TestPeriods))
	for _, label := range s.PeriodLabels() {
		r := s.PeriodResults[label]
		periods = append(periods, map[string]any{
			"period":         label,
			"total_signals":  r.TotalSignals,
			"valid_signals":  r.ValidSignals,
			"average_return": r.AverageReturn,
			"median_return":  r.MedianReturn,
			"win_rate":       r.WinRate,
		})
	}

	return w.post(ctx, map[string]any{
		"type":          "performance",
		"strategy":      s.StrategyName,
		"start":         s.TestStartDate.Format(time.DateOnly),
		"end":           s.TestEndDate.Format(time.DateOnly),
		"total_signals": s.TotalSignalsFound,
		"periods":       periods,
		"generated_at":  time.Now().UTC().Format(time.RFC3339),
	})
}

func tradeToPayload(t core.FutureTrade) map[string]any {
	return map[string]any{
		"ticker":        t.Ticker(),
		"ranking":       t.Signal.Ranking,
		"entry_date":    t.Entry.Date.Format(time.DateOnly),
		"entry_price":   t.Entry.Price,
		"exit_date":     t.Exit.Date.Format(time.DateOnly),
		"exit_price":    t.Exit.Price,
		"exit_reason":   t.Exit.Reason,
		"position_size": t.PositionSize,
		"realized_pnl":  t.RealizedPnL(),
	}
}

func (w *Webhook) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: server returned %d", resp.StatusCode)
	}

	return nil
}
