// Package report renders simulation and performance results as text tables.
package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/newthinker/tradelab/internal/backtest"
	"github.com/newthinker/tradelab/internal/ledger"
	"github.com/newthinker/tradelab/internal/portfolio"
)

// Console is a portfolio sink that prints a summary and the trade ledger
type Console struct {
	w         io.Writer
	maxTrades int

	title  lipgloss.Style
	label  lipgloss.Style
	header lipgloss.Style
}

var _ portfolio.Sink = (*Console)(nil)

// NewConsole writes to w. maxTrades limits the printed ledger; 0 prints all.
func NewConsole(w io.Writer, maxTrades int) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:         w,
		maxTrades: maxTrades,
		title:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label:     r.NewStyle().Width(18),
		header:    r.NewStyle().Bold(true).Padding(0, 1),
	}
}

func (c *Console) Name() string { return "console" }

func (c *Console) Publish(ctx context.Context, state portfolio.State) error {
	return c.WritePortfolio(state, portfolio.Analyze(state))
}

// WritePortfolio prints analytics followed by the ledger
func (c *Console) WritePortfolio(state portfolio.State, a portfolio.Analytics) error {
	var b strings.Builder

	b.WriteString(c.title.Render("=== Portfolio Backtest ==="))
	b.WriteString("\n")
	c.kv(&b, "Initial capital", money(a.InitialCapital))
	c.kv(&b, "Final value", money(a.FinalValue))
	c.kv(&b, "Total return", pct(a.TotalReturn))
	c.kv(&b, "Realized P&L", money(a.RealizedPnL))
	c.kv(&b, "Cash", money(state.Cash))
	c.kv(&b, "Max drawdown", pct(a.MaxDrawdown))
	c.kv(&b, "Sharpe ratio", fmt.Sprintf("%.2f", a.SharpeRatio))
	c.kv(&b, "Volatility", pct(a.Volatility))
	c.kv(&b, "Trading days", strconv.Itoa(a.TradingDays))
	c.kv(&b, "Closed trades", fmt.Sprintf("%d (%d won, %d lost)", a.ClosedTrades, a.WinningTrades, a.LosingTrades))
	c.kv(&b, "Open positions", strconv.Itoa(a.OpenPositions))
	c.kv(&b, "Win rate", pct(a.WinRate))
	c.kv(&b, "Avg win / loss", pct(a.AvgWinPct)+" / "+pct(a.AvgLossPct))
	c.kv(&b, "Avg holding", fmt.Sprintf("%.1f days", a.AvgHoldingPeriod))
	c.kv(&b, "Max positions", strconv.Itoa(a.MaxPositionsHeld))
	b.WriteString("\n")

	trades := state.FutureTrades
	if c.maxTrades > 0 && len(trades) > c.maxTrades {
		trades = trades[:c.maxTrades]
	}
	if len(trades) == 0 {
		b.WriteString("No trades.\n")
	} else {
		b.WriteString(c.ledgerTable(ledger.FromTrades(trades)))
		b.WriteString("\n")
		if hidden := len(state.FutureTrades) - len(trades); hidden > 0 {
			fmt.Fprintf(&b, "... %d more trades\n", hidden)
		}
	}

	_, err := io.WriteString(c.w, b.String())
	return err
}

func (c *Console) ledgerTable(records []ledger.Record) string {
	t := c.newTable("Ticker", "Signal", "Rank", "Entry", "Entry Px", "Exit", "Exit Px", "Reason", "Shares", "Days", "P&L", "Return")
	for _, r := range records {
		t.Row(
			r.Ticker,
			r.SignalDate,
			strconv.Itoa(int(r.SignalRanking)),
			r.EntryDate,
			price(r.EntryPrice),
			r.ExitDate,
			price(r.ExitPrice),
			r.ExitReason,
			strconv.FormatInt(r.PositionSize, 10),
			strconv.Itoa(int(r.HoldingDays)),
			money(r.RealizedPnL),
			pct(r.RealizedPct),
		)
	}
	return t.String()
}

// WritePerformance prints a performance test summary
func (c *Console) WritePerformance(s *backtest.TestSummary) error {
	var b strings.Builder
	labels := s.PeriodLabels()

	b.WriteString(c.title.Render("=== Strategy Performance ==="))
	b.WriteString("\n")
	c.kv(&b, "Strategy", s.StrategyName)
	c.kv(&b, "Period", s.TestStartDate.Format(time.DateOnly)+" to "+s.TestEndDate.Format(time.DateOnly))
	c.kv(&b, "Signals found", strconv.Itoa(s.TotalSignalsFound))
	b.WriteString("\n")

	t := c.newTable("Period", "Signals", "Valid", "Average", "Median", "Std Dev", "Win Rate", "Best", "Worst")
	for _, label := range labels {
		r := s.PeriodResults[label]
		t.Row(
			label,
			strconv.Itoa(r.TotalSignals),
			strconv.Itoa(r.ValidSignals),
			pct(r.AverageReturn),
			pct(r.MedianReturn),
			fmt.Sprintf("%.2f", r.StdDev),
			pct(r.WinRate),
			pct(r.BestReturn),
			pct(r.WorstReturn),
		)
	}
	b.WriteString(t.String())
	b.WriteString("\n")

	if len(s.RankingBuckets) > 0 {
		b.WriteString("\n")
		b.WriteString(c.title.Render("Average return by ranking"))
		b.WriteString("\n")
		t := c.newTable(append([]string{"Ranking", "Signals"}, labels...)...)
		for _, bucket := range s.RankingBuckets {
			rp, ok := s.RankingResults[bucket.Name]
			if !ok {
				continue
			}
			row := []string{bucket.Name, strconv.Itoa(rp.TotalSignals)}
			for _, label := range labels {
				row = append(row, avgCell(rp.PeriodResults[label]))
			}
			t.Row(row...)
		}
		b.WriteString(t.String())
		b.WriteString("\n")
	}

	if len(s.BenchmarkResults) > 0 {
		b.WriteString("\n")
		b.WriteString(c.title.Render("Benchmark average return"))
		b.WriteString("\n")
		t := c.newTable(append([]string{"Benchmark"}, labels...)...)
		for _, ticker := range sortedKeys(s.BenchmarkResults) {
			row := []string{ticker}
			for _, label := range labels {
				row = append(row, avgCell(s.BenchmarkResults[ticker][label]))
			}
			t.Row(row...)
		}
		b.WriteString(t.String())
		b.WriteString("\n")
	}

	_, err := io.WriteString(c.w, b.String())
	return err
}

func (c *Console) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return c.header
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func (c *Console) kv(b *strings.Builder, label, value string) {
	b.WriteString(c.label.Render(label + ":"))
	b.WriteString(value)
	b.WriteString("\n")
}

func avgCell(r backtest.PerformanceResult) string {
	if r.ValidSignals == 0 {
		return "-"
	}
	return pct(r.AverageReturn)
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func price(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func pct(v float64) string {
	return fmt.Sprintf("%+.2f%%", v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
