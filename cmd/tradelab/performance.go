package main

import (
	"fmt"
	"os"

	"github.com/newthinker/tradelab/internal/backtest"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/exit"
	"github.com/newthinker/tradelab/internal/notifier/webhook"
	"github.com/newthinker/tradelab/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	performanceFrom string
	performanceTo   string
)

var performanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "Measure signal returns over fixed holding periods",
	Long:  "Collect every signal in the range and report returns by holding period, ranking bucket and benchmark",
	Args:  cobra.NoArgs,
	RunE:  runPerformance,
}

func init() {
	performanceCmd.Flags().StringVar(&performanceFrom, "from", "", "Start date YYYY-MM-DD (overrides performance.start)")
	performanceCmd.Flags().StringVar(&performanceTo, "to", "", "End date YYYY-MM-DD (overrides performance.end)")

	rootCmd.AddCommand(performanceCmd)
}

func runPerformance(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()
	cfg := e.cfg

	start, end, err := cfg.PerformanceRange()
	if err != nil {
		return err
	}
	if start, end, err = dateRange(performanceFrom, performanceTo, start, end); err != nil {
		return err
	}

	periods, err := backtest.ParsePeriods(cfg.Performance.Periods)
	if err != nil {
		return err
	}
	buckets, err := backtest.ParseBuckets(cfg.Performance.RankingBuckets)
	if err != nil {
		return err
	}

	strat, err := e.strategy()
	if err != nil {
		return fmt.Errorf("building strategy: %w", err)
	}
	exitStrategy, err := exit.New(cfg.Exit.Strategy, cfg.ExitParams())
	if err != nil {
		return fmt.Errorf("building exit strategy: %w", err)
	}

	tester, err := backtest.NewTester(backtest.Config{
		Start:      start,
		End:        end,
		Periods:    periods,
		Buckets:    buckets,
		Benchmarks: cfg.Benchmarks,
		TimeFrame:  core.TimeFrame(cfg.Data.TimeFrame),
	}, backtest.Deps{
		Strategy: strat,
		Source:   e.source,
		Exit:     exitStrategy,
		Metrics:  e.metrics,
		Logger:   e.log,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, err := tester.GenerateSignals(ctx, cfg.Universe)
	if err != nil {
		return fmt.Errorf("generating signals: %w", err)
	}
	e.log.Info("signals resolved", zap.Int("signals", len(results)))

	summary, err := tester.CalculatePerformance(ctx)
	e.flush()
	if err != nil {
		return fmt.Errorf("calculating performance: %w", err)
	}

	if err := report.NewConsole(os.Stdout, cfg.Export.MaxTrades).WritePerformance(summary); err != nil {
		return err
	}

	if cfg.Export.Webhook.URL != "" {
		hook, err := webhook.New(cfg.Export.Webhook.URL, cfg.Export.Webhook.Headers)
		if err != nil {
			return err
		}
		if err := hook.PublishPerformance(ctx, summary); err != nil {
			e.log.Error("webhook failed", zap.Error(err))
		}
	}
	return nil
}
