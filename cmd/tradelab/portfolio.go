package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/exit"
	"github.com/newthinker/tradelab/internal/ledger"
	"github.com/newthinker/tradelab/internal/notifier/webhook"
	"github.com/newthinker/tradelab/internal/portfolio"
	"github.com/newthinker/tradelab/internal/report"
	"github.com/newthinker/tradelab/internal/resolver"
	"github.com/newthinker/tradelab/internal/storage/archive"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	portfolioFrom  string
	portfolioTo    string
	portfolioRunID string
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Run a cash-constrained portfolio simulation",
	Long:  "Simulate trading the strategy's ranked signals day by day with limited capital and export the trade ledger",
	Args:  cobra.NoArgs,
	RunE:  runPortfolio,
}

func init() {
	portfolioCmd.Flags().StringVar(&portfolioFrom, "from", "", "Start date YYYY-MM-DD (overrides portfolio.start)")
	portfolioCmd.Flags().StringVar(&portfolioTo, "to", "", "End date YYYY-MM-DD (overrides portfolio.end)")
	portfolioCmd.Flags().StringVar(&portfolioRunID, "run-id", "", "Run id for exported artifacts (default: random uuid)")

	rootCmd.AddCommand(portfolioCmd)
}

func runPortfolio(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()
	cfg := e.cfg

	start, end, err := cfg.PortfolioRange()
	if err != nil {
		return err
	}
	if start, end, err = dateRange(portfolioFrom, portfolioTo, start, end); err != nil {
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

	res, err := resolver.NewProcessor(e.source, exitStrategy, resolver.Config{
		MaxHoldingDays: cfg.Portfolio.MaxHoldingDays,
		Benchmarks:     cfg.Benchmarks,
		TimeFrame:      core.TimeFrame(cfg.Data.TimeFrame),
	}, e.log)
	if err != nil {
		return fmt.Errorf("building resolver: %w", err)
	}

	manager, err := portfolio.NewManager(portfolio.Config{
		InitialCapital:    cfg.Portfolio.InitialCapital,
		PositionMinAmount: cfg.Portfolio.PositionMinAmount,
		PositionMaxAmount: cfg.Portfolio.PositionMaxAmount,
	}, e.log)
	if err != nil {
		return err
	}

	sinks, err := buildSinks(e)
	if err != nil {
		return err
	}

	svc, err := portfolio.NewService(portfolio.ServiceConfig{
		Start:            start,
		End:              end,
		Universe:         cfg.Universe,
		MinSignalRanking: cfg.Portfolio.MinSignalRanking,
		TimeFrame:        core.TimeFrame(cfg.Data.TimeFrame),
	}, manager, portfolio.Deps{
		Strategy: strat,
		Source:   e.source,
		Resolver: res,
		Sinks:    sinks,
		Metrics:  e.metrics,
		Logger:   e.log,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := svc.Run(ctx)
	e.flush()
	if err != nil {
		if result != nil && errors.Is(err, context.Canceled) {
			e.log.Warn("simulation interrupted",
				zap.Int("trades", len(result.State.FutureTrades)),
				zap.Float64("total_value", result.State.TotalValue()),
			)
		}
		return err
	}
	return nil
}

// buildSinks wires the ledger exporter and, when enabled, the console report
func buildSinks(e *env) ([]portfolio.Sink, error) {
	cfg := e.cfg

	formats, err := ledger.ParseFormats(cfg.Export.Formats)
	if err != nil {
		return nil, err
	}
	store, err := archive.New(archive.Config{
		Backend: cfg.Export.Storage,
		Path:    cfg.Export.Path,
		S3: archive.S3Config{
			Bucket:    cfg.Export.S3.Bucket,
			Endpoint:  cfg.Export.S3.Endpoint,
			Region:    cfg.Export.S3.Region,
			AccessKey: cfg.Export.S3.AccessKey,
			SecretKey: cfg.Export.S3.SecretKey,
			Prefix:    cfg.Export.S3.Prefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening export storage: %w", err)
	}

	opts := []ledger.ExporterOption{ledger.WithPrefix(cfg.Export.Prefix), ledger.WithLogger(e.log)}
	if portfolioRunID != "" {
		opts = append(opts, ledger.WithRunID(portfolioRunID))
	}
	exporter := ledger.NewExporter(store, formats, opts...)
	e.log.Info("exporting run", zap.String("run_id", exporter.RunID()), zap.String("location", store.URI(exporter.Path(""))))

	sinks := []portfolio.Sink{exporter}
	if cfg.Export.Console {
		sinks = append(sinks, report.NewConsole(os.Stdout, cfg.Export.MaxTrades))
	}
	if cfg.Export.Webhook.URL != "" {
		hook, err := webhook.New(cfg.Export.Webhook.URL, cfg.Export.Webhook.Headers)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, hook)
	}
	return sinks, nil
}
