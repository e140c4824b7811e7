package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/tradelab/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestLoad_FromFile(t *testing.T) {
	cfgPath := writeConfig(t, `
data:
  source: sqlite
  path: "/tmp/tradelab/bars.db"

universe: [AAPL, MSFT]
benchmarks: [SPY]

portfolio:
  start: "2024-01-01"
  end: "2024-06-30"
  initial_capital: 50000
  min_signal_ranking: 60

exit:
  strategy: profit_loss
  profit_target: 12
  tie_break: profit_target

strategy:
  name: ma_crossover
  params:
    fast_period: 5
    slow_period: 20

export:
  formats: [csv, parquet]
  storage: s3
  s3:
    bucket: backtests
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Data.Source != "sqlite" {
		t.Errorf("expected sqlite, got %s", cfg.Data.Source)
	}
	if len(cfg.Universe) != 2 || cfg.Universe[1] != "MSFT" {
		t.Errorf("unexpected universe %v", cfg.Universe)
	}
	if len(cfg.Benchmarks) != 1 || cfg.Benchmarks[0] != "SPY" {
		t.Errorf("benchmarks should be replaced, got %v", cfg.Benchmarks)
	}
	if cfg.Portfolio.InitialCapital != 50000 {
		t.Errorf("expected capital 50000, got %f", cfg.Portfolio.InitialCapital)
	}
	// unset keys keep their defaults
	if cfg.Portfolio.PositionMaxAmount != 3000 {
		t.Errorf("expected default max amount 3000, got %f", cfg.Portfolio.PositionMaxAmount)
	}
	if cfg.Exit.StopLoss != 5 {
		t.Errorf("expected default stop loss 5, got %f", cfg.Exit.StopLoss)
	}
	if cfg.Exit.TieBreak != "profit_target" {
		t.Errorf("expected profit_target tie break, got %s", cfg.Exit.TieBreak)
	}
	if cfg.Strategy.Params["fast_period"] != 5 {
		t.Errorf("expected fast_period 5, got %v", cfg.Strategy.Params["fast_period"])
	}
	if cfg.Export.S3.Bucket != "backtests" {
		t.Errorf("expected bucket backtests, got %s", cfg.Export.S3.Bucket)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	start, end, err := cfg.PortfolioRange()
	if err != nil {
		t.Fatalf("PortfolioRange: %v", err)
	}
	if !start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected range %s..%s", start, end)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TRADELAB_TEST_SECRET", "s3cr3t")
	cfgPath := writeConfig(t, `
export:
  storage: s3
  s3:
    bucket: backtests
    secret_key: "${TRADELAB_TEST_SECRET}"
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Export.S3.SecretKey != "s3cr3t" {
		t.Errorf("expected expanded secret, got %q", cfg.Export.S3.SecretKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Portfolio.InitialCapital != 30000 {
		t.Errorf("expected default capital 30000, got %f", cfg.Portfolio.InitialCapital)
	}
	if cfg.Portfolio.PositionMinAmount != 1500 || cfg.Portfolio.PositionMaxAmount != 3000 {
		t.Errorf("unexpected default position amounts %f..%f", cfg.Portfolio.PositionMinAmount, cfg.Portfolio.PositionMaxAmount)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr *core.Error
	}{
		{"valid config", func(c *Config) {}, nil},
		{"unknown source", func(c *Config) { c.Data.Source = "ftp" }, core.ErrConfigInvalid},
		{"csv without path", func(c *Config) { c.Data.Path = "" }, core.ErrConfigMissing},
		{"yahoo without path", func(c *Config) { c.Data.Source = "yahoo"; c.Data.Path = "" }, nil},
		{"bad time frame", func(c *Config) { c.Data.TimeFrame = "hour" }, core.ErrConfigInvalid},
		{"zero capital", func(c *Config) { c.Portfolio.InitialCapital = 0 }, core.ErrConfigInvalid},
		{"min above max", func(c *Config) { c.Portfolio.PositionMinAmount = 5000 }, core.ErrConfigInvalid},
		{"ranking above 100", func(c *Config) { c.Portfolio.MinSignalRanking = 101 }, core.ErrConfigInvalid},
		{"zero holding days", func(c *Config) { c.Portfolio.MaxHoldingDays = 0 }, core.ErrConfigInvalid},
		{"bad start date", func(c *Config) { c.Portfolio.Start = "01/02/2024" }, core.ErrConfigInvalid},
		{"inverted range", func(c *Config) { c.Portfolio.Start = "2024-02-01"; c.Portfolio.End = "2024-01-01" }, core.ErrConfigInvalid},
		{"unknown exit", func(c *Config) { c.Exit.Strategy = "trailing" }, core.ErrConfigInvalid},
		{"stop loss at 100", func(c *Config) { c.Exit.Strategy = "profit_loss"; c.Exit.StopLoss = 100 }, core.ErrConfigInvalid},
		{"bad tie break", func(c *Config) { c.Exit.Strategy = "profit_loss"; c.Exit.TieBreak = "coin_flip" }, core.ErrConfigInvalid},
		{"zero ema period", func(c *Config) { c.Exit.Strategy = "ema"; c.Exit.EMAPeriod = 0 }, core.ErrConfigInvalid},
		{"atr defaults", func(c *Config) { c.Exit.Strategy = "atr" }, nil},
		{"zero atr multiplier", func(c *Config) { c.Exit.Strategy = "atr"; c.Exit.ATRMultiplier = 0 }, core.ErrConfigInvalid},
		{"macd defaults", func(c *Config) { c.Exit.Strategy = "macd" }, nil},
		{"macd slow below fast", func(c *Config) { c.Exit.Strategy = "macd"; c.Exit.MACDSlow = 5 }, core.ErrConfigInvalid},
		{"bad period", func(c *Config) { c.Performance.Periods = []string{"1y"} }, core.ErrConfigInvalid},
		{"period labels collide", func(c *Config) { c.Performance.Periods = []string{"1w", "10d"} }, core.ErrConfigInvalid},
		{"inverted bucket", func(c *Config) { c.Performance.RankingBuckets = []string{"80-20"} }, core.ErrConfigInvalid},
		{"duplicate bucket", func(c *Config) { c.Performance.RankingBuckets = []string{"0-20", "0-20"} }, core.ErrConfigInvalid},
		{"unknown format", func(c *Config) { c.Export.Formats = []string{"xlsx"} }, core.ErrConfigInvalid},
		{"unknown storage", func(c *Config) { c.Export.Storage = "gcs" }, core.ErrConfigInvalid},
		{"s3 without bucket", func(c *Config) { c.Export.Storage = "s3" }, core.ErrConfigMissing},
		{"metrics without textfile", func(c *Config) { c.Metrics.Enabled = true }, core.ErrConfigMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
