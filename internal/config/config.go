package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/tradelab/internal/backtest"
	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/exit"
	"github.com/newthinker/tradelab/internal/ledger"
	"github.com/spf13/viper"
)

type Config struct {
	Data        DataConfig        `mapstructure:"data"`
	Universe    []string          `mapstructure:"universe"`
	Benchmarks  []string          `mapstructure:"benchmarks"`
	Portfolio   PortfolioConfig   `mapstructure:"portfolio"`
	Exit        ExitConfig        `mapstructure:"exit"`
	Strategy    StrategyConfig    `mapstructure:"strategy"`
	Performance PerformanceConfig `mapstructure:"performance"`
	Export      ExportConfig      `mapstructure:"export"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Log         LogConfig         `mapstructure:"log"`
}

// DataConfig selects the price bar source
type DataConfig struct {
	Source    string `mapstructure:"source"` // "csv", "sqlite" or "yahoo"
	Path      string `mapstructure:"path"`   // CSV directory or SQLite file
	TimeFrame string `mapstructure:"time_frame"`
}

// PortfolioConfig holds the simulation range and capital rules
type PortfolioConfig struct {
	Start             string  `mapstructure:"start"`
	End               string  `mapstructure:"end"`
	InitialCapital    float64 `mapstructure:"initial_capital"`
	PositionMinAmount float64 `mapstructure:"position_min_amount"`
	PositionMaxAmount float64 `mapstructure:"position_max_amount"`
	MinSignalRanking  int     `mapstructure:"min_signal_ranking"`
	MaxHoldingDays    int     `mapstructure:"max_holding_days"`
}

// ExitConfig selects the period-return strategy
type ExitConfig struct {
	Strategy      string  `mapstructure:"strategy"` // buy_and_hold, profit_loss, ema, atr or macd
	ProfitTarget  float64 `mapstructure:"profit_target"`
	StopLoss      float64 `mapstructure:"stop_loss"`
	TieBreak      string  `mapstructure:"tie_break"`
	EMAPeriod     int     `mapstructure:"ema_period"`
	ATRPeriod     int     `mapstructure:"atr_period"`
	ATRMultiplier float64 `mapstructure:"atr_multiplier"`
	MACDFast      int     `mapstructure:"macd_fast"`
	MACDSlow      int     `mapstructure:"macd_slow"`
	MACDSignal    int     `mapstructure:"macd_signal"`
}

type StrategyConfig struct {
	Name   string         `mapstructure:"name"`
	Params map[string]any `mapstructure:"params"`
}

// PerformanceConfig holds the signal performance test settings
type PerformanceConfig struct {
	Start          string   `mapstructure:"start"`
	End            string   `mapstructure:"end"`
	Periods        []string `mapstructure:"periods"`
	RankingBuckets []string `mapstructure:"ranking_buckets"`
}

// ExportConfig controls where run artifacts are written
type ExportConfig struct {
	Formats   []string      `mapstructure:"formats"` // "csv", "parquet"
	Storage   string        `mapstructure:"storage"` // "localfs" or "s3"
	Path      string        `mapstructure:"path"`    // For localfs
	Prefix    string        `mapstructure:"prefix"`
	S3        S3Config      `mapstructure:"s3"` // For S3
	Console   bool          `mapstructure:"console"`
	MaxTrades int           `mapstructure:"max_trades"` // Console ledger rows, 0 for all
	Webhook   WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig posts run results to an HTTP endpoint when URL is set
type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from file on top of Defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.SetEnvPrefix("TRADELAB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Data: DataConfig{
			Source:    "csv",
			Path:      "data/bars",
			TimeFrame: string(core.TimeFrameDay),
		},
		Benchmarks: []string{"SPY", "QQQ"},
		Portfolio: PortfolioConfig{
			InitialCapital:    30000,
			PositionMinAmount: 1500,
			PositionMaxAmount: 3000,
			MinSignalRanking:  70,
			MaxHoldingDays:    365,
		},
		Exit: ExitConfig{
			Strategy:      exit.NameBuyAndHold,
			ProfitTarget:  10,
			StopLoss:      5,
			TieBreak:      string(exit.TieBreakStopLoss),
			EMAPeriod:     20,
			ATRPeriod:     14,
			ATRMultiplier: 2,
			MACDFast:      12,
			MACDSlow:      26,
			MACDSignal:    9,
		},
		Strategy: StrategyConfig{
			Name: "ma_crossover",
		},
		Performance: PerformanceConfig{
			Periods:        []string{"3d", "1W", "2W", "1M"},
			RankingBuckets: []string{"0-20", "21-40", "41-60", "61-80", "81-100"},
		},
		Export: ExportConfig{
			Formats: []string{string(ledger.FormatCSV)},
			Storage: "localfs",
			Path:    "output",
			Prefix:  "runs",
			Console: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Data validation
	switch c.Data.Source {
	case "csv", "sqlite":
		if c.Data.Path == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("data.path required when source is %s", c.Data.Source))
		}
	case "yahoo":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.source must be csv, sqlite or yahoo, got %q", c.Data.Source))
	}
	if !core.TimeFrame(c.Data.TimeFrame).IsValid() {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("data.time_frame must be day or week, got %q", c.Data.TimeFrame))
	}

	// Portfolio validation
	p := c.Portfolio
	if p.InitialCapital <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_capital must be positive, got %.2f", p.InitialCapital))
	}
	if p.PositionMinAmount <= 0 || p.PositionMinAmount > p.PositionMaxAmount {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("position amounts must satisfy 0 < min <= max, got %.2f..%.2f", p.PositionMinAmount, p.PositionMaxAmount))
	}
	if p.MinSignalRanking < 0 || p.MinSignalRanking > 100 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("min_signal_ranking must be between 0 and 100, got %d", p.MinSignalRanking))
	}
	if p.MaxHoldingDays < 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_holding_days must be positive, got %d", p.MaxHoldingDays))
	}
	if _, _, err := parseRange(p.Start, p.End, "portfolio"); err != nil {
		return err
	}

	// Exit, performance and export settings are checked by their own parsers
	if _, err := exit.New(c.Exit.Strategy, c.ExitParams()); err != nil {
		return err
	}
	if _, err := backtest.ParsePeriods(c.Performance.Periods); err != nil {
		return err
	}
	if _, err := backtest.ParseBuckets(c.Performance.RankingBuckets); err != nil {
		return err
	}
	if _, _, err := parseRange(c.Performance.Start, c.Performance.End, "performance"); err != nil {
		return err
	}
	if _, err := ledger.ParseFormats(c.Export.Formats); err != nil {
		return err
	}

	switch c.Export.Storage {
	case "localfs":
		if c.Export.Path == "" {
			return core.WrapError(core.ErrConfigMissing, errors.New("export.path required when storage is localfs"))
		}
	case "s3":
		if c.Export.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing, errors.New("export.s3.bucket required when storage is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("export.storage must be localfs or s3, got %q", c.Export.Storage))
	}

	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		return core.WrapError(core.ErrConfigMissing, errors.New("metrics.textfile required when metrics are enabled"))
	}

	return nil
}

// ExitParams converts the exit section to factory parameters
func (c *Config) ExitParams() exit.Params {
	return exit.Params{
		ProfitTarget:  c.Exit.ProfitTarget,
		StopLoss:      c.Exit.StopLoss,
		TieBreak:      c.Exit.TieBreak,
		EMAPeriod:     c.Exit.EMAPeriod,
		ATRPeriod:     c.Exit.ATRPeriod,
		ATRMultiplier: c.Exit.ATRMultiplier,
		MACDFast:      c.Exit.MACDFast,
		MACDSlow:      c.Exit.MACDSlow,
		MACDSignal:    c.Exit.MACDSignal,
	}
}

// PortfolioRange returns the parsed simulation range
func (c *Config) PortfolioRange() (time.Time, time.Time, error) {
	return parseRange(c.Portfolio.Start, c.Portfolio.End, "portfolio")
}

// PerformanceRange returns the parsed performance test range
func (c *Config) PerformanceRange() (time.Time, time.Time, error) {
	return parseRange(c.Performance.Start, c.Performance.End, "performance")
}

// parseRange parses YYYY-MM-DD bounds. Empty bounds are allowed and returned
// as zero times so the CLI can supply them.
func parseRange(start, end, section string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if start != "" {
		if from, err = time.Parse(time.DateOnly, start); err != nil {
			return from, to, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s.start: %w", section, err))
		}
	}
	if end != "" {
		if to, err = time.Parse(time.DateOnly, end); err != nil {
			return from, to, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("%s.end: %w", section, err))
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("%s.end %s is before start %s", section, end, start))
	}
	return from, to, nil
}
