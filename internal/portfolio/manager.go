package portfolio

import (
	"fmt"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds capital and sizing settings
type Config struct {
	InitialCapital    float64
	PositionMinAmount float64
	PositionMaxAmount float64
}

// DefaultConfig returns the default capital settings
func DefaultConfig() Config {
	return Config{
		InitialCapital:    30000,
		PositionMinAmount: 1500,
		PositionMaxAmount: 3000,
	}
}

// Validate checks that capital and sizing bounds are usable
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_capital must be positive, got %.2f", c.InitialCapital))
	}
	if c.PositionMinAmount <= 0 || c.PositionMinAmount > c.PositionMaxAmount {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("need 0 < position_min_amount <= position_max_amount, got %.2f/%.2f",
				c.PositionMinAmount, c.PositionMaxAmount))
	}
	return nil
}

// Manager owns the simulation state: cash, open positions, snapshots and the
// trade ledger. It is the only writer of that state and is not safe for
// concurrent use.
type Manager struct {
	cfg       Config
	cash      decimal.Decimal
	minAmount decimal.Decimal
	maxAmount decimal.Decimal
	positions []Position
	closed    []Position
	snapshots []Snapshot
	trades    []core.FutureTrade
	logger    *zap.Logger
}

// NewManager creates a manager holding cfg.InitialCapital in cash
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:       cfg,
		cash:      decimal.NewFromFloat(cfg.InitialCapital),
		minAmount: decimal.NewFromFloat(cfg.PositionMinAmount),
		maxAmount: decimal.NewFromFloat(cfg.PositionMaxAmount),
		logger:    logger,
	}, nil
}

// Config returns the manager settings
func (m *Manager) Config() Config {
	return m.cfg
}

// RecordDailySnapshot appends a frozen copy of the current cash and positions.
// Call it once per simulated day before any exits or entries.
func (m *Manager) RecordDailySnapshot(date time.Time) Snapshot {
	snap := Snapshot{
		Date:      date,
		Cash:      m.Cash(),
		Positions: append([]Position(nil), m.positions...),
	}
	m.snapshots = append(m.snapshots, snap)
	return snap
}

// CalculatePositionSize returns the shares to buy at entry.Price, filling toward
// PositionMaxAmount but never beyond available cash. Zero means skip the signal.
func (m *Manager) CalculatePositionSize(entry core.TradeLeg) int {
	if entry.Price <= 0 {
		return 0
	}

	amount := decimal.Min(m.maxAmount, m.cash)
	if amount.LessThan(m.minAmount) {
		return 0
	}

	shares := int(amount.Div(decimal.NewFromFloat(entry.Price)).Floor().IntPart())
	m.logger.Debug("position size",
		zap.String("ticker", entry.Ticker),
		zap.Float64("target", amount.InexactFloat64()),
		zap.Float64("price", entry.Price),
		zap.Int("shares", shares),
		zap.Float64("cash", m.Cash()),
	)
	return shares
}

// OpenPosition debits entry.Price * size and adds a position marked at the entry price
func (m *Manager) OpenPosition(entry, exit core.TradeLeg, size int) (Position, error) {
	if size <= 0 {
		return Position{}, core.WrapError(core.ErrInvalidPositionSize,
			fmt.Errorf("%s size %d", entry.Ticker, size))
	}
	if entry.Price <= 0 {
		return Position{}, core.WrapError(core.ErrInvalidPrice,
			fmt.Errorf("%s entry price %.4f", entry.Ticker, entry.Price))
	}

	cost := decimal.NewFromFloat(entry.Price).Mul(decimal.NewFromInt(int64(size)))
	if cost.GreaterThan(m.cash) {
		return Position{}, core.WrapError(core.ErrInsufficientCash,
			fmt.Errorf("%s cost %s exceeds cash %s", entry.Ticker, cost.StringFixed(2), m.cash.StringFixed(2)))
	}

	m.cash = m.cash.Sub(cost)
	pos := Position{
		Entry:        entry,
		Exit:         exit,
		Size:         size,
		CurrentPrice: entry.Price,
	}
	m.positions = append(m.positions, pos)

	m.logger.Info("opened position",
		zap.String("ticker", entry.Ticker),
		zap.Time("entry_date", entry.Date),
		zap.Int("size", size),
		zap.Float64("price", entry.Price),
		zap.Float64("cost", cost.InexactFloat64()),
		zap.Float64("cash", m.Cash()),
	)
	return pos, nil
}

// ClosePosition credits exit.Price * size and removes the open position for exit.Ticker
func (m *Manager) ClosePosition(exit core.TradeLeg, size int) error {
	idx := m.indexOf(exit.Ticker)
	if idx < 0 {
		return core.WrapError(core.ErrPositionNotFound, fmt.Errorf("%s", exit.Ticker))
	}
	pos := m.positions[idx]
	if size != pos.Size {
		return core.WrapError(core.ErrInvalidPositionSize,
			fmt.Errorf("%s close size %d, holding %d", exit.Ticker, size, pos.Size))
	}

	proceeds := decimal.NewFromFloat(exit.Price).Mul(decimal.NewFromInt(int64(size)))
	m.cash = m.cash.Add(proceeds)

	pos.Exit = exit
	pos.CurrentPrice = exit.Price
	m.positions = append(m.positions[:idx], m.positions[idx+1:]...)
	m.closed = append(m.closed, pos)

	m.logger.Info("closed position",
		zap.String("ticker", exit.Ticker),
		zap.Time("exit_date", exit.Date),
		zap.String("reason", exit.Reason),
		zap.Float64("price", exit.Price),
		zap.Float64("pnl", pos.RealizedPnL()),
		zap.Float64("cash", m.Cash()),
	)
	return nil
}

// UpdatePositionPrice marks the open position for ticker to price without moving cash
func (m *Manager) UpdatePositionPrice(ticker string, price float64) error {
	if price <= 0 {
		return core.WrapError(core.ErrInvalidPrice, fmt.Errorf("%s price %.4f", ticker, price))
	}
	idx := m.indexOf(ticker)
	if idx < 0 {
		return core.WrapError(core.ErrPositionNotFound, fmt.Errorf("%s", ticker))
	}
	m.positions[idx].CurrentPrice = price
	return nil
}

// RecordTrade appends a resolved trade to the ledger
func (m *Manager) RecordTrade(t core.FutureTrade) {
	m.trades = append(m.trades, t)
}

// Cash returns available cash
func (m *Manager) Cash() float64 {
	return m.cash.InexactFloat64()
}

// Holds reports whether an open position exists for ticker
func (m *Manager) Holds(ticker string) bool {
	return m.indexOf(ticker) >= 0
}

// Tickers returns the open position tickers in entry order
func (m *Manager) Tickers() []string {
	out := make([]string, len(m.positions))
	for i, p := range m.positions {
		out[i] = p.Ticker()
	}
	return out
}

// Positions returns a copy of the open positions in entry order
func (m *Manager) Positions() []Position {
	return append([]Position(nil), m.positions...)
}

// TotalValue returns cash plus market value of open positions
func (m *Manager) TotalValue() float64 {
	return Snapshot{Cash: m.Cash(), Positions: m.positions}.TotalValue()
}

// State returns a copy of the simulation state
func (m *Manager) State() State {
	snaps := make([]Snapshot, len(m.snapshots))
	for i, s := range m.snapshots {
		s.Positions = append([]Position(nil), s.Positions...)
		snaps[i] = s
	}
	trades := make([]core.FutureTrade, len(m.trades))
	for i, t := range m.trades {
		t.Benchmarks = append([]core.Benchmark(nil), t.Benchmarks...)
		trades[i] = t
	}
	return State{
		InitialCapital: m.cfg.InitialCapital,
		Cash:           m.Cash(),
		Positions:      m.Positions(),
		Closed:         append([]Position(nil), m.closed...),
		Snapshots:      snaps,
		FutureTrades:   trades,
	}
}

func (m *Manager) indexOf(ticker string) int {
	for i, p := range m.positions {
		if p.Ticker() == ticker {
			return i
		}
	}
	return -1
}
