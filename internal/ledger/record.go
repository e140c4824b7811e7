// Package ledger converts resolved trades into a flat record set with a stable
// column order and encodes it as CSV or Parquet.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/tradelab/internal/core"
)

const dateLayout = "2006-01-02"

// Record is one ledger row. Column names and order are stable across releases.
type Record struct {
	Ticker        string  `csv:"ticker" parquet:"ticker"`
	SignalDate    string  `csv:"signal_date" parquet:"signal_date"`
	SignalRanking int32   `csv:"signal_ranking" parquet:"signal_ranking"`
	EntryDate     string  `csv:"entry_date" parquet:"entry_date"`
	EntryPrice    float64 `csv:"entry_price" parquet:"entry_price"`
	EntryReason   string  `csv:"entry_reason" parquet:"entry_reason"`
	ExitDate      string  `csv:"exit_date" parquet:"exit_date"`
	ExitPrice     float64 `csv:"exit_price" parquet:"exit_price"`
	ExitReason    string  `csv:"exit_reason" parquet:"exit_reason"`
	PositionSize  int64   `csv:"position_size" parquet:"position_size"`
	HoldingDays   int32   `csv:"holding_days" parquet:"holding_days"`
	RealizedPnL   float64 `csv:"realized_pnl" parquet:"realized_pnl"`
	RealizedPct   float64 `csv:"realized_pct" parquet:"realized_pct"`
}

// Columns is the ledger header in order
var Columns = []string{
	"ticker", "signal_date", "signal_ranking",
	"entry_date", "entry_price", "entry_reason",
	"exit_date", "exit_price", "exit_reason",
	"position_size", "holding_days", "realized_pnl", "realized_pct",
}

// FromTrade flattens a resolved trade
func FromTrade(t core.FutureTrade) Record {
	return Record{
		Ticker:        t.Ticker(),
		SignalDate:    formatDate(t.Signal.Date),
		SignalRanking: int32(t.Signal.Ranking),
		EntryDate:     formatDate(t.Entry.Date),
		EntryPrice:    t.Entry.Price,
		EntryReason:   t.Entry.Reason,
		ExitDate:      formatDate(t.Exit.Date),
		ExitPrice:     t.Exit.Price,
		ExitReason:    t.Exit.Reason,
		PositionSize:  int64(t.PositionSize),
		HoldingDays:   int32(t.HoldingDays()),
		RealizedPnL:   t.RealizedPnL(),
		RealizedPct:   t.RealizedPct(),
	}
}

// FromTrades flattens trades in ledger order
func FromTrades(trades []core.FutureTrade) []Record {
	records := make([]Record, len(trades))
	for i, t := range trades {
		records[i] = FromTrade(t)
	}
	return records
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// Format is a ledger encoding
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// Ext returns the file extension for the format
func (f Format) Ext() string {
	return "." + string(f)
}

// ParseFormats validates a list of format names
func ParseFormats(names []string) ([]Format, error) {
	formats := make([]Format, 0, len(names))
	seen := make(map[Format]bool, len(names))
	for _, n := range names {
		f := Format(strings.ToLower(strings.TrimSpace(n)))
		if f != FormatCSV && f != FormatParquet {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown ledger format %q", n))
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		formats = append(formats, f)
	}
	return formats, nil
}
