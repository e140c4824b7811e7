package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/newthinker/tradelab/internal/core"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var _ Source = (*SQLiteSource)(nil)

const barsSchema = `
CREATE TABLE IF NOT EXISTS bars (
	ticker TEXT    NOT NULL,
	date   TEXT    NOT NULL,
	open   REAL    NOT NULL,
	high   REAL    NOT NULL,
	low    REAL    NOT NULL,
	close  REAL    NOT NULL,
	volume INTEGER NOT NULL,
	PRIMARY KEY (ticker, date)
)`

// SQLiteSource serves daily bars from a SQLite database
type SQLiteSource struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the bars table exists
func OpenSQLite(path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(barsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bars table: %w", err)
	}
	return &SQLiteSource{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// Import upserts daily bars for a ticker in a single transaction
func (s *SQLiteSource) Import(ctx context.Context, ticker string, bars []core.Bar) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO bars
		(ticker, date, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	key := normalizeTicker(ticker)
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, key, b.Date.Format(time.DateOnly),
			b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return 0, fmt.Errorf("inserting %s %s: %w", key, b.Date.Format(time.DateOnly), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(bars), nil
}

// Tickers lists the distinct tickers stored
func (s *SQLiteSource) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ticker FROM bars ORDER BY ticker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// History implements Source
func (s *SQLiteSource) History(ctx context.Context, ticker string, start, end time.Time, tf core.TimeFrame) ([]core.Bar, error) {
	if err := checkRange(ctx, start, end, tf); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT date, open, high, low, close, volume
		FROM bars WHERE ticker = ? AND date >= ? AND date <= ? ORDER BY date`,
		normalizeTicker(ticker), start.Format(time.DateOnly), end.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("querying bars for %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []core.Bar
	for rows.Next() {
		var (
			date string
			b    core.Bar
		)
		if err := rows.Scan(&date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		if b.Date, err = time.Parse(time.DateOnly, date); err != nil {
			return nil, fmt.Errorf("bad date %q for %s: %w", date, ticker, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return core.Resample(bars, tf), nil
}
