package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/newthinker/tradelab/internal/core"
)

// csvBar is the on-disk row of a daily bar file
type csvBar struct {
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume int64   `csv:"volume"`
}

// LoadCSVDir reads every <TICKER>.csv file in dir into a MemorySource.
// Files carry a header row: date,open,high,low,close,volume with dates as YYYY-MM-DD.
func LoadCSVDir(dir string) (*MemorySource, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no csv files in %s", dir))
	}

	src := NewMemorySource()
	for _, p := range paths {
		bars, err := ReadCSVFile(p)
		if err != nil {
			return nil, err
		}
		ticker := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		src.Add(ticker, bars...)
	}
	return src, nil
}

// ReadCSVFile parses a single daily bar file
func ReadCSVFile(path string) ([]core.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var rows []*csvBar
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	bars := make([]core.Bar, 0, len(rows))
	for i, r := range rows {
		d, err := time.Parse(time.DateOnly, strings.TrimSpace(r.Date))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		bars = append(bars, core.Bar{
			Date:   d,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return mergeBars(nil, bars), nil
}

// WriteCSVFile writes daily bars in the format ReadCSVFile expects
func WriteCSVFile(path string, bars []core.Bar) error {
	rows := make([]*csvBar, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, &csvBar{
			Date:   b.Date.Format(time.DateOnly),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	return gocsv.MarshalFile(&rows, f)
}
