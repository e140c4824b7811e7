package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/tradelab/internal/core"
)

const yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// validSymbol matches stock symbols like AAPL, MSFT, 600519.SH, 0700.HK, ^GSPC
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9-]{1,10}(\.[A-Za-z]{1,4})?$`)

// validateSymbol checks if a symbol has valid format
func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// YahooSource fetches daily bars from the Yahoo Finance chart API
type YahooSource struct {
	client  *http.Client
	baseURL string
}

// NewYahooSource creates a Yahoo source with a 10s HTTP timeout
func NewYahooSource() *YahooSource {
	return &YahooSource{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: yahooBaseURL,
	}
}

// toYahooSymbol converts internal symbol format to Yahoo format
func toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

// History implements Source
func (y *YahooSource) History(ctx context.Context, ticker string, start, end time.Time, tf core.TimeFrame) ([]core.Bar, error) {
	if err := checkRange(ctx, start, end, tf); err != nil {
		return nil, err
	}
	if err := validateSymbol(ticker); err != nil {
		return nil, err
	}

	// period2 is exclusive
	url := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d",
		y.baseURL, toYahooSymbol(ticker), core.TruncateDay(start).Unix(), core.TruncateDay(end).AddDate(0, 0, 1).Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if result.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description)
	}

	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	r := result.Chart.Result[0]
	quotes := r.Indicators.Quote[0]

	bars := make([]core.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		o, c := valueAt(quotes.Open, i), valueAt(quotes.Close, i)
		if o == nil || c == nil {
			continue // Skip missing data
		}
		b := core.Bar{
			Date:  core.TruncateDay(time.Unix(int64(ts), 0).UTC()),
			Open:  *o,
			Close: *c,
			High:  *c,
			Low:   *c,
		}
		if h := valueAt(quotes.High, i); h != nil {
			b.High = *h
		}
		if l := valueAt(quotes.Low, i); l != nil {
			b.Low = *l
		}
		if v := valueAt(quotes.Volume, i); v != nil {
			b.Volume = *v
		}
		bars = append(bars, b)
	}

	return core.Resample(clip(mergeBars(nil, bars), start, end), tf), nil
}

// valueAt returns s[i], or nil when the series is short
func valueAt[T any](s []*T, i int) *T {
	if i >= len(s) {
		return nil
	}
	return s[i]
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int      `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
