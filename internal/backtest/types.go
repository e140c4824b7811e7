package backtest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/tradelab/internal/core"
)

// Period is a test horizon in calendar days
type Period int

// Label formats the period as "Nd" under a week, "NW" under a month, "NM" otherwise
func (p Period) Label() string {
	days := int(p)
	switch {
	case days < 7:
		return fmt.Sprintf("%dd", days)
	case days < 30:
		return fmt.Sprintf("%dW", days/7)
	default:
		return fmt.Sprintf("%dM", days/30)
	}
}

// ParsePeriod parses "3d", "1w", "2W" or "1m" into a Period
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("invalid period %q", s))
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("invalid period %q", s))
	}

	switch s[len(s)-1] {
	case 'd', 'D':
		return Period(n), nil
	case 'w', 'W':
		return Period(n * 7), nil
	case 'm', 'M':
		return Period(n * 30), nil
	default:
		return 0, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("invalid period unit in %q", s))
	}
}

// ParsePeriods parses every entry with ParsePeriod
func ParsePeriods(specs []string) ([]Period, error) {
	periods := make([]Period, 0, len(specs))
	for _, s := range specs {
		p, err := ParsePeriod(s)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	if err := ValidatePeriods(periods); err != nil {
		return nil, err
	}
	return periods, nil
}

// ValidatePeriods rejects non-positive periods and periods sharing a label,
// since results are keyed by label
func ValidatePeriods(periods []Period) error {
	seen := make(map[string]Period, len(periods))
	for _, p := range periods {
		if p <= 0 {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("period must be positive, got %d days", p))
		}
		label := p.Label()
		if prev, ok := seen[label]; ok {
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("periods of %d and %d days share the label %s", prev, p, label))
		}
		seen[label] = p
	}
	return nil
}

// DefaultPeriods are the horizons tested when none are configured
func DefaultPeriods() []Period {
	return []Period{3, 7, 14, 30}
}

// RankingBucket is an inclusive ranking range such as "61-80"
type RankingBucket struct {
	Name string
	Min  int
	Max  int
}

// Contains reports whether ranking falls within the bucket
func (b RankingBucket) Contains(ranking int) bool {
	return ranking >= b.Min && ranking <= b.Max
}

// DefaultBuckets returns the five quintile buckets over 0-100
func DefaultBuckets() []RankingBucket {
	return []RankingBucket{
		{Name: "0-20", Min: 0, Max: 20},
		{Name: "21-40", Min: 21, Max: 40},
		{Name: "41-60", Min: 41, Max: 60},
		{Name: "61-80", Min: 61, Max: 80},
		{Name: "81-100", Min: 81, Max: 100},
	}
}

// ParseBuckets parses "lo-hi" ranges; malformed or inverted ranges are rejected
func ParseBuckets(specs []string) ([]RankingBucket, error) {
	buckets := make([]RankingBucket, 0, len(specs))
	for _, s := range specs {
		lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
		if !ok {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("ranking bucket %q: want lo-hi", s))
		}
		minRank, err1 := strconv.Atoi(strings.TrimSpace(lo))
		maxRank, err2 := strconv.Atoi(strings.TrimSpace(hi))
		if err1 != nil || err2 != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("ranking bucket %q: bounds must be integers", s))
		}
		if minRank > maxRank {
			return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("ranking bucket %q: inverted range", s))
		}
		buckets = append(buckets, RankingBucket{
			Name: fmt.Sprintf("%d-%d", minRank, maxRank),
			Min:  minRank,
			Max:  maxRank,
		})
	}
	if err := ValidateBuckets(buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// ValidateBuckets rejects inverted ranges and duplicate bucket names
func ValidateBuckets(buckets []RankingBucket) error {
	seen := make(map[string]bool, len(buckets))
	for _, b := range buckets {
		if b.Min > b.Max {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("ranking bucket %s: inverted range", b.Name))
		}
		if seen[b.Name] {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("ranking bucket %s listed twice", b.Name))
		}
		seen[b.Name] = true
	}
	return nil
}

// PeriodWindow is the bar window used to evaluate one period of a signal
type PeriodWindow struct {
	TargetDate time.Time
	Bars       []core.Bar
}

// SignalResult holds the entry and per-period data of one evaluated signal.
//
// PeriodResults carries the legacy closing price per period label (nil when
// unavailable). PeriodData carries the bar window used by the exit strategy.
type SignalResult struct {
	Ticker        string
	SignalDate    time.Time
	EntryPrice    float64
	EntryDate     time.Time
	Ranking       int
	PeriodResults map[string]*float64
	PeriodData    map[string]PeriodWindow
}

// LegacyReturn returns the buy-and-hold percentage from the stored closing price
func (r SignalResult) LegacyReturn(label string) *float64 {
	closing := r.PeriodResults[label]
	if closing == nil || r.EntryPrice <= 0 {
		return nil
	}
	ret := (*closing - r.EntryPrice) / r.EntryPrice * 100
	return &ret
}

// PerformanceResult aggregates the returns of one period label
type PerformanceResult struct {
	PeriodName    string
	TotalSignals  int
	ValidSignals  int
	AverageReturn float64
	MedianReturn  float64
	StdDev        float64
	WinRate       float64 // Percentage of strictly positive returns
	BestReturn    float64
	WorstReturn   float64
	Returns       []float64
}

// RankingPerformance is the per-period performance of one ranking bucket
type RankingPerformance struct {
	RankingRange  string
	PeriodResults map[string]PerformanceResult
	TotalSignals  int
}

// TestSummary is the complete output of a performance test
type TestSummary struct {
	StrategyName      string
	TestStartDate     time.Time
	TestEndDate       time.Time
	TotalSignalsFound int
	TestPeriods       []Period
	PeriodResults     map[string]PerformanceResult

	// BenchmarkResults is keyed by benchmark ticker, then period label
	BenchmarkResults map[string]map[string]PerformanceResult
	RankingResults   map[string]RankingPerformance
	RankingBuckets   []RankingBucket
}

// PeriodLabels returns the labels of TestPeriods in order
func (s TestSummary) PeriodLabels() []string {
	labels := make([]string, len(s.TestPeriods))
	for i, p := range s.TestPeriods {
		labels[i] = p.Label()
	}
	return labels
}
