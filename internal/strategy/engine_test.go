package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/tradelab/internal/core"
	"github.com/newthinker/tradelab/internal/history"
)

type mockStrategy struct {
	name    string
	signals map[string][]core.Signal
	fail    map[string]bool
}

func (m *mockStrategy) Name() string { return m.name }
func (m *mockStrategy) Signals(ctx context.Context, ticker string, start, end time.Time) ([]core.Signal, error) {
	if m.fail[ticker] {
		return nil, errors.New("boom")
	}
	return m.signals[ticker], nil
}

func TestRegistry_RegisterAndBuild(t *testing.T) {
	r := NewRegistry()
	r.Register("mock", func(cfg Config, src history.Source) (Strategy, error) {
		return &mockStrategy{name: "mock"}, nil
	})

	s, err := r.Build("mock", Config{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name() != "mock" {
		t.Errorf("expected 'mock', got %q", s.Name())
	}

	if _, err := r.Build("missing", Config{}, nil); !errors.Is(err, core.ErrConfigInvalid) {
		t.Errorf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	noop := func(Config, history.Source) (Strategy, error) { return nil, nil }
	r.Register("b", noop)
	r.Register("a", noop)

	names := r.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("expected sorted names [a b], got %v", names)
	}
}

func TestCollectSignals_SkipsFailingTickers(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := &mockStrategy{
		name: "mock",
		signals: map[string][]core.Signal{
			"AAPL": {{Ticker: "AAPL", Date: day, Ranking: 80}},
			"MSFT": {{Ticker: "MSFT", Date: day, Ranking: 60}},
		},
		fail: map[string]bool{"BAD": true},
	}

	signals, err := CollectSignals(context.Background(), s, []string{"AAPL", "BAD", "MSFT"}, day, day, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(signals))
	}
}

func TestCollectSignals_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CollectSignals(ctx, &mockStrategy{name: "mock"}, []string{"AAPL"}, time.Now(), time.Now(), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestConfig_Int(t *testing.T) {
	cfg := Config{Params: map[string]any{"a": 5, "b": 7.0, "c": int64(9), "d": "x"}}
	tests := []struct {
		key  string
		want int
	}{
		{"a", 5}, {"b", 7}, {"c", 9}, {"d", 1}, {"missing", 1},
	}
	for _, tt := range tests {
		if got := cfg.Int(tt.key, 1); got != tt.want {
			t.Errorf("Int(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}
}
