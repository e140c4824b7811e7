package strategy

import (
	"context"
	"time"

	"github.com/newthinker/tradelab/internal/core"
)

// Config holds strategy configuration
type Config struct {
	Params map[string]any
}

// Int reads an integer parameter, accepting the numeric types config decoders produce
func (c Config) Int(key string, fallback int) int {
	switch v := c.Params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// Strategy produces ranked entry signals for a ticker.
// Signals must be dated within [start, end] and returned in ascending date order.
type Strategy interface {
	Name() string
	Signals(ctx context.Context, ticker string, start, end time.Time) ([]core.Signal, error)
}
