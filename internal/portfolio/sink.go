package portfolio

import (
	"context"
	"fmt"
)

// Sink receives the final state of a simulation for reporting or export.
// Sinks must treat the state as read-only.
type Sink interface {
	Name() string
	Publish(ctx context.Context, state State) error
}

// publishSafe calls s.Publish, converting a panic into an error
func publishSafe(ctx context.Context, s Sink, state State) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Publish(ctx, state)
}
