package sink

import (
	"context"

	"github.com/hazyhaar/pagetrack/snapshot"
)

// ChangeFunc receives a change in process.
type ChangeFunc func(ctx context.Context, c *snapshot.Change) error

// Callback delivers changes via a Go function call, with no serialisation.
type Callback struct {
	fn ChangeFunc
}

// NewCallback creates a Callback sink. fn may be nil.
func NewCallback(fn ChangeFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, ch *snapshot.Change) error {
	if c.fn == nil {
		return nil
	}
	return c.fn(ctx, ch)
}

func (c *Callback) Close() error { return nil }
