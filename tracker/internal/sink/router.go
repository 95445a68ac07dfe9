package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/pagetrack/snapshot"
)

// Router fans a change out to every sink. One failing sink does not stop
// the others; failures are logged and the first is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Len returns the number of sinks.
func (r *Router) Len() int { return len(r.sinks) }

func (r *Router) Send(ctx context.Context, c *snapshot.Change) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, c); err != nil {
			r.logger.Warn("sink: send change failed", "url", c.URL, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
