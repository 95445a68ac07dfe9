// Package sink defines output backends for detected page changes.
package sink

import (
	"context"

	"github.com/hazyhaar/pagetrack/snapshot"
)

// Sink delivers changes to a backend (stdout, webhook, in-process callback).
type Sink interface {
	Send(ctx context.Context, c *snapshot.Change) error
	Close() error
}
