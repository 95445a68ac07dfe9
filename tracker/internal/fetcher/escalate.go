package fetcher

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/pagetrack/tracker/internal/source"
)

// Escalating tries the HTTP fetcher first and reopens the page with a
// rendering opener when the static body looks like a script shell.
type Escalating struct {
	http     *Fetcher
	fallback source.Opener
	logger   *slog.Logger
}

// NewEscalating pairs f with a rendering fallback.
func NewEscalating(f *Fetcher, fallback source.Opener, logger *slog.Logger) *Escalating {
	if logger == nil {
		logger = slog.Default()
	}
	return &Escalating{http: f, fallback: fallback, logger: logger}
}

func (e *Escalating) Open(ctx context.Context, pageURL string, opts source.OpenOptions) (*source.Handle, error) {
	res, err := e.http.Fetch(ctx, pageURL, opts.Refresh)
	if err != nil {
		return nil, err
	}
	if IsSufficient(res.Body) {
		return e.http.handle(res), nil
	}
	e.logger.Info("fetcher: escalating to browser", "url", pageURL, "size", len(res.Body))
	return e.fallback.Open(ctx, pageURL, opts)
}
