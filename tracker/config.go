package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hazyhaar/pagetrack/kvstore"
	"github.com/hazyhaar/pagetrack/tracker/internal/browser"
	"github.com/hazyhaar/pagetrack/tracker/internal/config"
	"github.com/hazyhaar/pagetrack/tracker/internal/fetcher"
	"github.com/hazyhaar/pagetrack/tracker/internal/pageparse"
	"github.com/hazyhaar/pagetrack/tracker/internal/sink"
)

// Config is the top-level pagetrack configuration. Re-exported from internal.
type Config = config.Config

// StorageConfig selects the key-value backend.
type StorageConfig = config.StorageConfig

// FetchConfig controls page retrieval.
type FetchConfig = config.FetchConfig

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// PageConfig defines a page to track.
type PageConfig = config.PageConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}

// Runtime is a Tracker assembled from a Config together with the resources
// it owns.
type Runtime struct {
	Tracker *Tracker
	// Options carries no_refresh and the storage scope from the config.
	Options Options

	cfg     *Config
	db      *sql.DB // nil unless storage is sqlite
	closers []io.Closer
	logger  *slog.Logger
}

// NewRuntime builds the storage provider, opener and sinks cfg describes.
func NewRuntime(cfg *Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rt := &Runtime{cfg: cfg, logger: logger}

	provider, err := rt.openStorage()
	if err != nil {
		return nil, err
	}
	opener, err := rt.openFetcher()
	if err != nil {
		rt.Close()
		return nil, err
	}

	var sinks []Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "webhook":
			sinks = append(sinks, sink.NewWebhook(sc.URL,
				sink.WithWebhookRetries(sc.Retries), sink.WithWebhookLogger(logger)))
		default:
			sinks = append(sinks, sink.NewStdout(nil))
		}
	}

	t, err := New(opener, provider,
		WithLogger(logger),
		WithNamespace(cfg.Storage.Namespace),
		WithSinks(sinks...))
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Tracker = t
	rt.closers = append(rt.closers, t)

	rt.Options = Options{NoRefresh: cfg.NoRefresh}
	if cfg.Storage.Scope != "" {
		rt.Options.Storage = kvstore.Options{kvstore.ScopeKey: cfg.Storage.Scope}
	}
	return rt, nil
}

func (rt *Runtime) openStorage() (kvstore.Provider, error) {
	sc := rt.cfg.Storage
	switch sc.Driver {
	case "memory":
		return kvstore.NewMemory(), nil
	case "dir":
		return kvstore.NewDir(sc.Path)
	default:
		s, err := kvstore.OpenSQLite(sc.Path)
		if err != nil {
			return nil, err
		}
		if err := config.EnsurePagesSchema(context.Background(), s.DB()); err != nil {
			s.Close()
			return nil, err
		}
		rt.db = s.DB()
		rt.closers = append(rt.closers, s)
		return s, nil
	}
}

func (rt *Runtime) openFetcher() (Opener, error) {
	fc := rt.cfg.Fetch
	mode, err := pageparse.ParseTextMode(fc.Text)
	if err != nil {
		return nil, err
	}
	httpOpener := fetcher.New(
		fetcher.WithUserAgent(fc.UserAgent),
		fetcher.WithTimeout(fc.Timeout),
		fetcher.WithMaxBody(fc.MaxBody),
		fetcher.WithURLGuard(fc.GuardURLs),
		fetcher.WithTextMode(mode),
		fetcher.WithLogger(rt.logger),
	)
	if fc.Mode == "http" {
		return httpOpener, nil
	}

	level, err := browser.ParseStealth(fc.Browser.Stealth)
	if err != nil {
		return nil, err
	}
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        fc.Browser.Remote,
		MemoryLimit:      fc.Browser.MemoryLimit,
		RecycleInterval:  fc.Browser.RecycleInterval,
		ResourceBlocking: fc.Browser.ResourceBlocking,
		Stealth:          level,
		NavigateTimeout:  fc.Timeout,
		XvfbDisplay:      fc.Browser.XvfbDisplay,
		Logger:           rt.logger,
	})
	rt.closers = append(rt.closers, mgr)
	rendered := browser.NewOpener(mgr)
	if fc.Mode == "auto" {
		return fetcher.NewEscalating(httpOpener, rendered, rt.logger), nil
	}
	return rendered, nil
}

// AddPage registers url in the tracked_pages table. Only sqlite storage
// keeps a page list.
func (rt *Runtime) AddPage(ctx context.Context, url string) error {
	if rt.db == nil {
		return fmt.Errorf("%w: page registry needs sqlite storage", ErrValidation)
	}
	return config.SavePage(ctx, rt.db, url, "active")
}

// PausePage stops tracking url without forgetting it.
func (rt *Runtime) PausePage(ctx context.Context, url string) error {
	if rt.db == nil {
		return fmt.Errorf("%w: page registry needs sqlite storage", ErrValidation)
	}
	return config.SavePage(ctx, rt.db, url, "paused")
}

// URLs returns the configured pages followed by the active registry pages,
// without duplicates.
func (rt *Runtime) URLs(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(u string) {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	for _, u := range rt.cfg.URLs() {
		add(u)
	}
	if rt.db != nil {
		pages, err := config.LoadPages(ctx, rt.db)
		if err != nil {
			return nil, err
		}
		for _, p := range pages {
			add(p.URL)
		}
	}
	return out, nil
}

// Close releases everything the runtime opened, last opened first.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
