package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/pagetrack/snapshot"
	"github.com/hazyhaar/pagetrack/tracker/internal/source"
)

const headingsJS = `() => Array.from(document.querySelectorAll('h1,h2,h3,h4,h5,h6'))
	.map(h => ({level: Number(h.tagName.substring(1)), text: (h.innerText || h.textContent || '').replace(/\s+/g, ' ').trim()}))
	.filter(h => h.text !== '')`

const textJS = `() => document.body ? document.body.innerText : ''`

// Opener renders pages in tabs of a managed browser.
type Opener struct {
	mgr *Manager
}

// NewOpener creates an opener over mgr.
func NewOpener(mgr *Manager) *Opener {
	return &Opener{mgr: mgr}
}

// Open creates a tab, navigates to pageURL and waits for load. With
// Refresh the tab's network cache is disabled before navigation.
func (o *Opener) Open(ctx context.Context, pageURL string, opts source.OpenOptions) (*source.Handle, error) {
	b, err := o.mgr.Browser(ctx)
	if err != nil {
		return nil, err
	}
	cfg := o.mgr.cfg

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	t := &tab{page: page}

	if len(cfg.ResourceBlocking) > 0 {
		router, err := blockResources(page, cfg.ResourceBlocking)
		if err != nil {
			cfg.Logger.Warn("browser: resource blocking failed", "url", pageURL, "error", err)
		}
		t.router = router
	}
	if opts.Refresh {
		if err := (proto.NetworkSetCacheDisabled{CacheDisabled: true}).Call(page); err != nil {
			cfg.Logger.Warn("browser: disable cache failed", "url", pageURL, "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, cfg.NavigateTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		t.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return source.NewHandle(t), nil
}

// tab is an open, loaded page.
type tab struct {
	page   *rod.Page
	router *rod.HijackRouter
}

func (t *tab) Headings(ctx context.Context) ([]snapshot.Heading, error) {
	res, err := t.page.Context(ctx).Eval(headingsJS)
	if err != nil {
		return nil, fmt.Errorf("browser: headings: %w", err)
	}
	var hs []snapshot.Heading
	if err := res.Value.Unmarshal(&hs); err != nil {
		return nil, fmt.Errorf("browser: headings: %w", err)
	}
	return hs, nil
}

func (t *tab) HTML(ctx context.Context) (string, error) {
	html, err := t.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: html: %w", err)
	}
	return html, nil
}

func (t *tab) Text(ctx context.Context) (string, error) {
	res, err := t.page.Context(ctx).Eval(textJS)
	if err != nil {
		return "", fmt.Errorf("browser: text: %w", err)
	}
	return res.Value.Str(), nil
}

func (t *tab) Close() error {
	if t.router != nil {
		t.router.Stop()
	}
	return t.page.Close()
}
