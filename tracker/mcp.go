package tracker

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pagetrack/kit"
	"github.com/hazyhaar/pagetrack/kvstore"
)

// RegisterMCP registers the tracker tools on an MCP server. defaults
// supplies the options a call does not override.
func (t *Tracker) RegisterMCP(srv *mcp.Server, defaults Options) {
	t.registerTrackPageTool(srv, defaults)
	t.registerTrackPagesTool(srv, defaults)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var optionProperties = map[string]any{
	"no_refresh": map[string]any{"type": "boolean", "description": "Allow a cached copy of the page instead of a fresh fetch"},
	"scope":      map[string]any{"type": "string", "description": "Storage scope partitioning the snapshot namespace"},
}

type optionArgs struct {
	NoRefresh *bool  `json:"no_refresh,omitempty"`
	Scope     string `json:"scope,omitempty"`
}

func (a optionArgs) apply(defaults Options) Options {
	opts := defaults
	if a.NoRefresh != nil {
		opts.NoRefresh = *a.NoRefresh
	}
	if a.Scope != "" {
		storage := make(kvstore.Options, len(defaults.Storage)+1)
		for k, v := range defaults.Storage {
			storage[k] = v
		}
		storage[kvstore.ScopeKey] = a.Scope
		opts.Storage = storage
	}
	return opts
}

func withProperties(extra map[string]any) map[string]any {
	props := make(map[string]any, len(extra)+len(optionProperties))
	for k, v := range optionProperties {
		props[k] = v
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// endpoint wraps ep with the middleware every tracker transport shares.
func (t *Tracker) endpoint(name string, ep kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(t.logger, name), kit.Recover())(ep)
}

// --- track_page ---

type trackPageReq struct {
	URL string `json:"url"`
	optionArgs
}

func (t *Tracker) registerTrackPageTool(srv *mcp.Server, defaults Options) {
	tool := &mcp.Tool{
		Name:        "pagetrack_track_page",
		Description: "Capture a page, store it as the latest snapshot and return the delta against the previous capture.",
		InputSchema: inputSchema(withProperties(map[string]any{
			"url": map[string]any{"type": "string", "description": "Page URL"},
		}), []string{"url"}),
	}

	endpoint := t.endpoint("track_page", func(ctx context.Context, req any) (any, error) {
		r := req.(*trackPageReq)
		return t.TrackPage(ctx, r.URL, r.apply(defaults))
	})

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r trackPageReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- track_pages ---

type trackPagesReq struct {
	URLs []string `json:"urls"`
	optionArgs
}

func (t *Tracker) registerTrackPagesTool(srv *mcp.Server, defaults Options) {
	tool := &mcp.Tool{
		Name:        "pagetrack_track_pages",
		Description: "Track several pages in order. Failures are reported per URL; changes lists the pages that changed.",
		InputSchema: inputSchema(withProperties(map[string]any{
			"urls": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Page URLs, tracked in order",
			},
		}), []string{"urls"}),
	}

	endpoint := t.endpoint("track_pages", func(ctx context.Context, req any) (any, error) {
		r := req.(*trackPagesReq)
		return t.TrackPages(ctx, r.URLs, r.apply(defaults))
	})

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r trackPagesReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
