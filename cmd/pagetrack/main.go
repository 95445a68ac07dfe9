// Command pagetrack captures pages and reports what changed since the last
// capture.
//
// Usage:
//
//	pagetrack -url https://a.example,https://b.example   # one-shot, JSON to stdout
//	pagetrack -config pagetrack.yaml                     # pages from config and registry
//	pagetrack -add https://a.example                     # register a page in the sqlite registry
//	pagetrack -listen :8080                              # HTTP API
//	pagetrack -mcp                                       # MCP tools over stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/pagetrack/tracker"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to pagetrack.yaml config file")
	urls := flag.String("url", "", "comma-separated URLs to track once")
	add := flag.String("add", "", "comma-separated URLs to register in the page registry")
	noRefresh := flag.Bool("no-refresh", false, "allow cached page copies")
	dbPath := flag.String("db", "", "sqlite database path (overrides config storage)")
	fetchMode := flag.String("fetch", "", "fetch mode: http, browser, auto (overrides config)")
	listen := flag.String("listen", "", "serve the HTTP API on this address")
	serveMCP := flag.Bool("mcp", false, "serve MCP tools over stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("pagetrack: fatal", "error", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Storage.Driver = "sqlite"
		cfg.Storage.Path = *dbPath
	}
	if *fetchMode != "" {
		cfg.Fetch.Mode = *fetchMode
	}
	if *noRefresh {
		cfg.NoRefresh = true
	}

	rt, err := tracker.NewRuntime(cfg, logger)
	if err != nil {
		logger.Error("pagetrack: fatal", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	switch {
	case *serveMCP:
		err = runMCP(ctx, rt)
	case *listen != "":
		err = runHTTP(ctx, logger, rt, *listen)
	case *add != "":
		err = runAdd(ctx, logger, rt, splitList(*add))
	default:
		err = runOnce(ctx, rt, splitList(*urls))
	}
	if err != nil {
		logger.Error("pagetrack: fatal", "error", err)
		rt.Close()
		os.Exit(1)
	}
}

func loadConfig(path string) (*tracker.Config, error) {
	if path == "" {
		return tracker.DefaultConfig(), nil
	}
	cfg, err := tracker.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runOnce(ctx context.Context, rt *tracker.Runtime, urls []string) error {
	if len(urls) == 0 {
		var err error
		if urls, err = rt.URLs(ctx); err != nil {
			return err
		}
	}
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: pagetrack -url <urls> | -config <file> | -add <urls> | -listen <addr> | -mcp")
		return errors.New("no pages to track")
	}
	res, err := rt.Tracker.TrackPages(ctx, urls, rt.Options)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runAdd(ctx context.Context, logger *slog.Logger, rt *tracker.Runtime, urls []string) error {
	for _, u := range urls {
		if err := rt.AddPage(ctx, u); err != nil {
			return err
		}
		logger.Info("pagetrack: page registered", "url", u)
	}
	return nil
}

func runHTTP(ctx context.Context, logger *slog.Logger, rt *tracker.Runtime, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           rt.Tracker.Handler(rt.Options),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("pagetrack: listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP(ctx context.Context, rt *tracker.Runtime) error {
	srv := mcp.NewServer(&mcp.Implementation{Name: "pagetrack", Version: version}, nil)
	rt.Tracker.RegisterMCP(srv, rt.Options)
	return srv.Run(ctx, &mcp.StdioTransport{})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
