package kit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	resp, err := Chain(mw("a"), mw("b"))(base)(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}
	want := []string{"a_before", "b_before", "endpoint", "b_after", "a_after"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("order: got %v, want %v", order, want)
	}
}

func TestRecover(t *testing.T) {
	ep := Recover()(func(context.Context, any) (any, error) { panic("boom") })
	resp, err := ep(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error: got %v", err)
	}
	if resp != nil {
		t.Errorf("response: got %v, want nil", resp)
	}
}

func TestChain_LoggingSeesRecoveredPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ep := Chain(Logging(logger, "track"), Recover())(func(context.Context, any) (any, error) { panic("boom") })
	if _, err := ep(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(buf.String(), "endpoint panic: boom") {
		t.Errorf("log: got %s", buf.String())
	}
}

func TestLogging_Error(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	errFail := errors.New("fail")

	ep := Logging(logger, "track")(func(context.Context, any) (any, error) { return nil, errFail })
	ctx := WithRequestID(WithTransport(context.Background(), "mcp"), "req_1")
	if _, err := ep(ctx, nil); !errors.Is(err, errFail) {
		t.Fatalf("error: got %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"endpoint":"track"`, `"transport":"mcp"`, `"request_id":"req_1"`, `"error":"fail"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %s", out, want)
		}
	}
}

func TestContext_Defaults(t *testing.T) {
	ctx := context.Background()
	if v := GetTransport(ctx); v != "http" {
		t.Fatalf("default transport: got %q, want 'http'", v)
	}
	if v := GetRequestID(ctx); v != "" {
		t.Fatalf("request_id default: got %q", v)
	}
}

type echoReq struct {
	Word string `json:"word"`
}

func TestRegisterMCPTool(t *testing.T) {
	impl := &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)

	var transport string
	endpoint := func(ctx context.Context, req any) (any, error) {
		transport = GetTransport(ctx)
		r := req.(*echoReq)
		if r.Word == "" {
			return nil, errors.New("empty word")
		}
		return map[string]string{"echo": r.Word}, nil
	}
	decode := func(req *mcp.CallToolRequest) (*MCPDecodeResult, error) {
		var r echoReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &MCPDecodeResult{Request: &r}, nil
	}
	RegisterMCPTool(srv, &mcp.Tool{
		Name:        "echo",
		InputSchema: map[string]any{"type": "object"},
	}, endpoint, decode)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()
	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{"word": "hi"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := res.GetError(); err != nil {
		t.Fatalf("tool error: %v", err)
	}
	if tc := res.Content[0].(*mcp.TextContent); tc.Text != `{"echo":"hi"}` {
		t.Errorf("content: got %q", tc.Text)
	}
	if transport != "mcp" {
		t.Errorf("transport: got %q, want mcp", transport)
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "echo", Arguments: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("endpoint error must surface as a tool error")
	}
}
