package tracker

import (
	"io"
	"log/slog"

	"github.com/hazyhaar/pagetrack/snapshot"
	"github.com/hazyhaar/pagetrack/tracker/internal/delta"
	"github.com/hazyhaar/pagetrack/tracker/internal/sink"
	"github.com/hazyhaar/pagetrack/tracker/internal/source"
)

// Opener opens pages by URL. Re-exported from internal.
type Opener = source.Opener

// OpenerFunc adapts a function to Opener.
type OpenerFunc = source.OpenerFunc

// OpenOptions controls a single Open call.
type OpenOptions = source.OpenOptions

// Page is an opened page.
type Page = source.Page

// TextPage is a Page that also produces visible text.
type TextPage = source.TextPage

// Handle wraps a Page with its text capability resolved.
type Handle = source.Handle

// NewHandle wraps p for return from an Opener.
func NewHandle(p Page) *Handle { return source.NewHandle(p) }

// Differ is the sequence diff collaborator.
type Differ = delta.Differ

// TextPostProcessor is the optional Differ capability for html and text.
type TextPostProcessor = delta.TextPostProcessor

// LineDiffer is the default Differ.
type LineDiffer = delta.LineDiffer

// Sink receives detected changes.
type Sink = sink.Sink

// ChangeFunc receives a change in process.
type ChangeFunc = sink.ChangeFunc

// NewStdoutSink creates a JSON-lines sink on w (stdout when nil).
func NewStdoutSink(w io.Writer) Sink { return sink.NewStdout(w) }

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, retries int, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookRetries(retries), sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process sink.
func NewCallbackSink(fn ChangeFunc) Sink { return sink.NewCallback(fn) }

// Change is the event sinks receive.
type Change = snapshot.Change
