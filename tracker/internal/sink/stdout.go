package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/pagetrack/snapshot"
)

// Stdout writes changes as JSON lines to an io.Writer (default os.Stdout).
type Stdout struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w}
}

func (s *Stdout) Send(_ context.Context, c *snapshot.Change) error {
	line, err := snapshot.MarshalChange(c)
	if err != nil {
		return fmt.Errorf("stdout: marshal: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(append(line, '\n'))
	return err
}

func (s *Stdout) Close() error { return nil }
