// Package delta computes the structural difference between two snapshots
// and collapses "nothing meaningful changed" to a nil delta.
package delta

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/pagetrack/snapshot"
)

// Differ is the sequence diff collaborator. Diff returns nil when prev and
// cur are equal.
type Differ interface {
	Diff(prev, cur []string) []snapshot.Edit
}

// TextPostProcessor is an optional Differ capability applied to the html
// and text diffs only.
type TextPostProcessor interface {
	PostProcessText(edits []snapshot.Edit) []snapshot.Edit
}

// Computor diffs snapshots field by field.
type Computor struct {
	differ Differ
	text   TextPostProcessor // nil when the differ has no text capability
}

// New creates a Computor. A nil differ selects LineDiffer.
func New(d Differ) *Computor {
	if d == nil {
		d = LineDiffer{}
	}
	c := &Computor{differ: d}
	if tp, ok := d.(TextPostProcessor); ok {
		c.text = tp
	}
	return c
}

// Compute returns the delta from prev to cur, or nil when HasDelta is false.
func (c *Computor) Compute(prev, cur *snapshot.Snapshot) *snapshot.Delta {
	if prev == nil {
		prev = &snapshot.Snapshot{}
	}
	if cur == nil {
		cur = &snapshot.Snapshot{}
	}
	d := &snapshot.Delta{
		Headings: c.differ.Diff(headingLines(prev.Headings), headingLines(cur.Headings)),
		HTML:     c.textDiff(prev.HTML, cur.HTML),
		Text:     c.textDiff(prev.Text, cur.Text),
	}
	if !snapshot.HasDelta(d) {
		return nil
	}
	return d
}

func (c *Computor) textDiff(prev, cur string) []snapshot.Edit {
	edits := c.differ.Diff(splitLines(prev), splitLines(cur))
	if c.text != nil {
		edits = c.text.PostProcessText(edits)
	}
	return edits
}

func headingLines(hs []snapshot.Heading) []string {
	if len(hs) == 0 {
		return nil
	}
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = fmt.Sprintf("h%d %s", h.Level, h.Text)
	}
	return out
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
