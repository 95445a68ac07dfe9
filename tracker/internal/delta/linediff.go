package delta

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/hazyhaar/pagetrack/snapshot"
)

// LineDiffer diffs string sequences with difflib's SequenceMatcher and
// reports every non-equal opcode as an Edit.
type LineDiffer struct{}

func (LineDiffer) Diff(prev, cur []string) []snapshot.Edit {
	m := difflib.NewMatcher(prev, cur)
	var edits []snapshot.Edit
	for _, op := range m.GetOpCodes() {
		e := snapshot.Edit{
			PrevStart: op.I1, PrevEnd: op.I2,
			CurStart: op.J1, CurEnd: op.J2,
		}
		switch op.Tag {
		case 'e':
			continue
		case 'r':
			e.Op = snapshot.OpReplace
		case 'd':
			e.Op = snapshot.OpDelete
		case 'i':
			e.Op = snapshot.OpInsert
		}
		if op.I2 > op.I1 {
			e.Removed = append([]string(nil), prev[op.I1:op.I2]...)
		}
		if op.J2 > op.J1 {
			e.Added = append([]string(nil), cur[op.J1:op.J2]...)
		}
		edits = append(edits, e)
	}
	return edits
}

// PostProcessText drops replace hunks whose removed and added lines only
// differ in whitespace: reindented markup is not a content change.
func (LineDiffer) PostProcessText(edits []snapshot.Edit) []snapshot.Edit {
	var out []snapshot.Edit
	for _, e := range edits {
		if e.Op == snapshot.OpReplace && squash(e.Removed) == squash(e.Added) {
			continue
		}
		if e.Op != snapshot.OpReplace && squash(e.Removed) == "" && squash(e.Added) == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

func squash(lines []string) string {
	return strings.Join(strings.Fields(strings.Join(lines, " ")), " ")
}
