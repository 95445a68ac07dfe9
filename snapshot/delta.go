package snapshot

// EditOp is the kind of a sequence diff hunk.
type EditOp string

const (
	OpReplace EditOp = "replace"
	OpDelete  EditOp = "delete"
	OpInsert  EditOp = "insert"
)

// Edit is one hunk of a sequence diff. Prev* index the previous sequence,
// Cur* the current one; ranges are half-open.
type Edit struct {
	Op        EditOp   `json:"op"`
	PrevStart int      `json:"prevStart"`
	PrevEnd   int      `json:"prevEnd"`
	CurStart  int      `json:"curStart"`
	CurEnd    int      `json:"curEnd"`
	Removed   []string `json:"removed,omitempty"`
	Added     []string `json:"added,omitempty"`
}

// Delta holds the per-field diff between two snapshots. A nil field means
// the diff collaborator reported nothing for it. A nil *Delta means "no
// delta"; a non-nil Delta always satisfies HasDelta.
type Delta struct {
	Headings []Edit `json:"headings,omitempty"`
	HTML     []Edit `json:"html,omitempty"`
	Text     []Edit `json:"text,omitempty"`
}

// HasDelta reports whether d carries a meaningful change: any headings diff
// at all, or a non-empty html or text diff.
func HasDelta(d *Delta) bool {
	if d == nil {
		return false
	}
	if d.Headings != nil {
		return true
	}
	return len(d.HTML) > 0 || len(d.Text) > 0
}
