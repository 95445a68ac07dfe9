// Package snapshot defines the structured types produced by pagetrack.
// These are the public contract: consumers (sinks, MCP clients, custom
// pipelines) import this package to read captured pages and their deltas.
package snapshot

import "time"

// Heading is one h1..h6 element of a captured page, in document order.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Snapshot is the captured state of a page at one point in time. It is
// built once per track cycle and never modified afterwards. Only the latest
// snapshot of a URL is persisted.
type Snapshot struct {
	ID        string    `json:"id,omitempty"` // UUIDv7
	URL       string    `json:"url"`
	Headings  []Heading `json:"headings"`
	HTML      string    `json:"html"`
	Text      string    `json:"text"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Change is emitted to sinks when a tracked page differs from its previous
// snapshot.
type Change struct {
	URL        string    `json:"url"`
	Snapshot   *Snapshot `json:"snapshot"`
	Previous   *Snapshot `json:"previous"`
	Delta      *Delta    `json:"delta"`
	DetectedAt time.Time `json:"detectedAt"`
}
