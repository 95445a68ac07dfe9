package tracker

import (
	"encoding/json"

	"github.com/hazyhaar/pagetrack/kvstore"
	"github.com/hazyhaar/pagetrack/snapshot"
)

// Options tune a track call.
type Options struct {
	// NoRefresh lets the opener serve a cached copy of the page.
	NoRefresh bool `json:"no_refresh,omitempty"`
	// Storage is forwarded untouched to the storage provider.
	Storage kvstore.Options `json:"storage,omitempty"`
}

// TrackResult is the outcome of tracking one URL. A failed batch item
// carries only URL and Error.
type TrackResult struct {
	URL        string             `json:"url"`
	FirstVisit bool               `json:"firstVisit"`
	Snapshot   *snapshot.Snapshot `json:"snapshot"`
	Previous   *snapshot.Snapshot `json:"previous,omitempty"`
	Delta      *snapshot.Delta    `json:"delta"`
	Error      string             `json:"error,omitempty"`
}

// Failed reports whether the result is a per-item error.
func (r *TrackResult) Failed() bool { return r.Error != "" }

// Changed reports whether the result belongs in BatchResult.Changes.
func (r *TrackResult) Changed() bool {
	return !r.Failed() && !r.FirstVisit && snapshot.HasDelta(r.Delta)
}

// MarshalJSON drops the success fields from failed items.
func (r TrackResult) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(struct {
			URL   string `json:"url"`
			Error string `json:"error"`
		}{r.URL, r.Error})
	}
	type plain TrackResult
	return json.Marshal(plain(r))
}

// BatchResult holds one result per input URL, in input order, and the
// subset that changed.
type BatchResult struct {
	Results []TrackResult `json:"results"`
	Changes []TrackResult `json:"changes"`
}
