package snapshot

import "encoding/json"

// MarshalSnapshot serialises a Snapshot to JSON.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot parses a stored snapshot. A JSON null yields (nil, nil):
// the record exists but holds no snapshot.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s *Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// MarshalChange renders c as the event line sinks emit:
// {"type":"change","data":{...}}.
func MarshalChange(c *Change) ([]byte, error) {
	return json.Marshal(struct {
		Type string  `json:"type"`
		Data *Change `json:"data"`
	}{"change", c})
}
