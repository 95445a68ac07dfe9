package snapstore

import "strings"

// StorageKey maps a URL to its storage path: every character outside
// [a-zA-Z0-9] becomes '_', wrapped as tracker/<sanitized>.json.
// Distinct URLs that sanitize identically share a slot.
func StorageKey(url string) string {
	var b strings.Builder
	b.Grow(len("tracker/") + len(url) + len(".json"))
	b.WriteString("tracker/")
	for _, c := range url {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		} else {
			b.WriteByte('_')
		}
	}
	b.WriteString(".json")
	return b.String()
}
