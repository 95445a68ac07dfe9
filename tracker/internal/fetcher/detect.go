package fetcher

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var spaShells = []string{
	`<div id="root"></div>`,
	`<div id="app"></div>`,
	`<div id="__next"></div>`,
	"<noscript>you need to enable javascript",
	"<noscript>enable javascript",
}

// IsSufficient reports whether a static body carries enough visible text
// to be tracked without rendering it in a browser. Bodies under 256 bytes,
// under 10% text, under 200 text characters or matching a known SPA shell
// are insufficient.
func IsSufficient(body string) bool {
	if len(body) < 256 {
		return false
	}
	text := visibleTextLen(body)
	if text < 200 || float64(text)/float64(len(body)) < 0.10 {
		return false
	}
	lower := strings.ToLower(body)
	for _, shell := range spaShells {
		if strings.Contains(lower, shell) {
			return false
		}
	}
	return true
}

// visibleTextLen counts non-space text bytes outside script and style.
func visibleTextLen(body string) int {
	z := html.NewTokenizer(strings.NewReader(body))
	n, skip := 0, 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return n
		case html.StartTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); a == atom.Script || a == atom.Style {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			for _, r := range string(z.Text()) {
				if !unicode.IsSpace(r) {
					n++
				}
			}
		}
	}
}
