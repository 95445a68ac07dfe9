package pageparse

import (
	"fmt"
	"html"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// TextMode selects how visible text is derived from markup.
type TextMode string

const (
	TextPlain    TextMode = "plain"
	TextMarkdown TextMode = "markdown"
	TextNone     TextMode = "none"
)

// ParseTextMode validates a configured mode. Empty selects TextPlain.
func ParseTextMode(s string) (TextMode, error) {
	switch m := TextMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return TextPlain, nil
	case TextPlain, TextMarkdown, TextNone:
		return m, nil
	default:
		return "", fmt.Errorf("pageparse: unknown text mode %q", s)
	}
}

// TextExtractor turns HTML into line-oriented text. It is safe for
// concurrent use.
type TextExtractor struct {
	mode   TextMode
	policy *bluemonday.Policy
	md     *converter.Converter
}

// NewTextExtractor builds an extractor for mode.
func NewTextExtractor(mode TextMode) *TextExtractor {
	e := &TextExtractor{mode: mode}
	switch mode {
	case TextMarkdown:
		e.md = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		)
	case TextNone:
	default:
		e.mode = TextPlain
		e.policy = bluemonday.StrictPolicy()
		e.policy.AddSpaceWhenStrippingTag(true)
	}
	return e
}

// Mode returns the effective mode.
func (e *TextExtractor) Mode() TextMode { return e.mode }

// Text extracts text from doc. pageURL resolves relative links in markdown
// mode. Markdown conversion failures fall back to plain text.
func (e *TextExtractor) Text(doc, pageURL string) string {
	switch e.mode {
	case TextNone:
		return ""
	case TextMarkdown:
		out, err := e.md.ConvertString(doc, converter.WithDomain(pageURL))
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out)
		}
		return plain(bluemonday.StrictPolicy(), doc)
	default:
		return plain(e.policy, doc)
	}
}

func plain(p *bluemonday.Policy, doc string) string {
	stripped := html.UnescapeString(p.Sanitize(doc))
	var lines []string
	for _, line := range strings.Split(stripped, "\n") {
		if f := strings.Fields(line); len(f) > 0 {
			lines = append(lines, strings.Join(f, " "))
		}
	}
	return strings.Join(lines, "\n")
}
