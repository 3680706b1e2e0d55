package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/municipio/pagecms/pkg/interfaces"
)

// HTMLSanitizer strips markup outside the page body allow-list.
type HTMLSanitizer struct {
	rich  *bluemonday.Policy
	plain *bluemonday.Policy
}

var _ interfaces.Sanitizer = (*HTMLSanitizer)(nil)

// New builds the default policy used for page bodies and section content.
func New() *HTMLSanitizer {
	return &HTMLSanitizer{
		rich:  RichTextPolicy(),
		plain: bluemonday.StrictPolicy(),
	}
}

// RichTextPolicy permits the formatting editors use in page bodies.
func RichTextPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "span", "div", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "strong", "em", "blockquote", "code", "pre")
	p.AllowAttrs("href", "title", "rel", "target").OnElements("a")
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowAttrs("width", "height").Matching(bluemonday.Number).OnElements("img")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	return p
}

func (s *HTMLSanitizer) SanitizeHTML(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	return strings.TrimSpace(s.rich.Sanitize(input))
}

// SanitizePlainText removes every tag and unescapes entities so stored text stays readable.
func (s *HTMLSanitizer) SanitizePlainText(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.plain.Sanitize(input)))
}

// Passthrough returns input unchanged. Useful when content was sanitized upstream.
type Passthrough struct{}

func (Passthrough) SanitizeHTML(input string) string      { return input }
func (Passthrough) SanitizePlainText(input string) string { return input }
