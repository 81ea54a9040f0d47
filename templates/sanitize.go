package templates

import (
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowElements(
		"p", "br",
		"strong", "b", "em", "i", "u",
		"ul", "ol", "li",
		"blockquote",
	)
	p.AllowAttrs("href").OnElements("a")
	p.RequireNoFollowOnLinks(true)
	return p
}

// richText sanitises caller-supplied prose and keeps its line breaks.
func richText(p *bluemonday.Policy, s string) template.HTML {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\r\n", "\n")
	if s == "" {
		return ""
	}
	clean := p.Sanitize(s)
	return template.HTML(strings.ReplaceAll(clean, "\n", "<br>\n")) // nolint:gosec // sanitised above
}
