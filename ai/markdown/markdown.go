// Package markdown renders LLM output to HTML for chat transcripts.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts markdown to HTML. Raw HTML in the source is not
// passed through, so model output cannot inject markup.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a renderer with GFM tables, strikethrough and
// autolinks enabled.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
		),
	}
}

// Render converts markdown to HTML. On conversion failure it returns
// the source escaped, so the caller always gets safe HTML.
func (r *Renderer) Render(source string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return EscapeHTML(source)
	}
	return buf.String()
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeHTML escapes the five HTML special characters.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
