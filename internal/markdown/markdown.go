// Package markdown renders product descriptions and strips markup from
// free-text form fields.
package markdown

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
			extension.Linkify,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &Renderer{md: md, policy: policy, strict: bluemonday.StrictPolicy()}
}

// ToHTML converts markdown and sanitizes the result.
func (r *Renderer) ToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// Render is ToHTML for templates; conversion errors render nothing.
func (r *Renderer) Render(src string) template.HTML {
	out, err := r.ToHTML(src)
	if err != nil {
		return ""
	}
	return template.HTML(out) //nolint:gosec // sanitized by the UGC policy
}

// PlainText removes every tag and trims surrounding space. Entities are
// decoded again so templates escape the text once.
func (r *Renderer) PlainText(s string) string {
	return strings.TrimSpace(stdhtml.UnescapeString(r.strict.Sanitize(s)))
}
