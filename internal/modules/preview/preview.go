// Package preview renders generated and saved bodies as HTML for the view
// modal. Raw HTML inside a body is never passed through.
package preview

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

var engine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
		htmlrenderer.WithXHTML(),
	),
)

var (
	tagPattern   = regexp.MustCompile(`(?s)<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

const documentStyle = `body{font-family:system-ui,sans-serif;max-width:46rem;margin:2rem auto;padding:0 1rem;line-height:1.6;color:#1f2328}
h1{font-size:1.6rem;margin-bottom:.25rem}.meta{color:#59636e;font-size:.85rem;margin-bottom:1.5rem}
pre{background:#f6f8fa;padding:.75rem;overflow:auto}table{border-collapse:collapse}td,th{border:1px solid #d1d9e0;padding:.25rem .5rem}`

// Render converts a markdown body to an HTML fragment.
func Render(body string) (template.HTML, error) {
	text := strings.TrimSpace(body)
	if text == "" {
		return "", nil
	}
	var out bytes.Buffer
	if err := engine.Convert([]byte(text), &out); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(out.String()), nil
}

// Document wraps a rendered body in a standalone HTML page.
type Document struct {
	Title string
	Meta  string
	Body  string
}

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title><style>{{.Style}}</style></head>
<body><article><h1>{{.Title}}</h1>{{if .Meta}}<div class="meta">{{.Meta}}</div>{{end}}{{.HTML}}</article></body></html>
`))

// RenderDocument renders doc as a full page.
func RenderDocument(doc Document) ([]byte, error) {
	rendered, err := Render(doc.Body)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	err = documentTemplate.Execute(&out, struct {
		Title string
		Meta  string
		Style template.CSS
		HTML  template.HTML
	}{doc.Title, doc.Meta, template.CSS(documentStyle), rendered})
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return out.Bytes(), nil
}

// Excerpt returns up to max characters of the body's plain text.
func Excerpt(body string, max int) string {
	rendered, err := Render(body)
	if err != nil {
		return ""
	}
	text := tagPattern.ReplaceAllString(string(rendered), " ")
	text = strings.TrimSpace(spacePattern.ReplaceAllString(html.UnescapeString(text), " "))
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
