package mdadapter

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
)

type mdRenderer struct {
	md goldmark.Markdown
}

func NewRenderer(r EntryResolver) *mdRenderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			&frontmatter.Extender{},
			NewEntryLinksExtension(r),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	return &mdRenderer{md: md}
}

// Render converts src to HTML. Raw HTML in src is dropped.
func (m *mdRenderer) Render(src []byte) (string, map[string]any, error) {
	var buf bytes.Buffer

	ctx := parser.NewContext()
	if err := m.md.Convert(src, &buf, parser.WithContext(ctx)); err != nil {
		return "", nil, fmt.Errorf("cannot convert markdown: %w", err)
	}

	var meta map[string]any
	if fm := frontmatter.Get(ctx); fm != nil {
		if err := fm.Decode(&meta); err != nil {
			return "", nil, fmt.Errorf("cannot decode front matter: %w", err)
		}
	}

	return buf.String(), meta, nil
}
