package mdadapter

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// EntryResolver reports whether a shared entry with the given name exists.
type EntryResolver interface {
	Exists(name string) bool
}

type entryLinksExtension struct {
	r EntryResolver
}

func NewEntryLinksExtension(r EntryResolver) goldmark.Extender {
	return &entryLinksExtension{r: r}
}

func (e *entryLinksExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithInlineParsers(
			util.Prioritized(NewEntryLinkParser(), 199),
		),
	)
	m.Renderer().AddOptions(
		renderer.WithNodeRenderers(
			util.Prioritized(NewEntryLinkRenderer(e.r), 199),
		),
	)
}
