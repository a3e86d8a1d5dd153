package mdadapter

import (
	"fmt"
	"html"
	"net/url"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

const filesURLPrefix = "/api/files/"

type entryLinkRenderer struct {
	r EntryResolver
}

func NewEntryLinkRenderer(r EntryResolver) renderer.NodeRenderer {
	return &entryLinkRenderer{r: r}
}

func (r *entryLinkRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindEntryLink, r.renderEntryLink)
}

func (r *entryLinkRenderer) renderEntryLink(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	link, ok := n.(*EntryLink)
	if !ok {
		return ast.WalkStop, fmt.Errorf("unexpected node %T, expected *EntryLink", n)
	}

	label := html.EscapeString(link.Label)

	// Entries come and go, a dangling link is rendered as plain text.
	if r.r == nil || !r.r.Exists(link.Target) {
		_, _ = fmt.Fprintf(w, `<span class="entry-missing">%s</span>`, label)

		return ast.WalkContinue, nil
	}

	href := filesURLPrefix + url.PathEscape(link.Target)
	_, _ = fmt.Fprintf(w, `<a class="entry-link" href="%s">%s</a>`, html.EscapeString(href), label)

	return ast.WalkContinue, nil
}
