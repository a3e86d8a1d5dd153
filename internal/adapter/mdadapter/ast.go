package mdadapter

import (
	"github.com/yuin/goldmark/ast"
)

var KindEntryLink = ast.NewNodeKind("EntryLink")

// EntryLink is a [[name]] or [[name|label]] reference to another shared entry.
type EntryLink struct {
	ast.BaseInline
	Target string
	Label  string
}

func (n *EntryLink) Kind() ast.NodeKind {
	return KindEntryLink
}

func (n *EntryLink) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Target": n.Target,
		"Label":  n.Label,
	}, nil)
}
