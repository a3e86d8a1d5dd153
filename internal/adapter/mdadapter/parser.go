package mdadapter

import (
	"bytes"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

var (
	startSeq = []byte("[[")
	endSeq   = []byte("]]")
	labelSep = []byte{'|'}
)

/*
 * Wiki link
 * [[report.txt]]
 * [[report.txt|Quarterly report]]
 */
type entryLinkParser struct{}

func NewEntryLinkParser() parser.InlineParser {
	return &entryLinkParser{}
}

func (s *entryLinkParser) Trigger() []byte {
	return startSeq[:1]
}

func (s *entryLinkParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if !bytes.HasPrefix(line, startSeq) {
		return nil
	}

	end := bytes.Index(line[len(startSeq):], endSeq)
	if end < 0 {
		return nil
	}

	body := line[len(startSeq) : len(startSeq)+end]
	target, label := body, body
	if idx := bytes.Index(body, labelSep); idx >= 0 {
		target, label = body[:idx], body[idx+1:]
	}

	target = bytes.TrimSpace(target)
	label = bytes.TrimSpace(label)
	if len(target) == 0 {
		return nil
	}

	if len(label) == 0 {
		label = target
	}

	block.Advance(len(startSeq) + end + len(endSeq))

	return &EntryLink{
		Target: string(target),
		Label:  string(label),
	}
}
