package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindSuperscript is the goldmark node kind for ^superscript^ spans.
var KindSuperscript = ast.NewNodeKind("Superscript")

// superscriptNode is a ^text^ span. The content may not contain whitespace,
// which keeps expressions such as "x^2 + y^2" as plain text.
type superscriptNode struct {
	ast.BaseInline
}

func (n *superscriptNode) Kind() ast.NodeKind { return KindSuperscript }

func (n *superscriptNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

type superscriptParser struct{}

func (superscriptParser) Trigger() []byte { return []byte{'^'} }

func (superscriptParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, segment := block.PeekLine()
	if len(line) < 3 || line[0] != '^' {
		return nil
	}
	end := bytes.IndexByte(line[1:], '^')
	if end <= 0 {
		return nil
	}
	if bytes.ContainsAny(line[1:end+1], " \t\r\n") {
		return nil
	}
	node := &superscriptNode{}
	node.AppendChild(node, ast.NewTextSegment(text.NewSegment(segment.Start+1, segment.Start+1+end)))
	block.Advance(end + 2)
	return node
}

type superscriptExtension struct{}

// SuperscriptExtension adds ^superscript^ parsing to a goldmark engine.
var SuperscriptExtension goldmark.Extender = superscriptExtension{}

func (superscriptExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(
		util.Prioritized(superscriptParser{}, 700),
	))
}
