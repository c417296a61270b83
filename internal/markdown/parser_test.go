package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dt-pm-tools/confluence-sync/internal/document"
	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

func parse(t *testing.T, src string) []document.Block {
	t.Helper()
	doc, err := ParseString(src)
	require.NoError(t, err)
	return doc.Blocks
}

func TestParseHeadingAndTaskList(t *testing.T) {
	blocks := parse(t, "# Title\n\n- [x] done\n- [ ] todo")
	require.Len(t, blocks, 2)

	h, ok := blocks[0].(*document.Heading)
	require.True(t, ok, "want heading, got %T", blocks[0])
	assert.Equal(t, 1, h.Level)
	assert.Equal(t, "Title", document.PlainText(h.Inlines))

	l, ok := blocks[1].(*document.List)
	require.True(t, ok, "want list, got %T", blocks[1])
	require.Len(t, l.Items, 2)
	assert.True(t, l.IsTaskList())
	assert.True(t, l.Items[0].Checked)
	assert.False(t, l.Items[1].Checked)

	p := l.Items[0].Blocks[0].(*document.Paragraph)
	assert.Equal(t, "done", document.PlainText(p.Inlines))
}

func TestParseSetextHeading(t *testing.T) {
	blocks := parse(t, "Section\n-------\n")
	require.Len(t, blocks, 1)
	h := blocks[0].(*document.Heading)
	assert.Equal(t, 2, h.Level)
}

func TestParseTableAlignment(t *testing.T) {
	src := "| a | b | c |\n|:---|:---:|---:|\n| 1 | 2 | 3 |\n"
	blocks := parse(t, src)
	require.Len(t, blocks, 1)

	tbl, ok := blocks[0].(*document.Table)
	require.True(t, ok, "want table, got %T", blocks[0])
	assert.Equal(t, []document.Alignment{document.AlignLeft, document.AlignCenter, document.AlignRight}, tbl.Align)
	require.Len(t, tbl.Header, 3)
	assert.Equal(t, "b", document.PlainText(tbl.Header[1].Inlines))
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "3", document.PlainText(tbl.Rows[0][2].Inlines))
}

func TestParseTableWithoutDelimiterIsParagraph(t *testing.T) {
	blocks := parse(t, "| a | b |\n| 1 | 2 |\n")
	require.Len(t, blocks, 1)
	_, ok := blocks[0].(*document.Paragraph)
	assert.True(t, ok, "want paragraph, got %T", blocks[0])
}

func TestParseFencedCode(t *testing.T) {
	blocks := parse(t, "```go\nfmt.Println(\"hi\")\n  indented\n```\n")
	require.Len(t, blocks, 1)
	cb := blocks[0].(*document.CodeBlock)
	assert.Equal(t, "go", cb.Language)
	assert.Equal(t, "fmt.Println(\"hi\")\n  indented", cb.Code)
}

func TestParseUnterminatedFenceRunsToEnd(t *testing.T) {
	blocks := parse(t, "intro\n\n````\ncode\n```\nmore\n")
	require.Len(t, blocks, 2)
	cb := blocks[1].(*document.CodeBlock)
	assert.Equal(t, "", cb.Language)
	assert.Equal(t, "code\n```\nmore", cb.Code)
}

func TestParseNestedLists(t *testing.T) {
	blocks := parse(t, "- one\n  - two\n    1. three\n- four\n")
	require.Len(t, blocks, 1)
	outer := blocks[0].(*document.List)
	require.Len(t, outer.Items, 2)

	first := outer.Items[0]
	require.Len(t, first.Blocks, 2)
	inner := first.Blocks[1].(*document.List)
	assert.False(t, inner.Ordered)
	deepest := inner.Items[0].Blocks[1].(*document.List)
	assert.True(t, deepest.Ordered)
	assert.Equal(t, 1, deepest.Start)
}

func TestParseInlineSpans(t *testing.T) {
	blocks := parse(t, "**bold** _em_ ~~gone~~ `code` [link](https://example.com \"T\")")
	p := blocks[0].(*document.Paragraph)

	var kinds []document.InlineKind
	for _, in := range p.Inlines {
		kinds = append(kinds, in.InlineKind())
	}
	assert.Contains(t, kinds, document.KindStrong)
	assert.Contains(t, kinds, document.KindEmphasis)
	assert.Contains(t, kinds, document.KindStrikethrough)
	assert.Contains(t, kinds, document.KindCode)
	assert.Contains(t, kinds, document.KindLink)

	link := p.Inlines[len(p.Inlines)-1].(*document.Link)
	assert.Equal(t, "https://example.com", link.URL)
	assert.Equal(t, "T", link.Title)
	assert.Equal(t, "link", document.PlainText(link.Children))
}

func TestParseEscapesBeforeEmphasis(t *testing.T) {
	blocks := parse(t, `\*not emphasis\*`)
	p := blocks[0].(*document.Paragraph)
	require.Len(t, p.Inlines, 3)
	assert.Equal(t, &document.Escaped{Char: "*"}, p.Inlines[0])
	assert.Equal(t, &document.Text{Value: "not emphasis"}, p.Inlines[1])
	assert.Equal(t, &document.Escaped{Char: "*"}, p.Inlines[2])
}

func TestParseAutolink(t *testing.T) {
	blocks := parse(t, "see <https://example.com/x> now")
	p := blocks[0].(*document.Paragraph)
	var link *document.Link
	for _, in := range p.Inlines {
		if l, ok := in.(*document.Link); ok {
			link = l
		}
	}
	require.NotNil(t, link)
	assert.Equal(t, "https://example.com/x", link.URL)
}

func TestParseRawHTML(t *testing.T) {
	blocks := parse(t, "Line 1<br>Line 2 and H<sub>2</sub>O <kbd>x</kbd>")
	p := blocks[0].(*document.Paragraph)

	assert.Equal(t, &document.Text{Value: "Line 1"}, p.Inlines[0])
	assert.Equal(t, &document.LineBreak{}, p.Inlines[1])

	var sub *document.Subscript
	var raws []string
	for _, in := range p.Inlines {
		switch n := in.(type) {
		case *document.Subscript:
			sub = n
		case *document.RawHTML:
			raws = append(raws, n.Value)
		}
	}
	require.NotNil(t, sub)
	assert.Equal(t, "2", document.PlainText(sub.Children))
	assert.Equal(t, []string{"<kbd>", "</kbd>"}, raws)
}

func TestParseStandaloneBreakLines(t *testing.T) {
	blocks := parse(t, "Intro\n\n<br>\n<BR />\n\nOutro")
	require.Len(t, blocks, 3)
	p := blocks[1].(*document.Paragraph)
	assert.Equal(t, []document.Inline{&document.LineBreak{}, &document.LineBreak{}}, p.Inlines)

	blocks = parse(t, "<br><br/>\n")
	require.Len(t, blocks, 1)
	assert.Len(t, blocks[0].(*document.Paragraph).Inlines, 2)

	blocks = parse(t, "<div>\n<br>\n</div>\n")
	require.Len(t, blocks, 1)
	_, ok := blocks[0].(*document.Paragraph).Inlines[0].(*document.RawHTML)
	assert.True(t, ok)
}

func TestParseSuperscript(t *testing.T) {
	blocks := parse(t, "2^10^ is 1024, x^2 + y^2 is not")
	p := blocks[0].(*document.Paragraph)
	var sups []string
	for _, in := range p.Inlines {
		if s, ok := in.(*document.Superscript); ok {
			sups = append(sups, document.PlainText(s.Children))
		}
	}
	assert.Equal(t, []string{"10"}, sups)
}

func TestParseDefinitionList(t *testing.T) {
	blocks := parse(t, "Term\n: Definition one\n")
	require.Len(t, blocks, 1)
	dl, ok := blocks[0].(*document.DefinitionList)
	require.True(t, ok, "want definition list, got %T", blocks[0])
	require.Len(t, dl.Items, 1)
	assert.Equal(t, "Term", document.PlainText(dl.Items[0].Terms[0]))
	require.Len(t, dl.Items[0].Descriptions, 1)
	desc := dl.Items[0].Descriptions[0][0].(*document.Paragraph)
	assert.Equal(t, "Definition one", document.PlainText(desc.Inlines))
}

func TestParseBlockquoteAndRule(t *testing.T) {
	blocks := parse(t, "> quoted\n> text\n\n---\n\nafter")
	require.Len(t, blocks, 3)
	bq := blocks[0].(*document.Blockquote)
	require.Len(t, bq.Blocks, 1)
	_, ok := blocks[1].(*document.ThematicBreak)
	assert.True(t, ok)
}

func TestParseImage(t *testing.T) {
	blocks := parse(t, "![a diagram](img/arch.png \"Architecture\")")
	p := blocks[0].(*document.Paragraph)
	img := p.Inlines[0].(*document.Image)
	assert.Equal(t, "img/arch.png", img.URL)
	assert.Equal(t, "a diagram", img.Alt)
	assert.Equal(t, "Architecture", img.Title)
}

func TestParseEntities(t *testing.T) {
	blocks := parse(t, "AT&amp;T &copy;")
	p := blocks[0].(*document.Paragraph)
	assert.Equal(t, "AT&T ©", document.PlainText(p.Inlines))
}

func TestParseRejectsInvalidUTF8(t *testing.T) {
	_, err := Parse([]byte("ok\xff\xfe"))
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.MalformedInput))
}

func TestParseEmpty(t *testing.T) {
	doc, err := ParseString("")
	require.NoError(t, err)
	assert.Empty(t, doc.Blocks)
}
