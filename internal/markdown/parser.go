// Package markdown turns Markdown text into a document.Document.
//
// Parsing is delegated to goldmark (CommonMark + GFM tables, strikethrough,
// task lists and autolinks, plus definition lists). The goldmark AST is then
// folded into the closed document model so that renderers never see
// goldmark types.
package markdown

import (
	"bytes"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/dt-pm-tools/confluence-sync/internal/document"
	"github.com/dt-pm-tools/confluence-sync/internal/syncerr"
)

// The goldmark engine is configured once and shared; Parse creates its own
// per-call state from the reader.
var (
	engine     goldmark.Markdown
	engineOnce sync.Once
)

func markdownEngine() goldmark.Markdown {
	engineOnce.Do(func() {
		engine = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.DefinitionList,
				SuperscriptExtension,
			),
		)
	})
	return engine
}

var (
	breakTagRe  = regexp.MustCompile(`(?i)^<br\s*/?>$`)
	breakLineRe = regexp.MustCompile(`(?i)^(?:<br\s*/?>\s*)+$`)
	anyBreakRe  = regexp.MustCompile(`(?i)<br\s*/?>`)
	openSpanRe  = regexp.MustCompile(`(?i)^<(sub|sup)\s*>$`)
	closeSpanRe = regexp.MustCompile(`(?i)^</(sub|sup)\s*>$`)
)

// Parse converts Markdown source into a document. Only structurally invalid
// input (bytes that are not UTF-8) is rejected; unterminated fences and other
// stylistic irregularities are accepted the way CommonMark accepts them.
func Parse(src []byte) (*document.Document, error) {
	if !utf8.Valid(src) {
		return nil, syncerr.New(syncerr.MalformedInput, "parse markdown",
			"input is not valid UTF-8 (first invalid byte at offset %d)", invalidOffset(src))
	}
	root := markdownEngine().Parser().Parse(text.NewReader(src))
	c := &converter{source: src}
	return &document.Document{Blocks: c.blocks(root)}, nil
}

// ParseString is Parse for string input.
func ParseString(src string) (*document.Document, error) {
	return Parse([]byte(src))
}

func invalidOffset(src []byte) int {
	for i := 0; i < len(src); {
		r, size := utf8.DecodeRune(src[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

type converter struct {
	source []byte
	// set after a task checkbox so the separating space is not kept as text
	afterCheckBox bool
}

func (c *converter) blocks(parent ast.Node) []document.Block {
	var out []document.Block
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if b := c.block(n); b != nil {
			out = append(out, b)
		}
	}
	return out
}

func (c *converter) block(n ast.Node) document.Block {
	switch node := n.(type) {
	case *ast.Heading:
		return &document.Heading{Level: node.Level, Inlines: c.inlines(node)}
	case *ast.Paragraph:
		return &document.Paragraph{Inlines: c.inlines(node)}
	case *ast.TextBlock:
		return &document.Paragraph{Inlines: c.inlines(node)}
	case *ast.ThematicBreak:
		return &document.ThematicBreak{}
	case *ast.FencedCodeBlock:
		return &document.CodeBlock{
			Language: string(node.Language(c.source)),
			Code:     c.lines(node),
		}
	case *ast.CodeBlock:
		return &document.CodeBlock{Code: c.lines(node)}
	case *ast.Blockquote:
		return &document.Blockquote{Blocks: c.blocks(node)}
	case *ast.List:
		return c.list(node)
	case *ast.HTMLBlock:
		raw := c.lines(node)
		if node.HasClosure() {
			raw += "\n" + string(node.ClosureLine.Value(c.source))
		}
		raw = strings.TrimRight(raw, "\n")
		if breaks := c.breakBlock(raw); breaks != nil {
			return &document.Paragraph{Inlines: breaks}
		}
		return &document.Paragraph{Inlines: []document.Inline{&document.RawHTML{Value: raw}}}
	case *extast.Table:
		return c.table(node)
	case *extast.DefinitionList:
		return c.definitionList(node)
	}

	// Anything else goldmark may grow is kept as paragraph text rather than
	// being dropped.
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		return &document.Paragraph{Inlines: []document.Inline{&document.Text{Value: c.lines(n)}}}
	}
	if n.HasChildren() {
		return &document.Paragraph{Inlines: c.inlines(n)}
	}
	return nil
}

// breakBlock returns one LineBreak per tag when an HTML block holds only
// <br> tags, and nil otherwise.
func (c *converter) breakBlock(raw string) []document.Inline {
	var out []document.Inline
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !breakLineRe.MatchString(line) {
			return nil
		}
		for range anyBreakRe.FindAllString(line, -1) {
			out = append(out, &document.LineBreak{})
		}
	}
	return out
}

// lines joins a block's raw line segments, without the final newline.
func (c *converter) lines(n ast.Node) string {
	var b bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(c.source))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (c *converter) list(node *ast.List) document.Block {
	l := &document.List{
		Ordered: node.IsOrdered(),
		Start:   node.Start,
		Tight:   node.IsTight,
	}
	for item := node.FirstChild(); item != nil; item = item.NextSibling() {
		li := document.ListItem{}
		if box := taskCheckBox(item); box != nil {
			li.Task = true
			li.Checked = box.IsChecked
		}
		li.Blocks = c.blocks(item)
		l.Items = append(l.Items, li)
	}
	return l
}

// taskCheckBox returns the checkbox goldmark attaches as the first inline of
// a list item's first paragraph, if any.
func taskCheckBox(item ast.Node) *extast.TaskCheckBox {
	first := item.FirstChild()
	if first == nil {
		return nil
	}
	box, _ := first.FirstChild().(*extast.TaskCheckBox)
	return box
}

func (c *converter) table(node *extast.Table) document.Block {
	t := &document.Table{}
	for _, a := range node.Alignments {
		t.Align = append(t.Align, alignment(a))
	}
	for row := node.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []document.Cell
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, document.Cell{Inlines: c.inlines(cell)})
		}
		if _, ok := row.(*extast.TableHeader); ok {
			t.Header = cells
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

func alignment(a extast.Alignment) document.Alignment {
	switch a {
	case extast.AlignLeft:
		return document.AlignLeft
	case extast.AlignCenter:
		return document.AlignCenter
	case extast.AlignRight:
		return document.AlignRight
	default:
		return document.AlignNone
	}
}

func (c *converter) definitionList(node *extast.DefinitionList) document.Block {
	dl := &document.DefinitionList{}
	current := -1
	for n := node.FirstChild(); n != nil; n = n.NextSibling() {
		switch item := n.(type) {
		case *extast.DefinitionTerm:
			if current < 0 || len(dl.Items[current].Descriptions) > 0 {
				dl.Items = append(dl.Items, document.Definition{})
				current = len(dl.Items) - 1
			}
			dl.Items[current].Terms = append(dl.Items[current].Terms, c.inlines(item))
		case *extast.DefinitionDescription:
			if current < 0 {
				dl.Items = append(dl.Items, document.Definition{})
				current = len(dl.Items) - 1
			}
			dl.Items[current].Descriptions = append(dl.Items[current].Descriptions, c.blocks(item))
		}
	}
	return dl
}

func (c *converter) inlines(parent ast.Node) []document.Inline {
	var out []document.Inline
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		out = append(out, c.inline(n)...)
	}
	return foldHTMLSpans(mergeText(out))
}

func (c *converter) inline(n ast.Node) []document.Inline {
	switch node := n.(type) {
	case *ast.Text:
		return c.text(node)
	case *ast.String:
		return []document.Inline{&document.Text{Value: string(node.Value)}}
	case *ast.CodeSpan:
		return []document.Inline{&document.Code{Value: c.codeSpan(node)}}
	case *ast.Emphasis:
		children := c.inlines(node)
		if node.Level >= 2 {
			return []document.Inline{&document.Strong{Children: children}}
		}
		return []document.Inline{&document.Emphasis{Children: children}}
	case *extast.Strikethrough:
		return []document.Inline{&document.Strikethrough{Children: c.inlines(node)}}
	case *ast.Link:
		return []document.Inline{&document.Link{
			URL:      linkValue(node.Destination),
			Title:    linkValue(node.Title),
			Children: c.inlines(node),
		}}
	case *ast.AutoLink:
		url := string(node.URL(c.source))
		if node.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(url), "mailto:") {
			url = "mailto:" + url
		}
		return []document.Inline{&document.Link{
			URL:      url,
			Children: []document.Inline{&document.Text{Value: string(node.Label(c.source))}},
		}}
	case *ast.Image:
		return []document.Inline{&document.Image{
			URL:   linkValue(node.Destination),
			Title: linkValue(node.Title),
			Alt:   document.PlainText(c.inlines(node)),
		}}
	case *ast.RawHTML:
		var b bytes.Buffer
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			b.Write(seg.Value(c.source))
		}
		raw := b.String()
		if breakTagRe.MatchString(strings.TrimSpace(raw)) {
			return []document.Inline{&document.LineBreak{}}
		}
		return []document.Inline{&document.RawHTML{Value: raw}}
	case *extast.TaskCheckBox:
		c.afterCheckBox = true
		return nil
	case *superscriptNode:
		return []document.Inline{&document.Superscript{Children: c.inlines(node)}}
	}
	if n.HasChildren() {
		return c.inlines(n)
	}
	return nil
}

// linkValue resolves backslash escapes and entities in a link destination
// or title.
func linkValue(b []byte) string {
	b = util.UnescapePunctuations(b)
	b = util.ResolveNumericReferences(b)
	return string(util.ResolveEntityNames(b))
}

func (c *converter) text(node *ast.Text) []document.Inline {
	value := node.Segment.Value(c.source)
	if c.afterCheckBox {
		value = bytes.TrimLeft(value, " \t")
		c.afterCheckBox = false
	}
	if node.SoftLineBreak() || node.HardLineBreak() {
		value = bytes.TrimRight(value, " \t")
	}
	if node.HardLineBreak() {
		value = bytes.TrimSuffix(value, []byte{'\\'})
	}

	var out []document.Inline
	if node.IsRaw() {
		if len(value) > 0 {
			out = append(out, &document.Text{Value: string(value)})
		}
	} else {
		out = splitEscapes(value)
	}

	switch {
	case node.HardLineBreak():
		out = append(out, &document.LineBreak{})
	case node.SoftLineBreak():
		out = append(out, &document.Text{Value: "\n"})
	}
	return out
}

// splitEscapes separates backslash escapes from surrounding text and
// resolves entity references in the text pieces.
func splitEscapes(value []byte) []document.Inline {
	var out []document.Inline
	start := 0
	for i := 0; i < len(value); i++ {
		if value[i] != '\\' || i+1 >= len(value) || !util.IsPunct(value[i+1]) {
			continue
		}
		if i > start {
			out = append(out, textNode(value[start:i]))
		}
		out = append(out, &document.Escaped{Char: string(value[i+1])})
		i++
		start = i + 1
	}
	if start < len(value) {
		out = append(out, textNode(value[start:]))
	}
	return out
}

func textNode(b []byte) *document.Text {
	return &document.Text{Value: string(util.ResolveNumericReferences(util.ResolveEntityNames(b)))}
}

func (c *converter) codeSpan(node *ast.CodeSpan) string {
	var b bytes.Buffer
	for ch := node.FirstChild(); ch != nil; ch = ch.NextSibling() {
		switch t := ch.(type) {
		case *ast.Text:
			v := t.Segment.Value(c.source)
			if bytes.HasSuffix(v, []byte{'\n'}) {
				b.Write(v[:len(v)-1])
				b.WriteByte(' ')
				continue
			}
			b.Write(v)
		case *ast.String:
			b.Write(t.Value)
		}
	}
	return b.String()
}

// mergeText joins adjacent text spans; goldmark splits text at every
// punctuation character it inspects.
func mergeText(in []document.Inline) []document.Inline {
	var out []document.Inline
	for _, n := range in {
		t, ok := n.(*document.Text)
		if ok && len(out) > 0 {
			if prev, ok := out[len(out)-1].(*document.Text); ok {
				out[len(out)-1] = &document.Text{Value: prev.Value + t.Value}
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

// foldHTMLSpans turns matching <sub>/<sup> raw HTML pairs into subscript and
// superscript spans. Unmatched tags stay raw.
func foldHTMLSpans(in []document.Inline) []document.Inline {
	var out []document.Inline
	for i := 0; i < len(in); i++ {
		raw, ok := in[i].(*document.RawHTML)
		if !ok {
			out = append(out, in[i])
			continue
		}
		m := openSpanRe.FindStringSubmatch(strings.TrimSpace(raw.Value))
		if m == nil {
			out = append(out, in[i])
			continue
		}
		tag := strings.ToLower(m[1])
		end := -1
		for j := i + 1; j < len(in); j++ {
			r, ok := in[j].(*document.RawHTML)
			if !ok {
				continue
			}
			if cm := closeSpanRe.FindStringSubmatch(strings.TrimSpace(r.Value)); cm != nil && strings.ToLower(cm[1]) == tag {
				end = j
				break
			}
		}
		if end < 0 {
			out = append(out, in[i])
			continue
		}
		children := foldHTMLSpans(in[i+1 : end])
		if tag == "sub" {
			out = append(out, &document.Subscript{Children: children})
		} else {
			out = append(out, &document.Superscript{Children: children})
		}
		i = end
	}
	return out
}
